package reconcile

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltProcessedStore", func() {
	var (
		path  string
		store *BoltProcessedStore
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "processed.db")
		var err error
		store, err = OpenProcessedStore(path)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
	})

	It("should report unknown ids as unprocessed", func() {
		Expect(store.IsProcessed("msg-001")).To(BeFalse())
	})

	Describe("MarkProcessed", func() {
		It("should make the id processed", func() {
			Expect(store.MarkProcessed("msg-001")).To(Succeed())
			Expect(store.IsProcessed("msg-001")).To(BeTrue())
		})

		It("should be a no-op for an already-present id", func() {
			Expect(store.MarkProcessed("msg-001")).To(Succeed())
			Expect(store.MarkProcessed("msg-001")).To(Succeed())
			Expect(store.IsProcessed("msg-001")).To(BeTrue())
		})

		It("should ignore empty ids", func() {
			Expect(store.MarkProcessed("")).To(Succeed())
			Expect(store.IsProcessed("")).To(BeFalse())
		})
	})

	When("the store is reopened", func() {
		It("should remember marked ids", func() {
			Expect(store.MarkProcessed("msg-001")).To(Succeed())
			Expect(store.MarkProcessed("msg-002")).To(Succeed())
			Expect(store.Close()).To(Succeed())

			reopened, err := OpenProcessedStore(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.IsProcessed("msg-001")).To(BeTrue())
			Expect(reopened.IsProcessed("msg-002")).To(BeTrue())
			Expect(reopened.IsProcessed("msg-003")).To(BeFalse())

			// Swap in the live handle so AfterEach closes it.
			store = reopened
		})
	})
})
