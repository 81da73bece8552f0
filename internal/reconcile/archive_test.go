package reconcile

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalArchive", func() {
	var (
		tmpDir  string
		archive *LocalArchive
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		archive, err = NewLocalArchive(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the lane directories", func() {
		Expect(filepath.Join(tmpDir, LanePending)).To(BeADirectory())
		Expect(filepath.Join(tmpDir, LaneSuccess)).To(BeADirectory())
		Expect(filepath.Join(tmpDir, LaneFailures)).To(BeADirectory())
	})

	Describe("SavePending", func() {
		It("should write the image into the pending lane", func() {
			path, err := archive.SavePending("2026-02-15_sender_msg-001.jpg", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(LanePending, "2026-02-15_sender_msg-001.jpg")))
			Expect(archive.FullPath(path)).To(BeAnExistingFile())
		})

		It("should sanitize transport-supplied names", func() {
			path, err := archive.SavePending("2026-02-15_5511@c.us_ABC:1.jpg", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(path)).NotTo(ContainSubstring("@"))
			Expect(filepath.Base(path)).NotTo(ContainSubstring(":"))
		})
	})

	Describe("Move", func() {
		var pendingPath string

		BeforeEach(func() {
			var err error
			pendingPath, err = archive.SavePending("receipt.jpg", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should relocate the image into the target lane", func() {
			newPath, err := archive.Move(pendingPath, LaneSuccess)
			Expect(err).NotTo(HaveOccurred())
			Expect(newPath).To(Equal(filepath.Join(LaneSuccess, "receipt.jpg")))
			Expect(archive.FullPath(newPath)).To(BeAnExistingFile())
			Expect(archive.FullPath(pendingPath)).NotTo(BeAnExistingFile())
		})

		It("should fail for a path that does not exist", func() {
			_, err := archive.Move(filepath.Join(LanePending, "missing.jpg"), LaneSuccess)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("WriteSidecar", func() {
		It("should write the note next to the image with a .txt extension", func() {
			path, err := archive.SavePending("receipt.jpg", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
			failPath, err := archive.Move(path, LaneFailures)
			Expect(err).NotTo(HaveOccurred())

			Expect(archive.WriteSidecar(failPath, "Prices: 25.00\n")).To(Succeed())

			notePath := filepath.Join(tmpDir, LaneFailures, "receipt.txt")
			content, err := os.ReadFile(notePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(ContainSubstring("25.00"))
		})
	})

	Describe("ListFailures", func() {
		BeforeEach(func() {
			for _, name := range []string{"a.jpg", "b.png"} {
				path, err := archive.SavePending(name, []byte("data"))
				Expect(err).NotTo(HaveOccurred())
				failPath, err := archive.Move(path, LaneFailures)
				Expect(err).NotTo(HaveOccurred())
				Expect(archive.WriteSidecar(failPath, "note")).To(Succeed())
			}
		})

		It("should list failed images but not their sidecar notes", func() {
			paths, err := archive.ListFailures()
			Expect(err).NotTo(HaveOccurred())
			Expect(paths).To(ConsistOf(
				filepath.Join(LaneFailures, "a.jpg"),
				filepath.Join(LaneFailures, "b.png"),
			))
		})
	})
})

var _ = Describe("SanitizeFilename", func() {
	It("should replace special characters", func() {
		Expect(SanitizeFilename("5511@c.us:1.jpg")).NotTo(ContainSubstring("@"))
	})

	It("should keep the extension", func() {
		Expect(SanitizeFilename("receipt photo.jpg")).To(HaveSuffix(".jpg"))
	})

	It("should cap very long names", func() {
		long := ""
		for i := 0; i < 50; i++ {
			long += "abcde"
		}
		Expect(len(SanitizeFilename(long + ".jpg"))).To(BeNumerically("<=", 84))
	})

	It("should fall back to a default for empty names", func() {
		Expect(SanitizeFilename("!!!.jpg")).To(Equal("receipt.jpg"))
	})
})
