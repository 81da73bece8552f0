package reconcile

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"comprova/internal/ledger"
)

var _ = Describe("Reviewer", func() {
	var (
		matcher  *mockMatcher
		archive  *mockArchive
		reviewer *Reviewer
		inputs   map[string]ReviewInput
		asked    []string
		resolved int
		err      error
	)

	BeforeEach(func() {
		matcher = &mockMatcher{result: &ledger.MatchResult{Kind: ledger.KindMismatch}}
		archive = newMockArchive()
		archive.failures = []string{
			filepath.Join(LaneFailures, "a.jpg"),
			filepath.Join(LaneFailures, "b.jpg"),
		}
		reviewer = NewReviewer(matcher, archive)
		inputs = map[string]ReviewInput{}
		asked = nil
	})

	JustBeforeEach(func() {
		resolved, err = reviewer.Review(func(imagePath string) (ReviewInput, error) {
			asked = append(asked, imagePath)
			return inputs[filepath.Base(imagePath)], nil
		})
	})

	It("should ask about every failed image with its full path", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(asked).To(Equal([]string{
			filepath.Join("/archive", LaneFailures, "a.jpg"),
			filepath.Join("/archive", LaneFailures, "b.jpg"),
		}))
	})

	When("the operator supplies a price that matches", func() {
		BeforeEach(func() {
			matcher.result = &ledger.MatchResult{
				Kind: ledger.KindMatch,
				Row:  ledger.RowRef{Section: "Fevereiro 2026", Row: 10},
			}
			inputs["a.jpg"] = ReviewInput{Prices: "30,00", Date: "15/02/2026"}
			inputs["b.jpg"] = ReviewInput{Skip: true}
		})

		It("should run the match with the parsed prices", func() {
			Expect(matcher.gotPrices).To(Equal([]float64{30.00}))
			Expect(matcher.gotDate).To(Equal("15/02/2026"))
		})

		It("should move the resolved image to the success lane", func() {
			Expect(resolved).To(Equal(1))
			Expect(archive.moves).To(HaveLen(1))
			Expect(archive.moves[0].lane).To(Equal(LaneSuccess))
		})
	})

	When("the operator skips every image", func() {
		BeforeEach(func() {
			inputs["a.jpg"] = ReviewInput{Skip: true}
			inputs["b.jpg"] = ReviewInput{Skip: true}
		})

		It("should resolve nothing and never match", func() {
			Expect(resolved).To(Equal(0))
			Expect(matcher.calls).To(Equal(0))
		})
	})

	When("the row was claimed by an earlier receipt", func() {
		BeforeEach(func() {
			matcher.result = &ledger.MatchResult{Kind: ledger.KindMismatch, SawVerified: true}
			inputs["a.jpg"] = ReviewInput{Prices: "30,00"}
			inputs["b.jpg"] = ReviewInput{Skip: true}
		})

		It("should treat the image as resolved", func() {
			Expect(resolved).To(Equal(1))
			Expect(archive.moves[0].lane).To(Equal(LaneSuccess))
		})
	})

	When("the match still fails", func() {
		BeforeEach(func() {
			inputs["a.jpg"] = ReviewInput{Prices: "30,00"}
			inputs["b.jpg"] = ReviewInput{Prices: "42,00"}
		})

		It("should leave the images in the failures lane", func() {
			Expect(resolved).To(Equal(0))
			Expect(archive.moves).To(BeEmpty())
		})
	})

	When("the operator enters multiple prices", func() {
		BeforeEach(func() {
			matcher.result = &ledger.MatchResult{Kind: ledger.KindMatch}
			inputs["a.jpg"] = ReviewInput{Prices: "10,00 20,00"}
			inputs["b.jpg"] = ReviewInput{Skip: true}
		})

		It("should parse them all", func() {
			Expect(matcher.gotPrices).To(Equal([]float64{10.00, 20.00}))
		})
	})

	When("the input has no usable price", func() {
		BeforeEach(func() {
			inputs["a.jpg"] = ReviewInput{Prices: "???"}
			inputs["b.jpg"] = ReviewInput{Skip: true}
		})

		It("should not attempt a match", func() {
			Expect(matcher.calls).To(Equal(0))
			Expect(resolved).To(Equal(0))
		})
	})
})
