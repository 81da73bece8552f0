package extraction

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// encodeTestImage renders a small solid image in the given format.
func encodeTestImage(format string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	case "png":
		Expect(png.Encode(&buf, img)).To(Succeed())
	}
	return buf.Bytes()
}

// heicHeader builds the start of an HEIC file: a box size, the ftyp
// marker and a brand code.
func heicHeader(brand string) []byte {
	data := append([]byte{0, 0, 0, 24}, []byte("ftyp")...)
	return append(data, []byte(brand)...)
}

var _ = Describe("normalizeImage", func() {
	var (
		data        []byte
		contentType string
		result      []byte
		err         error
	)

	JustBeforeEach(func() {
		result, err = normalizeImage(data, contentType)
	})

	When("the input is already PNG", func() {
		BeforeEach(func() {
			data = encodeTestImage("png")
			contentType = "image/png"
		})

		It("should pass the bytes through untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(data))
		})
	})

	When("the input is JPEG", func() {
		BeforeEach(func() {
			data = encodeTestImage("jpeg")
			contentType = "image/jpeg"
		})

		It("should re-encode it as PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			img, decodeErr := png.Decode(bytes.NewReader(result))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(img.Bounds()).To(Equal(image.Rect(0, 0, 4, 4)))
		})
	})

	When("the content type is empty", func() {
		BeforeEach(func() {
			data = encodeTestImage("jpeg")
			contentType = ""
		})

		It("should assume JPEG and still convert", func() {
			Expect(err).NotTo(HaveOccurred())
			_, decodeErr := png.Decode(bytes.NewReader(result))
			Expect(decodeErr).NotTo(HaveOccurred())
		})
	})

	When("HEIC magic bytes arrive under a generic content type", func() {
		BeforeEach(func() {
			data = heicHeader("heic")
			contentType = "image/jpeg"
		})

		It("should route the data to the HEIC decoder", func() {
			// The truncated header cannot decode, but the error proves
			// detection went by magic bytes rather than content type.
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("HEIC"))
		})
	})

	When("the data is not a decodable image", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("decoding image"))
		})
	})
})

var _ = Describe("isHEIC", func() {
	DescribeTable("ftyp brand detection",
		func(brand string, expected bool) {
			Expect(isHEIC(heicHeader(brand), "image/jpeg")).To(Equal(expected))
		},
		Entry("heic brand", "heic", true),
		Entry("heif brand", "heif", true),
		Entry("mif1 brand", "mif1", true),
		Entry("msf1 brand", "msf1", true),
		Entry("unrelated brand", "isom", false),
	)

	It("should reject buffers shorter than a header", func() {
		Expect(isHEIC([]byte("ftypheic"), "image/jpeg")).To(BeFalse())
	})

	It("should reject data without the ftyp marker", func() {
		Expect(isHEIC(encodeTestImage("png"), "image/jpeg")).To(BeFalse())
	})

	It("should trust an HEIC content type regardless of bytes", func() {
		Expect(isHEIC([]byte("anything at all here"), "image/heic")).To(BeTrue())
		Expect(isHEIC([]byte("anything at all here"), "image/heif")).To(BeTrue())
	})
})
