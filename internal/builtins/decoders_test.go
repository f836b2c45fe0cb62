package builtins_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frherrer/GoE2E-LocoRunner/internal/builtins"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
)

var _ = Describe("Decoders", func() {
	var reg *registry.Registry

	decode := func(format string, source any) (any, error) {
		dec, ok := reg.Decoder(format)
		ExpectWithOffset(1, ok).To(BeTrue(), format)
		return dec.Decode(source, nil)
	}

	BeforeEach(func() {
		reg = registry.New()
		builtins.Register(reg)
	})

	It("should decode JSON documents", func() {
		out, err := decode("json", `{"name": "loco", "ok": true}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"name": "loco", "ok": true}))
	})

	It("should decode YAML documents", func() {
		out, err := decode("yaml", "name: loco\nitems:\n  - 1\n")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(HaveKeyWithValue("name", "loco"))
	})

	It("should pass text through", func() {
		out, err := decode("text", []byte("raw content"))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(Equal("raw content"))
	})

	It("should reject non-text sources", func() {
		_, err := decode("json", int64(5))
		Expect(err).To(HaveOccurred())
	})

	It("should surface JSON syntax errors", func() {
		_, err := decode("json", "{broken")
		Expect(err).To(HaveOccurred())
	})

	Describe("markdown", func() {
		const doc = "# Title\n\nSome prose.\n\n## Usage\n\n```sh\necho hi\n```\n"

		It("should extract headings with levels and lines", func() {
			out, err := decode("markdown", doc)
			Expect(err).ToNot(HaveOccurred())

			structure := out.(map[string]any)
			headings := structure["headings"].([]any)
			Expect(headings).To(HaveLen(2))

			first := headings[0].(map[string]any)
			Expect(first["level"]).To(Equal(1))
			Expect(first["text"]).To(Equal("Title"))
			Expect(first["line"]).To(Equal(1))
		})

		It("should extract fenced code blocks with language", func() {
			out, err := decode("markdown", doc)
			Expect(err).ToNot(HaveOccurred())

			structure := out.(map[string]any)
			blocks := structure["code_blocks"].([]any)
			Expect(blocks).To(HaveLen(1))

			block := blocks[0].(map[string]any)
			Expect(block["language"]).To(Equal("sh"))
			Expect(block["content"]).To(Equal("echo hi\n"))
		})
	})
})
