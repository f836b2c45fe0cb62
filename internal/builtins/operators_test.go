package builtins_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frherrer/GoE2E-LocoRunner/internal/builtins"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

var _ = Describe("Operators", func() {
	var reg *registry.Registry

	apply := func(name string, value, operand any, params map[string]any) (bool, string) {
		op, ok := reg.Operator(name)
		ExpectWithOffset(1, ok).To(BeTrue(), name)
		if params == nil {
			params = map[string]any{}
		}
		coerced, err := op.Params.Coerce(params)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		passed, detail, err := op.Apply(value, operand, coerced)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		return passed, detail
	}

	BeforeEach(func() {
		reg = registry.New()
		builtins.Register(reg)
	})

	Describe("match", func() {
		It("should pass on equal scalars", func() {
			passed, _ := apply("match", int64(1), int64(1), nil)
			Expect(passed).To(BeTrue())
		})

		It("should compare numbers across int and float", func() {
			passed, _ := apply("eq", int64(2), float64(2), nil)
			Expect(passed).To(BeTrue())
		})

		It("should report expected and got on mismatch", func() {
			passed, detail := apply("match", int64(2), int64(1), nil)
			Expect(passed).To(BeFalse())
			Expect(detail).To(Equal("expected 1, got 2"))
		})

		It("should mask secrets in the detail", func() {
			passed, detail := apply("match", values.NewSecret("real"), "wrong", nil)
			Expect(passed).To(BeFalse())
			Expect(detail).ToNot(ContainSubstring("real"))
			Expect(detail).To(ContainSubstring("******"))
		})

		It("should compare secrets by revealed value", func() {
			passed, _ := apply("match", values.NewSecret("same"), "same", nil)
			Expect(passed).To(BeTrue())
		})

		It("should require full equality on mappings by default", func() {
			actual := map[string]any{"a": int64(1), "b": int64(2)}
			passed, _ := apply("match", actual, map[string]any{"a": int64(1)}, nil)
			Expect(passed).To(BeFalse())
		})

		It("should accept a recursive subset with partial_match", func() {
			actual := map[string]any{"a": int64(1), "nested": map[string]any{"x": "y", "z": "w"}}
			expected := map[string]any{"nested": map[string]any{"x": "y"}}
			passed, _ := apply("match", actual, expected, map[string]any{"partial_match": true})
			Expect(passed).To(BeTrue())
		})

		It("should accept the camelCase partial param spelling", func() {
			actual := []any{int64(1), int64(2), int64(3)}
			passed, _ := apply("match", actual, []any{int64(2)}, map[string]any{"partialMatch": true})
			Expect(passed).To(BeTrue())
		})

		It("should treat nil as matching only nil", func() {
			passed, _ := apply("match", nil, nil, nil)
			Expect(passed).To(BeTrue())
			passed, _ = apply("match", nil, int64(0), nil)
			Expect(passed).To(BeFalse())
		})
	})

	Describe("not_match", func() {
		It("should invert the match verdict", func() {
			passed, _ := apply("not_match", int64(1), int64(2), nil)
			Expect(passed).To(BeTrue())
			passed, detail := apply("ne", "a", "a", nil)
			Expect(passed).To(BeFalse())
			Expect(detail).To(ContainSubstring("did not expect"))
		})
	})

	Describe("ordered comparisons", func() {
		It("should compare numbers", func() {
			passed, _ := apply("less_than", int64(1), int64(2), nil)
			Expect(passed).To(BeTrue())
			passed, _ = apply("lt", float64(2.5), int64(2), nil)
			Expect(passed).To(BeFalse())
			passed, _ = apply("gte", int64(2), int64(2), nil)
			Expect(passed).To(BeTrue())
		})

		It("should compare strings lexicographically", func() {
			passed, _ := apply("greater_than", "b", "a", nil)
			Expect(passed).To(BeTrue())
		})

		It("should error on incomparable types", func() {
			op, _ := reg.Operator("less_than")
			_, _, err := op.Apply("a", int64(1), map[string]any{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("regex", func() {
		It("should match with the raw pattern", func() {
			passed, _ := apply("regex", "status: ok", `ok$`, nil)
			Expect(passed).To(BeTrue())
		})

		It("should honor ignore_case", func() {
			passed, _ := apply("regex", "HELLO", "hello", map[string]any{"ignore_case": true})
			Expect(passed).To(BeTrue())
		})

		It("should honor multiline", func() {
			passed, _ := apply("reMatch", "a\nb", "^b$", map[string]any{"multiline": true})
			Expect(passed).To(BeTrue())
		})

		It("should error on an invalid pattern", func() {
			op, _ := reg.Operator("regex")
			_, _, err := op.Apply("x", "(", map[string]any{})
			Expect(err).To(HaveOccurred())
		})
	})
})
