package registry_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/values"
)

func noopAction(name string) *registry.Action {
	return &registry.Action{
		Name: name,
		Run:  func(map[string]any) (any, error) { return nil, nil },
	}
}

var _ = Describe("Registry", func() {
	var reg *registry.Registry

	BeforeEach(func() {
		reg = registry.New()
	})

	Describe("actions", func() {
		It("should register and look up namespaced names", func() {
			reg.RegisterAction(noopAction("http.get"))

			action, ok := reg.Action("http.get")
			Expect(ok).To(BeTrue())
			Expect(action.Name).To(Equal("http.get"))

			_, ok = reg.Action("http.post")
			Expect(ok).To(BeFalse())
		})

		It("should panic on a duplicate name", func() {
			reg.RegisterAction(noopAction("dup"))
			Expect(func() { reg.RegisterAction(noopAction("dup")) }).To(Panic())
		})

		It("should panic on an invalid name", func() {
			Expect(func() { reg.RegisterAction(noopAction("1bad")) }).To(Panic())
		})
	})

	Describe("operators", func() {
		apply := func(value, operand any, _ map[string]any) (bool, string, error) {
			return true, "", nil
		}

		It("should resolve aliases to the canonical operator", func() {
			reg.RegisterOperator(&registry.Operator{Name: "match", Aliases: []string{"eq", "equal"}, Apply: apply})

			for _, spelling := range []string{"match", "eq", "equal"} {
				op, ok := reg.Operator(spelling)
				Expect(ok).To(BeTrue(), spelling)
				Expect(op.Name).To(Equal("match"))
			}
		})

		It("should reject an alias colliding with an existing name", func() {
			reg.RegisterOperator(&registry.Operator{Name: "match", Apply: apply})
			Expect(func() {
				reg.RegisterOperator(&registry.Operator{Name: "other", Aliases: []string{"match"}, Apply: apply})
			}).To(Panic())
		})
	})

	Describe("Freeze", func() {
		It("should reject registration after freezing", func() {
			reg.Freeze()
			Expect(reg.Frozen()).To(BeTrue())
			Expect(func() { reg.RegisterAction(noopAction("late")) }).To(Panic())
		})
	})
})

var _ = Describe("Schema", func() {
	schema := registry.Schema{
		"url":     {Type: registry.TypeString, Required: true},
		"timeout": {Type: registry.TypeInt, Default: int64(30)},
		"token":   {Type: registry.TypeString, Secret: true},
	}

	Describe("CheckShape", func() {
		It("should accept a complete field set", func() {
			Expect(schema.CheckShape(map[string]bool{"url": true})).To(Succeed())
		})

		It("should reject unknown fields", func() {
			err := schema.CheckShape(map[string]bool{"url": true, "bogus": true})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(`unknown field "bogus"`))
		})

		It("should reject a missing required field", func() {
			err := schema.CheckShape(map[string]bool{"timeout": true})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(`"url"`))
		})
	})

	Describe("Coerce", func() {
		It("should fill defaults and wrap secrets", func() {
			out, err := schema.Coerce(map[string]any{"url": "http://x", "token": "abc"})
			Expect(err).ToNot(HaveOccurred())
			Expect(out["timeout"]).To(Equal(int64(30)))
			Expect(out["token"]).To(Equal(values.NewSecret("abc")))
		})

		It("should reject a type mismatch", func() {
			_, err := schema.Coerce(map[string]any{"url": int64(1)})
			Expect(err).To(HaveOccurred())
		})

		It("should reject an explicit null for a required field", func() {
			_, err := schema.Coerce(map[string]any{"url": nil})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(`field "url": expected str, got null`))
		})
	})

	Describe("CoerceValue", func() {
		It("should accept int64 where float is declared", func() {
			out, err := registry.CoerceValue(registry.TypeFloat, int64(2))
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal(float64(2)))
		})

		It("should not convert string to int", func() {
			_, err := registry.CoerceValue(registry.TypeInt, "2")
			Expect(err).To(HaveOccurred())
		})

		It("should reject null for a typed field", func() {
			_, err := registry.CoerceValue(registry.TypeString, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("expected str, got null"))
		})

		It("should accept null where any is declared", func() {
			out, err := registry.CoerceValue(registry.TypeAny, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(BeNil())
		})

		It("should accept secrets where a string is declared", func() {
			out, err := registry.CoerceValue(registry.TypeString, values.NewSecret("x"))
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal(values.NewSecret("x")))
		})
	})
})

var _ = Describe("Name validation", func() {
	It("should accept plain and namespaced action names", func() {
		Expect(registry.ValidActionName("debug")).To(BeTrue())
		Expect(registry.ValidActionName("http.get")).To(BeTrue())
		Expect(registry.ValidActionName("http.get.extra")).To(BeFalse())
		Expect(registry.ValidActionName("9lives")).To(BeFalse())
	})

	It("should accept word-character variable names starting with a letter", func() {
		Expect(registry.ValidVariableName("result_2")).To(BeTrue())
		Expect(registry.ValidVariableName("_hidden")).To(BeFalse())
		Expect(registry.ValidVariableName("a.b")).To(BeFalse())
	})
})
