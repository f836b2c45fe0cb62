package engine_test

import (
	"testing/fstest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frherrer/GoE2E-LocoRunner/internal/builtins"
	"github.com/frherrer/GoE2E-LocoRunner/internal/domain"
	"github.com/frherrer/GoE2E-LocoRunner/internal/engine"
	"github.com/frherrer/GoE2E-LocoRunner/internal/loader"
	"github.com/frherrer/GoE2E-LocoRunner/internal/registry"
	"github.com/frherrer/GoE2E-LocoRunner/internal/resolver"
)

// produce returns its value argument, echo-style, so scenarios can route
// arbitrary values through the output/export machinery.
func testRegistry() *registry.Registry {
	reg := registry.New()
	builtins.Register(reg)
	reg.RegisterAction(&registry.Action{
		Name:   "produce",
		Schema: registry.Schema{"value": {Type: registry.TypeAny}},
		Run: func(args map[string]any) (any, error) {
			return args["value"], nil
		},
	})
	reg.RegisterAction(&registry.Action{
		Name: "boom",
		Run: func(map[string]any) (any, error) {
			panic("kaput")
		},
	})
	return reg
}

var _ = Describe("Engine", func() {
	var (
		reg *registry.Registry
		eng *engine.Engine
	)

	BeforeEach(func() {
		reg = testRegistry()
		eng = engine.New(reg)
	})

	buildGraph := func(files map[string]string, caseFile string) *resolver.Graph {
		fsys := fstest.MapFS{}
		for name, content := range files {
			fsys[name] = &fstest.MapFile{Data: []byte(content)}
		}
		ld := loader.New(reg)
		doc, err := ld.LoadFS(fsys, caseFile)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		graph, err := resolver.New(ld, fsys).Resolve(doc)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		return graph
	}

	runCase := func(src string, params map[string]any) (*domain.CaseResult, error) {
		return eng.Run(buildGraph(map[string]string{"case.yaml": src}, "case.yaml"), params)
	}

	It("should pass a case whose export satisfies the expectation", func() {
		result, err := runCase(`
spec: case
---
action: produce
value: 1
export:
  x: !var result
---
action: empty
expect:
  - value: !var x
    match: 1
`, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Status).To(Equal(domain.StatusPassed))
		Expect(result.Passed()).To(BeTrue())
		Expect(result.RunID).ToNot(BeEmpty())
		Expect(result.Steps).To(HaveLen(2))
		Expect(result.Steps[1].Checks).To(HaveLen(1))
		Expect(result.Steps[1].Checks[0].Passed).To(BeTrue())
	})

	It("should report expected and got on a mismatch", func() {
		result, err := runCase(`
spec: case
---
action: produce
value: 2
expect:
  - value: !var result
    match: 1
`, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Status).To(Equal(domain.StatusFailed))
		Expect(result.Steps[0].Checks[0].Detail).To(Equal("expected 1, got 2"))
		Expect(domain.IsRuntimeError(result.Err)).To(BeTrue())
	})

	It("should stop at the first failing step", func() {
		result, err := runCase(`
spec: case
---
action: produce
value: bad
expect:
  - value: !var result
    match: good
---
action: empty
`, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Status).To(Equal(domain.StatusFailed))
		Expect(result.Steps).To(HaveLen(1))
	})

	It("should evaluate expectations in order and keep results before the failure", func() {
		result, _ := runCase(`
spec: case
---
action: produce
value: 5
expect:
  - value: !var result
    lt: 10
  - value: !var result
    match: 99
  - value: !var result
    gt: 100
`, nil)
		Expect(result.Status).To(Equal(domain.StatusFailed))
		checks := result.Steps[0].Checks
		Expect(checks).To(HaveLen(2))
		Expect(checks[0].Passed).To(BeTrue())
		Expect(checks[1].Passed).To(BeFalse())
	})

	It("should drop the output variable after the step", func() {
		result, _ := runCase(`
spec: case
---
action: produce
value: 1
---
action: empty
expect:
  - value: !var result
    match: 1
`, nil)
		Expect(result.Status).To(Equal(domain.StatusFailed))
		Expect(result.Err.Error()).To(ContainSubstring("cannot be resolved"))
	})

	It("should honor a custom output name", func() {
		result, _ := runCase(`
spec: case
---
action: produce
value: 7
output: lucky
export:
  kept: !var lucky
---
action: empty
expect:
  - value: !var kept
    match: 7
`, nil)
		Expect(result.Status).To(Equal(domain.StatusPassed))
	})

	It("should let step vars shadow exports for the step's duration", func() {
		result, _ := runCase(`
spec: case
---
action: empty
export:
  n: 1
---
action: empty
vars:
  n: 2
expect:
  - value: !var n
    match: 2
---
action: empty
expect:
  - value: !var n
    match: 1
`, nil)
		Expect(result.Status).To(Equal(domain.StatusPassed))
	})

	It("should yield identical outcomes when run twice", func() {
		graph := buildGraph(map[string]string{"case.yaml": `
spec: case
vars:
  greeting: hello
---
action: produce
value: !var greeting
expect:
  - value: !var result
    match: hello
`}, "case.yaml")

		first, err := eng.Run(graph, nil)
		Expect(err).ToNot(HaveOccurred())
		second, err := eng.Run(graph, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(first.Status).To(Equal(domain.StatusPassed))
		Expect(second.Status).To(Equal(domain.StatusPassed))
		Expect(first.RunID).ToNot(Equal(second.RunID))
	})

	It("should fail the step when an action panics", func() {
		result, err := runCase("spec: case\n---\naction: boom\n", nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Status).To(Equal(domain.StatusFailed))
		Expect(result.Err.Error()).To(ContainSubstring("panicked"))
		Expect(domain.IsRuntimeError(result.Err)).To(BeTrue())
	})

	Describe("case parameters", func() {
		const src = `
spec: case
params:
  - name: user
  - name: retries
    type: int
    default: 3
---
action: empty
expect:
  - value: !var user
    match: admin
  - value: !var retries
    match: 3
`

		It("should bind supplied values and defaults", func() {
			result, err := runCase(src, map[string]any{"user": "admin"})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusPassed))
		})

		It("should reject a missing required parameter before the run starts", func() {
			_, err := runCase(src, nil)
			Expect(err).To(HaveOccurred())
			Expect(domain.IsParseError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(`"user" is required`))
		})

		It("should reject an undeclared parameter", func() {
			_, err := runCase(src, map[string]any{"user": "admin", "extra": 1})
			Expect(err).To(HaveOccurred())
			Expect(domain.IsParseError(err)).To(BeTrue())
		})

		It("should reject a type mismatch", func() {
			_, err := runCase(src, map[string]any{"user": "admin", "retries": "many"})
			Expect(err).To(HaveOccurred())
			Expect(domain.IsParseError(err)).To(BeTrue())
		})
	})

	Describe("environment bindings", func() {
		It("should source declared variables through the lookup hook", func() {
			eng = engine.New(reg, engine.WithGetenv(func(name string) string {
				if name == "API_TOKEN" {
					return "tok-123"
				}
				return ""
			}))
			result, err := runCase(`
spec: case
envs:
  token: API_TOKEN
---
action: empty
expect:
  - value: !var token
    match: tok-123
`, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusPassed))
		})

		It("should fail before the first step when a variable is unset", func() {
			eng = engine.New(reg, engine.WithGetenv(func(string) string { return "" }))
			result, err := runCase("spec: case\nenvs:\n  token: MISSING\n---\naction: empty\n", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusFailed))
			Expect(result.Steps).To(BeEmpty())
			Expect(result.Err.Error()).To(ContainSubstring(`"MISSING" is not set`))
		})
	})

	Describe("template windows", func() {
		files := map[string]string{
			"case.yaml": `
spec: case
vars:
  secretly: caller-only
---
action: include
file: login.yaml
vars:
  user: admin
output: login
export:
  session: !var login.session
expect:
  - value: !var login.session
    match: session-admin
---
action: empty
expect:
  - value: !var session
    match: session-admin
`,
			"login.yaml": `
spec: template
params:
  - name: user
vars:
  prefix: session-
---
action: produce
value: [!var prefix, !var user]
export:
  parts: !var result
---
action: empty
vars:
  joined: !var parts
export:
  session: session-admin
`,
		}

		It("should run template steps inside an isolated frame and hand exports to the caller", func() {
			result, err := eng.Run(buildGraph(files, "case.yaml"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusPassed))
			// two template steps, the include itself, the trailing step
			Expect(result.Steps).To(HaveLen(4))
			Expect(result.Steps[2].Action).To(Equal("include"))
		})

		It("should hide caller variables from the template", func() {
			leaky := map[string]string{
				"case.yaml": "spec: case\nvars:\n  hidden: x\n---\naction: include\nfile: t.yaml\n",
				"t.yaml": `
spec: template
---
action: empty
expect:
  - value: !var hidden
    match: x
`,
			}
			result, err := eng.Run(buildGraph(leaky, "case.yaml"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusFailed))
			Expect(result.Err.Error()).To(ContainSubstring(`"hidden" cannot be resolved`))
		})

		It("should not leak template variables into the caller", func() {
			files := map[string]string{
				"case.yaml": `
spec: case
---
action: include
file: t.yaml
---
action: empty
expect:
  - value: !var inner
    match: 1
`,
				"t.yaml": "spec: template\nvars:\n  inner: 1\n---\naction: empty\n",
			}
			result, err := eng.Run(buildGraph(files, "case.yaml"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusFailed))
		})

		It("should evaluate deferred parameter values against the caller context", func() {
			files := map[string]string{
				"case.yaml": `
spec: case
vars:
  who: admin
---
action: include
file: t.yaml
vars:
  user: !var who
output: out
expect:
  - value: !var out.copied
    match: admin
`,
				"t.yaml": `
spec: template
params:
  - name: user
---
action: empty
export:
  copied: !var user
`,
			}
			result, err := eng.Run(buildGraph(files, "case.yaml"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusPassed))
		})

		It("should fail the include step when a deferred parameter has the wrong type", func() {
			files := map[string]string{
				"case.yaml": `
spec: case
vars:
  who: [not, a, string]
---
action: include
file: t.yaml
vars:
  user: !var who
`,
				"t.yaml": "spec: template\nparams:\n  - name: user\n    type: str\n---\naction: empty\n",
			}
			result, err := eng.Run(buildGraph(files, "case.yaml"), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(domain.StatusFailed))
			Expect(result.Steps).To(HaveLen(1))
			Expect(result.Steps[0].Action).To(Equal("include"))
			Expect(domain.IsRuntimeError(result.Err)).To(BeTrue())
		})
	})
})
