package scanner_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frherrer/GoE2E-LocoRunner/internal/scanner"
)

var _ = Describe("Scanner", func() {
	var (
		s    *scanner.FileScanner
		root string
	)

	write := func(rel string) {
		path := filepath.Join(root, rel)
		ExpectWithOffset(1, os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
		ExpectWithOffset(1, os.WriteFile(path, []byte("spec: case\n"), 0644)).To(Succeed())
	}

	BeforeEach(func() {
		s = scanner.NewScanner(true)
		root = GinkgoT().TempDir()
		write("health.yaml")
		write("flows/login.yaml")
		write("flows/README.md")
		write("vendor/dep/skipme.yaml")
	})

	It("should find matching files recursively and sort them", func() {
		files, err := s.Scan(root, []string{"*.yaml"}, []string{"vendor/**"})
		Expect(err).ToNot(HaveOccurred())
		Expect(files).To(Equal([]string{"flows/login.yaml", "health.yaml"}))
	})

	It("should return paths relative to the root", func() {
		files, err := s.Scan(root, []string{"*.yaml"}, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(files).ToNot(BeEmpty())
		for _, file := range files {
			Expect(filepath.IsAbs(file)).To(BeFalse())
		}
	})

	It("should respect exclude patterns on file names", func() {
		files, err := s.Scan(root, []string{"*.yaml"}, []string{"health.yaml", "vendor/**"})
		Expect(err).ToNot(HaveOccurred())
		Expect(files).To(Equal([]string{"flows/login.yaml"}))
	})

	It("should handle non-recursive mode", func() {
		s = scanner.NewScanner(false)
		files, err := s.Scan(root, []string{"*.yaml"}, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(files).To(Equal([]string{"health.yaml"}))
	})

	It("should return error for nonexistent directory", func() {
		_, err := s.Scan(filepath.Join(root, "nope"), []string{"*.yaml"}, nil)
		Expect(err).To(HaveOccurred())
	})
})
