package launch

import (
	"github.com/lumen-wm/lumen-queryd/internal/entry"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Executor", func() {
	var executor *Executor

	BeforeEach(func() {
		executor = &Executor{Terminal: "xterm"}
	})

	Describe("Launch", func() {
		It("should reject an entry without an exec command", func() {
			e := entry.New("broken", "Broken")
			Expect(executor.Launch(e)).NotTo(Succeed())
		})

		It("should reject a nonexistent executable", func() {
			e := entry.New("ghost", "Ghost")
			e.Exec = "/nonexistent/binary-that-is-not-there"
			Expect(executor.Launch(e)).NotTo(Succeed())
		})
	})

	Describe("RunCommand", func() {
		It("should reject an empty command line", func() {
			Expect(executor.RunCommand("")).NotTo(Succeed())
			Expect(executor.RunCommand("   ")).NotTo(Succeed())
		})
	})
})
