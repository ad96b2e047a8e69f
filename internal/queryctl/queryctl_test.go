package queryctl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lumen-wm/lumen-queryd/internal/entry"
	"github.com/lumen-wm/lumen-queryd/internal/history"
	"github.com/lumen-wm/lumen-queryd/internal/match"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeLauncher records launches instead of spawning processes
type fakeLauncher struct {
	launched []string
	commands []string
	fail     bool
}

func (f *fakeLauncher) Launch(e *entry.Entry) error {
	if f.fail {
		return fmt.Errorf("launch refused")
	}
	f.launched = append(f.launched, e.ID)
	return nil
}

func (f *fakeLauncher) RunCommand(line string) error {
	f.commands = append(f.commands, line)
	return nil
}

var _ = Describe("Controller", func() {
	var (
		ctl      *Controller
		launcher *fakeLauncher
		store    *history.Store
		tmpDir   string
		entries  []*entry.Entry
	)

	newEntry := func(id, name string) *entry.Entry {
		e := entry.New(id, name)
		e.Exec = "/usr/bin/" + id
		return e
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "lumen-queryctl-test-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = history.Open(filepath.Join(tmpDir, "history.db"))
		Expect(err).NotTo(HaveOccurred())

		launcher = &fakeLauncher{}
		entries = []*entry.Entry{
			newEntry("firefox", "Firefox"),
			newEntry("files", "Files"),
			newEntry("gimp", "Gimp"),
		}
		ctl = New(entries, store, match.NewScorer(0), launcher, ">", true)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	Describe("startup state", func() {
		It("should show every entry for the initial empty query", func() {
			Expect(ctl.Visible(0)).To(HaveLen(3))
		})

		It("should order the empty query alphabetically", func() {
			rows := ctl.Visible(0)
			Expect(rows[0].Name).To(Equal("Files"))
			Expect(rows[1].Name).To(Equal("Firefox"))
			Expect(rows[2].Name).To(Equal("Gimp"))
		})

		It("should drop later duplicates by id", func() {
			dup := []*entry.Entry{
				newEntry("firefox", "Firefox"),
				newEntry("firefox", "Firefox Copy"),
			}
			c := New(dup, store, match.NewScorer(0), launcher, ">", false)
			Expect(c.Count()).To(Equal(1))
			Expect(c.Visible(0)[0].Name).To(Equal("Firefox"))
		})

		It("should drop entries without an id", func() {
			bad := []*entry.Entry{newEntry("", "Anonymous")}
			c := New(bad, store, match.NewScorer(0), launcher, ">", false)
			Expect(c.Count()).To(Equal(0))
		})
	})

	Describe("TextChanged", func() {
		It("should hide entries that do not match", func() {
			ctl.Dispatch(TextChanged{Text: "xyz"})
			Expect(ctl.Visible(0)).To(BeEmpty())
		})

		It("should show both Firefox and Files for query fi", func() {
			ctl.Dispatch(TextChanged{Text: "fi"})
			rows := ctl.Visible(0)
			Expect(rows).To(HaveLen(2))
			names := []string{rows[0].Name, rows[1].Name}
			Expect(names).To(ContainElements("Firefox", "Files"))
		})

		It("should restore visibility when the query clears", func() {
			ctl.Dispatch(TextChanged{Text: "xyz"})
			ctl.Dispatch(TextChanged{Text: ""})
			Expect(ctl.Visible(0)).To(HaveLen(3))
		})

		It("should respect the list limit", func() {
			Expect(ctl.Visible(2)).To(HaveLen(2))
		})
	})

	Describe("command mode", func() {
		It("should enter command mode iff the text starts with the prefix", func() {
			ctl.Dispatch(TextChanged{Text: "> ls -la"})
			cmdMode, _ := ctl.CommandMode()
			Expect(cmdMode).To(BeTrue())

			ctl.Dispatch(TextChanged{Text: " > ls"})
			cmdMode, _ = ctl.CommandMode()
			Expect(cmdMode).To(BeFalse())
		})

		It("should extract the trimmed command line", func() {
			ctl.Dispatch(TextChanged{Text: "> ls -la"})
			_, cmdLine := ctl.CommandMode()
			Expect(cmdLine).To(Equal("ls -la"))
		})

		It("should hide every entry regardless of prior state", func() {
			ctl.Dispatch(TextChanged{Text: "fi"})
			Expect(ctl.Visible(0)).NotTo(BeEmpty())

			ctl.Dispatch(TextChanged{Text: ">anything"})
			Expect(ctl.Visible(0)).To(BeEmpty())
		})

		It("should run the command line on activation and leave history alone", func() {
			ctl.Dispatch(TextChanged{Text: "> ls -la"})
			Expect(ctl.Dispatch(Activated{})).To(Succeed())

			Expect(launcher.commands).To(Equal([]string{"ls -la"}))
			Expect(launcher.launched).To(BeEmpty())
			Expect(ctl.History()).To(BeEmpty())
		})
	})

	Describe("Activated in search mode", func() {
		It("should launch the top-ranked visible entry", func() {
			ctl.Dispatch(TextChanged{Text: "gimp"})
			Expect(ctl.Dispatch(Activated{})).To(Succeed())
			Expect(launcher.launched).To(Equal([]string{"gimp"}))
		})

		It("should be a no-op when nothing is visible", func() {
			ctl.Dispatch(TextChanged{Text: "xyz"})
			Expect(ctl.Dispatch(Activated{})).To(Succeed())
			Expect(launcher.launched).To(BeEmpty())
		})
	})

	Describe("RowSelected", func() {
		It("should launch the selected entry and record history", func() {
			Expect(ctl.Dispatch(RowSelected{ID: "files"})).To(Succeed())

			Expect(launcher.launched).To(Equal([]string{"files"}))
			Expect(ctl.History()["files"].Count).To(Equal(uint64(1)))
		})

		It("should persist the launch", func() {
			ctl.Dispatch(RowSelected{ID: "files"})

			saved := store.Load(false, nil)
			Expect(saved["files"].Count).To(Equal(uint64(1)))
		})

		It("should silently reject a hidden entry", func() {
			ctl.Dispatch(TextChanged{Text: "gimp"})
			Expect(ctl.Dispatch(RowSelected{ID: "firefox"})).To(Succeed())
			Expect(launcher.launched).To(BeEmpty())
		})

		It("should silently reject an unknown id", func() {
			Expect(ctl.Dispatch(RowSelected{ID: "no-such-entry"})).To(Succeed())
			Expect(launcher.launched).To(BeEmpty())
		})

		It("should not record history when the launch fails", func() {
			launcher.fail = true
			Expect(ctl.Dispatch(RowSelected{ID: "files"})).NotTo(Succeed())
			Expect(ctl.History()).To(BeEmpty())
		})
	})

	Describe("history ranking", func() {
		It("should rank more-launched entries first on score ties", func() {
			// Empty query: every score ties at the neutral minimum
			ctl.Dispatch(RowSelected{ID: "firefox"})
			ctl.Dispatch(TextChanged{Text: ""})

			rows := ctl.Visible(0)
			Expect(rows[0].ID).To(Equal("firefox"))
		})

		It("should break count ties by recency", func() {
			ctl.Dispatch(RowSelected{ID: "firefox"})
			ctl.Dispatch(RowSelected{ID: "gimp"})
			ctl.Dispatch(TextChanged{Text: ""})

			rows := ctl.Visible(0)
			Expect(rows[0].ID).To(Equal("gimp"))
			Expect(rows[1].ID).To(Equal("firefox"))
		})

		It("should survive a controller rebuild", func() {
			ctl.Dispatch(RowSelected{ID: "firefox"})

			rebuilt := New([]*entry.Entry{
				newEntry("firefox", "Firefox"),
				newEntry("files", "Files"),
			}, store, match.NewScorer(0), launcher, ">", true)

			rows := rebuilt.Visible(0)
			Expect(rows[0].ID).To(Equal("firefox"))
		})

		It("should prune history for entries that disappeared", func() {
			ctl.Dispatch(RowSelected{ID: "gimp"})

			rebuilt := New([]*entry.Entry{
				newEntry("firefox", "Firefox"),
			}, store, match.NewScorer(0), launcher, ">", true)

			Expect(rebuilt.History()).NotTo(HaveKey("gimp"))
			Expect(store.Load(false, nil)).NotTo(HaveKey("gimp"))
		})
	})

	Describe("Reset", func() {
		It("should replace the working set and re-evaluate the query", func() {
			ctl.Dispatch(TextChanged{Text: "fi"})

			ctl.Reset([]*entry.Entry{
				newEntry("firefox", "Firefox"),
				newEntry("chromium", "Chromium"),
			})

			rows := ctl.Visible(0)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ID).To(Equal("firefox"))
			Expect(ctl.Text()).To(Equal("fi"))
		})
	})
})
