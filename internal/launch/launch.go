package launch

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/lumen-wm/lumen-queryd/internal/entry"
)

// Executor spawns entry processes and raw command lines. It is the only
// component that touches os/exec; the query controller calls it and never
// waits on the spawned process.
type Executor struct {
	// Terminal is the terminal emulator command used for Terminal entries.
	Terminal string
}

// Launch spawns the entry's command. Terminal entries run under the
// configured terminal emulator; CGroup entries run in their own scope.
func (x *Executor) Launch(e *entry.Entry) error {
	if e.Exec == "" {
		return fmt.Errorf("entry %s has empty exec command", e.ID)
	}

	var argv []string
	switch {
	case e.Terminal:
		argv = []string{x.Terminal, "-e", e.Exec}
	case e.CGroup:
		// Own transient scope so the launched app outlives the daemon cleanly
		argv = append([]string{"systemd-run", "--user", "--scope", "--"}, strings.Fields(e.Exec)...)
	default:
		argv = strings.Fields(e.Exec)
	}
	if len(argv) == 0 {
		return fmt.Errorf("entry %s has empty exec command", e.ID)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", e.ID, err)
	}

	// Detach: the daemon never waits on launched applications
	go cmd.Wait()
	return nil
}

// RunCommand executes a raw command line from command mode through the shell.
func (x *Executor) RunCommand(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return fmt.Errorf("empty command line")
	}

	cmd := exec.Command("sh", "-c", line)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	}

	go cmd.Wait()
	return nil
}
