package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// processTable abstracts the OS process operations so the controller can be
// tested without launching anything.
type processTable interface {
	Find(binary string) (pid int, found bool, err error)
	Signal(pid int, sig unix.Signal) error
	Launch(binary string, args []string) error
}

// procfsTable reads the live process table under /proc. Matching is a
// structural check of each process's comm entry, not a shell pgrep helper.
type procfsTable struct {
	root string
}

func newProcfsTable() *procfsTable {
	return &procfsTable{root: "/proc"}
}

// Find returns the pid of the first process whose comm matches the binary's
// base name.
func (p *procfsTable) Find(binary string) (int, bool, error) {
	want := filepath.Base(strings.TrimSpace(binary))
	if want == "" || want == "." {
		return 0, false, errors.New("binary name is empty")
	}
	// comm is truncated by the kernel.
	if len(want) > 15 {
		want = want[:15]
	}

	entries, err := os.ReadDir(p.root)
	if err != nil {
		return 0, false, fmt.Errorf("read process table: %w", err)
	}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(p.root, entry.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == want {
			return pid, true, nil
		}
	}
	return 0, false, nil
}

// Signal delivers a signal to a process id.
func (p *procfsTable) Signal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}

// Launch starts the capture binary detached in its own session so it
// outlives the reconciler pass that started it.
func (p *procfsTable) Launch(binary string, args []string) error {
	cmd := exec.Command(binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", binary, err)
	}
	// Reap the immediate child in the background; the detached session keeps
	// the application alive independently.
	go func() { _ = cmd.Wait() }()
	return nil
}

// sleeper lets tests collapse the controller's waits.
type sleeper func(d time.Duration)
