//go:build linux

package producers

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// processExe resolves the executable of pid through /proc.
func processExe(pid int) (string, error) {
	exe, err := os.Readlink("/proc/" + strconv.Itoa(pid) + "/exe")
	if err != nil {
		return "", fmt.Errorf("resolving exe of pid %d: %w", pid, err)
	}
	return exe, nil
}

// ProcLister lists processes from /proc.
type ProcLister struct {
	root string
}

var _ ProcessLister = (*ProcLister)(nil)

// NewProcLister returns a lister over /proc.
func NewProcLister() (*ProcLister, error) {
	return &ProcLister{root: "/proc"}, nil
}

func (l *ProcLister) Processes(ctx context.Context) ([]Process, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.root, err)
	}

	var procs []Process
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		// Processes of other users and kernel threads have no readable exe.
		exe, err := os.Readlink(l.root + "/" + e.Name() + "/exe")
		if err != nil {
			continue
		}
		procs = append(procs, Process{PID: pid, ExePath: exe})
	}
	return procs, nil
}
