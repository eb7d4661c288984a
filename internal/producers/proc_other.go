//go:build !linux

package producers

import (
	"fmt"

	"gss-go/internal/gss"
)

func processExe(pid int) (string, error) {
	return "", fmt.Errorf("resolving exe of pid %d: %w", pid, gss.ErrUnsupported)
}

// NewProcLister is only available on Linux.
func NewProcLister() (ProcessLister, error) {
	return nil, fmt.Errorf("process listing: %w", gss.ErrUnsupported)
}
