package producers

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"gss-go/internal/gss"
)

// XpropProbe reads the focused window from an EWMH window manager by
// running xprop, and resolves its executable through procfs.
type XpropProbe struct {
	run     func(ctx context.Context, args ...string) ([]byte, error)
	readExe func(pid int) (string, error)
}

var _ WindowProbe = (*XpropProbe)(nil)

// NewXpropProbe returns a probe using the xprop binary on PATH.
func NewXpropProbe() (*XpropProbe, error) {
	bin, err := exec.LookPath("xprop")
	if err != nil {
		return nil, fmt.Errorf("xprop not found: %w", gss.ErrUnsupported)
	}
	return &XpropProbe{
		run: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, bin, args...).Output()
		},
		readExe: processExe,
	}, nil
}

func (p *XpropProbe) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	out, err := p.run(ctx, "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return nil, fmt.Errorf("reading active window: %w", err)
	}
	id, ok := parseActiveWindow(string(out))
	if !ok {
		return nil, nil
	}

	out, err = p.run(ctx, "-id", id, "_NET_WM_PID", "_NET_WM_STATE")
	if err != nil {
		// The window can close between the two calls.
		return nil, nil
	}
	info := parseWindowProps(string(out))
	info.ID = id

	if info.PID > 0 {
		exe, err := p.readExe(info.PID)
		switch {
		case err == nil:
			info.ExePath = exe
		case errors.Is(err, gss.ErrUnsupported):
			return nil, err
		}
		// Otherwise the process exited or is not ours; it cannot match.
	}
	return info, nil
}

// parseActiveWindow extracts the id from
// "_NET_ACTIVE_WINDOW(WINDOW): window id # 0x4a00003".
func parseActiveWindow(out string) (string, bool) {
	i := strings.LastIndex(out, "#")
	if i < 0 {
		return "", false
	}
	id := strings.TrimSpace(out[i+1:])
	if f := strings.Fields(id); len(f) > 0 {
		id = strings.TrimSuffix(f[0], ",")
	}
	if id == "" || id == "0x0" {
		return "", false
	}
	return id, true
}

// parseWindowProps reads _NET_WM_PID and _NET_WM_STATE lines.
func parseWindowProps(out string) *WindowInfo {
	info := &WindowInfo{}
	for _, line := range strings.Split(out, "\n") {
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		switch {
		case strings.HasPrefix(name, "_NET_WM_PID"):
			if pid, err := strconv.Atoi(value); err == nil {
				info.PID = pid
			}
		case strings.HasPrefix(name, "_NET_WM_STATE"):
			for _, atom := range strings.Split(value, ",") {
				switch strings.TrimSpace(atom) {
				case "_NET_WM_STATE_FULLSCREEN":
					info.Fullscreen = true
				case "_NET_WM_STATE_HIDDEN":
					info.Hidden = true
				}
			}
		}
	}
	return info
}
