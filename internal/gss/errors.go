package gss

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrTransient marks an error as a recoverable transport failure.
	ErrTransient = errors.New("transient failure")

	// ErrUnsupported is returned by producers that cannot run on this platform.
	ErrUnsupported = errors.New("unsupported on this platform")
)

// IsTransient reports whether err is a network or timeout failure that is
// worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return true
	}
	var alertErr tls.AlertError
	return errors.As(err, &alertErr)
}
