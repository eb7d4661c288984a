package gss

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the wall time stamped on events and screenshot names.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator assigns record and folder IDs.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
