package clock

import (
	"time"

	"github.com/raulk/clock"

	"github.com/core-coin/adsponsor/internal/models"
)

// New returns the wall clock.
func New() models.Clock {
	return clock.New()
}

// NewMock returns a manually advanced clock set to start.
func NewMock(start time.Time) *clock.Mock {
	m := clock.NewMock()
	m.Set(start)
	return m
}
