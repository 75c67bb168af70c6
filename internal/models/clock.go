package models

import "time"

// Clock is the trusted time source. Callers never supply timestamps.
type Clock interface {
	Now() time.Time
}
