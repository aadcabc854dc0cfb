package health

import (
	"fmt"
	"time"
)

// KeySetSource reports the cached key set state.
type KeySetSource interface {
	Snapshot() (fetchedAt time.Time, keys int, ok bool)
}

// KeySetSourceFunc adapts a function to KeySetSource.
type KeySetSourceFunc func() (time.Time, int, bool)

// Snapshot calls f.
func (f KeySetSourceFunc) Snapshot() (time.Time, int, bool) {
	return f()
}

// KeySetCheck is DOWN while src cannot produce a key set.
func KeySetCheck(src KeySetSource) CheckFunc {
	return func() Check {
		fetchedAt, keys, ok := src.Snapshot()
		if !ok {
			return Check{Status: StatusDown, Message: "key set not fetched yet"}
		}
		return Check{
			Status:  StatusUp,
			Message: fmt.Sprintf("%d keys, fetched %s", keys, fetchedAt.UTC().Format(time.RFC3339)),
		}
	}
}
