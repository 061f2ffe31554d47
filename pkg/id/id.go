// Package id builds time-sortable identifiers for simulated trades.
package id

import (
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewAt returns a ULID for t that draws its random suffix from entropy.
// Passing a seeded reader makes the result reproducible.
func NewAt(t time.Time, entropy io.Reader) string {
	u, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		// Only possible when entropy fails or t is before the Unix epoch.
		panic(err)
	}
	return u.String()
}

// Prefixed returns prefix followed by a ULID for t.
func Prefixed(prefix string, t time.Time, entropy io.Reader) string {
	return prefix + NewAt(t, entropy)
}

// Time extracts the timestamp embedded in a ULID string, ignoring any
// leading prefix.
func Time(s string) (time.Time, error) {
	if len(s) > ulid.EncodedSize {
		s = s[len(s)-ulid.EncodedSize:]
	}
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
