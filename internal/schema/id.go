package schema

import (
	"github.com/oklog/ulid/v2"
)

// NewID returns a new globally unique, time-sortable row id.
func NewID() string {
	return ulid.Make().String()
}
