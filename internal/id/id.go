// Package id mints the identifiers positions and trade records
// carry.
package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ULIDs sort by creation time, and the
// entropy source behind ulid.Make is monotonic, so ids minted within
// the same millisecond keep their mint order. That ordering is what
// lets the position book rely on insertion order for FIFO lookups.
func New() string {
	return ulid.Make().String()
}
