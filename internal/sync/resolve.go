package sync

import "github.com/ironlog/ironlog/internal/schema"

// Decision is the outcome of comparing a local row with an incoming one.
type Decision int

const (
	// KeepLocal discards the incoming row.
	KeepLocal Decision = iota
	// TakeIncoming replaces the local row with the incoming one.
	TakeIncoming
	// Identical means neither side wins; nothing is written.
	Identical
)

func (d Decision) String() string {
	switch d {
	case KeepLocal:
		return "keep-local"
	case TakeIncoming:
		return "take-incoming"
	default:
		return "identical"
	}
}

// Resolve compares two copies of the same row. The first rule that
// discriminates wins:
//
//  1. no local row: incoming
//  2. later authoritative time (server_updated_at, else updated_at)
//  3. higher version
//  4. later updated_at
//  5. otherwise identical
//
// Resolve is pure; the result does not depend on call order.
func Resolve(local, incoming *schema.SyncMetadata) Decision {
	if local == nil {
		return TakeIncoming
	}

	la, ia := local.AuthoritativeTime(), incoming.AuthoritativeTime()
	switch {
	case ia.After(la):
		return TakeIncoming
	case la.After(ia):
		return KeepLocal
	}

	switch {
	case incoming.Version > local.Version:
		return TakeIncoming
	case local.Version > incoming.Version:
		return KeepLocal
	}

	switch {
	case incoming.UpdatedAt.After(local.UpdatedAt):
		return TakeIncoming
	case local.UpdatedAt.After(incoming.UpdatedAt):
		return KeepLocal
	}

	return Identical
}
