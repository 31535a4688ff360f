// Package sync replicates the local entity store with the remote authority.
//
// # Overview
//
// A sync cycle is a push followed by a pull:
//
//	Entity Store (dirty rows)
//	     │  DirtySnapshot
//	     ▼
//	  Push ──────────────► Remote.Push   {payload: {table: [rows]}}
//	     │  MarkSynced      ◄── {server_time, synced_ids}
//	     ▼
//	  Pull ──────────────► Remote.Pull   {since_server_time: cursor}
//	     │  Resolve + Put   ◄── {server_time, table: [rows]}
//	     ▼
//	  cursor = server_time (after the merge commits)
//
// Push runs first so local edits are never overwritten by a stale pull.
//
// # Conflict Resolution
//
// Resolve decides between the local and incoming copy of a row with a fixed
// total order: authoritative time (server_updated_at, else updated_at), then
// version, then updated_at. The winner replaces the whole row; fields are
// never blended. Identical rows are left alone, which makes applying the
// same pull twice a no-op.
//
// # Error Handling
//
// Missing identity makes Push and Pull no-ops. Remote failures are returned
// as *TransportError; use ErrorKind to branch on the category. Local rows
// stay dirty until the authority acknowledges them, whatever fails.
//
// Deciding when a cycle runs belongs to the scheduler package.
package sync
