// Package schema defines the syncable entities stored by ironlog.
//
// # Overview
//
// Every entity embeds SyncMetadata, the bookkeeping the sync engine needs to
// replicate a row between the local store and the remote authority:
//
//	id                 client-generated ULID, immutable
//	created_at         first local write
//	updated_at         advanced on every local mutation
//	deleted_at         tombstone marker (soft delete, never removed)
//	version            +1 on every local mutation
//	owner_user_id      account the row belongs to, once known
//	server_updated_at  when the authority accepted this version
//	is_dirty           local only: has unacknowledged changes
//	last_synced_at     local only: last confirmed sync
//
// # Tables
//
// Entities are grouped by Table. AllTables fixes the order in which the
// sync layer snapshots, pushes and merges them:
//
//	sessions         Session
//	exercise_sets    ExerciseSet (belongs to a Session)
//	readiness_logs   ReadinessLog (one live row per date)
//	weight_logs      WeightLog (one live row per date)
//	recommendations  Recommendation
//	app_settings     AppSetting (one live row per key)
//
// # Design Principles
//
//   - Flat JSON structure with snake_case wire names
//   - Row-level last-writer-wins, never field-level blending
//   - Timestamps normalized to UTC millisecond precision so local and remote
//     copies compare equal after a round-trip
package schema
