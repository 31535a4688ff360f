package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/schema"
)

// MissingAckPolicy decides what a push response without synced_ids for a
// table means.
type MissingAckPolicy int

const (
	// AckStrict treats missing ids as nothing accepted; the rows stay
	// dirty and are retried.
	AckStrict MissingAckPolicy = iota
	// AckAssumeAll treats missing ids as every pushed row accepted.
	AckAssumeAll
)

// Config holds configuration for the syncer.
type Config struct {
	// Logger for sync events (default: stderr with [sync] prefix)
	Logger *log.Logger

	// AckPolicy for responses that omit synced_ids (default: AckStrict)
	AckPolicy MissingAckPolicy

	// OnPullApplied is called after a pull merged at least one row, with
	// the number of rows received.
	OnPullApplied func(changedRows int)

	// Now is the fallback clock when the authority omits server_time.
	Now func() time.Time
}

// DefaultConfig returns default syncer configuration.
func DefaultConfig() Config {
	return Config{
		Logger:    log.New(os.Stderr, "[sync] ", log.LstdFlags),
		AckPolicy: AckStrict,
		Now:       time.Now,
	}
}

// syncer implements the Syncer interface.
type syncer struct {
	db       *db.DB
	remote   Remote
	identity Identity
	config   Config
	logger   *log.Logger
}

// New creates a new Syncer.
//
// The database must be initialized and have its schema created before
// passing it to this function.
//
// Example:
//
//	database, err := db.Open(path)
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	syncer := sync.New(database, remote.New(remoteCfg), provider, sync.DefaultConfig())
func New(database *db.DB, remote Remote, identity Identity, config Config) Syncer {
	defaults := DefaultConfig()
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	return &syncer{
		db:       database,
		remote:   remote,
		identity: identity,
		config:   config,
		logger:   config.Logger,
	}
}

func (s *syncer) serverTimeOr(t *time.Time) time.Time {
	if t != nil && !t.IsZero() {
		return schema.Normalize(*t)
	}
	return schema.Normalize(s.config.Now())
}

// Push implements Syncer.Push.
func (s *syncer) Push(ctx context.Context) (PushResult, error) {
	userID, ok := s.identity.Current(ctx)
	if !ok {
		return PushResult{}, nil
	}

	snap, err := s.db.DirtySnapshot(ctx)
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to snapshot dirty rows: %w", err)
	}
	if snap.Len() == 0 {
		return PushResult{}, nil
	}

	resp, err := s.remote.Push(ctx, PushRequest{Payload: snap})
	if err != nil {
		return PushResult{}, &TransportError{Op: "push", Err: err}
	}

	result := PushResult{
		Pushed:     snap.Len(),
		ServerTime: s.serverTimeOr(resp.ServerTime),
	}

	err = s.db.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, table := range schema.AllTables {
			rows := snap[table]
			if len(rows) == 0 {
				continue
			}
			repo, err := s.db.Syncable(table)
			if err != nil {
				return err
			}

			acks := s.acknowledged(table, rows, resp.SyncedIDs)
			if len(acks) == 0 {
				continue
			}
			n, err := repo.MarkSynced(ctx, tx, acks, result.ServerTime, userID)
			if err != nil {
				return err
			}
			result.Accepted += n
		}
		return nil
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to mark pushed rows synced: %w", err)
	}

	s.logger.Printf("Pushed %d rows, %d accepted", result.Pushed, result.Accepted)
	return result, nil
}

// acknowledged maps each accepted id of table to the version that was
// pushed.
func (s *syncer) acknowledged(table schema.Table, rows []schema.Entity, synced map[schema.Table][]string) map[string]int64 {
	pushed := make(map[string]int64, len(rows))
	for _, row := range rows {
		pushed[row.Meta().ID] = row.Meta().Version
	}

	ids, reported := synced[table]
	if !reported {
		if s.config.AckPolicy == AckAssumeAll {
			return pushed
		}
		s.logger.Printf("Warning: push response has no synced_ids for %s; %d rows stay dirty", table, len(rows))
		return nil
	}

	acks := make(map[string]int64, len(ids))
	for _, id := range ids {
		version, ok := pushed[id]
		if !ok {
			s.logger.Printf("Warning: authority acknowledged unknown %s id %s", table, id)
			continue
		}
		acks[id] = version
	}
	return acks
}

// Pull implements Syncer.Pull.
func (s *syncer) Pull(ctx context.Context) (PullResult, error) {
	if _, ok := s.identity.Current(ctx); !ok {
		return PullResult{}, nil
	}

	cursor, err := s.db.Cursor(ctx)
	if err != nil {
		return PullResult{}, fmt.Errorf("failed to read cursor: %w", err)
	}

	resp, err := s.remote.Pull(ctx, cursor)
	if err != nil {
		return PullResult{}, &TransportError{Op: "pull", Err: err}
	}

	result := PullResult{ServerTime: s.serverTimeOr(resp.ServerTime)}

	err = s.db.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, table := range schema.AllTables {
			rows := resp.Rows[table]
			if len(rows) == 0 {
				continue
			}
			repo, err := s.db.Syncable(table)
			if err != nil {
				return err
			}
			for _, raw := range rows {
				applied, err := s.merge(ctx, tx, repo, raw, result.ServerTime)
				if err != nil {
					return err
				}
				result.Pulled++
				if applied {
					result.Applied++
				} else {
					result.Skipped++
				}
			}
		}
		return nil
	})
	if err != nil {
		return PullResult{}, fmt.Errorf("failed to merge pulled rows: %w", err)
	}

	// Only advance the cursor once the merge is durable.
	if err := s.db.SetCursor(ctx, result.ServerTime); err != nil {
		return PullResult{}, fmt.Errorf("failed to advance cursor: %w", err)
	}

	if result.Pulled > 0 {
		s.logger.Printf("Pulled %d rows (%d applied, %d skipped)", result.Pulled, result.Applied, result.Skipped)
		if s.config.OnPullApplied != nil {
			s.config.OnPullApplied(result.Pulled)
		}
	}
	return result, nil
}

// merge applies one incoming row. Reports whether it was written.
func (s *syncer) merge(ctx context.Context, tx *sql.Tx, repo db.Syncable, raw []byte, serverTime time.Time) (bool, error) {
	incoming, err := repo.Decode(raw)
	if err != nil {
		return false, err
	}

	var localMeta *schema.SyncMetadata
	local, err := repo.Get(ctx, tx, incoming.Meta().ID)
	switch {
	case err == nil:
		localMeta = local.Meta()
	case !errors.Is(err, db.ErrNotFound):
		return false, err
	}

	if Resolve(localMeta, incoming.Meta()) != TakeIncoming {
		return false, nil
	}

	m := incoming.Meta()
	m.IsDirty = false
	synced := serverTime
	m.LastSyncedAt = &synced
	if m.ServerUpdatedAt == nil {
		stamped := serverTime
		m.ServerUpdatedAt = &stamped
	}
	if err := repo.Put(ctx, tx, incoming); err != nil {
		return false, err
	}
	return true, nil
}
