package db

import (
	"context"
	"database/sql"

	"github.com/ironlog/ironlog/internal/schema"
)

// Snapshot holds the dirty rows of every table at one instant. Tables with
// no dirty rows are absent.
type Snapshot map[schema.Table][]schema.Entity

// Len returns the total number of rows in the snapshot.
func (s Snapshot) Len() int {
	n := 0
	for _, rows := range s {
		n += len(rows)
	}
	return n
}

// DirtySnapshot reads the dirty rows of all tables inside one transaction,
// so no write can land between tables.
func (db *DB) DirtySnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{}
	err := db.ReadTx(ctx, func(tx *sql.Tx) error {
		for _, repo := range db.Syncables() {
			rows, err := repo.ListDirty(ctx, tx)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				snap[repo.Table()] = rows
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// DirtyCount returns the number of dirty rows across all tables.
func (db *DB) DirtyCount(ctx context.Context) (int, error) {
	total := 0
	err := db.ReadTx(ctx, func(tx *sql.Tx) error {
		for _, repo := range db.Syncables() {
			n, err := repo.CountDirty(ctx, tx)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}
