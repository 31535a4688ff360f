package authority

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironlog/ironlog/internal/schema"
)

var frozen = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetClock(func() time.Time { return frozen })
	return store
}

func row(id string, version int64, extra string) json.RawMessage {
	body := `{"id":"` + id + `","version":` + jsonInt(version) + `,"date":"2024-06-01","is_dirty":true`
	if extra != "" {
		body += "," + extra
	}
	return json.RawMessage(body + "}")
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestStore_PushAcceptsAndStamps(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	res, err := store.Push(ctx, "u1", map[schema.Table][]json.RawMessage{
		schema.TableSessions: {row("s1", 1, ""), row("s2", 1, "")},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, res.SyncedIDs[schema.TableSessions])
	assert.True(t, res.ServerTime.Equal(frozen))

	pulled, err := store.Pull(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, pulled.Rows[schema.TableSessions], 2)

	var body map[string]any
	require.NoError(t, json.Unmarshal(pulled.Rows[schema.TableSessions][0], &body))
	assert.Equal(t, "u1", body["owner_user_id"])
	assert.Equal(t, "2024-06-01T08:00:00.000Z", body["server_updated_at"])
	assert.NotContains(t, body, "is_dirty")
}

func TestStore_RejectsStaleVersion(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx, "u1", map[schema.Table][]json.RawMessage{
		schema.TableWeightLogs: {row("w1", 3, `"weight_kg":80`)},
	})
	require.NoError(t, err)

	res, err := store.Push(ctx, "u1", map[schema.Table][]json.RawMessage{
		schema.TableWeightLogs: {row("w1", 2, `"weight_kg":70`)},
	})
	require.NoError(t, err)
	assert.Empty(t, res.SyncedIDs[schema.TableWeightLogs])
	assert.NotNil(t, res.SyncedIDs[schema.TableWeightLogs], "table present with no ids")

	res, err = store.Push(ctx, "u1", map[schema.Table][]json.RawMessage{
		schema.TableWeightLogs: {row("w1", 3, `"weight_kg":81`)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, res.SyncedIDs[schema.TableWeightLogs])
}

func TestStore_PullSinceAndOwners(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Push(ctx, "u1", map[schema.Table][]json.RawMessage{
		schema.TableSessions: {row("s1", 1, "")},
	})
	require.NoError(t, err)
	_, err = store.Push(ctx, "u2", map[schema.Table][]json.RawMessage{
		schema.TableSessions: {row("other", 1, "")},
	})
	require.NoError(t, err)
	_, err = store.Push(ctx, "u1", map[schema.Table][]json.RawMessage{
		schema.TableSessions: {row("s2", 1, `"deleted_at":"2024-06-01T08:00:00.000Z"`)},
	})
	require.NoError(t, err)

	pulled, err := store.Pull(ctx, "u1", first.ServerTime)
	require.NoError(t, err)
	require.Len(t, pulled.Rows[schema.TableSessions], 1, "only rows after the cursor, tombstones included")
	assert.Contains(t, string(pulled.Rows[schema.TableSessions][0]), `"s2"`)
	assert.True(t, pulled.ServerTime.After(first.ServerTime))
	assert.Empty(t, pulled.Rows[schema.TableReadinessLogs])

	again, err := store.Pull(ctx, "u1", pulled.ServerTime)
	require.NoError(t, err)
	assert.Empty(t, again.Rows[schema.TableSessions])
}

func TestStore_ServerTimeIsMonotonic(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var last time.Time
	for i := 0; i < 5; i++ {
		res, err := store.Pull(ctx, "u1", time.Time{})
		require.NoError(t, err)
		assert.True(t, res.ServerTime.After(last), "tick %d did not advance", i)
		last = res.ServerTime
	}
}

func TestStore_RejectsRowWithoutID(t *testing.T) {
	store := setupStore(t)
	_, err := store.Push(context.Background(), "u1", map[schema.Table][]json.RawMessage{
		schema.TableSessions: {json.RawMessage(`{"version":1}`)},
	})
	require.Error(t, err)

	n, err := store.Count(context.Background(), "u1", schema.TableSessions)
	require.NoError(t, err)
	assert.Zero(t, n, "failed push must not leave partial rows")
}
