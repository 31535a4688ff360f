package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironlog/ironlog/internal/db"
	"github.com/ironlog/ironlog/internal/identity"
	"github.com/ironlog/ironlog/internal/remote"
	"github.com/ironlog/ironlog/internal/schema"
	ironsync "github.com/ironlog/ironlog/internal/sync"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var quiet = log.New(io.Discard, "", 0)

func setupRouter(t *testing.T, secret string) (http.Handler, *Store) {
	t.Helper()
	store := setupStore(t)
	return NewRouter(store, &Config{Secret: secret, Logger: quiet}), store
}

func bearer(t *testing.T, sub, secret string) string {
	t.Helper()
	key := secret
	if key == "" {
		key = "unused"
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub": sub,
		"exp": frozen.Add(time.Hour).Unix(),
	}).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, method, path, token string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h, _ := setupRouter(t, "")
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", nil, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodHead, "/health", "", nil, nil).Code)
}

func TestRouter_RequiresBearer(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := do(t, h, http.MethodPost, "/rpc/sync_pull", "", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/rpc/sync_pull", "garbage", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_VerifiesSignatureWithSecret(t *testing.T) {
	h, _ := setupRouter(t, "s3cret")

	rec := do(t, h, http.MethodPost, "/rpc/sync_pull", bearer(t, "u1", "wrong"), []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/rpc/sync_pull", bearer(t, "u1", "s3cret"), []byte(`{}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_PushPullRoundTrip(t *testing.T) {
	h, _ := setupRouter(t, "")
	token := bearer(t, "u1", "")

	push := []byte(`{"payload":{"sessions":[{"id":"s1","version":1}],"weightLogs":[{"id":"w1","version":2}]}}`)
	rec := do(t, h, http.MethodPost, "/rpc/sync_push", token, push, map[string]string{"X-Request-ID": "req-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var pushResp struct {
		ServerTime string              `json:"server_time"`
		SyncedIDs  map[string][]string `json:"synced_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pushResp))
	assert.Equal(t, "2024-06-01T08:00:00.000Z", pushResp.ServerTime)
	assert.Equal(t, []string{"s1"}, pushResp.SyncedIDs["sessions"])
	assert.Equal(t, []string{"w1"}, pushResp.SyncedIDs["weight_logs"])

	rec = do(t, h, http.MethodPost, "/rpc/sync_pull", token, []byte(`{"since_server_time":"1970-01-01T00:00:00.000Z"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pullResp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pullResp))
	assert.Contains(t, pullResp, "server_time")
	for _, table := range schema.AllTables {
		assert.Contains(t, pullResp, string(table))
	}
	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(pullResp["sessions"], &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "u1", sessions[0]["owner_user_id"])
}

func TestRouter_UnknownTable(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := do(t, h, http.MethodPost, "/rpc/sync_push", bearer(t, "u1", ""), []byte(`{"payload":{"widgets":[]}}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SnappyBody(t *testing.T) {
	h, store := setupRouter(t, "")
	body := snappy.Encode(nil, []byte(`{"payload":{"sessions":[{"id":"s1","version":1}]}}`))

	rec := do(t, h, http.MethodPost, "/rpc/sync_push", bearer(t, "u1", ""), body, map[string]string{"Content-Encoding": "snappy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	n, err := store.Count(context.Background(), "u1", schema.TableSessions)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec = do(t, h, http.MethodPost, "/rpc/sync_push", bearer(t, "u1", ""), []byte("not snappy"), map[string]string{"Content-Encoding": "snappy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// device is one client install talking to the authority over HTTP.
type device struct {
	db     *db.DB
	syncer ironsync.Syncer
}

func newDevice(t *testing.T, url, token string, compress bool) *device {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.InitSchema())

	client := remote.New(remote.Config{
		BaseURL:  url,
		Compress: compress,
		Token:    func(context.Context) (string, error) { return token, nil },
		Logger:   quiet,
	})
	config := ironsync.DefaultConfig()
	config.Logger = quiet
	return &device{
		db:     database,
		syncer: ironsync.New(database, client, identity.Static{UserID: "u1", AccessToken: token}, config),
	}
}

func (d *device) sync(t *testing.T) (ironsync.PushResult, ironsync.PullResult) {
	t.Helper()
	ctx := context.Background()
	push, err := d.syncer.Push(ctx)
	require.NoError(t, err)
	pull, err := d.syncer.Pull(ctx)
	require.NoError(t, err)
	return push, pull
}

func TestEndToEnd_TwoDevicesConverge(t *testing.T) {
	store := setupStore(t)
	tick := frozen
	store.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	srv := httptest.NewServer(NewRouter(store, &Config{Logger: quiet}))
	defer srv.Close()

	token := bearer(t, "u1", "")
	phone := newDevice(t, srv.URL, token, true)
	laptop := newDevice(t, srv.URL, token, false)
	ctx := context.Background()

	session := &schema.Session{
		Date: "2024-06-01", SplitType: schema.SplitPPL, WorkoutType: "push", WorkoutLabel: "Push A", DurationMin: 50,
	}
	sets := []*schema.ExerciseSet{
		{ExerciseName: "Bench Press", ExerciseOrder: 1, SetOrder: 1, WeightKg: 80, Reps: 8},
		{ExerciseName: "Bench Press", ExerciseOrder: 1, SetOrder: 2, WeightKg: 80, Reps: 7},
	}
	require.NoError(t, phone.db.SaveSessionWithSets(ctx, session, sets))

	push, _ := phone.sync(t)
	assert.Equal(t, 3, push.Pushed)
	assert.Equal(t, 3, push.Accepted)

	pending, err := phone.db.DirtyCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	_, pull := laptop.sync(t)
	assert.Equal(t, 3, pull.Applied)

	got, err := laptop.db.GetByID(ctx, schema.TableSessions, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Push A", got.(*schema.Session).WorkoutLabel)
	laptopSets, err := laptop.db.SetsForSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, laptopSets, 2)

	// The laptop edits, the phone picks it up.
	_, err = laptop.db.UpdateSession(ctx, session.ID, func(s *schema.Session) { s.Notes = "felt strong" })
	require.NoError(t, err)
	laptop.sync(t)
	phone.sync(t)

	got, err = phone.db.GetByID(ctx, schema.TableSessions, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "felt strong", got.(*schema.Session).Notes)

	// A delete on the phone propagates as a tombstone.
	require.NoError(t, phone.db.SoftDeleteSession(ctx, session.ID))
	phone.sync(t)
	laptop.sync(t)

	_, err = laptop.db.GetByID(ctx, schema.TableSessions, session.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	laptopSets, err = laptop.db.SetsForSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, laptopSets)

	// Nothing left to move.
	push, pull = phone.sync(t)
	assert.Zero(t, push.Pushed)
	assert.Zero(t, pull.Applied)
}

func TestEndToEnd_Unauthorized(t *testing.T) {
	store := setupStore(t)
	srv := httptest.NewServer(NewRouter(store, &Config{Logger: quiet}))
	defer srv.Close()

	d := newDevice(t, srv.URL, "", false)
	require.NoError(t, d.db.InsertSession(context.Background(), &schema.Session{
		Date: "2024-06-01", SplitType: schema.SplitPPL, WorkoutType: "leg", WorkoutLabel: "Legs",
	}))

	_, err := d.syncer.Push(context.Background())
	require.Error(t, err)
	assert.Equal(t, ironsync.KindTransport, ironsync.ErrorKind(err))
	assert.True(t, strings.Contains(err.Error(), "401"), err.Error())

	pending, err := d.db.DirtyCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "rejected push keeps rows dirty")
}
