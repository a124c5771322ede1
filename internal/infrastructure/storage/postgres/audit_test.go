package postgres_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "softdeletes/internal/core/context"
	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/infrastructure/storage/postgres/pgtest"
)

var auditNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newAuditLog(t *testing.T, db *pgtest.DB, opts ...postgres.AuditOption) *postgres.AuditLog {
	t.Helper()
	opts = append([]postgres.AuditOption{postgres.WithAuditClock(func() time.Time { return auditNow })}, opts...)
	log, err := postgres.NewAuditLog(db, opts...)
	require.NoError(t, err)
	t.Cleanup(log.Close)
	return log
}

func TestAuditLog_RecordAndHistory(t *testing.T) {
	db := pgtest.New()
	log := newAuditLog(t, db)
	id := entity.NewID()

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{RequestID: "req-1"})
	require.NoError(t, log.RecordChange(ctx, "post", id, postgres.AuditSoftDelete,
		map[string]any{"deleted_at": map[string]any{"old": nil, "new": auditNow}}))

	assert.Equal(t, []string{
		"INSERT INTO sys_audit (id,entity_type,entity_id,action,request_id,changes,changes_compressed,compression_algo,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)",
	}, db.ExecSQL())

	entries, err := log.History(context.Background(), "post", id, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, postgres.AuditSoftDelete, e.Action)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, postgres.CompressionNone, e.CompressionAlgo)
	assert.Equal(t, auditNow, e.CreatedAt)
	assert.JSONEq(t, `{"deleted_at":{"old":null,"new":"2026-03-02T12:00:00Z"}}`, string(e.Changes))

	assert.Equal(t,
		"SELECT id, entity_type, entity_id, action, request_id, changes, changes_compressed, compression_algo, created_at FROM sys_audit WHERE entity_id = $1 AND entity_type = $2 ORDER BY created_at DESC LIMIT 10",
		db.QuerySQL()[0])
}

func TestAuditLog_CompressesLargePayloads(t *testing.T) {
	db := pgtest.New()
	log := newAuditLog(t, db, postgres.WithCompressThreshold(64))
	id := entity.NewID()

	changes := map[string]any{"content": strings.Repeat("soft delete ", 50)}
	require.NoError(t, log.RecordChange(context.Background(), "comment", id, postgres.AuditUpdate, changes))

	stored := db.Execs[0].Args
	assert.Equal(t, postgres.CompressionZstd, stored[7])
	assert.Nil(t, stored[5])
	assert.NotEmpty(t, stored[6])

	entries, err := log.History(context.Background(), "comment", id, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ChangesCompressed)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Changes, &decoded))
	assert.Equal(t, changes["content"], decoded["content"])
}

func TestAuditLog_HistoryFiltersByEntity(t *testing.T) {
	db := pgtest.New()
	log := newAuditLog(t, db)
	a, b := entity.NewID(), entity.NewID()
	ctx := context.Background()

	require.NoError(t, log.RecordChange(ctx, "post", a, postgres.AuditCreate, nil))
	require.NoError(t, log.RecordChange(ctx, "post", b, postgres.AuditCreate, nil))
	require.NoError(t, log.RecordChange(ctx, "post", a, postgres.AuditUpdate, nil))

	entries, err := log.History(ctx, "post", a, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDiff(t *testing.T) {
	diff := postgres.Diff(
		map[string]any{"title": "a", "body": "same", "gone": 1},
		map[string]any{"title": "b", "body": "same", "added": true},
	)
	assert.Equal(t, map[string]any{
		"title": map[string]any{"old": "a", "new": "b"},
		"gone":  map[string]any{"old": 1, "new": nil},
		"added": map[string]any{"old": nil, "new": true},
	}, diff)
}
