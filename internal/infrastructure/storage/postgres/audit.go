package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "softdeletes/internal/core/context"
	"softdeletes/internal/core/entity"
)

// AuditAction is the kind of change written by a commit.
type AuditAction string

const (
	AuditCreate      AuditAction = "create"
	AuditUpdate      AuditAction = "update"
	AuditSoftDelete  AuditAction = "soft_delete"
	AuditRestore     AuditAction = "restore"
	AuditDelete      AuditAction = "delete"
	AuditForceDelete AuditAction = "force_delete"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const auditTable = "sys_audit"

// AuditEntry is a row of sys_audit.
type AuditEntry struct {
	ID                entity.ID       `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          entity.ID       `db:"entity_id"`
	Action            AuditAction     `db:"action"`
	RequestID         string          `db:"request_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditLog writes audit entries through the querier bound to the context,
// so entries commit or roll back with the change they describe.
type AuditLog struct {
	queriers          QuerierProvider
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
	now               func() time.Time
}

// AuditOption configures an AuditLog.
type AuditOption func(*AuditLog)

// WithCompressThreshold sets the payload size above which changes are zstd-compressed.
func WithCompressThreshold(n int) AuditOption {
	return func(a *AuditLog) { a.compressThreshold = n }
}

// WithAuditClock overrides the timestamp source.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(a *AuditLog) { a.now = now }
}

// NewAuditLog creates an audit log.
func NewAuditLog(queriers QuerierProvider, opts ...AuditOption) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	a := &AuditLog{
		queriers:          queriers,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Close releases the codec resources.
func (a *AuditLog) Close() {
	_ = a.encoder.Close()
	a.decoder.Close()
}

// Record inserts entry.
func (a *AuditLog) Record(ctx context.Context, entry AuditEntry) error {
	if entity.IsNilID(entry.ID) {
		entry.ID = entity.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}
	if entry.RequestID == "" {
		entry.RequestID = appctx.GetRequestID(ctx)
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > a.compressThreshold {
		entry.ChangesCompressed = a.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(auditTable).
		Columns("id", "entity_type", "entity_id", "action", "request_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.RequestID,
			entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := a.queriers.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return MapError(err, auditTable, "insert")
	}
	return nil
}

// RecordChange marshals changes and records them.
func (a *AuditLog) RecordChange(ctx context.Context, entityType string, entityID entity.ID, action AuditAction, changes map[string]any) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	return a.Record(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    payload,
	})
}

// History returns the newest entries first, decompressing payloads.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID entity.ID, limit int) ([]AuditEntry, error) {
	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "entity_type", "entity_id", "action", "request_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.queriers.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, MapError(err, auditTable, "select")
	}

	for i := range entries {
		e := &entries[i]
		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decompressed, err := a.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = decompressed
			e.ChangesCompressed = nil
		}
	}
	return entries, nil
}

// Diff returns {"old": ..., "new": ...} pairs for every key whose value differs.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}
