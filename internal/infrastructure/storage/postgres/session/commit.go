package session

import (
	"context"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"softdeletes/internal/core/apperror"
	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres"
	"softdeletes/internal/metadata"
)

var tracer = otel.Tracer("softdeletes/session")

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	}
	return "delete"
}

// op is one planned row write.
type op struct {
	kind    opKind
	en      *entry
	columns []string // SET columns of an update
	action  postgres.AuditAction
}

// Commit writes every pending change in one transaction and returns the
// number of rows written.
//
// Before writing, in this order: new entities are stamped; modified entities
// get UpdatedAt and lose any change to created_at (and to deleted_at, unless
// this commit was started by Restore); removed SoftDeletable entities with
// soft intent become updates setting deleted_at.
func (s *Session) Commit(ctx context.Context) (int64, error) {
	entries := make([]*entry, len(s.order))
	copy(entries, s.order)
	return s.commit(ctx, entries)
}

func (s *Session) commit(ctx context.Context, entries []*entry) (int64, error) {
	allowRestore := s.allowRestore
	s.allowRestore = false
	defer func() {
		for _, en := range entries {
			en.restoring = false
		}
	}()

	ctx, span := tracer.Start(ctx, "session.Commit")
	defer span.End()

	if err := validate(entries); err != nil {
		span.RecordError(err)
		return 0, err
	}

	now := s.now()
	stampAdded(entries, now)
	ops := planModified(entries, now, allowRestore)
	ops = append(ops, planRemoved(entries, now)...)
	ops = append(ops, planAdded(entries)...)
	ops = s.sortOps(ops)

	span.SetAttributes(attribute.Int("session.ops", len(ops)))
	if len(ops) == 0 {
		return 0, nil
	}

	var total int64
	err := s.engine.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, o := range ops {
			n, err := s.write(ctx, o)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	for _, o := range ops {
		switch o.kind {
		case opDelete:
			s.detach(o.en)
		case opUpdate:
			if v, ok := o.en.entity.(entity.Versioned); ok {
				v.SetVersion(v.GetVersion() + 1)
			}
			o.en.accept()
		default:
			o.en.accept()
		}
	}

	s.log.WithContext(ctx).Debugw("session committed", "ops", len(ops), "rows", total)
	return total, nil
}

// validate fails when an entity declares a capability its mapping cannot
// serve. Nothing has been stamped or written at that point.
func validate(entries []*entry) error {
	for _, en := range entries {
		def := en.def
		need := []string{"id"}
		if _, ok := en.entity.(entity.Timestamped); ok {
			need = append(need, "created_at", "updated_at")
		}
		if _, ok := en.entity.(entity.SoftDeletable); ok {
			need = append(need, "deleted_at")
		}
		if _, ok := en.entity.(entity.Versioned); ok {
			need = append(need, "version")
		}
		for _, col := range need {
			if !def.HasColumn(col) {
				return apperror.NewMisconfigured(def.Name, "entity has no mapped column "+col).
					WithDetail("column", col)
			}
		}
	}
	return nil
}

func stampAdded(entries []*entry, now time.Time) {
	for _, en := range entries {
		if en.state != Added {
			continue
		}
		if ts, ok := en.entity.(entity.Timestamped); ok {
			ts.SetCreatedAt(now)
			ts.SetUpdatedAt(now)
		}
		if sd, ok := en.entity.(entity.SoftDeletable); ok {
			sd.SetDeletedAt(nil)
		}
		if v, ok := en.entity.(entity.Versioned); ok && v.GetVersion() < 1 {
			v.SetVersion(1)
		}
	}
}

func planAdded(entries []*entry) []op {
	var ops []op
	for _, en := range entries {
		if en.state == Added {
			ops = append(ops, op{kind: opInsert, en: en, action: postgres.AuditCreate})
		}
	}
	return ops
}

func planModified(entries []*entry, now time.Time, allowRestore bool) []op {
	var ops []op
	for _, en := range entries {
		if en.state != Unchanged {
			continue
		}
		if _, ok := en.entity.(entity.Timestamped); ok {
			protect(en, "created_at")
		}
		if _, ok := en.entity.(entity.SoftDeletable); ok && !allowRestore {
			protect(en, "deleted_at")
		}
		if len(en.changedColumns()) == 0 {
			continue
		}
		if ts, ok := en.entity.(entity.Timestamped); ok {
			ts.SetUpdatedAt(now)
		}

		action := postgres.AuditUpdate
		if en.restoring {
			action = postgres.AuditRestore
		}
		ops = append(ops, op{kind: opUpdate, en: en, columns: en.changedColumns(), action: action})
	}
	return ops
}

func planRemoved(entries []*entry, now time.Time) []op {
	var ops []op
	for _, en := range entries {
		if en.state != Deleted {
			continue
		}
		sd, ok := en.entity.(entity.SoftDeletable)
		if !ok || en.mode == entity.Force {
			action := postgres.AuditDelete
			if en.mode == entity.Force {
				action = postgres.AuditForceDelete
			}
			ops = append(ops, op{kind: opDelete, en: en, action: action})
			continue
		}

		deletedAt := now
		sd.SetDeletedAt(&deletedAt)
		if ts, ok := en.entity.(entity.Timestamped); ok {
			protect(en, "created_at")
			ts.SetUpdatedAt(now)
		}
		ops = append(ops, op{kind: opUpdate, en: en, columns: en.changedColumns(), action: postgres.AuditSoftDelete})
	}
	return ops
}

// protect reverts col to its last written value so the write leaves it untouched.
func protect(en *entry, col string) {
	orig, ok := en.original[col]
	if !ok {
		return
	}
	switch col {
	case "created_at":
		if t, ok := orig.(time.Time); ok {
			en.entity.(entity.Timestamped).SetCreatedAt(t)
		}
	case "deleted_at":
		sd := en.entity.(entity.SoftDeletable)
		if orig == nil {
			sd.SetDeletedAt(nil)
		} else if t, ok := orig.(time.Time); ok {
			sd.SetDeletedAt(&t)
		}
	}
}

// sortOps orders writes so parents exist before children are inserted and
// children are gone before parents are deleted: inserts in registration order,
// then updates in tracking order, then deletes in reverse registration order.
func (s *Session) sortOps(ops []op) []op {
	rank := func(o op) int { return s.registry.Position(o.en.def.TableName) }
	sort.SliceStable(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		switch a.kind {
		case opInsert:
			if rank(a) != rank(b) {
				return rank(a) < rank(b)
			}
		case opDelete:
			if rank(a) != rank(b) {
				return rank(a) > rank(b)
			}
		}
		return a.en.seq < b.en.seq
	})
	return ops
}

func (s *Session) write(ctx context.Context, o op) (int64, error) {
	def := o.en.def
	id := o.en.entity.GetID()
	data := postgres.StructToMap(o.en.entity)

	var (
		sqlStr string
		args   []any
		err    error
	)
	switch o.kind {
	case opInsert:
		sqlStr, args, err = insertSQL(s.builder(), def, data)
	case opUpdate:
		sqlStr, args, err = updateSQL(s.builder(), def.TableName, o.en.entity, o.columns, data)
	case opDelete:
		sqlStr, args, err = s.builder().Delete(def.TableName).Where(squirrel.Eq{"id": id}).ToSql()
	}
	if err != nil {
		return 0, apperror.NewInternal(err)
	}

	tag, err := s.engine.GetQuerier(ctx).Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, postgres.MapError(err, def.TableName, o.kind.String())
	}
	if tag.RowsAffected() == 0 && o.kind != opInsert {
		return 0, apperror.NewConcurrentModification(def.Name, id.String())
	}

	if s.auditor != nil {
		if err := s.auditor.RecordChange(ctx, def.Name, id, o.action, auditChanges(o)); err != nil {
			return 0, err
		}
	}
	return tag.RowsAffected(), nil
}

func insertSQL(b squirrel.StatementBuilderType, def *metadata.EntityDef, data map[string]any) (string, []any, error) {
	values := make([]any, len(def.Columns))
	for i, col := range def.Columns {
		values[i] = data[col]
	}
	return b.Insert(def.TableName).Columns(def.Columns...).Values(values...).ToSql()
}

func updateSQL(b squirrel.StatementBuilderType, table string, e entity.Entity, columns []string, data map[string]any) (string, []any, error) {
	q := b.Update(table)
	for _, col := range columns {
		q = q.Set(col, data[col])
	}
	q = q.Where(squirrel.Eq{"id": e.GetID()})
	if v, ok := e.(entity.Versioned); ok {
		q = q.Set("version", squirrel.Expr("version + 1")).
			Where(squirrel.Eq{"version": v.GetVersion()})
	}
	return q.ToSql()
}

func auditChanges(o op) map[string]any {
	switch o.kind {
	case opInsert:
		return postgres.Snapshot(o.en.entity)
	case opDelete:
		return map[string]any{"id": o.en.entity.GetID()}
	}
	current := postgres.Snapshot(o.en.entity)
	before := make(map[string]any, len(o.columns))
	after := make(map[string]any, len(o.columns))
	for _, col := range o.columns {
		before[col] = o.en.original[col]
		after[col] = current[col]
	}
	return postgres.Diff(before, after)
}
