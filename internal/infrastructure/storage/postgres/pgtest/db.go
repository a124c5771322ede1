// Package pgtest provides an in-memory stand-in for PostgreSQL for tests.
//
// DB understands the statement shapes produced by the session and the audit
// log (squirrel with dollar placeholders): single-row INSERT, UPDATE with
// "col = $n" assignments, DELETE and SELECT with AND-ed "=", "IN", "ILIKE",
// "IS NULL" and "IS NOT NULL" conditions, LIMIT and OFFSET. Transactions are
// emulated by restoring the table contents when the function fails.
package pgtest

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"softdeletes/internal/core/entity"
	"softdeletes/internal/infrastructure/storage/postgres"
)

// Call is a recorded statement.
type Call struct {
	SQL  string
	Args []any
}

// DB is an in-memory database. The zero value is not usable; call New.
type DB struct {
	mu     sync.Mutex
	tables map[string][]map[string]any

	Execs        []Call
	Queries      []Call
	Transactions int

	// FailExec, when set, is called before every Exec; a non-nil error is returned as is.
	FailExec func(sql string) error
}

func New() *DB {
	return &DB{tables: make(map[string][]map[string]any)}
}

// Seed stores entities as existing rows.
func (db *DB) Seed(entities ...entity.Entity) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range entities {
		row := make(map[string]any)
		for col, v := range postgres.StructToMap(e) {
			row[col] = clone(v)
		}
		db.tables[e.TableName()] = append(db.tables[e.TableName()], row)
	}
}

// Row returns a copy of the row of table with the given id.
func (db *DB) Row(table string, id entity.ID) (map[string]any, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, row := range db.tables[table] {
		if row["id"] == id {
			return copyRow(row), true
		}
	}
	return nil, false
}

// Len returns the number of rows in table.
func (db *DB) Len(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tables[table])
}

// ExecSQL returns the executed statements in order.
func (db *DB) ExecSQL() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.Execs))
	for i, c := range db.Execs {
		out[i] = c.SQL
	}
	return out
}

// QuerySQL returns the executed queries in order.
func (db *DB) QuerySQL() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.Queries))
	for i, c := range db.Queries {
		out[i] = c.SQL
	}
	return out
}

// ResetCalls forgets recorded statements.
func (db *DB) ResetCalls() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Execs = nil
	db.Queries = nil
	db.Transactions = 0
}

// RunInTransaction runs fn; when fn fails, table contents are rolled back.
func (db *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db.mu.Lock()
	db.Transactions++
	saved := make(map[string][]map[string]any, len(db.tables))
	for name, rows := range db.tables {
		copied := make([]map[string]any, len(rows))
		for i, row := range rows {
			copied[i] = copyRow(row)
		}
		saved[name] = copied
	}
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.tables = saved
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *DB) GetQuerier(context.Context) postgres.Querier {
	return db
}

func (db *DB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Execs = append(db.Execs, Call{SQL: sql, Args: args})

	if db.FailExec != nil {
		if err := db.FailExec(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}

	switch {
	case strings.HasPrefix(sql, "INSERT INTO "):
		return db.insert(sql, args)
	case strings.HasPrefix(sql, "UPDATE "):
		return db.update(sql, args)
	case strings.HasPrefix(sql, "DELETE FROM "):
		return db.delete(sql, args)
	case strings.HasPrefix(sql, "SET "), strings.HasPrefix(sql, "SAVEPOINT "),
		strings.HasPrefix(sql, "RELEASE "), strings.HasPrefix(sql, "ROLLBACK "):
		return pgconn.NewCommandTag("SET"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("pgtest: unsupported statement: %s", sql)
}

func (db *DB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.Queries = append(db.Queries, Call{SQL: sql, Args: args})
	return db.query(sql, args)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, err := db.Query(ctx, sql, args...)
	return &row{rows: rows, err: err}
}

func (db *DB) insert(sql string, args []any) (pgconn.CommandTag, error) {
	rest := strings.TrimPrefix(sql, "INSERT INTO ")
	open := strings.Index(rest, "(")
	closing := strings.Index(rest, ")")
	if open < 0 || closing < open {
		return pgconn.CommandTag{}, fmt.Errorf("pgtest: malformed insert: %s", sql)
	}
	table := strings.TrimSpace(rest[:open])
	cols := splitList(rest[open+1 : closing])
	if len(cols) != len(args) {
		return pgconn.CommandTag{}, fmt.Errorf("pgtest: %d columns, %d values", len(cols), len(args))
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = clone(args[i])
	}
	if id, ok := row["id"]; ok {
		for _, existing := range db.tables[table] {
			if existing["id"] == id {
				return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", ConstraintName: table + "_pkey"}
			}
		}
	}
	db.tables[table] = append(db.tables[table], row)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *DB) update(sql string, args []any) (pgconn.CommandTag, error) {
	rest := strings.TrimPrefix(sql, "UPDATE ")
	table, rest, ok := strings.Cut(rest, " SET ")
	if !ok {
		return pgconn.CommandTag{}, fmt.Errorf("pgtest: malformed update: %s", sql)
	}
	setPart, wherePart, _ := strings.Cut(rest, " WHERE ")

	conds, err := parseConditions(wherePart, args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}

	var n int
	for _, r := range db.tables[table] {
		if !matches(r, conds) {
			continue
		}
		for _, assignment := range strings.Split(setPart, ", ") {
			col, expr, _ := strings.Cut(assignment, " = ")
			if expr == col+" + 1" {
				r[col] = toInt(r[col]) + 1
				continue
			}
			v, err := argValue(expr, args)
			if err != nil {
				return pgconn.CommandTag{}, err
			}
			r[col] = clone(v)
		}
		n++
	}
	return pgconn.NewCommandTag("UPDATE " + strconv.Itoa(n)), nil
}

func (db *DB) delete(sql string, args []any) (pgconn.CommandTag, error) {
	rest := strings.TrimPrefix(sql, "DELETE FROM ")
	table, wherePart, _ := strings.Cut(rest, " WHERE ")
	conds, err := parseConditions(wherePart, args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}

	kept := db.tables[table][:0:0]
	n := 0
	for _, r := range db.tables[table] {
		if matches(r, conds) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	db.tables[table] = kept
	return pgconn.NewCommandTag("DELETE " + strconv.Itoa(n)), nil
}

func (db *DB) query(sql string, args []any) (pgx.Rows, error) {
	if !strings.HasPrefix(sql, "SELECT ") {
		return nil, fmt.Errorf("pgtest: unsupported query: %s", sql)
	}
	colPart, rest, ok := strings.Cut(strings.TrimPrefix(sql, "SELECT "), " FROM ")
	if !ok {
		return nil, fmt.Errorf("pgtest: malformed select: %s", sql)
	}
	table, rest, _ := strings.Cut(rest, " ")

	var limit, offset = -1, 0
	if before, after, found := strings.Cut(rest, "OFFSET "); found {
		offset, _ = strconv.Atoi(strings.Fields(after)[0])
		rest = before
	}
	if before, after, found := strings.Cut(rest, "LIMIT "); found {
		limit, _ = strconv.Atoi(strings.Fields(after)[0])
		rest = before
	}
	if before, _, found := strings.Cut(rest, "ORDER BY "); found {
		rest = before
	}

	var conds []condition
	if _, wherePart, found := strings.Cut(rest, "WHERE "); found {
		var err error
		if conds, err = parseConditions(strings.TrimSpace(wherePart), args); err != nil {
			return nil, err
		}
	}

	var selected []map[string]any
	for _, r := range db.tables[table] {
		if matches(r, conds) {
			selected = append(selected, r)
		}
	}
	if offset > len(selected) {
		offset = len(selected)
	}
	selected = selected[offset:]
	if limit >= 0 && limit < len(selected) {
		selected = selected[:limit]
	}

	cols := splitList(colPart)
	if len(cols) == 1 && strings.EqualFold(cols[0], "COUNT(*)") {
		return &Rows{cols: []string{"count"}, data: [][]any{{int64(len(selected))}}}, nil
	}

	data := make([][]any, len(selected))
	for i, r := range selected {
		values := make([]any, len(cols))
		for j, col := range cols {
			values[j] = clone(r[unqualify(col)])
		}
		data[i] = values
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = unqualify(col)
	}
	return &Rows{cols: names, data: data}, nil
}

type condition struct {
	column string
	op     string // "=", "in", "ilike", "null", "notnull"
	value  any
}

func parseConditions(where string, args []any) ([]condition, error) {
	where = strings.TrimSpace(where)
	if where == "" {
		return nil, nil
	}
	where = strings.NewReplacer("(", "", ")", "").Replace(where)

	var conds []condition
	for _, part := range strings.Split(where, " AND ") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasSuffix(part, " IS NOT NULL"):
			conds = append(conds, condition{column: unqualify(strings.TrimSuffix(part, " IS NOT NULL")), op: "notnull"})
		case strings.HasSuffix(part, " IS NULL"):
			conds = append(conds, condition{column: unqualify(strings.TrimSuffix(part, " IS NULL")), op: "null"})
		case strings.Contains(part, " IN "):
			col, list, _ := strings.Cut(part, " IN ")
			var values []any
			for _, expr := range strings.Split(list, ",") {
				v, err := argValue(expr, args)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			conds = append(conds, condition{column: unqualify(col), op: "in", value: values})
		case strings.Contains(part, " ILIKE "):
			col, expr, _ := strings.Cut(part, " ILIKE ")
			v, err := argValue(expr, args)
			if err != nil {
				return nil, err
			}
			conds = append(conds, condition{column: unqualify(col), op: "ilike", value: v})
		case strings.Contains(part, " = "):
			col, expr, _ := strings.Cut(part, " = ")
			v, err := argValue(expr, args)
			if err != nil {
				return nil, err
			}
			conds = append(conds, condition{column: unqualify(col), op: "=", value: v})
		default:
			return nil, fmt.Errorf("pgtest: unsupported condition %q", part)
		}
	}
	return conds, nil
}

func matches(r map[string]any, conds []condition) bool {
	for _, c := range conds {
		v := normalize(r[c.column])
		switch c.op {
		case "null":
			if v != nil {
				return false
			}
		case "notnull":
			if v == nil {
				return false
			}
		case "ilike":
			pattern := strings.ToLower(strings.Trim(fmt.Sprint(c.value), "%"))
			if !strings.Contains(strings.ToLower(fmt.Sprint(v)), pattern) {
				return false
			}
		case "=":
			if !reflect.DeepEqual(v, normalize(c.value)) {
				return false
			}
		case "in":
			found := false
			for _, candidate := range c.value.([]any) {
				if reflect.DeepEqual(v, normalize(candidate)) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func argValue(expr string, args []any) (any, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "$") {
		return nil, fmt.Errorf("pgtest: expected placeholder, got %q", expr)
	}
	n, err := strconv.Atoi(expr[1:])
	if err != nil || n < 1 || n > len(args) {
		return nil, fmt.Errorf("pgtest: bad placeholder %q", expr)
	}
	return args[n-1], nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func unqualify(col string) string {
	if i := strings.LastIndex(col, "."); i >= 0 {
		return col[i+1:]
	}
	return col
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	}
	return 0
}

// deref turns nil pointers into nil and other pointers into their value.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

// normalize makes stored values and query arguments comparable: squirrel
// passes driver.Valuer arguments (uuid.UUID) through Value().
func normalize(v any) any {
	v = deref(v)
	if valuer, ok := v.(driver.Valuer); ok {
		if converted, err := valuer.Value(); err == nil {
			return converted
		}
	}
	return v
}

// clone copies values that would otherwise alias the caller's memory.
func clone(v any) any {
	switch t := v.(type) {
	case *time.Time:
		if t == nil {
			return t
		}
		c := *t
		return &c
	case []byte:
		if t == nil {
			return t
		}
		return append([]byte(nil), t...)
	}
	return v
}

func copyRow(r map[string]any) map[string]any {
	c := make(map[string]any, len(r))
	for k, v := range r {
		c[k] = clone(v)
	}
	return c
}
