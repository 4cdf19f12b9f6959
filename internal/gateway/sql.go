package gateway

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"newsdesk/internal/model"
)

// identPattern validates table and column names before they are embedded in
// SQL text. Values always travel as placeholders.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store implements Gateway over Postgres, a Redis change feed and an
// S3-compatible file store.
type Store struct {
	db            *sqlx.DB
	feed          *ChangeFeed
	files         FileStore
	uploadTimeout time.Duration
}

// NewStore wires the gateway. feed and files may be nil when the deployment
// runs without Redis or object storage; the corresponding operations then
// degrade (no-op notifications, ErrNoFileStore).
func NewStore(db *sqlx.DB, feed *ChangeFeed, files FileStore, uploadTimeout time.Duration) *Store {
	return &Store{db: db, feed: feed, files: files, uploadTimeout: uploadTimeout}
}

// Query runs the spec against table, selecting columns into dest, and counts
// the unpaginated total with the same predicate.
func (s *Store) Query(ctx context.Context, dest interface{}, table string, columns []string, spec QuerySpec) (int64, error) {
	where, args, err := BuildWhere(spec, 1)
	if err != nil {
		return 0, err
	}
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	for _, col := range columns {
		if err := checkIdent(col); err != nil {
			return 0, err
		}
	}

	orderBy, err := buildOrderBy(spec.Sort)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
		countQuery += " WHERE " + where
	}
	query += orderBy
	if spec.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", spec.Limit, spec.Offset)
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return 0, fmt.Errorf("query %s: %w", table, err)
	}
	return total, nil
}

// Insert adds one row and returns the generated id.
func (s *Store) Insert(ctx context.Context, table string, values map[string]interface{}) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	cols := sortedKeys(values)
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		if err := checkIdent(col); err != nil {
			return 0, err
		}
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}

	s.publish(ctx, table, "insert", []int64{id})
	return id, nil
}

// Update patches the given rows with the column/value pairs in patch.
func (s *Store) Update(ctx context.Context, table string, ids []int64, patch map[string]interface{}) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if len(patch) == 0 {
		return ErrEmptyPatch
	}

	cols := sortedKeys(patch)
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		if err := checkIdent(col); err != nil {
			return err
		}
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, patch[col])
	}
	args = append(args, pq.Array(ids))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ANY($%d)",
		table, strings.Join(sets, ", "), len(cols)+1)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	s.publish(ctx, table, "update", ids)
	return nil
}

// Delete removes the given rows.
func (s *Store) Delete(ctx context.Context, table string, ids []int64) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", table)
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}

	s.publish(ctx, table, "delete", ids)
	return nil
}

// CallProcedure invokes a stored function returning a bigint, the shape all
// counter and statistics functions share.
func (s *Store) CallProcedure(ctx context.Context, name string, args ...interface{}) (int64, error) {
	if err := checkIdent(name); err != nil {
		return 0, err
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("SELECT %s(%s)", name, strings.Join(placeholders, ", "))

	var result int64
	if err := s.db.GetContext(ctx, &result, query, args...); err != nil {
		return 0, fmt.Errorf("call %s: %w", name, err)
	}
	return result, nil
}

// CurrentSession reads the session the auth middleware placed on the context.
func (s *Store) CurrentSession(ctx context.Context) (Session, bool) {
	return SessionFromContext(ctx)
}

// SubscribeToChanges delegates to the change feed. Without Redis the
// subscription is a registered no-op that never fires.
func (s *Store) SubscribeToChanges(ctx context.Context, table string, onChange func(Change)) (Unsubscribe, error) {
	if s.feed == nil {
		return func() error { return nil }, nil
	}
	return s.feed.Subscribe(ctx, table, onChange)
}

// UploadFile stores the asset under folder/name. The call is bounded by the
// configured upload timeout so a stalled endpoint surfaces a failure instead
// of hanging.
func (s *Store) UploadFile(ctx context.Context, r io.Reader, folder, name, contentType string) (model.UploadResult, error) {
	if s.files == nil {
		return model.UploadResult{}, ErrNoFileStore
	}

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	key := folder + "/" + name
	result, err := s.files.Put(ctx, r, key, contentType)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return model.UploadResult{}, model.ErrUploadTimeout
		}
		return model.UploadResult{}, err
	}
	return result, nil
}

// publish is best-effort: a change notification failure never fails the
// mutation that triggered it.
func (s *Store) publish(ctx context.Context, table, op string, ids []int64) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(ctx, Change{Table: table, Op: op, IDs: ids})
}

// BuildWhere renders the spec's filters and search term as a WHERE clause
// body with placeholders starting at firstArg. Filters are AND-combined; the
// search term is one OR-combined group of case-insensitive substring matches
// across the search fields.
func BuildWhere(spec QuerySpec, firstArg int) (string, []interface{}, error) {
	var conds []string
	var args []interface{}
	next := firstArg

	for _, f := range spec.Filters {
		if err := checkIdent(f.Field); err != nil {
			return "", nil, err
		}
		switch f.Op {
		case OpContains:
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", f.Field, next))
			args = append(args, likePattern(fmt.Sprint(f.Value)))
		default:
			conds = append(conds, fmt.Sprintf("%s = $%d", f.Field, next))
			args = append(args, f.Value)
		}
		next++
	}

	if spec.Search != "" && len(spec.SearchFields) > 0 {
		var ors []string
		for _, field := range spec.SearchFields {
			if err := checkIdent(field); err != nil {
				return "", nil, err
			}
			ors = append(ors, fmt.Sprintf("%s ILIKE $%d", field, next))
			args = append(args, likePattern(spec.Search))
			next++
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	return strings.Join(conds, " AND "), args, nil
}

// likeEscaper neutralizes LIKE metacharacters so a term containing % or _
// matches itself instead of acting as a wildcard.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps a literal term in substring wildcards.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func buildOrderBy(sorts []Sort) (string, error) {
	if len(sorts) == 0 {
		return "", nil
	}
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		if err := checkIdent(s.Field); err != nil {
			return "", err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts[i] = s.Field + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadIdentifier, name)
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
