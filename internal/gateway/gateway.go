// Package gateway is the thin data-access surface everything above the
// repositories talks to: filtered/sorted/paginated queries, row mutations,
// stored-procedure counters, session lookup, row-level change subscriptions
// and binary asset upload.
package gateway

import (
	"context"
	"errors"
	"io"

	"newsdesk/internal/model"
)

// Op is a filter comparison operator.
type Op string

const (
	// OpEq matches exact equality.
	OpEq Op = "eq"
	// OpContains matches a case-insensitive substring.
	OpContains Op = "contains"
)

// Filter constrains one field. Filters in a QuerySpec are AND-combined.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Sort orders the result by one field.
type Sort struct {
	Field string
	Desc  bool
}

// QuerySpec describes a listing query. Search is matched case-insensitively
// as a substring, OR-combined across SearchFields; it is how free-text admin
// search works.
type QuerySpec struct {
	Filters      []Filter
	Search       string
	SearchFields []string
	Sort         []Sort
	Offset       int
	Limit        int
}

// Session identifies the authenticated caller.
type Session struct {
	UserID int64
	Role   model.Role
}

// Change describes a row-level mutation on a table.
type Change struct {
	Table string  `json:"table"`
	Op    string  `json:"op"` // "insert", "update" or "delete"
	IDs   []int64 `json:"ids"`
}

// Unsubscribe tears down a change subscription.
type Unsubscribe func() error

// FileStore uploads binary assets. The media service satisfies it.
type FileStore interface {
	Put(ctx context.Context, r io.Reader, key, contentType string) (model.UploadResult, error)
}

// Gateway is the full data-access contract.
type Gateway interface {
	// Query runs a filtered/sorted/paginated select into dest (a pointer to
	// a slice) and returns the unpaginated total.
	Query(ctx context.Context, dest interface{}, table string, columns []string, spec QuerySpec) (int64, error)
	// Insert adds a row and returns its id.
	Insert(ctx context.Context, table string, values map[string]interface{}) (int64, error)
	// Update patches the given rows.
	Update(ctx context.Context, table string, ids []int64, patch map[string]interface{}) error
	// Delete removes the given rows.
	Delete(ctx context.Context, table string, ids []int64) error
	// CallProcedure invokes a stored function, used for counters and
	// aggregate statistics.
	CallProcedure(ctx context.Context, name string, args ...interface{}) (int64, error)
	// CurrentSession returns the caller's session, if authenticated.
	CurrentSession(ctx context.Context) (Session, bool)
	// SubscribeToChanges fires onChange for every mutation on table.
	// Consumers refetch; changes carry no row data.
	SubscribeToChanges(ctx context.Context, table string, onChange func(Change)) (Unsubscribe, error)
	// UploadFile stores an asset under folder/name and returns its public,
	// cache-busted URL. Bounded by the configured upload timeout.
	UploadFile(ctx context.Context, r io.Reader, folder, name, contentType string) (model.UploadResult, error)
}

// Gateway errors.
var (
	ErrBadIdentifier   = errors.New("invalid table or column identifier")
	ErrNoFileStore     = errors.New("file storage is not configured")
	ErrEmptyPatch      = errors.New("empty update patch")
	ErrSessionRequired = errors.New("no active session")
)

type sessionKey struct{}

// WithSession stores the caller's session on the context. The auth
// middleware calls this after validating the token.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext extracts the session placed by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
