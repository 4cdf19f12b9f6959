package gateway

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/model"
)

func TestBuildWhere_Empty(t *testing.T) {
	where, args, err := BuildWhere(QuerySpec{}, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if where != "" || len(args) != 0 {
		t.Errorf("got %q with %d args, want empty", where, len(args))
	}
}

func TestBuildWhere_EqualityFilters(t *testing.T) {
	spec := QuerySpec{
		Filters: []Filter{
			{Field: "status", Op: OpEq, Value: "pending"},
			{Field: "post_id", Op: OpEq, Value: int64(7)},
		},
	}

	where, args, err := BuildWhere(spec, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := "status = $1 AND post_id = $2"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 2 || args[0] != "pending" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhere_ContainsFilter(t *testing.T) {
	spec := QuerySpec{
		Filters: []Filter{{Field: "title", Op: OpContains, Value: "election"}},
	}

	where, args, err := BuildWhere(spec, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if where != "title ILIKE $1" {
		t.Errorf("where = %q", where)
	}
	if args[0] != "%election%" {
		t.Errorf("arg = %v, want wrapped substring pattern", args[0])
	}
}

func TestBuildWhere_SearchIsORCombinedAcrossFields(t *testing.T) {
	spec := QuerySpec{
		Filters:      []Filter{{Field: "status", Op: OpEq, Value: "approved"}},
		Search:       "scandal",
		SearchFields: []string{"content", "guest_name"},
	}

	where, args, err := BuildWhere(spec, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := "status = $1 AND (content ILIKE $2 OR guest_name ILIKE $3)"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 3 || args[1] != "%scandal%" || args[2] != "%scandal%" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhere_EscapesLikeMetacharacters(t *testing.T) {
	spec := QuerySpec{
		Search:       `100%_off\`,
		SearchFields: []string{"content"},
	}

	_, args, err := BuildWhere(spec, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := `%100\%\_off\\%`
	if len(args) != 1 || args[0] != want {
		t.Errorf("args = %v, want [%s]", args, want)
	}

	spec = QuerySpec{Filters: []Filter{{Field: "guest_name", Op: OpContains, Value: "a_b"}}}
	_, args, err = BuildWhere(spec, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(args) != 1 || args[0] != `%a\_b%` {
		t.Errorf("args = %v, want escaped underscore", args)
	}
}

func TestBuildWhere_PlaceholderOffset(t *testing.T) {
	spec := QuerySpec{Filters: []Filter{{Field: "status", Op: OpEq, Value: "pending"}}}

	where, _, err := BuildWhere(spec, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if where != "status = $3" {
		t.Errorf("where = %q, want placeholders starting at $3", where)
	}
}

func TestBuildWhere_RejectsBadIdentifiers(t *testing.T) {
	cases := []QuerySpec{
		{Filters: []Filter{{Field: "status; DROP TABLE users", Op: OpEq, Value: 1}}},
		{Search: "x", SearchFields: []string{"content--"}},
	}
	for _, spec := range cases {
		if _, _, err := BuildWhere(spec, 1); !errors.Is(err, ErrBadIdentifier) {
			t.Errorf("spec %+v: err = %v, want ErrBadIdentifier", spec, err)
		}
	}
}

func TestBuildOrderBy(t *testing.T) {
	orderBy, err := buildOrderBy([]Sort{
		{Field: "is_pinned", Desc: true},
		{Field: "created_at", Desc: true},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := " ORDER BY is_pinned DESC, created_at DESC"
	if orderBy != want {
		t.Errorf("order by = %q, want %q", orderBy, want)
	}

	if _, err := buildOrderBy([]Sort{{Field: "created_at)"}}); !errors.Is(err, ErrBadIdentifier) {
		t.Errorf("err = %v, want ErrBadIdentifier", err)
	}
}

// stallingFileStore blocks until the call's context expires.
type stallingFileStore struct{}

func (stallingFileStore) Put(ctx context.Context, r io.Reader, key, contentType string) (model.UploadResult, error) {
	<-ctx.Done()
	return model.UploadResult{}, ctx.Err()
}

func TestStore_UploadFileBoundedByTimeout(t *testing.T) {
	s := NewStore(nil, nil, stallingFileStore{}, 20*time.Millisecond)

	start := time.Now()
	_, err := s.UploadFile(context.Background(), strings.NewReader("payload"), "avatars", "ana-avatar.jpg", "image/jpeg")
	if !errors.Is(err, model.ErrUploadTimeout) {
		t.Fatalf("err = %v, want ErrUploadTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("upload blocked for %v, want the timeout to cut it short", elapsed)
	}
}

func TestStore_UploadFileWithoutStore(t *testing.T) {
	s := NewStore(nil, nil, nil, time.Minute)

	_, err := s.UploadFile(context.Background(), strings.NewReader("payload"), "avatars", "ana-avatar.jpg", "image/jpeg")
	if !errors.Is(err, ErrNoFileStore) {
		t.Fatalf("err = %v, want ErrNoFileStore", err)
	}
}
