// Package pagination implements opaque keyset cursors shared by every list
// endpoint. A cursor encodes the (sort key, id) of the last item returned, so
// deletions between pages never shift or duplicate results.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Direction int

const (
	Desc Direction = iota
	Asc
)

func (d Direction) sql() string {
	if d == Asc {
		return "ASC"
	}
	return "DESC"
}

func (d Direction) op() string {
	if d == Asc {
		return ">"
	}
	return "<"
}

// Request is the caller-supplied page window.
type Request struct {
	Limit  int
	Cursor string
}

// Page is one window of results. IsDone reports that no further pages exist.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	IsDone     bool   `json:"is_done"`
}

// Cursor is the decoded position of the last item of a page.
type Cursor struct {
	SortKey time.Time `json:"k"`
	ID      string    `json:"i"`
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func Decode(s string) (Cursor, error) {
	var c Cursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("decoding cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("parsing cursor: %w", err)
	}
	if c.ID == "" || c.SortKey.IsZero() {
		return c, fmt.Errorf("cursor missing position")
	}
	return c, nil
}

// NormalizedLimit clamps the requested limit into [1, MaxLimit], defaulting when unset.
func (r Request) NormalizedLimit() int {
	switch {
	case r.Limit <= 0:
		return DefaultLimit
	case r.Limit > MaxLimit:
		return MaxLimit
	default:
		return r.Limit
	}
}

// Position returns the decoded cursor, or ok=false when the scan starts at the
// head. Malformed cursors are treated as absent.
func (r Request) Position() (Cursor, bool) {
	if r.Cursor == "" {
		return Cursor{}, false
	}
	c, err := Decode(r.Cursor)
	if err != nil {
		return Cursor{}, false
	}
	return c, true
}

// Apply adds the keyset predicate, ordering and limit to sb.
func Apply(sb sq.SelectBuilder, sortCol, idCol string, dir Direction, req Request) sq.SelectBuilder {
	if c, ok := req.Position(); ok {
		sb = sb.Where(
			fmt.Sprintf("(%s, %s) %s (?, ?)", sortCol, idCol, dir.op()),
			c.SortKey, c.ID,
		)
	}
	return sb.
		OrderBy(sortCol+" "+dir.sql(), idCol+" "+dir.sql()).
		Limit(uint64(req.NormalizedLimit()))
}

// Build turns a fetched window into a Page. keyFn extracts each item's cursor key.
func Build[T any](items []T, limit int, keyFn func(T) Cursor) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := Page[T]{Items: items, IsDone: len(items) < limit}
	if !page.IsDone && len(items) > 0 {
		page.NextCursor = keyFn(items[len(items)-1]).Encode()
	}
	return page
}

// Map converts a page's items while preserving its cursor state.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Items))
	for i, item := range p.Items {
		out[i] = fn(item)
	}
	return Page[U]{Items: out, NextCursor: p.NextCursor, IsDone: p.IsDone}
}
