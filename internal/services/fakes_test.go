package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/penpals/internal/models"
)

type fakeCommandTag struct {
	rowsAffected int64
}

func (t fakeCommandTag) RowsAffected() int64 { return t.rowsAffected }

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// rowFromValues returns a Row that assigns values to the scan destinations in
// order. A nil value leaves the destination at its zero value.
func rowFromValues(values ...any) Row {
	return fakeRow{scanFunc: func(dest ...any) error {
		return assignValues(dest, values)
	}}
}

func errRow(err error) Row {
	return fakeRow{scanFunc: func(dest ...any) error { return err }}
}

func noRows() Row {
	return errRow(pgx.ErrNoRows)
}

func assignValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		if err := assign(d, values[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest any, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return errors.New("destination is not a pointer")
	}
	target := dv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case target.Kind() == reflect.Ptr && v.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(v)
		target.Set(p)
	case target.Kind() == reflect.Ptr && v.Type().ConvertibleTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(v.Convert(target.Type().Elem()))
		target.Set(p)
	case v.Type().ConvertibleTo(target.Type()):
		target.Set(v.Convert(target.Type()))
	case v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Type().AssignableTo(target.Type()):
		target.Set(v.Elem())
	default:
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	return nil
}

type fakeRows struct {
	rows    [][]any
	idx     int
	err     error
	scanErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assignValues(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close()     { r.closed = true }
func (r *fakeRows) Err() error { return r.err }

type fakeTx struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if t.ExecFunc == nil {
		return fakeCommandTag{}, errors.New("unexpected Exec: " + sql)
	}
	return t.ExecFunc(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if t.QueryFunc == nil {
		return nil, errors.New("unexpected Query: " + sql)
	}
	return t.QueryFunc(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if t.QueryRowFunc == nil {
		return errRow(errors.New("unexpected QueryRow: " + sql))
	}
	return t.QueryRowFunc(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.CommitFunc == nil {
		return nil
	}
	return t.CommitFunc(ctx)
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.RollbackFunc == nil {
		return nil
	}
	return t.RollbackFunc(ctx)
}

// fakeDB routes statements to its func fields. Without BeginFunc, Begin opens
// a transaction that shares the same funcs.
type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc == nil {
		return fakeCommandTag{}, errors.New("unexpected Exec: " + sql)
	}
	return f.ExecFunc(ctx, sql, args...)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return nil, errors.New("unexpected Query: " + sql)
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return errRow(errors.New("unexpected QueryRow: " + sql))
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	return &fakeTx{
		ExecFunc:     f.ExecFunc,
		QueryFunc:    f.QueryFunc,
		QueryRowFunc: f.QueryRowFunc,
		CommitFunc:   f.CommitFunc,
		RollbackFunc: f.RollbackFunc,
	}, nil
}

// fakeNotifier records what services ask it to emit.
type fakeNotifier struct {
	mu         sync.Mutex
	RecordFunc func(ctx context.Context, q DBConn, p EmitParams) (*models.Notification, error)
	recorded   []EmitParams
	dispatched []*models.Notification
}

func (n *fakeNotifier) Record(ctx context.Context, q DBConn, p EmitParams) (*models.Notification, error) {
	n.mu.Lock()
	n.recorded = append(n.recorded, p)
	n.mu.Unlock()
	if n.RecordFunc != nil {
		return n.RecordFunc(ctx, q, p)
	}
	subject := p.SubjectRef
	return &models.Notification{
		ID:          uuid.New(),
		RecipientID: p.RecipientID,
		ActorID:     p.ActorID,
		Type:        p.Type,
		SubjectRef:  &subject,
	}, nil
}

func (n *fakeNotifier) Dispatch(note *models.Notification) {
	if note == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, note)
}

func (n *fakeNotifier) Recorded() []EmitParams {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]EmitParams(nil), n.recorded...)
}

func (n *fakeNotifier) Dispatched() []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.Notification(nil), n.dispatched...)
}

type fakeURLs struct{}

func (fakeURLs) URL(ref string) string { return "https://blobs.test/" + ref }

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func foreignKeyViolation() error {
	return &pgconn.PgError{Code: "23503"}
}
