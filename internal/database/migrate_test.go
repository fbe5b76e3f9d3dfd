package database

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/HammerMeetNail/penpals/migrations"
)

const latestSchemaVersion = 6

var registerRecordingDBOnce sync.Once

// recordingDB is a migrate database driver that keeps the applied scripts
// and the schema version in memory.
type recordingDB struct {
	mu       sync.Mutex
	version  int
	dirty    bool
	applied  []string
	lockErr  error
	closeErr error
}

func newRecordingDB() *recordingDB {
	return &recordingDB{version: migratedb.NilVersion}
}

func (d *recordingDB) Open(url string) (migratedb.Driver, error) { return newRecordingDB(), nil }
func (d *recordingDB) Close() error                              { return d.closeErr }
func (d *recordingDB) Lock() error                               { return d.lockErr }
func (d *recordingDB) Unlock() error                             { return nil }

func (d *recordingDB) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied = append(d.applied, string(body))
	return nil
}

func (d *recordingDB) SetVersion(version int, dirty bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version, d.dirty = version, dirty
	return nil
}

func (d *recordingDB) Version() (int, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version, d.dirty, nil
}

func (d *recordingDB) Drop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version, d.dirty, d.applied = migratedb.NilVersion, false, nil
	return nil
}

func (d *recordingDB) lastApplied() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.applied) == 0 {
		return ""
	}
	return d.applied[len(d.applied)-1]
}

func (d *recordingDB) appliedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.applied)
}

type closeErrSource struct {
	source.Driver
	err error
}

func (s closeErrSource) Close() error { return s.err }

func embeddedSource(t *testing.T) source.Driver {
	t.Helper()
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		t.Fatalf("opening embedded migrations: %v", err)
	}
	return src
}

func newTestMigrator(t *testing.T, src source.Driver, db migratedb.Driver) *Migrator {
	t.Helper()
	m, err := migrate.NewWithInstance("iofs", src, "recording", db)
	if err != nil {
		t.Fatalf("unexpected migrate.NewWithInstance error: %v", err)
	}
	return &Migrator{m: m}
}

func readMigration(t *testing.T, src source.Driver, version uint, up bool) string {
	t.Helper()
	read := src.ReadDown
	if up {
		read = src.ReadUp
	}
	r, _, err := read(version)
	if err != nil {
		t.Fatalf("reading migration %d (up=%t): %v", version, up, err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading migration %d body: %v", version, err)
	}
	return string(body)
}

func TestEmbeddedMigrations_SequentialWithDownScripts(t *testing.T) {
	src := embeddedSource(t)

	version, err := src.First()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var versions []uint
	for {
		versions = append(versions, version)
		readMigration(t, src, version, true)
		readMigration(t, src, version, false)
		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}

	if len(versions) != latestSchemaVersion {
		t.Fatalf("expected %d migrations, got %v", latestSchemaVersion, versions)
	}
	for i, v := range versions {
		if v != uint(i+1) {
			t.Fatalf("expected version %d at position %d, got %d", i+1, i, v)
		}
	}
}

func TestEmbeddedMigrations_SchemaFeatures(t *testing.T) {
	tests := []struct {
		name    string
		version uint
		up      bool
		want    string
	}{
		{"blocks live with users", 1, true, "CREATE TABLE user_blocks"},
		{"one pending request per pair", 2, true, "idx_friend_requests_pending_pair"},
		{"single admin per community", 3, true, "idx_community_single_admin"},
		{"per-user conversation hides", 4, true, "CREATE TABLE conversation_hides"},
		{"due letter scan", 5, true, "WHERE status = 'scheduled'"},
		{"reaction collapse index", 6, true, "NULLS NOT DISTINCT"},
		{"collapse limited to unread reactions", 6, true, "WHERE read_at IS NULL AND type = 'post_reaction'"},
		{"notifications dropped on rollback", 6, false, "DROP TABLE IF EXISTS notifications"},
	}

	src := embeddedSource(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if body := readMigration(t, src, tt.version, tt.up); !strings.Contains(body, tt.want) {
				t.Fatalf("migration %d (up=%t) missing %q", tt.version, tt.up, tt.want)
			}
		})
	}
}

func TestMigratorUp_AppliesEmbeddedSchema(t *testing.T) {
	db := newRecordingDB()
	m := newTestMigrator(t, embeddedSource(t), db)

	if err := m.Up(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.appliedCount(); got != latestSchemaVersion {
		t.Fatalf("expected %d scripts applied, got %d", latestSchemaVersion, got)
	}
	if !strings.Contains(db.lastApplied(), "CREATE TABLE notifications") {
		t.Fatal("expected notifications schema applied last")
	}

	version, dirty, err := m.Version()
	if err != nil {
		t.Fatalf("unexpected version error: %v", err)
	}
	if version != latestSchemaVersion || dirty {
		t.Fatalf("expected clean version %d, got %d dirty=%t", latestSchemaVersion, version, dirty)
	}

	// Already current: no change is not an error.
	if err := m.Up(); err != nil {
		t.Fatalf("expected no-change to be ignored, got %v", err)
	}
	if got := db.appliedCount(); got != latestSchemaVersion {
		t.Fatalf("expected nothing re-applied, got %d scripts", got)
	}
}

func TestMigratorSteps_RollsBackLatest(t *testing.T) {
	db := newRecordingDB()
	m := newTestMigrator(t, embeddedSource(t), db)
	if err := m.Up(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Steps(-1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.lastApplied(), "DROP TABLE IF EXISTS notifications") {
		t.Fatalf("expected notifications down script, got %q", db.lastApplied())
	}
	if version, _, _ := m.Version(); version != latestSchemaVersion-1 {
		t.Fatalf("expected version %d, got %d", latestSchemaVersion-1, version)
	}
}

func TestMigratorDown_RemovesEverything(t *testing.T) {
	db := newRecordingDB()
	m := newTestMigrator(t, embeddedSource(t), db)
	if err := m.Up(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Down(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.lastApplied(), "DROP TABLE IF EXISTS users") {
		t.Fatalf("expected users dropped last, got %q", db.lastApplied())
	}
	if _, _, err := m.Version(); !errors.Is(err, migrate.ErrNilVersion) {
		t.Fatalf("expected ErrNilVersion after full rollback, got %v", err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("expected no-change to be ignored, got %v", err)
	}
}

func TestMigrator_ErrorsWrapped(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Migrator) error
		want string
	}{
		{"up", (*Migrator).Up, "running migrations"},
		{"down", (*Migrator).Down, "rolling back migrations"},
		{"steps", func(m *Migrator) error { return m.Steps(1) }, "stepping migrations by 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newRecordingDB()
			db.version = 1
			db.lockErr = errors.New("lock failed")
			m := newTestMigrator(t, embeddedSource(t), db)

			err := tt.run(m)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) || !strings.Contains(err.Error(), "lock failed") {
				t.Fatalf("expected %q wrapping the lock error, got %v", tt.want, err)
			}
		})
	}
}

func TestMigratorVersion_FreshDatabase(t *testing.T) {
	m := newTestMigrator(t, embeddedSource(t), newRecordingDB())
	version, dirty, err := m.Version()
	if !errors.Is(err, migrate.ErrNilVersion) {
		t.Fatalf("expected ErrNilVersion, got %v", err)
	}
	if version != 0 || dirty {
		t.Fatalf("expected zero version and clean state, got %d dirty=%t", version, dirty)
	}
}

func TestMigratorClose(t *testing.T) {
	srcErr := errors.New("source close failed")
	dbErr := errors.New("db close failed")

	tests := []struct {
		name   string
		srcErr error
		dbErr  error
		want   error
	}{
		{"clean", nil, nil, nil},
		{"source error wins", srcErr, dbErr, srcErr},
		{"database error", nil, dbErr, dbErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newRecordingDB()
			db.closeErr = tt.dbErr
			src := closeErrSource{Driver: embeddedSource(t), err: tt.srcErr}

			m := newTestMigrator(t, src, db)
			if err := m.Close(); err != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewMigrator(t *testing.T) {
	registerRecordingDBOnce.Do(func() {
		migratedb.Register("penpalsrecording", newRecordingDB())
	})

	if _, err := NewMigrator("not-a-dsn", migrations.FS); err == nil || !strings.Contains(err.Error(), "creating migrator") {
		t.Fatalf("expected wrapped dsn error, got %v", err)
	}

	m, err := NewMigrator("penpalsrecording://local", migrations.FS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("unexpected up error: %v", err)
	}
	if version, _, _ := m.Version(); version != latestSchemaVersion {
		t.Fatalf("expected version %d, got %d", latestSchemaVersion, version)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
