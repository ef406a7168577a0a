package accounts

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// newTestCredentialsDB opens a fresh SQLite file with just the
// account_credentials table, bypassing store.Migrate's full schema
// since these tests only exercise credential storage.
func newTestCredentialsDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "creds-test.db")
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE account_credentials (email TEXT PRIMARY KEY, encrypted_pass TEXT)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	return db
}

// newFallbackStore builds a credentialStore with useKeyring forced off,
// so these tests exercise the encrypted-database path deterministically
// regardless of whether a real OS keyring is reachable in CI.
func newFallbackStore(t *testing.T, db *sql.DB) *credentialStore {
	t.Helper()
	enc, err := newEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("newEncryptor() failed: %v", err)
	}
	return &credentialStore{db: db, encryptor: enc, useKeyring: false}
}

func TestCredentialStoreSetGetRoundTrip(t *testing.T) {
	db := newTestCredentialsDB(t)
	store := newFallbackStore(t, db)
	ctx := context.Background()

	if err := store.setPassword(ctx, "user@example.com", "s3cr3t"); err != nil {
		t.Fatalf("setPassword() failed: %v", err)
	}

	got, err := store.getPassword(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("getPassword() failed: %v", err)
	}
	if got != "s3cr3t" {
		t.Errorf("expected password %q, got %q", "s3cr3t", got)
	}
}

func TestCredentialStoreGetMissingReturnsErrCredentialNotFound(t *testing.T) {
	db := newTestCredentialsDB(t)
	store := newFallbackStore(t, db)
	ctx := context.Background()

	if _, err := store.getPassword(ctx, "nobody@example.com"); err != ErrCredentialNotFound {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestCredentialStoreSetPasswordWithoutEncryptorFails(t *testing.T) {
	db := newTestCredentialsDB(t)
	store := &credentialStore{db: db, encryptor: nil, useKeyring: false}
	ctx := context.Background()

	if err := store.setPassword(ctx, "user@example.com", "s3cr3t"); err == nil {
		t.Fatal("expected error when no keyring and no encryptor configured, got nil")
	}
}

func TestCredentialStoreOverwriteUpdatesPassword(t *testing.T) {
	db := newTestCredentialsDB(t)
	store := newFallbackStore(t, db)
	ctx := context.Background()

	if err := store.setPassword(ctx, "user@example.com", "first"); err != nil {
		t.Fatalf("setPassword() failed: %v", err)
	}
	if err := store.setPassword(ctx, "user@example.com", "second"); err != nil {
		t.Fatalf("setPassword() failed: %v", err)
	}

	got, err := store.getPassword(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("getPassword() failed: %v", err)
	}
	if got != "second" {
		t.Errorf("expected overwritten password %q, got %q", "second", got)
	}
}
