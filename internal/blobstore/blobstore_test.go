package blobstore

import (
	"context"
	"errors"
	"testing"
)

func TestKeyForIsContentAddressed(t *testing.T) {
	a := KeyFor([]byte("hello world"))
	b := KeyFor([]byte("hello world"))
	c := KeyFor([]byte("something else"))

	if a != b {
		t.Errorf("expected identical content to produce identical keys, got %q and %q", a, b)
	}
	if a == c {
		t.Errorf("expected different content to produce different keys")
	}
	if len(a) <= len("sha256:") {
		t.Errorf("expected key to be prefixed with sha256:, got %q", a)
	}
}

func TestFSBlobStoreWriteRead(t *testing.T) {
	store := NewFSBlobStore(t.TempDir())
	ctx := context.Background()

	data := []byte("the quick brown fox")
	key := KeyFor(data)

	if err := store.Write(ctx, key, data); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("expected %q, got %q", data, got)
	}
}

func TestFSBlobStoreReadMissingReturnsErrNotFound(t *testing.T) {
	store := NewFSBlobStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Read(ctx, "sha256:doesnotexist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSBlobStoreWriteIsIdempotent(t *testing.T) {
	store := NewFSBlobStore(t.TempDir())
	ctx := context.Background()

	data := []byte("idempotent content")
	key := KeyFor(data)

	if err := store.Write(ctx, key, data); err != nil {
		t.Fatalf("first Write() failed: %v", err)
	}
	if err := store.Write(ctx, key, data); err != nil {
		t.Fatalf("second Write() failed: %v", err)
	}

	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("expected %q after duplicate write, got %q", data, got)
	}
}
