package blobstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStore_SaveAndURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "blobs"), "http://cdn.test/blobs/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, err := store.Save("Photo.PNG", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Fatalf("expected lowercase png ref, got %q", ref)
	}
	if strings.ContainsAny(ref, "/\\") {
		t.Fatalf("ref must not contain separators: %q", ref)
	}

	path, ok := store.Path(ref)
	if !ok {
		t.Fatal("expected valid path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected content %q", data)
	}

	if got := store.URL(ref); got != "http://cdn.test/blobs/"+ref {
		t.Fatalf("unexpected url %q", got)
	}
	if store.URL("") != "" {
		t.Fatal("expected empty url for empty ref")
	}
}

func TestLocalStore_RejectsUnsupportedType(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Save("script.sh", strings.NewReader("#!/bin/sh")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLocalStore_PathRejectsTraversal(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "")
	for _, ref := range []string{"", "../etc/passwd", "a/b.png", ".hidden"} {
		if _, ok := store.Path(ref); ok {
			t.Errorf("expected %q to be rejected", ref)
		}
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "")
	ref, err := store.Save("a.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Delete(ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, _ := store.Path(ref)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected blob removed, stat err = %v", err)
	}
	if err := store.Delete(ref); err != nil {
		t.Fatalf("deleting a missing blob should succeed: %v", err)
	}
}
