package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorePutWritesAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "https://assets.test")
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	url, err := store.Put(context.Background(), "batches/b1/item.png", []byte("payload"), "image/png")
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if url != "https://assets.test/batches/b1/item.png" {
		t.Fatalf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "batches", "b1", "item.png"))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("stored data = %q", data)
	}
}

func TestFileStoreFileURLFallback(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	url, err := store.Put(context.Background(), "a/b.png", []byte("x"), "image/png")
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if len(url) < 8 || url[:7] != "file://" {
		t.Fatalf("url = %q, want file:// fallback", url)
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"batches/b1/x.png", "batches/b1/x.png", false},
		{"/leading/slash.png", "leading/slash.png", false},
		{"./dotted/key.png", "dotted/key.png", false},
		{"../escape.png", "", true},
		{"a/../../escape.png", "", true},
		{"   ", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) = %q, want error", tc.key, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) unexpected error: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
