package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type payload struct {
	Symbols []string `json:"symbols"`
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(filepath.Join(tmpDir, "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	c, err = New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestSetAndGetWithHash(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	key := "src/App/Kernel.php"
	hash := HashBytes([]byte("<?php class Kernel {}"))
	in := payload{Symbols: []string{"App\\Kernel"}}

	if err := c.SetWithHash(key, hash, in); err != nil {
		t.Fatalf("SetWithHash() error: %v", err)
	}

	var out payload
	if !c.GetWithHash(key, hash, &out) {
		t.Fatal("GetWithHash() should hit with matching hash")
	}
	if len(out.Symbols) != 1 || out.Symbols[0] != "App\\Kernel" {
		t.Errorf("GetWithHash() = %+v, want %+v", out, in)
	}

	if c.GetWithHash(key, HashBytes([]byte("changed")), &out) {
		t.Error("GetWithHash() should miss when the content hash changed")
	}
	if c.GetWithHash("src/Other.php", hash, &out) {
		t.Error("GetWithHash() should miss for an unknown key")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	_ = c.SetWithHash("k", "h", payload{})

	if err := c.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	var out payload
	if c.GetWithHash("k", "h", &out) {
		t.Error("entry should be gone after Invalidate()")
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() of missing key error: %v", err)
	}
}

func TestClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, _ := New(dir, 24, true)
	_ = c.SetWithHash("a", "h", payload{})
	_ = c.SetWithHash("b", "h", payload{})

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries after Clear() = %d, want 0", stats.Entries)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Clear() should leave an empty directory: %v", err)
	}
}

func TestDisabledCache(t *testing.T) {
	c, _ := New("", 0, false)

	if err := c.SetWithHash("k", "h", payload{}); err != nil {
		t.Errorf("SetWithHash() on disabled cache error: %v", err)
	}
	var out payload
	if c.GetWithHash("k", "h", &out) {
		t.Error("disabled cache should never hit")
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on disabled cache error: %v", err)
	}
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	c := HashBytes([]byte("world"))

	if a != b {
		t.Error("HashBytes() should be deterministic")
	}
	if a == c {
		t.Error("HashBytes() should differ for different input")
	}
	if len(a) != 64 {
		t.Errorf("HashBytes() length = %d, want 64", len(a))
	}
}

func TestGetStats(t *testing.T) {
	c, _ := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	for _, k := range []string{"a", "b", "c"} {
		if err := c.SetWithHash(k, "h", payload{Symbols: []string{k}}); err != nil {
			t.Fatalf("SetWithHash() error: %v", err)
		}
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.TotalSize <= 0 {
		t.Error("TotalSize should be positive")
	}
}

func TestTTLExpiration(t *testing.T) {
	c, _ := New(filepath.Join(t.TempDir(), "cache"), 1, true)

	entry := Entry{
		Version:   schemaVersion,
		Key:       "old",
		Hash:      "h",
		Timestamp: time.Now().Add(-2 * time.Hour),
		Data:      json.RawMessage(`{"symbols":[]}`),
	}
	data, _ := json.Marshal(entry)
	if err := os.WriteFile(c.keyPath("old"), data, 0600); err != nil {
		t.Fatal(err)
	}

	var out payload
	if c.GetWithHash("old", "h", &out) {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.keyPath("old")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestSchemaVersionMismatch(t *testing.T) {
	c, _ := New(filepath.Join(t.TempDir(), "cache"), 0, true)

	entry := Entry{Version: schemaVersion + 1, Key: "k", Hash: "h", Timestamp: time.Now(), Data: json.RawMessage(`{}`)}
	data, _ := json.Marshal(entry)
	_ = os.WriteFile(c.keyPath("k"), data, 0600)

	var out payload
	if c.GetWithHash("k", "h", &out) {
		t.Error("entry from another schema version should miss")
	}
}

func TestKeyPath(t *testing.T) {
	c, _ := New(filepath.Join(t.TempDir(), "cache"), 24, true)

	p1 := c.keyPath("src/a.php")
	p2 := c.keyPath("src/b.php")
	if p1 == p2 {
		t.Error("different keys should map to different paths")
	}
	if filepath.Dir(p1) != c.Dir() {
		t.Errorf("keyPath() should live in the cache dir, got %s", p1)
	}
	if !strings.HasSuffix(p1, ".json") {
		t.Errorf("keyPath() = %s, want .json suffix", p1)
	}
	if strings.ContainsAny(filepath.Base(c.keyPath("../../etc/passwd")), "/\\") {
		t.Error("keys must not escape the cache dir")
	}
}
