package credential

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStore(t *testing.T) {
	storeContract(t, func(clock *fakeClock) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "admin-console", "credential.json"), WithClock(clock.Now))
	})
}

func TestFileStoreSurvivesReload(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "credential.json")

	NewFileStore(path, WithClock(clock.Now)).Set("tok-1", SessionLifetime)

	reloaded := NewFileStore(path, WithClock(clock.Now))
	tok, ok := reloaded.Get()
	if !ok || tok != "tok-1" {
		t.Fatalf("expected tok-1 after reload, got %q (%v)", tok, ok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestFileStoreExpiredRecordStillOnDisk(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "credential.json")
	s := NewFileStore(path, WithClock(clock.Now))
	s.Set("tok-1", SessionLifetime)

	clock.Advance(13 * time.Hour)
	if _, ok := s.Get(); ok {
		t.Fatalf("expired credential returned")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("record should still be on disk: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Token != "tok-1" {
		t.Fatalf("unexpected record %s (%v)", data, err)
	}
}

func TestFileStoreCorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := NewFileStore(path)
	if _, ok := s.Get(); ok {
		t.Fatalf("corrupt file must read as absent")
	}

	s.Set("tok-1", SessionLifetime)
	if tok, _ := s.Get(); tok != "tok-1" {
		t.Fatalf("store should recover by overwriting, got %q", tok)
	}
}

func TestFileStoreDegradesToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	clock := newClock()
	s := NewFileStore(filepath.Join(blocker, "credential.json"), WithClock(clock.Now))

	s.Set("tok-1", SessionLifetime)
	tok, ok := s.Get()
	if !ok || tok != "tok-1" {
		t.Fatalf("expected in-memory fallback to hold tok-1, got %q (%v)", tok, ok)
	}

	clock.Advance(13 * time.Hour)
	if _, ok := s.Get(); ok {
		t.Fatalf("fallback must still honour expiry")
	}

	s.Set("tok-2", SessionLifetime)
	s.Clear()
	if _, ok := s.Get(); ok {
		t.Fatalf("fallback must honour clear")
	}
}

func TestFileStoreWithoutPathUsesMemory(t *testing.T) {
	s := NewFileStore("")
	s.Set("tok-1", SessionLifetime)
	if tok, _ := s.Get(); tok != "tok-1" {
		t.Fatalf("expected tok-1, got %q", tok)
	}
	s.Clear()
	if _, ok := s.Get(); ok {
		t.Fatalf("credential survived clear")
	}
}

func TestFileStoreSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	opts := []Option{WithPassphrase("correct horse"), WithSealWorkFactor(10)}

	NewFileStore(path, opts...).Set("tok-sealed", SessionLifetime)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "tok-sealed") {
		t.Fatalf("sealed file leaks the token")
	}
	if !strings.Contains(string(data), "BEGIN AGE ENCRYPTED FILE") {
		t.Fatalf("expected armored age payload, got %q", data)
	}

	tok, ok := NewFileStore(path, opts...).Get()
	if !ok || tok != "tok-sealed" {
		t.Fatalf("expected tok-sealed, got %q (%v)", tok, ok)
	}

	if _, ok := NewFileStore(path, WithPassphrase("wrong")).Get(); ok {
		t.Fatalf("wrong passphrase must read as absent")
	}
	if _, ok := NewFileStore(path).Get(); ok {
		t.Fatalf("sealed file without passphrase must read as absent")
	}
}

func TestFileStoreSealedDecryptsOncePerFileVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	opts := []Option{WithPassphrase("correct horse"), WithSealWorkFactor(10)}

	writer := NewFileStore(path, opts...)
	writer.Set("tok-1", SessionLifetime)
	for i := 0; i < 3; i++ {
		if tok, _ := writer.Get(); tok != "tok-1" {
			t.Fatalf("expected tok-1, got %q", tok)
		}
	}
	if writer.opens != 0 {
		t.Fatalf("writer decrypted its own record %d times", writer.opens)
	}

	reader := NewFileStore(path, opts...)
	for i := 0; i < 5; i++ {
		if tok, _ := reader.Get(); tok != "tok-1" {
			t.Fatalf("expected tok-1, got %q", tok)
		}
	}
	if reader.opens != 1 {
		t.Fatalf("expected a single decrypt for an unchanged file, got %d", reader.opens)
	}

	writer.Set("tok-2", SessionLifetime)
	if tok, _ := reader.Get(); tok != "tok-2" {
		t.Fatalf("reader must notice the replaced file, got %q", tok)
	}
	if reader.opens != 2 {
		t.Fatalf("expected a second decrypt after replacement, got %d", reader.opens)
	}

	writer.Clear()
	if _, ok := reader.Get(); ok {
		t.Fatalf("reader must notice the removed file")
	}
}

func TestFileStoreWrongPassphraseDecryptsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	NewFileStore(path, WithPassphrase("correct horse"), WithSealWorkFactor(10)).Set("tok-1", SessionLifetime)

	s := NewFileStore(path, WithPassphrase("wrong"))
	for i := 0; i < 3; i++ {
		if _, ok := s.Get(); ok {
			t.Fatalf("wrong passphrase must read as absent")
		}
	}
	if s.opens != 1 {
		t.Fatalf("expected one failed decrypt to be remembered, got %d", s.opens)
	}
}
