package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"relwatch/pkg/logx"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"), logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	if _, ok := s.LastSeen("anything"); ok {
		t.Fatal("unexpected entry in empty store")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	s.MarkSeen("Tailscale", 111222333)
	s.MarkSeen("Caddy", 444555666)
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file still present: %v", err)
	}

	s2, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if id, ok := s2.LastSeen("Tailscale"); !ok || id != 111222333 {
		t.Fatalf("LastSeen(Tailscale) = %d, %v", id, ok)
	}
	if id, ok := s2.LastSeen("Caddy"); !ok || id != 444555666 {
		t.Fatalf("LastSeen(Caddy) = %d, %v", id, ok)
	}
}

func TestPersistedFileIsHandEditable(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	s.MarkSeen("A", 1)
	s.MarkSeen("B", 2)
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]int64
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}

	// Simulate the operator deleting one entry.
	delete(m, "A")
	edited, _ := json.MarshalIndent(m, "", "  ")
	if err := os.WriteFile(path, edited, 0o644); err != nil {
		t.Fatalf("write edited: %v", err)
	}

	s2, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if _, ok := s2.LastSeen("A"); ok {
		t.Fatal("deleted entry still visible")
	}
	if id, ok := s2.LastSeen("B"); !ok || id != 2 {
		t.Fatalf("LastSeen(B) = %d, %v", id, ok)
	}
}

func TestOpenCorruptFileDegradesToEmpty(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated json", content: `{"A": 12`},
		{name: "wrong shape", content: `["A", "B"]`},
		{name: "wrong value type", content: `{"A": "not-a-number"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}

			s, err := Open(path, logx.Nop())
			if err != nil {
				t.Fatalf("Open error: %v", err)
			}
			if s.Len() != 0 {
				t.Fatalf("Len = %d, want 0", s.Len())
			}

			// A later Persist must replace the corrupt file cleanly.
			s.MarkSeen("A", 7)
			if err := s.Persist(); err != nil {
				t.Fatalf("Persist error: %v", err)
			}
			s2, err := Open(path, logx.Nop())
			if err != nil {
				t.Fatalf("reopen error: %v", err)
			}
			if id, ok := s2.LastSeen("A"); !ok || id != 7 {
				t.Fatalf("LastSeen(A) = %d, %v", id, ok)
			}
		})
	}
}

func TestPersistFailureLeavesOldStateIntact(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	s.MarkSeen("A", 1)
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	// Make the directory read-only so the temp file cannot be created.
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)

	s.MarkSeen("B", 2)
	if err := s.Persist(); err == nil {
		t.Skip("filesystem ignores directory permissions")
	}

	if err := os.Chmod(dir, 0o755); err != nil {
		t.Fatalf("chmod back: %v", err)
	}
	s2, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if id, ok := s2.LastSeen("A"); !ok || id != 1 {
		t.Fatalf("old state damaged: %d, %v", id, ok)
	}
	if _, ok := s2.LastSeen("B"); ok {
		t.Fatal("failed persist must not surface new entries")
	}
}
