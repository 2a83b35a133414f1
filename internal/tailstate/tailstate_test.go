package tailstate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSetSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "offsets.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.Lookup("/var/log/app.json"); ok {
		t.Fatal("fresh store has entries")
	}

	s.Set("/var/log/app.json", Entry{Inode: 42, Offset: 1024})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e, ok := reopened.Lookup("/var/log/app.json")
	if !ok {
		t.Fatal("entry lost across save/open")
	}
	if e.Inode != 42 || e.Offset != 1024 {
		t.Errorf("entry = %+v", e)
	}
}

func TestOpenCorruptStateStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.Lookup("anything"); ok {
		t.Error("corrupt state produced entries")
	}
}

func TestOpenEmptyPathRejected(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("Open accepted empty path")
	}
}

func TestSetOverwrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "offsets.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Set("f", Entry{Inode: 1, Offset: 10})
	s.Set("f", Entry{Inode: 1, Offset: 20})

	e, _ := s.Lookup("f")
	if e.Offset != 20 {
		t.Errorf("offset = %d, want 20", e.Offset)
	}
}
