package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSaverWritesTake(t *testing.T) {
	dir := t.TempDir()
	data := []byte("RIFF fake take")

	path, err := FileSaver{Dir: dir}.Save(DefaultOutputName, data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, DefaultOutputName); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading take: %v", err)
	}
	if string(got) != string(data) {
		t.Error("take contents differ from saved data")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the take", len(entries))
	}
}

func TestFileSaverCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "takes", "nested")

	path, err := FileSaver{Dir: dir}.Save(DefaultOutputName, []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("take missing after save: %v", err)
	}
}

func TestFileSaverOverwrites(t *testing.T) {
	dir := t.TempDir()
	saver := FileSaver{Dir: dir}

	if _, err := saver.Save(DefaultOutputName, []byte("first")); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	path, err := saver.Save(DefaultOutputName, []byte("second"))
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading take: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("take = %q, want %q", got, "second")
	}
}
