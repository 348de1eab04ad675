package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	index := filepath.Join(dir, "products.index")
	if err := os.WriteFile(index, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(IndexFiles(index)...)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("index without sidecar: got %d bytes, want 5", got)
	}
	if err := os.WriteFile(index+".meta", []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	got, _ = DiskUsageBytes(IndexFiles(index)...)
	if got != 7 {
		t.Errorf("index with sidecar: got %d bytes, want 7", got)
	}

	sub := filepath.Join(dir, "remote_mock")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "vectors.json"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(sub, "", filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("directory: got %d bytes, want 3", got)
	}
}

func TestFileLists(t *testing.T) {
	if got := DatabaseFiles("/data/catalog.db"); len(got) != 3 || got[1] != "/data/catalog.db-wal" {
		t.Errorf("DatabaseFiles = %v", got)
	}
	if got := IndexFiles(""); got != nil {
		t.Errorf("IndexFiles(\"\") = %v, want nil", got)
	}
}
