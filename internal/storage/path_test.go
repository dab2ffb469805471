package storage

import "testing"

func TestTablePath(t *testing.T) {
	key, err := TablePath("demo-2026", "Activity_Artist")
	if err != nil {
		t.Fatalf("TablePath() error = %v", err)
	}
	if want := "demo-2026/tables/activity_artist.parquet"; key != want {
		t.Fatalf("TablePath() = %q, want %q", key, want)
	}
}

func TestManifestPath(t *testing.T) {
	key, err := ManifestPath("demo")
	if err != nil {
		t.Fatalf("ManifestPath() error = %v", err)
	}
	if key != "demo/manifest.json" {
		t.Fatalf("ManifestPath() = %q", key)
	}
}

func TestPathRejectsInvalidComponent(t *testing.T) {
	if _, err := TablePath("../oops", "Event"); err == nil {
		t.Fatal("expected invalid dataset error")
	}
	if _, err := TablePath("demo", "Event/../x"); err == nil {
		t.Fatal("expected invalid table error")
	}
}
