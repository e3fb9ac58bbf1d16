package tracker

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"podwatch/pkg/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTracker_NewEpisodeLifecycle(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	episode := &domain.Episode{GUID: "ep-1", Title: "First episode"}

	if !tr.IsNew("show", episode) {
		t.Fatal("Expected unseen podcast's episode to be new")
	}

	if err := tr.Update("show", episode); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if tr.IsNew("show", episode) {
		t.Fatal("Expected same episode to no longer be new")
	}

	// A new GUID is a new episode even when the title repeats, as rerun
	// shows and recurring specials do.
	repeated := &domain.Episode{GUID: "ep-1b", Title: "First episode"}
	if !tr.IsNew("show", repeated) {
		t.Fatal("Expected a different GUID with a repeated title to be new")
	}

	next := &domain.Episode{GUID: "ep-2", Title: "Second episode"}
	if !tr.IsNew("show", next) {
		t.Fatal("Expected a different episode to be new")
	}
}

func TestTracker_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	tr, err := New(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	episode := &domain.Episode{GUID: "ep-1", Title: "Persisted"}
	if err := tr.Update("show", episode); err != nil {
		t.Fatal(err)
	}

	reloaded, err := New(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.IsNew("show", episode) {
		t.Fatal("Expected state to survive a reload")
	}

	all := reloaded.All()
	if all["show"].GUID != "ep-1" {
		t.Errorf("Expected tracked GUID ep-1, got %q", all["show"].GUID)
	}
	if all["show"].ProcessedAt.IsZero() {
		t.Error("Expected ProcessedAt to be recorded")
	}
}

func TestTracker_Clear(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	episode := &domain.Episode{GUID: "ep-1", Title: "To forget"}
	if err := tr.Update("show", episode); err != nil {
		t.Fatal(err)
	}
	if err := tr.Clear("show"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !tr.IsNew("show", episode) {
		t.Fatal("Expected cleared podcast's episode to be new again")
	}

	// Clearing an unknown podcast is a no-op.
	if err := tr.Clear("unknown"); err != nil {
		t.Fatalf("Expected no error clearing unknown podcast, got %v", err)
	}
}

// A corrupt state file must not fail the run; the tracker starts fresh.
func TestTracker_CorruptStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed_episodes.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := New(dir, testLogger())
	if err != nil {
		t.Fatalf("Expected corrupt state to be tolerated, got %v", err)
	}
	if !tr.IsNew("show", &domain.Episode{GUID: "ep-1"}) {
		t.Fatal("Expected fresh state after corrupt file")
	}

	// Saving repairs the file.
	if err := tr.Update("show", &domain.Episode{GUID: "ep-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir, testLogger()); err != nil {
		t.Fatalf("Expected repaired state file to load, got %v", err)
	}
}

func TestTracker_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := New(dir, testLogger()); err != nil {
		t.Fatalf("Expected data dir to be created, got %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Expected data dir to exist, got %v", err)
	}
}
