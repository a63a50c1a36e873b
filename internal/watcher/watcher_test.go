package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nuriemon/companion/internal/events"
	"github.com/nuriemon/companion/internal/storage"
)

type fixture struct {
	watcher   *Watcher
	store     *storage.Store
	bus       *events.Bus
	events    <-chan events.Event
	folder    string
	workspace string
}

func newFixture(t *testing.T, process Processor) *fixture {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	workspace := t.TempDir()
	if err := storage.EnsureLayout(workspace); err != nil {
		t.Fatalf("EnsureLayout failed: %v", err)
	}
	folder := t.TempDir()

	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	t.Cleanup(func() { cancel(); bus.Close() })

	w := New(Config{
		Folder:       folder,
		WorkspaceDir: workspace,
		Store:        store,
		Bus:          bus,
		Process:      process,
	})
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	return &fixture{watcher: w, store: store, bus: bus, events: ch, folder: folder, workspace: workspace}
}

// awaitEvent waits for the next bus event of the named kind, skipping others.
func (f *fixture) awaitEvent(t *testing.T, name string) events.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-f.events:
			if ev.EventName() == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", name)
			return nil
		}
	}
}

// TestImportNewImage verifies the full pipeline: file appears, bytes land in
// the workspace, metadata is recorded, events are published.
func TestImportNewImage(t *testing.T) {
	f := newFixture(t, nil)

	payload := []byte("fake image data")
	if err := os.WriteFile(filepath.Join(f.folder, "drawing.png"), payload, 0o644); err != nil {
		t.Fatalf("writing watched file failed: %v", err)
	}

	started := f.awaitEvent(t, "auto-import-started").(events.AutoImportStarted)
	if started.ImageID == "" {
		t.Error("started event has empty image id")
	}

	complete := f.awaitEvent(t, "auto-import-complete").(events.AutoImportComplete)
	if complete.ImageID != started.ImageID {
		t.Errorf("complete id %s != started id %s", complete.ImageID, started.ImageID)
	}

	got, err := os.ReadFile(complete.ProcessedPath)
	if err != nil {
		t.Fatalf("reading processed file failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Error("processed bytes differ from the source with the default processor")
	}

	meta, err := f.store.GetImage(complete.ImageID)
	if err != nil {
		t.Fatalf("metadata missing after import: %v", err)
	}
	if meta.OriginalFileName != "drawing.png" {
		t.Errorf("OriginalFileName = %q, want drawing.png", meta.OriginalFileName)
	}
	if meta.ImageType != "processed" {
		t.Errorf("ImageType = %q, want processed", meta.ImageType)
	}
	if storage.ResolvePath(meta) != complete.ProcessedPath {
		t.Errorf("ResolvePath = %q, want %q", storage.ResolvePath(meta), complete.ProcessedPath)
	}

	changed := f.awaitEvent(t, "data-changed").(events.DataChanged)
	if changed.Kind != "image-added" || changed.ImageID != complete.ImageID {
		t.Errorf("DataChanged = %+v, want image-added %s", changed, complete.ImageID)
	}
}

// TestNonImageFilesIgnored verifies the extension filter.
func TestNonImageFilesIgnored(t *testing.T) {
	f := newFixture(t, nil)

	if err := os.WriteFile(filepath.Join(f.folder, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("writing file failed: %v", err)
	}

	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %s for a non-image file", ev.EventName())
	case <-time.After(500 * time.Millisecond):
	}
}

// TestCustomProcessor verifies the worker boundary is honored.
func TestCustomProcessor(t *testing.T) {
	processed := []byte("transformed")
	f := newFixture(t, func(srcPath, dstPath string) error {
		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dstPath, processed, 0o644)
	})

	if err := os.WriteFile(filepath.Join(f.folder, "in.jpg"), []byte("original"), 0o644); err != nil {
		t.Fatalf("writing watched file failed: %v", err)
	}

	complete := f.awaitEvent(t, "auto-import-complete").(events.AutoImportComplete)
	got, err := os.ReadFile(complete.ProcessedPath)
	if err != nil {
		t.Fatalf("reading processed file failed: %v", err)
	}
	if string(got) != string(processed) {
		t.Errorf("processed bytes = %q, want %q", got, processed)
	}
}

// TestProcessorFailurePublishesError verifies failures surface as events
// and leave no metadata behind.
func TestProcessorFailurePublishesError(t *testing.T) {
	f := newFixture(t, func(srcPath, dstPath string) error {
		return fmt.Errorf("worker unavailable")
	})

	if err := os.WriteFile(filepath.Join(f.folder, "bad.png"), []byte("data"), 0o644); err != nil {
		t.Fatalf("writing watched file failed: %v", err)
	}

	errEv := f.awaitEvent(t, "auto-import-error").(events.AutoImportError)
	if errEv.Error == "" {
		t.Error("error event carries no message")
	}

	images, err := f.store.ListImages()
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected no metadata after failed import, got %d rows", len(images))
	}
}

// TestIsImageFile covers the extension table.
func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.png", true},
		{"a.PNG", true},
		{"a.jpg", true},
		{"a.jpeg", true},
		{"a.gif", true},
		{"a.bmp", true},
		{"a.webp", true},
		{"a.txt", false},
		{"a.png.tmp", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := isImageFile(tt.path); got != tt.want {
			t.Errorf("isImageFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
