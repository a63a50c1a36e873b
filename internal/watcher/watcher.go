// Package watcher implements the auto-import pipeline: it watches a folder
// for new image files and pulls them into the workspace.
//
// Image processing itself (background removal) is an external worker's job;
// the watcher only moves bytes and records metadata. The worker boundary is
// the Processor function, which defaults to a plain copy.
package watcher

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/nuriemon/companion/internal/events"
	"github.com/nuriemon/companion/internal/storage"
)

// settleDelay is how long the watcher waits after a create event before
// reading the file, giving the writing process a moment to finish.
const settleDelay = 100 * time.Millisecond

// imageExtensions are the file types picked up from the watched folder.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// Processor turns a source file into the processed workspace file.
// The default implementation copies the bytes unchanged; the desktop app
// swaps in the external image-processing worker here.
type Processor func(srcPath, dstPath string) error

// Config holds the watcher's collaborators.
type Config struct {
	// Folder is the directory to watch, non-recursively. Required.
	Folder string

	// WorkspaceDir is the workspace root new imports are stored under.
	// Required.
	WorkspaceDir string

	// Store records metadata for imported files. Required.
	Store *storage.Store

	// Bus receives auto-import progress events. Required.
	Bus *events.Bus

	// Process overrides the default copy-through processor.
	Process Processor
}

// Watcher watches one folder and imports new image files.
type Watcher struct {
	cfg     Config
	fw      *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
}

// New creates a watcher. Nothing happens until Start.
func New(cfg Config) *Watcher {
	if cfg.Process == nil {
		cfg.Process = copyThrough
	}
	return &Watcher{cfg: cfg, done: make(chan struct{})}
}

// Start begins watching the configured folder. The folder must exist.
func (w *Watcher) Start() error {
	w.startMu.Lock()
	defer w.startMu.Unlock()
	if w.started {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(w.cfg.Folder); err != nil {
		fw.Close()
		return fmt.Errorf("watch folder %s: %w", w.cfg.Folder, err)
	}

	w.fw = fw
	w.started = true
	w.wg.Add(1)
	go w.run()

	log.Printf("watcher: watching %s", w.cfg.Folder)
	return nil
}

// Stop ends the watch and waits for in-flight imports to finish.
func (w *Watcher) Stop() error {
	w.startMu.Lock()
	defer w.startMu.Unlock()
	if !w.started {
		return nil
	}
	w.started = false

	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}

// run consumes filesystem events until Stop.
func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !isImageFile(event.Name) {
				continue
			}
			w.importFile(event.Name)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: watch error: %v", err)
		}
	}
}

// importFile copies one new file into the workspace and records it.
func (w *Watcher) importFile(path string) {
	// Give the writer a moment to finish the file.
	time.Sleep(settleDelay)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	id := uuid.New().String()
	log.Printf("watcher: importing %s as %s", path, id)
	w.cfg.Bus.Publish(events.AutoImportStarted{ImageID: id, OriginalPath: path})

	savedName := id + ".png"
	dst := filepath.Join(w.cfg.WorkspaceDir, "images", "processed", savedName)

	if err := w.cfg.Process(path, dst); err != nil {
		log.Printf("watcher: import of %s failed: %v", path, err)
		w.cfg.Bus.Publish(events.AutoImportError{ImageID: id, Error: err.Error()})
		return
	}

	size := int64(0)
	if st, err := os.Stat(dst); err == nil {
		size = st.Size()
	}
	meta := &storage.ImageMetadata{
		ID:               id,
		OriginalFileName: filepath.Base(path),
		SavedFileName:    savedName,
		ImageType:        "processed",
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		Size:             size,
		StorageLocation:  w.cfg.WorkspaceDir,
	}
	if err := w.cfg.Store.SaveImage(meta); err != nil {
		log.Printf("watcher: recording %s failed: %v", id, err)
		w.cfg.Bus.Publish(events.AutoImportError{ImageID: id, Error: err.Error()})
		return
	}

	w.cfg.Bus.Publish(events.AutoImportComplete{
		ImageID:       id,
		OriginalPath:  path,
		ProcessedPath: dst,
	})
	w.cfg.Bus.Publish(events.DataChanged{Kind: "image-added", ImageID: id})
	log.Printf("watcher: imported %s", id)
}

// isImageFile reports whether the path has a recognized image extension.
func isImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// copyThrough is the default Processor: a byte-for-byte copy.
func copyThrough(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", srcPath, err)
	}
	return dst.Sync()
}
