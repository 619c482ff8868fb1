package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/cardenuto-lab/pdffigures/config"
	"github.com/cardenuto-lab/pdffigures/orchestrator"
	"github.com/cardenuto-lab/pdffigures/pdfadapter"
)

// pathLocker provides per-path mutual exclusion so the same output
// directory is never extracted into by two goroutines at once.
type pathLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocker() *pathLocker {
	return &pathLocker{locks: make(map[string]*sync.Mutex)}
}

func (pl *pathLocker) Lock(path string) {
	pl.mu.Lock()
	l, ok := pl.locks[path]
	if !ok {
		l = &sync.Mutex{}
		pl.locks[path] = l
	}
	pl.mu.Unlock()
	l.Lock()
}

func (pl *pathLocker) Unlock(path string) {
	pl.mu.Lock()
	l, ok := pl.locks[path]
	if !ok {
		pl.mu.Unlock()
		return
	}
	pl.mu.Unlock()
	l.Unlock()
}

// debouncer coalesces rapid event bursts (editors saving in multiple
// writes, cloud-sync tools touching a file twice) into a single callback.
type debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	onFire func(path string)
}

func newDebouncer(delay time.Duration, onFire func(path string)) *debouncer {
	return &debouncer{timers: make(map[string]*time.Timer), delay: delay, onFire: onFire}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.onFire(path)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}

// runWatchMode extracts every PDF already present under inputDir, then
// watches it for new and modified PDFs, extracting each as it settles.
func runWatchMode(adapter pdfadapter.Adapter, inputDir, outputDir string, mode orchestrator.Mode, cfg *config.Config, log *logrus.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := watchRecursive(w, inputDir); err != nil {
		return fmt.Errorf("watching %s: %w", inputDir, err)
	}
	fmt.Printf("Watching: %s\n", inputDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	outLock := newPathLocker()
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	extract := func(path string) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			docOutDir := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			outLock.Lock(docOutDir)
			defer outLock.Unlock(docOutDir)
			if _, err := os.Stat(path); err != nil {
				return
			}
			fmt.Printf("Extracting '%s'...\n", filepath.Base(path))
			if err := orchestrator.Document(adapter, path, outputDir, mode, cfg, log); err != nil {
				fmt.Fprintf(os.Stderr, "Error extracting '%s': %v\n", path, err)
			}
		}()
	}

	db := newDebouncer(500*time.Millisecond, extract)
	defer db.stop()

	initialScan(inputDir, db)

	fmt.Println("Daemon ready. Waiting for file changes...")
	eventLoop(ctx, w, db)

	fmt.Println("Waiting for in-flight extractions...")
	wg.Wait()
	fmt.Println("Shutdown complete.")
	return nil
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func initialScan(inputDir string, db *debouncer) {
	filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), ".pdf") {
			db.trigger(path)
		}
		return nil
	})
}

func eventLoop(ctx context.Context, w *fsnotify.Watcher, db *debouncer) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(strings.ToLower(ev.Name), ".pdf") {
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						watchRecursive(w, ev.Name)
					}
				}
				continue
			}
			if ev.Has(fsnotify.Remove) {
				continue
			}
			db.trigger(ev.Name)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		}
	}
}
