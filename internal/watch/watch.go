// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package watch adds audio files dropped into an inbox directory to the
// batch.

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ZSC714725/upmixmanager/internal/batch"
	"github.com/ZSC714725/upmixmanager/internal/logger"
	"github.com/ZSC714725/upmixmanager/internal/metrics"
	"github.com/ZSC714725/upmixmanager/internal/tags"
)

// Config for a Watcher
type Config struct {
	Dir string
	// Add is called once a file has been quiet for Settle.
	Add func(path string) error
	// Settle defaults to two seconds.
	Settle time.Duration
	// Scan adds the audio files already in Dir on start.
	Scan bool
	// OutputDir returns the current output directory. Files written there
	// are results and are never added back.
	OutputDir func() string
	Logger    logger.Logger
}

// Watcher debounces create and write events per file so a half-copied file
// is never added.
type Watcher struct {
	dir    string
	add    func(path string) error
	settle time.Duration
	scan   bool
	output func() string
	logger logger.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// New creates a Watcher
func New(config Config) (*Watcher, error) {
	if config.Dir == "" {
		return nil, errors.New("no watch directory given")
	}
	if config.Add == nil {
		return nil, errors.New("no add function given")
	}

	w := &Watcher{
		dir:     config.Dir,
		add:     config.Add,
		settle:  config.Settle,
		scan:    config.Scan,
		output:  config.OutputDir,
		logger:  config.Logger,
		pending: make(map[string]*time.Timer),
	}
	if w.settle <= 0 {
		w.settle = 2 * time.Second
	}
	if w.logger == nil {
		w.logger = logger.Nop()
	}
	return w, nil
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatchErrors.Inc()
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			w.logger.Error("failed to close file watcher: %v", err)
		}
	}()

	if err := watcher.Add(w.dir); err != nil {
		metrics.WatchErrors.Inc()
		return err
	}
	w.logger.Info("watching %s for new audio files", w.dir)

	if w.scan {
		w.scanDir()
	}

	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.touch(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error: %v", err)
			metrics.WatchErrors.Inc()
		}
	}
}

func (w *Watcher) scanDir() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to scan %s: %v", w.dir, err)
		metrics.WatchErrors.Inc()
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.touch(filepath.Join(w.dir, e.Name()))
		}
	}
}

func wanted(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && tags.IsAudioFile(name)
}

// inOutput reports whether path lies in the output directory.
func (w *Watcher) inOutput(path string) bool {
	if w.output == nil {
		return false
	}
	out := w.output()
	if out == "" {
		return false
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(out, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// touch (re)starts the settle timer of a file.
func (w *Watcher) touch(path string) {
	if !wanted(path) || w.inOutput(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() { w.flush(path) })
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	err = w.add(path)
	switch {
	case err == nil:
		w.logger.Info("added %s from watch folder", filepath.Base(path))
		metrics.WatchFilesAdded.Inc()
	case errors.Is(err, batch.ErrDuplicate):
		w.logger.Debug("%s already in batch", filepath.Base(path))
	case errors.Is(err, batch.ErrRunning):
		// 运行中不能修改批次，稍后重试
		w.touch(path)
	default:
		w.logger.Warn("failed to add %s: %v", filepath.Base(path), err)
		metrics.WatchErrors.Inc()
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
