// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package batch owns the ordered list of input files and runs ffmpeg over
// them one at a time.

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
	"github.com/ZSC714725/upmixmanager/internal/logger"
	"github.com/ZSC714725/upmixmanager/internal/metrics"
	"github.com/ZSC714725/upmixmanager/internal/resource"
	"github.com/ZSC714725/upmixmanager/internal/tags"
)

// Invoker runs one upmix job at a time. Terminate kills the job in flight
// from any goroutine.
type Invoker interface {
	Run(ctx context.Context, job ffmpeg.Job) error
	Terminate() error
}

type progressor interface {
	Progress() ffmpeg.Live
}

type supporter interface {
	Supports(f catalog.Format, q catalog.Quality) error
}

// Config for the engine
type Config struct {
	Invoker    Invoker
	Bookmarker resource.Bookmarker
	Journal    Journal
	Format     catalog.FormatID
	Quality    catalog.QualityID
	// Validate rejects input paths before they are added.
	Validate func(path string) error
	// Tags reads display metadata; errors are ignored.
	Tags func(path string) (tags.Metadata, error)
	// ProgressInterval is how often live ffmpeg progress is published while
	// a job runs. Defaults to 500ms.
	ProgressInterval time.Duration
	Logger           logger.Logger
}

// Engine is the batch state machine. All methods are safe for concurrent use.
type Engine struct {
	invoker    Invoker
	bookmarker resource.Bookmarker
	journal    Journal
	validate   func(path string) error
	readTags   func(path string) (tags.Metadata, error)
	tick       time.Duration
	logger     logger.Logger

	mu      sync.Mutex
	items   []*Item
	output  *resource.Handle
	format  catalog.Format
	quality catalog.Quality

	phase           Phase
	running         bool
	cancelRequested bool
	progress        float64
	message         string
	lastErr         *ItemError
	runID           string
	seq             uint64

	cancel context.CancelFunc
	done   chan struct{}
	subs   subscribers
}

// New creates an idle engine with an empty batch.
func New(config Config) (*Engine, error) {
	if config.Bookmarker == nil {
		config.Bookmarker = resource.NewFileBookmarker()
	}
	if config.Format == "" {
		config.Format = catalog.Surround51
	}
	if config.Quality == "" {
		config.Quality = catalog.Standard
	}

	format, err := catalog.LookupFormat(config.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, config.Format)
	}
	quality, err := catalog.LookupQuality(config.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, config.Quality)
	}

	e := &Engine{
		invoker:    config.Invoker,
		bookmarker: config.Bookmarker,
		journal:    config.Journal,
		validate:   config.Validate,
		readTags:   config.Tags,
		tick:       config.ProgressInterval,
		logger:     config.Logger,
		format:     format,
		quality:    quality,
		phase:      PhaseIdle,
		message:    "Ready",
	}
	if e.logger == nil {
		e.logger = logger.Nop()
	}
	if e.tick <= 0 {
		e.tick = 500 * time.Millisecond
	}

	return e, nil
}

// AddFile appends a file to the batch. The same resolved path can only be
// added once.
func (e *Engine) AddFile(path string) (Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	it, err := e.addFile(path)
	if err != nil {
		return Item{}, err
	}

	e.batchChanged()
	e.publish()
	return it.copy(), nil
}

// AddFiles adds every path it can and returns the added items together with
// the joined errors of the ones it could not.
func (e *Engine) AddFiles(paths []string) ([]Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var added []Item
	var errs []error
	for _, path := range paths {
		it, err := e.addFile(path)
		if err != nil {
			if errors.Is(err, ErrRunning) {
				return nil, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		added = append(added, it.copy())
	}

	if len(added) > 0 {
		e.batchChanged()
		e.publish()
	}
	return added, errors.Join(errs...)
}

func (e *Engine) addFile(path string) (*Item, error) {
	if e.running {
		return nil, ErrRunning
	}

	canonical, err := resource.Canonical(path)
	if err != nil {
		return nil, &resource.AccessError{Path: path, Err: err}
	}
	if e.validate != nil {
		if err := e.validate(canonical); err != nil {
			return nil, err
		}
	}
	for _, it := range e.items {
		if it.Path == canonical {
			return nil, ErrDuplicate
		}
	}

	h, err := resource.New(e.bookmarker, canonical, resource.File, e.logger)
	if err != nil {
		return nil, err
	}

	it := &Item{
		ID:     shortuuid.New(),
		Name:   h.Name(),
		Path:   canonical,
		Status: Pending,
		handle: h,
	}
	e.readMetadata(it)

	e.items = append(e.items, it)
	e.logger.Debug("added %s as %s", it.Name, it.ID)
	return it, nil
}

func (e *Engine) readMetadata(it *Item) {
	if e.readTags == nil {
		return
	}
	m, err := e.readTags(it.Path)
	if err != nil {
		e.logger.Debug("no tags for %s: %v", it.Name, err)
		return
	}
	if m.Empty() {
		e.logger.Debug("%s is untagged", it.Name)
		return
	}
	it.Metadata = m
}

// Remove drops a single item.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}
	for i, it := range e.items {
		if it.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			e.batchChanged()
			e.publish()
			return nil
		}
	}
	return ErrNotFound
}

// ClearAll empties the batch and resets progress.
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}
	e.items = nil
	e.progress = 0
	e.lastErr = nil
	e.message = "Ready"
	e.batchChanged()
	e.publish()
	return nil
}

// SetOutputDirectory selects where upmixed files are written.
func (e *Engine) SetOutputDirectory(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}

	canonical, err := resource.Canonical(path)
	if err != nil {
		return &resource.AccessError{Path: path, Err: err}
	}
	h, err := resource.New(e.bookmarker, canonical, resource.Dir, e.logger)
	if err != nil {
		return err
	}

	e.output = h
	e.settingsChanged()
	e.publish()
	return nil
}

// SetFormat selects the upmix format for the next run.
func (e *Engine) SetFormat(id catalog.FormatID) error {
	format, err := catalog.LookupFormat(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}
	e.format = format
	e.settingsChanged()
	e.publish()
	return nil
}

// SetQuality selects the output quality for the next run.
func (e *Engine) SetQuality(id catalog.QualityID) error {
	quality, err := catalog.LookupQuality(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}
	e.quality = quality
	e.settingsChanged()
	e.publish()
	return nil
}

// Restore rebuilds the batch and the output directory from persisted
// tokens. Revoked grants are dropped with a warning.
func (e *Engine) Restore(entries []Entry, settings Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}

	if f, err := catalog.LookupFormat(settings.Format); err == nil {
		e.format = f
	}
	if q, err := catalog.LookupQuality(settings.Quality); err == nil {
		e.quality = q
	}

	if len(settings.OutputToken) > 0 {
		h, err := resource.FromToken(e.bookmarker, settings.OutputToken, resource.Dir, e.logger)
		if err != nil {
			e.logger.Warn("dropping output directory %s: %v", settings.OutputPath, err)
		} else {
			e.output = h
		}
	}

	seen := make(map[string]bool, len(e.items)+len(entries))
	for _, it := range e.items {
		seen[it.Path] = true
	}
	for _, entry := range entries {
		h, err := resource.FromToken(e.bookmarker, entry.Token, resource.File, e.logger)
		if err != nil {
			e.logger.Warn("dropping %s from batch: %v", entry.Name, err)
			continue
		}
		if seen[h.Path()] {
			continue
		}
		seen[h.Path()] = true

		id := entry.ID
		if id == "" {
			id = shortuuid.New()
		}
		it := &Item{
			ID:     id,
			Name:   h.Name(),
			Path:   h.Path(),
			Status: Pending,
			handle: h,
		}
		e.readMetadata(it)
		e.items = append(e.items, it)
	}

	e.logger.Info("restored %d of %d batch entries", len(e.items), len(entries))
	e.batchChanged()
	e.publish()
	return nil
}

// OutputDirectory returns the resolved output directory, or "" when none
// is selected.
func (e *Engine) OutputDirectory() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output == nil {
		return ""
	}
	return e.output.Path()
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Subscribe returns a channel of state snapshots, starting with the current
// one, and a function that ends the subscription and closes the channel.
func (e *Engine) Subscribe() (<-chan State, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ch := e.subs.add()
	ch <- e.snapshot()
	metrics.EventSubscribers.Set(float64(e.subs.len()))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.subs.remove(id)
			metrics.EventSubscribers.Set(float64(e.subs.len()))
		})
	}
}

// Wait blocks until the run in progress, if any, has finished.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

// snapshot must be called with e.mu held.
func (e *Engine) snapshot() State {
	st := State{
		Seq:             e.seq,
		RunID:           e.runID,
		Phase:           e.phase,
		Running:         e.running,
		CancelRequested: e.cancelRequested,
		Progress:        e.progress,
		Message:         e.message,
		LastError:       e.lastErr.clone(),
		Format:          e.format.ID,
		Quality:         e.quality.ID,
		Items:           make([]Item, len(e.items)),
	}
	for i, it := range e.items {
		st.Items[i] = it.copy()
	}
	if e.output != nil {
		st.Output = e.output.Path()
		st.OutputStale = e.output.Stale()
	}
	if p, ok := e.invoker.(progressor); ok && e.running {
		live := p.Progress()
		if live.Running {
			st.Current = &live
		}
	}
	return st
}

// publish must be called with e.mu held after every change.
func (e *Engine) publish() {
	e.seq++
	metrics.RunProgress.Set(e.progress)
	if e.subs.len() == 0 {
		return
	}
	e.subs.send(e.snapshot())
}

func (e *Engine) batchChanged() {
	metrics.BatchSize.Set(float64(len(e.items)))
	if e.journal == nil {
		return
	}
	entries := make([]Entry, len(e.items))
	for i, it := range e.items {
		entries[i] = Entry{ID: it.ID, Name: it.Name, Path: it.Path, Token: it.handle.Token()}
	}
	if err := e.journal.SaveBatch(entries); err != nil {
		e.logger.Warn("saving batch: %v", err)
	}
}

func (e *Engine) settingsChanged() {
	if e.journal == nil {
		return
	}
	s := Settings{Format: e.format.ID, Quality: e.quality.ID}
	if e.output != nil {
		s.OutputPath = e.output.Path()
		s.OutputToken = e.output.Token()
	}
	if err := e.journal.SaveSettings(s); err != nil {
		e.logger.Warn("saving settings: %v", err)
	}
}
