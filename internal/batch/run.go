// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
	"github.com/ZSC714725/upmixmanager/internal/metrics"
	"github.com/ZSC714725/upmixmanager/internal/resource"
)

// run is the immutable selection of one run plus its bookkeeping.
type run struct {
	id      string
	items   []*Item
	output  *resource.Handle
	format  catalog.Format
	quality catalog.Quality
	started time.Time
	done    chan struct{}

	halted    bool
	cancelled bool
}

// Start validates the preconditions and begins processing the batch in the
// background. A failed precondition leaves the items untouched and is
// reported both as the returned error and as LastError.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrRunning
	}

	e.phase = PhaseStarting
	e.message = "Starting upmix..."
	e.publish()

	if err := e.preflight(); err != nil {
		e.phase = PhaseIdle
		e.lastErr = &ItemError{Kind: KindStartup, Message: err.Error()}
		e.message = "An error occurred."
		e.logger.Error("upmix not started: %v", err)
		metrics.RunsTotal.WithLabelValues("startup").Inc()
		e.publish()
		return err
	}

	for _, it := range e.items {
		it.reset()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:      shortuuid.New(),
		items:   append([]*Item(nil), e.items...),
		output:  e.output,
		format:  e.format,
		quality: e.quality,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	e.cancel = cancel
	e.done = r.done
	e.running = true
	e.cancelRequested = false
	e.progress = 0
	e.lastErr = nil
	e.runID = r.id
	e.phase = PhaseRunning
	e.logger.Info("run %s phase starting -> running: %d files, %s, %s", r.id, len(r.items), r.format.ID, r.quality.ID)
	metrics.RunIsRunning.Set(1)
	e.publish()

	go e.loop(ctx, r)
	return nil
}

// preflight must be called with e.mu held.
func (e *Engine) preflight() error {
	if e.invoker == nil {
		return ErrEngineMissing
	}
	if len(e.items) == 0 {
		return ErrEmptyBatch
	}
	if e.output == nil {
		return ErrNoOutput
	}
	if err := e.output.Scope(func(string) error { return nil }); err != nil {
		return err
	}
	if s, ok := e.invoker.(supporter); ok {
		if err := s.Supports(e.format, e.quality); err != nil {
			return err
		}
	}
	return nil
}

// Cancel stops the run in progress. The child in flight is killed at once
// and every item not yet finished ends cancelled. Repeated calls have no
// further effect.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	if e.cancelRequested {
		e.mu.Unlock()
		return nil
	}

	e.cancelRequested = true
	e.message = "Cancelling..."
	e.logger.Info("run %s cancel requested", e.runID)
	e.publish()

	e.cancel()
	if err := e.invoker.Terminate(); err != nil {
		e.logger.Warn("terminating ffmpeg: %v", err)
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) loop(ctx context.Context, r *run) {
	total := len(r.items)

	for i, it := range r.items {
		if e.isCancelRequested() {
			e.cancelFrom(r, i)
			break
		}

		in, err := it.handle.Activate()
		if err != nil {
			e.itemFailed(r, it, KindAccess, fmt.Sprintf("Could not access file at %s", it.Name), err)
			continue
		}

		e.mu.Lock()
		it.Status = Processing
		e.message = fmt.Sprintf("Upmixing %s (%d of %d)...", it.Name, i+1, total)
		e.publish()
		e.mu.Unlock()

		output, err := e.transcode(ctx, r, in)

		if derr := it.handle.Deactivate(); derr != nil {
			e.logger.Error("releasing %s: %v", it.Name, derr)
		}

		var accessErr *resource.AccessError
		switch {
		case err == nil:
			e.itemCompleted(r, it, output)
		case errors.Is(err, ffmpeg.ErrCancelled) || e.isCancelRequested():
			e.cancelFrom(r, i)
		case errors.As(err, &accessErr):
			e.itemFailed(r, it, KindAccess, "Could not access output directory", err)
			continue
		default:
			e.engineFailed(r, it, err)
		}

		if r.cancelled || r.halted {
			break
		}
	}

	e.finish(r)
}

// transcode holds the output directory only for the duration of one job.
func (e *Engine) transcode(ctx context.Context, r *run, input string) (string, error) {
	dir, err := r.output.Activate()
	if err != nil {
		return "", err
	}
	defer func() {
		if err := r.output.Deactivate(); err != nil {
			e.logger.Error("releasing output directory: %v", err)
		}
	}()

	output := filepath.Join(dir, catalog.OutputName(input, r.format, r.quality))
	start := time.Now()
	stop := e.publishProgress()
	err = e.invoker.Run(ctx, ffmpeg.Job{
		Input:   input,
		Output:  output,
		Format:  r.format,
		Quality: r.quality,
	})
	stop()
	if err == nil {
		metrics.ItemDuration.WithLabelValues(string(r.format.ID), string(r.quality.ID)).Observe(time.Since(start).Seconds())
	}
	return output, err
}

// publishProgress republishes the snapshot every tick while the invoker
// reports a running child, so subscribers see Current move. The returned
// func stops it and waits for the last publish.
func (e *Engine) publishProgress() func() {
	p, ok := e.invoker.(progressor)
	if !ok {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !p.Progress().Running {
					continue
				}
				e.mu.Lock()
				e.publish()
				e.mu.Unlock()
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (e *Engine) isCancelRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested
}

func (e *Engine) itemCompleted(r *run, it *Item, output string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	it.Status = Completed
	it.Output = output
	metrics.ItemsTotal.WithLabelValues(string(Completed), string(r.format.ID)).Inc()
	e.advance(r)
	e.publish()
}

func (e *Engine) itemFailed(r *run, it *Item, kind ErrorKind, message string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ie := &ItemError{Kind: kind, Message: message + ": " + err.Error()}
	it.Status = Failed
	it.Err = ie
	e.lastErr = ie.clone()
	e.logger.Warn("run %s: %s skipped: %v", r.id, it.Name, err)
	metrics.ItemsTotal.WithLabelValues(string(Failed), string(r.format.ID)).Inc()
	e.advance(r)
	e.publish()
}

func (e *Engine) engineFailed(r *run, it *Item, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ie := &ItemError{Kind: KindEngine, Message: fmt.Sprintf("Upmix of %s failed: %v", it.Name, err)}
	var engineErr *ffmpeg.EngineError
	if errors.As(err, &engineErr) {
		ie.Detail = engineErr.Stderr
	}
	it.Status = Failed
	it.Err = ie
	e.lastErr = ie.clone()
	r.halted = true
	e.logger.Error("run %s halted on %s: %v", r.id, it.Name, err)
	metrics.ItemsTotal.WithLabelValues(string(Failed), string(r.format.ID)).Inc()
	e.advance(r)
	e.publish()
}

// cancelFrom marks item i and every later unfinished item cancelled.
func (e *Engine) cancelFrom(r *run, i int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, it := range r.items[i:] {
		if it.Status == Processing {
			it.Err = &ItemError{Kind: KindCancelled, Message: fmt.Sprintf("Upmix of %s cancelled", it.Name)}
		}
		if it.Status == Pending || it.Status == Processing {
			it.Status = Cancelled
			metrics.ItemsTotal.WithLabelValues(string(Cancelled), string(r.format.ID)).Inc()
		}
	}
	r.cancelled = true
	e.progress = 1
	e.phase = PhaseCancelling
	e.publish()
}

// advance must be called with e.mu held.
func (e *Engine) advance(r *run) {
	finished := 0
	for _, it := range r.items {
		if it.Status.Finished() {
			finished++
		}
	}
	e.progress = float64(finished) / float64(len(r.items))
}

func (e *Engine) finish(r *run) {
	e.mu.Lock()

	record := RunRecord{
		ID:       r.id,
		Started:  r.started,
		Finished: time.Now(),
		Format:   r.format.ID,
		Quality:  r.quality.ID,
		Output:   r.output.Path(),
		Total:    len(r.items),
	}
	for _, it := range r.items {
		res := Result{ItemID: it.ID, Name: it.Name, Status: it.Status, Output: it.Output}
		if it.Err != nil {
			res.Error = it.Err.Message
		}
		record.Results = append(record.Results, res)
		switch it.Status {
		case Completed:
			record.Completed++
		case Failed:
			record.Failed++
		case Cancelled:
			record.Cancelled++
		}
	}

	switch {
	case r.cancelled:
		record.Outcome = OutcomeCancelled
		e.message = fmt.Sprintf("Upmix cancelled: %d of %d files upmixed.", record.Completed, record.Total)
	case r.halted:
		record.Outcome = OutcomeFailed
		e.phase = PhaseCompleting
		e.message = fmt.Sprintf("Upmix complete: %d of %d files upmixed.", record.Completed, record.Total)
	default:
		record.Outcome = OutcomeCompleted
		e.phase = PhaseCompleting
		e.message = fmt.Sprintf("Upmix complete: %d of %d files upmixed.", record.Completed, record.Total)
	}
	if e.lastErr != nil {
		record.Error = e.lastErr.Message
	}
	e.publish()

	e.logger.Info("run %s phase %s -> idle: %s", r.id, e.phase, e.message)
	e.cancel()
	e.running = false
	e.cancelRequested = false
	e.phase = PhaseIdle
	metrics.RunIsRunning.Set(0)
	metrics.RunsTotal.WithLabelValues(record.Outcome).Inc()
	metrics.RunDuration.Observe(record.Finished.Sub(record.Started).Seconds())
	e.publish()
	e.mu.Unlock()

	if e.journal != nil {
		if err := e.journal.RecordRun(record); err != nil {
			e.logger.Warn("recording run %s: %v", r.id, err)
		}
	}
	close(r.done)

	// Wait keeps blocking until the run is journaled
	e.mu.Lock()
	if e.done == r.done {
		e.done = nil
	}
	e.mu.Unlock()
}
