// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
	"github.com/ZSC714725/upmixmanager/internal/resource"
	"github.com/ZSC714725/upmixmanager/internal/tags"
)

// fakeInvoker records jobs and answers with canned results per input name.
type fakeInvoker struct {
	mu          sync.Mutex
	jobs        []ffmpeg.Job
	results     map[string]error
	block       bool
	started     chan string
	terminated  int
	unsupported error
	// after runs once a job has written its output
	after func(name string)
}

func (f *fakeInvoker) Run(ctx context.Context, job ffmpeg.Job) error {
	name := filepath.Base(job.Input)

	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	res := f.results[name]
	block := f.block
	f.mu.Unlock()

	if f.started != nil {
		f.started <- name
	}
	if block {
		<-ctx.Done()
		return ffmpeg.ErrCancelled
	}
	if ctx.Err() != nil {
		return ffmpeg.ErrCancelled
	}
	if res != nil {
		return res
	}
	if err := os.WriteFile(job.Output, []byte("upmixed"), 0o644); err != nil {
		return err
	}
	if f.after != nil {
		f.after(name)
	}
	return nil
}

func (f *fakeInvoker) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
	return nil
}

func (f *fakeInvoker) Supports(catalog.Format, catalog.Quality) error {
	return f.unsupported
}

func (f *fakeInvoker) inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, j := range f.jobs {
		out = append(out, filepath.Base(j.Input))
	}
	return out
}

type fakeJournal struct {
	mu       sync.Mutex
	entries  []Entry
	settings Settings
	runs     []RunRecord
}

func (j *fakeJournal) SaveBatch(entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = entries
	return nil
}

func (j *fakeJournal) SaveSettings(s Settings) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.settings = s
	return nil
}

func (j *fakeJournal) RecordRun(r RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, r)
	return nil
}

// slowJournal takes its time writing run history.
type slowJournal struct {
	fakeJournal
	delay time.Duration
}

func (j *slowJournal) RecordRun(r RunRecord) error {
	time.Sleep(j.delay)
	return j.fakeJournal.RecordRun(r)
}

func (j *fakeJournal) recorded() []RunRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]RunRecord(nil), j.runs...)
}

// liveInvoker reports a running child until released.
type liveInvoker struct {
	mu      sync.Mutex
	live    ffmpeg.Live
	release chan struct{}
}

func (l *liveInvoker) set(live ffmpeg.Live) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.live = live
}

func (l *liveInvoker) Run(ctx context.Context, job ffmpeg.Job) error {
	l.set(ffmpeg.Live{Running: true, Pid: 4242, Fraction: 0.25, CPU: 12.5})
	defer l.set(ffmpeg.Live{})

	select {
	case <-l.release:
		return os.WriteFile(job.Output, []byte("upmixed"), 0o644)
	case <-ctx.Done():
		return ffmpeg.ErrCancelled
	}
}

func (l *liveInvoker) Terminate() error { return nil }

func (l *liveInvoker) Progress() ffmpeg.Live {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

type fixture struct {
	engine  *Engine
	invoker *fakeInvoker
	journal *fakeJournal
	inDir   string
	outDir  string
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()

	f := &fixture{
		invoker: &fakeInvoker{results: map[string]error{}},
		journal: &fakeJournal{},
		inDir:   t.TempDir(),
		outDir:  t.TempDir(),
	}

	var err error
	f.engine, err = New(Config{Invoker: f.invoker, Journal: f.journal})
	require.NoError(t, err)

	for _, name := range names {
		path := filepath.Join(f.inDir, name)
		require.NoError(t, os.WriteFile(path, []byte("RIFF"+name), 0o644))
		_, err := f.engine.AddFile(path)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) setOutput(t *testing.T) {
	t.Helper()
	require.NoError(t, f.engine.SetOutputDirectory(f.outDir))
}

func (f *fixture) run(t *testing.T) State {
	t.Helper()
	require.NoError(t, f.engine.Start())
	f.engine.Wait()
	return f.engine.Snapshot()
}

func statuses(st State) []Status {
	var out []Status
	for _, it := range st.Items {
		out = append(out, it.Status)
	}
	return out
}

func assertBalanced(t *testing.T, e *Engine) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.items {
		assert.Zero(t, it.handle.Active(), "input %s left active", it.Name)
	}
	if e.output != nil {
		assert.Zero(t, e.output.Active(), "output left active")
	}
}

func TestAllSucceed(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	f.setOutput(t)

	st := f.run(t)

	assert.Equal(t, []Status{Completed, Completed}, statuses(st))
	assert.False(t, st.Running)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 1.0, st.Progress)
	assert.Equal(t, "Upmix complete: 2 of 2 files upmixed.", st.Message)
	assert.Nil(t, st.LastError)
	assert.Equal(t, []string{"a.wav", "b.wav"}, f.invoker.inputs())

	outDir, err := resource.Canonical(f.outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "a_5.1.flac"), st.Items[0].Output)
	assert.FileExists(t, st.Items[0].Output)
	assertBalanced(t, f.engine)
}

func TestEngineFailureHaltsBatch(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	f.setOutput(t)
	f.invoker.results["a.wav"] = &ffmpeg.EngineError{ExitCode: 1, Stderr: "Invalid data found when processing input"}

	st := f.run(t)

	assert.Equal(t, []Status{Failed, Pending}, statuses(st))
	assert.False(t, st.Running)
	require.NotNil(t, st.LastError)
	assert.Equal(t, KindEngine, st.LastError.Kind)
	require.NotNil(t, st.Items[0].Err)
	assert.Equal(t, "Invalid data found when processing input", st.Items[0].Err.Detail)
	assert.Nil(t, st.Items[1].Err)
	assert.Equal(t, []string{"a.wav"}, f.invoker.inputs())
	assert.Equal(t, 0.5, st.Progress)
	assertBalanced(t, f.engine)

	runs := f.journal.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, OutcomeFailed, runs[0].Outcome)
}

func TestRevokedOutputSkipsRemaining(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav", "c.wav")
	f.setOutput(t)
	f.invoker.after = func(name string) {
		if name == "a.wav" {
			os.RemoveAll(f.outDir)
		}
	}

	st := f.run(t)

	assert.Equal(t, []Status{Completed, Failed, Failed}, statuses(st))
	for _, it := range st.Items[1:] {
		require.NotNil(t, it.Err, it.Name)
		assert.Equal(t, KindAccess, it.Err.Kind)
		assert.Contains(t, it.Err.Message, "Could not access output directory")
	}
	assert.Equal(t, []string{"a.wav"}, f.invoker.inputs(), "no job without an output directory")
	assert.Equal(t, 1.0, st.Progress)
	assert.Equal(t, "Upmix complete: 1 of 3 files upmixed.", st.Message)
	assertBalanced(t, f.engine)

	runs := f.journal.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, OutcomeCompleted, runs[0].Outcome)
	assert.Equal(t, 2, runs[0].Failed)
}

func TestWaitCoversRunHistory(t *testing.T) {
	journal := &slowJournal{delay: 200 * time.Millisecond}
	e, err := New(Config{Invoker: &fakeInvoker{results: map[string]error{}}, Journal: journal})
	require.NoError(t, err)

	in := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(in, []byte("RIFF"), 0o644))
	_, err = e.AddFile(in)
	require.NoError(t, err)
	require.NoError(t, e.SetOutputDirectory(t.TempDir()))

	require.NoError(t, e.Start())
	require.Eventually(t, func() bool { return !e.Snapshot().Running }, 5*time.Second, time.Millisecond)

	e.Wait()
	assert.Len(t, journal.recorded(), 1)
}

func TestLiveProgressIsPublished(t *testing.T) {
	inv := &liveInvoker{release: make(chan struct{})}
	e, err := New(Config{Invoker: inv, ProgressInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	in := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(in, []byte("RIFF"), 0o644))
	_, err = e.AddFile(in)
	require.NoError(t, err)
	require.NoError(t, e.SetOutputDirectory(t.TempDir()))

	ch, unsubscribe := e.Subscribe()
	defer unsubscribe()
	<-ch

	require.NoError(t, e.Start())

	timeout := time.After(5 * time.Second)
	var live State
	for live.Current == nil {
		select {
		case live = <-ch:
		case <-timeout:
			t.Fatal("no snapshot with live progress")
		}
	}
	assert.True(t, live.Running)
	assert.Equal(t, Processing, live.Items[0].Status)
	assert.Equal(t, 4242, live.Current.Pid)
	assert.Equal(t, 0.25, live.Current.Fraction)
	assert.Equal(t, 12.5, live.Current.CPU)

	close(inv.release)
	e.Wait()

	st := e.Snapshot()
	assert.Nil(t, st.Current)
	assert.Equal(t, Completed, st.Items[0].Status)
}

func TestCancelImmediately(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav", "c.wav")
	f.setOutput(t)
	f.invoker.block = true

	require.NoError(t, f.engine.Start())
	require.NoError(t, f.engine.Cancel())
	f.engine.Wait()

	st := f.engine.Snapshot()
	assert.Equal(t, []Status{Cancelled, Cancelled, Cancelled}, statuses(st))
	assert.Equal(t, 1.0, st.Progress)
	assert.False(t, st.Running)
	assert.Equal(t, "Upmix cancelled: 0 of 3 files upmixed.", st.Message)
	assert.Nil(t, st.LastError, "cancellation is not a failure")
	assertBalanced(t, f.engine)
}

func TestCancelDuringInvocation(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav", "c.wav")
	f.setOutput(t)
	f.invoker.block = true
	f.invoker.started = make(chan string, 3)

	require.NoError(t, f.engine.Start())
	assert.Equal(t, "a.wav", <-f.invoker.started)

	st := f.engine.Snapshot()
	assert.Equal(t, Processing, st.Items[0].Status)
	assert.Equal(t, "Upmixing a.wav (1 of 3)...", st.Message)

	require.NoError(t, f.engine.Cancel())
	f.engine.Wait()

	st = f.engine.Snapshot()
	assert.Equal(t, []Status{Cancelled, Cancelled, Cancelled}, statuses(st))
	assert.Equal(t, []string{"a.wav"}, f.invoker.inputs(), "no process spawned after cancel")
	assert.Equal(t, 1, f.invoker.terminated)
	require.NotNil(t, st.Items[0].Err, "the interrupted item says so")
	assert.Equal(t, KindCancelled, st.Items[0].Err.Kind)
	assert.Nil(t, st.Items[1].Err)
	assert.Nil(t, st.LastError)
	assertBalanced(t, f.engine)

	runs := f.journal.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, OutcomeCancelled, runs[0].Outcome)
	assert.Equal(t, 3, runs[0].Cancelled)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	f.setOutput(t)
	f.invoker.block = true
	f.invoker.started = make(chan string, 2)

	require.NoError(t, f.engine.Start())
	<-f.invoker.started
	require.NoError(t, f.engine.Cancel())
	require.NoError(t, f.engine.Cancel())
	f.engine.Wait()

	st := f.engine.Snapshot()
	assert.Equal(t, []Status{Cancelled, Cancelled}, statuses(st))
	assert.Equal(t, 1, f.invoker.terminated)

	assert.ErrorIs(t, f.engine.Cancel(), ErrNotRunning)
	after := f.engine.Snapshot()
	assert.Equal(t, st.Items, after.Items)
	assert.Equal(t, st.Message, after.Message)
}

func TestStartWithoutOutput(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")

	err := f.engine.Start()
	require.ErrorIs(t, err, ErrNoOutput)

	st := f.engine.Snapshot()
	assert.False(t, st.Running)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, []Status{Pending, Pending}, statuses(st))
	require.NotNil(t, st.LastError)
	assert.Equal(t, KindStartup, st.LastError.Kind)
	assert.Empty(t, f.invoker.inputs())
}

func TestStartPreconditions(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		f := newFixture(t)
		f.setOutput(t)
		assert.ErrorIs(t, f.engine.Start(), ErrEmptyBatch)
	})

	t.Run("engine missing", func(t *testing.T) {
		e, err := New(Config{})
		require.NoError(t, err)
		assert.ErrorIs(t, e.Start(), ErrEngineMissing)
		assert.Equal(t, KindStartup, e.Snapshot().LastError.Kind)
	})

	t.Run("output revoked", func(t *testing.T) {
		f := newFixture(t, "a.wav")
		f.setOutput(t)
		require.NoError(t, os.RemoveAll(f.outDir))

		err := f.engine.Start()
		var accessErr *resource.AccessError
		require.ErrorAs(t, err, &accessErr)
		assert.ErrorIs(t, err, resource.ErrRevoked)
		assert.Equal(t, Pending, f.engine.Snapshot().Items[0].Status)
	})

	t.Run("encoder unsupported", func(t *testing.T) {
		f := newFixture(t, "a.wav")
		f.setOutput(t)
		f.invoker.unsupported = ffmpeg.ErrUnsupported

		assert.ErrorIs(t, f.engine.Start(), ffmpeg.ErrUnsupported)
		assert.False(t, f.engine.Snapshot().Running)
	})
}

func TestRevokedInputIsSkipped(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav", "c.wav")
	f.setOutput(t)
	require.NoError(t, os.Remove(filepath.Join(f.inDir, "b.wav")))

	st := f.run(t)

	assert.Equal(t, []Status{Completed, Failed, Completed}, statuses(st))
	require.NotNil(t, st.Items[1].Err)
	assert.Equal(t, KindAccess, st.Items[1].Err.Kind)
	assert.Contains(t, st.Items[1].Err.Message, "Could not access file at b.wav")
	require.NotNil(t, st.LastError)
	assert.Equal(t, KindAccess, st.LastError.Kind)
	assert.Equal(t, []string{"a.wav", "c.wav"}, f.invoker.inputs())
	assert.Equal(t, "Upmix complete: 2 of 3 files upmixed.", st.Message)
	assertBalanced(t, f.engine)
}

func TestDuplicateRejected(t *testing.T) {
	f := newFixture(t, "a.wav")
	path := filepath.Join(f.inDir, "a.wav")

	_, err := f.engine.AddFile(path)
	assert.ErrorIs(t, err, ErrDuplicate)

	link := filepath.Join(t.TempDir(), "link.wav")
	require.NoError(t, os.Symlink(path, link))
	_, err = f.engine.AddFile(link)
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Len(t, f.engine.Snapshot().Items, 1)
}

func TestOrderPreserved(t *testing.T) {
	f := newFixture(t, "c.wav", "a.wav", "b.wav")
	f.setOutput(t)

	st := f.run(t)

	var names []string
	for _, it := range st.Items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"c.wav", "a.wav", "b.wav"}, names)
	assert.Equal(t, names, f.invoker.inputs())
}

func TestCommandsRejectedWhileRunning(t *testing.T) {
	f := newFixture(t, "a.wav")
	f.setOutput(t)
	f.invoker.block = true
	f.invoker.started = make(chan string, 1)

	extra := filepath.Join(f.inDir, "extra.wav")
	require.NoError(t, os.WriteFile(extra, []byte("RIFF"), 0o644))

	require.NoError(t, f.engine.Start())
	<-f.invoker.started

	id := f.engine.Snapshot().Items[0].ID
	assert.ErrorIs(t, f.engine.Start(), ErrRunning)
	_, err := f.engine.AddFile(extra)
	assert.ErrorIs(t, err, ErrRunning)
	_, err = f.engine.AddFiles([]string{extra})
	assert.ErrorIs(t, err, ErrRunning)
	assert.ErrorIs(t, f.engine.Remove(id), ErrRunning)
	assert.ErrorIs(t, f.engine.ClearAll(), ErrRunning)
	assert.ErrorIs(t, f.engine.SetFormat(catalog.Surround71), ErrRunning)
	assert.ErrorIs(t, f.engine.SetQuality(catalog.High), ErrRunning)
	assert.ErrorIs(t, f.engine.SetOutputDirectory(t.TempDir()), ErrRunning)

	require.NoError(t, f.engine.Cancel())
	f.engine.Wait()
	assert.Len(t, f.engine.Snapshot().Items, 1)
}

func TestRerunResetsItems(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	f.setOutput(t)
	f.invoker.results["a.wav"] = &ffmpeg.EngineError{ExitCode: 1}

	st := f.run(t)
	require.Equal(t, []Status{Failed, Pending}, statuses(st))

	delete(f.invoker.results, "a.wav")
	st = f.run(t)
	assert.Equal(t, []Status{Completed, Completed}, statuses(st))
	assert.Nil(t, st.LastError)
	assert.Nil(t, st.Items[0].Err)
}

func TestSelectionFlowsIntoJobs(t *testing.T) {
	f := newFixture(t, "a.wav")
	f.setOutput(t)
	require.NoError(t, f.engine.SetFormat(catalog.MasterAudio))
	require.NoError(t, f.engine.SetQuality(catalog.Studio))

	assert.ErrorIs(t, f.engine.SetFormat("9.1"), catalog.ErrUnknownFormat)
	assert.ErrorIs(t, f.engine.SetQuality("lossy"), catalog.ErrUnknownQuality)

	st := f.run(t)
	require.Len(t, f.invoker.jobs, 1)
	job := f.invoker.jobs[0]
	assert.Equal(t, catalog.MasterAudio, job.Format.ID)
	assert.Equal(t, catalog.Studio, job.Quality.ID)
	assert.Equal(t, "a_DTS-MA_96k.dts", filepath.Base(st.Items[0].Output))

	assert.Equal(t, catalog.MasterAudio, f.journal.settings.Format)
	assert.Equal(t, catalog.Studio, f.journal.settings.Quality)
}

func TestSubscribeOrdered(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav", "c.wav")
	f.setOutput(t)

	ch, unsubscribe := f.engine.Subscribe()
	defer unsubscribe()

	first := <-ch
	assert.False(t, first.Running)

	require.NoError(t, f.engine.Start())

	last := first.Seq
	timeout := time.After(5 * time.Second)
	for {
		select {
		case st := <-ch:
			assert.Greater(t, st.Seq, last)
			last = st.Seq
			if !st.Running && st.Phase == PhaseIdle {
				assert.Equal(t, 3, st.Count(Completed))
				return
			}
		case <-timeout:
			t.Fatal("no final snapshot")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	f := newFixture(t)
	ch, unsubscribe := f.engine.Subscribe()
	<-ch
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, f.engine.ClearAll(), "publishing after unsubscribe is safe")
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	st := f.engine.Snapshot()

	require.NoError(t, f.engine.Remove(st.Items[0].ID))
	assert.ErrorIs(t, f.engine.Remove("nope"), ErrNotFound)
	assert.Len(t, f.engine.Snapshot().Items, 1)
	assert.Len(t, f.journal.entries, 1)

	require.NoError(t, f.engine.ClearAll())
	assert.Empty(t, f.engine.Snapshot().Items)
	assert.Empty(t, f.journal.entries)
}

func TestAddFilesCollectsErrors(t *testing.T) {
	f := newFixture(t, "a.wav")
	b := filepath.Join(f.inDir, "b.wav")
	require.NoError(t, os.WriteFile(b, []byte("RIFF"), 0o644))

	added, err := f.engine.AddFiles([]string{
		b,
		filepath.Join(f.inDir, "a.wav"),
		filepath.Join(f.inDir, "missing.wav"),
	})
	require.Len(t, added, 1)
	assert.Equal(t, "b.wav", added[0].Name)
	assert.ErrorIs(t, err, ErrDuplicate)

	var accessErr *resource.AccessError
	assert.True(t, errors.As(err, &accessErr))
}

func TestValidateAndTags(t *testing.T) {
	dir := t.TempDir()
	e, err := New(Config{
		Validate: func(path string) error {
			if filepath.Ext(path) == ".txt" {
				return ffmpeg.ErrInputRejected
			}
			return nil
		},
		Tags: func(path string) (tags.Metadata, error) {
			return tags.Metadata{Title: "Song", Artist: "Band"}, nil
		},
	})
	require.NoError(t, err)

	txt := filepath.Join(dir, "notes.txt")
	wav := filepath.Join(dir, "song.wav")
	require.NoError(t, os.WriteFile(txt, nil, 0o644))
	require.NoError(t, os.WriteFile(wav, nil, 0o644))

	_, err = e.AddFile(txt)
	assert.ErrorIs(t, err, ffmpeg.ErrInputRejected)

	it, err := e.AddFile(wav)
	require.NoError(t, err)
	assert.Equal(t, "Band - Song", it.Metadata.Display())
}

func TestUntaggedMetadataIsDropped(t *testing.T) {
	e, err := New(Config{
		Tags: func(path string) (tags.Metadata, error) {
			return tags.Metadata{FileType: "FLAC"}, nil
		},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "song.flac")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	it, err := e.AddFile(path)
	require.NoError(t, err)
	assert.Equal(t, tags.Metadata{}, it.Metadata)
}

func TestRestoreKeepsBatchUnique(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	entries := append([]Entry(nil), f.journal.entries...)

	require.NoError(t, f.engine.Restore(entries, Settings{}))

	st := f.engine.Snapshot()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "a.wav", st.Items[0].Name)
	assert.Equal(t, "b.wav", st.Items[1].Name)
}

func TestRestore(t *testing.T) {
	f := newFixture(t, "a.wav", "b.wav")
	f.setOutput(t)
	require.NoError(t, f.engine.SetFormat(catalog.Surround71))
	require.NoError(t, os.Remove(filepath.Join(f.inDir, "b.wav")))

	ids := f.engine.Snapshot().Items

	e, err := New(Config{Invoker: f.invoker})
	require.NoError(t, err)
	require.NoError(t, e.Restore(f.journal.entries, f.journal.settings))

	st := e.Snapshot()
	require.Len(t, st.Items, 1, "revoked entry dropped")
	assert.Equal(t, ids[0].ID, st.Items[0].ID)
	assert.Equal(t, catalog.Surround71, st.Format)
	assert.NotEmpty(t, st.Output)

	require.NoError(t, e.Start())
	e.Wait()
	assert.Equal(t, Completed, e.Snapshot().Items[0].Status)
}

func TestNewRejectsUnknownSelection(t *testing.T) {
	_, err := New(Config{Format: "2.0"})
	assert.ErrorIs(t, err, catalog.ErrUnknownFormat)
	_, err = New(Config{Quality: "mp3"})
	assert.ErrorIs(t, err, catalog.ErrUnknownQuality)
}
