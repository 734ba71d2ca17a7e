// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg/parse"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg/skills"
	"github.com/ZSC714725/upmixmanager/internal/logger"
	"github.com/ZSC714725/upmixmanager/internal/process"
)

// FFmpeg runs one upmix invocation at a time and knows what the binary can do
type FFmpeg interface {
	Binary() string
	Run(ctx context.Context, job Job) error
	Terminate() error
	Progress() Live
	ValidateInput(path string) error
	Supports(f catalog.Format, q catalog.Quality) error
	Skills() skills.Skills
	ReloadSkills() error
}

// Job is one input file to upmix into one output file
type Job struct {
	Input   string
	Output  string
	Format  catalog.Format
	Quality catalog.Quality
}

// Live is the progress of the invocation in flight
type Live struct {
	Running  bool           `json:"running"`
	Pid      int            `json:"pid,omitempty"`
	Fraction float64        `json:"fraction"`
	Progress parse.Progress `json:"progress"`
	CPU      float64        `json:"cpu_percent"`
	Memory   uint64         `json:"memory_bytes"`
}

// Config for FFmpeg
type Config struct {
	Binary         string
	MaxLogLines    int
	ValidatorInput Validator
	Logger         logger.Logger
	// NewMonitor creates the resource sampler for each child; defaults to gopsutil.
	NewMonitor func() process.Monitor
}

type ffmpeg struct {
	binary      string
	validatorIn Validator
	logLines    int
	newMonitor  func() process.Monitor
	logger      logger.Logger

	skills     skills.Skills
	skillsOK   bool
	skillsLock sync.RWMutex

	lock       sync.Mutex
	current    process.Process
	parser     parse.Parser
	terminated bool
}

// New resolves the binary once. A binary whose capabilities can't be probed
// is still usable; Supports then accepts every selection.
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineMissing, config.Binary, err)
	}

	f := &ffmpeg{
		binary:     binary,
		logLines:   config.MaxLogLines,
		newMonitor: config.NewMonitor,
		logger:     config.Logger,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}
	if f.newMonitor == nil {
		f.newMonitor = process.NewSysMonitor
	}

	if config.ValidatorInput != nil {
		f.validatorIn = config.ValidatorInput
	} else {
		f.validatorIn, _ = NewValidator(nil, nil)
	}

	if err := f.ReloadSkills(); err != nil {
		f.logger.Warn("ffmpeg capabilities unknown: %v", err)
	}

	return f, nil
}

// BuildArgs returns the argument vector for a job, without the binary.
func BuildArgs(job Job) []string {
	params := catalog.OutputParameters(job.Format, job.Quality)

	args := []string{
		"-i", job.Input,
		"-vn",
		"-filter_complex", catalog.FilterExpression(job.Format),
		"-c:a", params.Codec,
	}
	args = append(args, params.Args...)
	args = append(args, "-y", job.Output)
	return args
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

// Run blocks until the child exits. A child that dies after Terminate or
// after ctx is done yields ErrCancelled, any other failure an *EngineError.
func (f *ffmpeg) Run(ctx context.Context, job Job) error {
	parser := parse.New(parse.Config{LogLines: f.logLines})
	args := BuildArgs(job)

	proc, err := process.New(process.Config{
		Binary:  f.binary,
		Args:    args,
		Parser:  parser,
		Monitor: f.newMonitor(),
		Logger:  f.logger,
		OnStart: func(pid int) {
			f.logger.Debug("ffmpeg pid %d upmixing %s", pid, job.Input)
		},
		OnStateChange: func(from, to string) {
			f.logger.Debug("ffmpeg %s: %s -> %s", filepath.Base(job.Input), from, to)
		},
	})
	if err != nil {
		return err
	}

	f.lock.Lock()
	if f.current != nil {
		f.lock.Unlock()
		return ErrBusy
	}
	f.current = proc
	f.parser = parser
	f.terminated = false
	f.lock.Unlock()

	defer func() {
		f.lock.Lock()
		f.current = nil
		f.lock.Unlock()
	}()

	if ctx.Err() != nil {
		return ErrCancelled
	}

	err = proc.Run(ctx)

	f.lock.Lock()
	terminated := f.terminated
	f.lock.Unlock()

	if err == nil {
		return nil
	}
	if terminated || ctx.Err() != nil {
		return ErrCancelled
	}

	code := -1
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode
	}
	engineErr := &EngineError{ExitCode: code, Stderr: parser.Text(), Err: err}
	f.logger.Error("upmix of %s failed: %v", job.Input, engineErr)
	return engineErr
}

// Terminate kills the child in flight. It is a no-op when idle.
func (f *ffmpeg) Terminate() error {
	f.lock.Lock()
	proc := f.current
	if proc != nil {
		f.terminated = true
	}
	f.lock.Unlock()

	if proc == nil {
		return nil
	}
	return proc.Kill()
}

func (f *ffmpeg) Progress() Live {
	f.lock.Lock()
	proc := f.current
	parser := f.parser
	f.lock.Unlock()

	if proc == nil {
		return Live{}
	}

	status := proc.Status()
	live := Live{
		Running: status.State == "running",
		Pid:     status.Pid,
		CPU:     status.CPU,
		Memory:  status.Memory,
	}
	if parser != nil {
		live.Progress = parser.Progress()
		live.Fraction = live.Progress.Fraction()
	}
	return live
}

func (f *ffmpeg) ValidateInput(path string) error {
	return f.validatorIn.Validate(path)
}

// Supports checks that the encoder, container and pan filter for the
// selection are compiled into the binary.
func (f *ffmpeg) Supports(format catalog.Format, quality catalog.Quality) error {
	f.skillsLock.RLock()
	s, ok := f.skills, f.skillsOK
	f.skillsLock.RUnlock()

	if !ok {
		return nil
	}

	params := catalog.OutputParameters(format, quality)
	if !s.HasFilter("pan") {
		return fmt.Errorf("%w: filter pan", ErrUnsupported)
	}
	if !s.HasEncoder(params.Codec) {
		return fmt.Errorf("%w: encoder %s", ErrUnsupported, params.Codec)
	}
	if !s.HasMuxer(params.Ext) {
		return fmt.Errorf("%w: muxer %s", ErrUnsupported, params.Ext)
	}
	return nil
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsOK = true
	f.skillsLock.Unlock()
	return nil
}
