// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package process wraps exec.Cmd for running one engine invocation.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/ZSC714725/upmixmanager/internal/logger"
)

var (
	ErrAlreadyStarted = errors.New("process already started")
	ErrNoBinary       = errors.New("no valid binary given")
)

// Process is a single run of an external binary
type Process interface {
	Run(ctx context.Context) error
	Kill() error
	Status() Status
}

// Config for a process
type Config struct {
	Binary        string
	Args          []string
	Parser        Parser
	Monitor       Monitor
	OnStart       func(pid int)
	OnStateChange func(from, to string)
	Logger        logger.Logger
}

// Status of a process
type Status struct {
	State    string
	Pid      int
	ExitCode int
	Duration time.Duration
	Time     time.Time
	CPU      float64
	Memory   uint64
}

// ExitError is returned by Run when the binary did not exit cleanly.
type ExitError struct {
	State    string
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	if e.State == stateKilled.String() {
		return fmt.Sprintf("process killed: %v", e.Err)
	}
	return fmt.Sprintf("process exited with code %d", e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type stateType string

const (
	stateIdle     stateType = "idle"
	stateStarting stateType = "starting"
	stateRunning  stateType = "running"
	stateFinished stateType = "finished"
	stateFailed   stateType = "failed"
	stateKilled   stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning
}

type process struct {
	binary string
	args   []string
	parser Parser
	mon    Monitor
	logger logger.Logger

	cmd  *exec.Cmd
	lock sync.Mutex

	killed   bool
	exitCode int

	state struct {
		state stateType
		time  time.Time
		lock  sync.Mutex
	}
	callbacks struct {
		onStart       func(pid int)
		onStateChange func(from, to string)
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary: config.Binary,
		args:   config.Args,
		parser: config.Parser,
		mon:    config.Monitor,
		logger: config.Logger,
	}

	if len(p.binary) == 0 {
		return nil, ErrNoBinary
	}
	if p.parser == nil {
		p.parser = &nullParser{}
	}
	if p.mon == nil {
		p.mon = NewNullMonitor()
	}
	if p.logger == nil {
		p.logger = logger.Nop()
	}

	p.callbacks.onStart = config.OnStart
	p.callbacks.onStateChange = config.OnStateChange
	p.state.state = stateIdle
	p.state.time = time.Now()

	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prev := p.state.state
	ok := false

	switch prev {
	case stateIdle:
		ok = state == stateStarting
	case stateStarting:
		ok = state == stateRunning || state == stateFailed || state == stateKilled
	case stateRunning:
		ok = state == stateFinished || state == stateFailed || state == stateKilled
	}

	if !ok {
		return fmt.Errorf("can't change from %s to %s", prev, state)
	}

	p.state.state = state
	p.state.time = time.Now()
	if p.callbacks.onStateChange != nil {
		p.callbacks.onStateChange(prev.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) Status() Status {
	cpu, memory := p.mon.Current()

	p.state.lock.Lock()
	s := Status{
		State:    p.state.state.String(),
		Duration: time.Since(p.state.time),
		Time:     p.state.time,
		CPU:      cpu,
		Memory:   memory,
	}
	p.state.lock.Unlock()

	p.lock.Lock()
	if p.cmd != nil && p.cmd.Process != nil {
		s.Pid = p.cmd.Process.Pid
	}
	s.ExitCode = p.exitCode
	p.lock.Unlock()

	return s
}

// Run starts the binary and blocks until it exits. stderr is fed to the
// parser line by line; stdout is discarded.
func (p *process) Run(ctx context.Context) error {
	if err := p.setState(stateStarting); err != nil {
		return ErrAlreadyStarted
	}

	p.lock.Lock()
	p.cmd = exec.CommandContext(ctx, p.binary, p.args...)
	p.cmd.Env = []string{}
	stderr, err := p.cmd.StderrPipe()
	if err == nil {
		err = p.cmd.Start()
	}
	if err != nil {
		p.lock.Unlock()
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
		return err
	}
	pid := p.cmd.Process.Pid
	killed := p.killed
	p.lock.Unlock()

	if killed {
		p.cmd.Process.Kill()
	}

	p.mon.Start(pid)
	p.setState(stateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, pid)
	if p.callbacks.onStart != nil {
		p.callbacks.onStart(pid)
	}

	p.reader(stderr)
	return p.waiter(ctx)
}

func (p *process) reader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	p.parser.ResetStats()
	p.parser.ResetLog()

	for scanner.Scan() {
		p.parser.Parse(scanner.Text())
	}
	// keep draining so the child never blocks on a full pipe
	io.Copy(io.Discard, r)
}

func (p *process) waiter(ctx context.Context) error {
	err := p.cmd.Wait()
	p.mon.Stop()

	p.lock.Lock()
	killed := p.killed || ctx.Err() != nil
	p.lock.Unlock()

	if err == nil {
		p.setState(stateFinished)
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Exited() {
			code = status.ExitStatus()
		} else {
			killed = true
		}
	}

	p.lock.Lock()
	p.exitCode = code
	p.lock.Unlock()

	state := stateFailed
	if killed {
		state = stateKilled
	}
	p.setState(state)

	return &ExitError{State: state.String(), ExitCode: code, Err: err}
}

// Kill terminates the process immediately. Killing a process that has not
// started yet makes it die right after it starts.
func (p *process) Kill() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.killed = true
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if !p.getState().IsRunning() {
		return nil
	}

	err := p.cmd.Process.Kill()
	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nullParser struct{}

func (p *nullParser) Parse(line string) uint64 { return 1 }
func (p *nullParser) ResetStats()              {}
func (p *nullParser) ResetLog()                {}
func (p *nullParser) Log() []Line              { return nil }
