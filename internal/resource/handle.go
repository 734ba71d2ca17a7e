// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package resource wraps filesystem locations in handles that must be
// activated before use and deactivated afterwards.

package resource

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ZSC714725/upmixmanager/internal/logger"
)

// Kind says whether a handle points at a file or a directory
type Kind int

const (
	File Kind = iota
	Dir
)

// Handle is a re-resolvable reference to a file or directory
type Handle struct {
	bookmarker Bookmarker
	token      []byte
	kind       Kind
	logger     logger.Logger

	mu     sync.Mutex
	path   string
	stale  bool
	active int
}

// New grants access to path and returns a handle for it.
func New(b Bookmarker, path string, kind Kind, log logger.Logger) (*Handle, error) {
	token, err := b.Persist(path)
	if err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}
	h, err := FromToken(b, token, kind, log)
	if err != nil {
		return nil, err
	}
	if err := h.checkKind(h.path); err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}
	return h, nil
}

// FromToken rebuilds a handle from a token persisted earlier. A stale
// grant is logged and accepted.
func FromToken(b Bookmarker, token []byte, kind Kind, log logger.Logger) (*Handle, error) {
	if log == nil {
		log = logger.Nop()
	}

	path, stale, err := b.Resolve(token)
	if err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}

	h := &Handle{
		bookmarker: b,
		token:      append([]byte(nil), token...),
		kind:       kind,
		logger:     log,
		path:       path,
		stale:      stale,
	}
	if stale {
		log.Warn("bookmark for %s is stale, continuing with best effort", filepath.Base(path))
	}
	return h, nil
}

// Path returns the last resolved path.
func (h *Handle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

// Name is the display name of the resource.
func (h *Handle) Name() string {
	return filepath.Base(h.Path())
}

// Token returns the persistent token.
func (h *Handle) Token() []byte {
	return append([]byte(nil), h.token...)
}

// Stale reports whether the last resolution flagged the grant as outdated.
func (h *Handle) Stale() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stale
}

// Active returns the number of unmatched activations.
func (h *Handle) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Activate re-resolves the token, checks the path is usable and returns
// it. Every successful call must be paired with Deactivate.
func (h *Handle) Activate() (string, error) {
	path, stale, err := h.bookmarker.Resolve(h.token)
	if err != nil {
		return "", &AccessError{Path: h.Path(), Err: err}
	}

	h.mu.Lock()
	if stale && !h.stale {
		h.logger.Warn("bookmark for %s became stale, continuing with best effort", filepath.Base(path))
	}
	h.path = path
	h.stale = stale
	h.mu.Unlock()

	if err := h.checkKind(path); err != nil {
		return "", &AccessError{Path: path, Err: err}
	}
	if err := h.probe(path); err != nil {
		return "", &AccessError{Path: path, Err: err}
	}

	h.mu.Lock()
	h.active++
	h.mu.Unlock()

	return path, nil
}

// Deactivate releases one activation.
func (h *Handle) Deactivate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active == 0 {
		h.logger.Error("deactivate without activate on %s", filepath.Base(h.path))
		return ErrNotActive
	}
	h.active--
	return nil
}

// Scope activates the handle for the duration of fn.
func (h *Handle) Scope(fn func(path string) error) error {
	path, err := h.Activate()
	if err != nil {
		return err
	}
	defer h.Deactivate()

	return fn(path)
}

func (h *Handle) checkKind(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if h.kind == Dir && !fi.IsDir() {
		return ErrNotDir
	}
	if h.kind == File && fi.IsDir() {
		return ErrIsDir
	}
	return nil
}

// probe verifies files are readable and directories writable.
func (h *Handle) probe(path string) error {
	if h.kind == File {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		return f.Close()
	}

	f, err := os.CreateTemp(path, ".upmix-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
