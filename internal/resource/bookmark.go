// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Bookmarker turns paths into persistent tokens and back
type Bookmarker interface {
	Persist(path string) ([]byte, error)
	Resolve(token []byte) (path string, stale bool, err error)
}

type fileToken struct {
	Path    string    `json:"path"`
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Created time.Time `json:"created"`
}

// FileBookmarker grants plain filesystem paths. A token records what the
// path looked like when granted; a file whose size or modification time
// changed since is reported stale, a path that vanished or changed kind is
// revoked.
type FileBookmarker struct{}

// NewFileBookmarker creates a FileBookmarker
func NewFileBookmarker() *FileBookmarker {
	return &FileBookmarker{}
}

func (b *FileBookmarker) Persist(path string) ([]byte, error) {
	abs, err := Canonical(path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	tok := fileToken{
		Path:    abs,
		Dir:     fi.IsDir(),
		Created: time.Now().UTC(),
	}
	if !tok.Dir {
		tok.Size = fi.Size()
		tok.ModTime = fi.ModTime().UTC()
	}

	return json.Marshal(tok)
}

func (b *FileBookmarker) Resolve(token []byte) (string, bool, error) {
	var tok fileToken
	if err := json.Unmarshal(token, &tok); err != nil || tok.Path == "" {
		return "", false, ErrInvalidToken
	}

	fi, err := os.Stat(tok.Path)
	if err != nil {
		return tok.Path, false, fmt.Errorf("%w: %v", ErrRevoked, err)
	}
	if fi.IsDir() != tok.Dir {
		return tok.Path, false, fmt.Errorf("%w: %s changed kind", ErrRevoked, tok.Path)
	}

	stale := false
	if !tok.Dir {
		stale = fi.Size() != tok.Size || !fi.ModTime().UTC().Equal(tok.ModTime)
	}
	return tok.Path, stale, nil
}

// Canonical returns the absolute, symlink-free form of path. It is the key
// used to detect duplicate resources.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}
