// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package batch

import (
	"errors"

	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
)

var (
	ErrRunning       = errors.New("an upmix run is in progress")
	ErrNotRunning    = errors.New("no upmix run in progress")
	ErrEmptyBatch    = errors.New("no files in batch")
	ErrNoOutput      = errors.New("please select an output directory first")
	ErrDuplicate     = errors.New("file already in batch")
	ErrNotFound      = errors.New("item not found")
	ErrEngineMissing = ffmpeg.ErrEngineMissing
)

// ErrorKind tags an ItemError
type ErrorKind string

const (
	KindStartup   ErrorKind = "startup"
	KindAccess    ErrorKind = "access"
	KindEngine    ErrorKind = "engine"
	KindCancelled ErrorKind = "cancelled"
)

// ItemError is a human readable failure plus its kind
type ItemError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// Detail holds the captured ffmpeg stderr for engine failures.
	Detail string `json:"detail,omitempty"`
}

func (e *ItemError) Error() string {
	return e.Message
}

func (e *ItemError) clone() *ItemError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
