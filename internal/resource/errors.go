// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package resource

import (
	"errors"
	"fmt"
)

var (
	ErrRevoked      = errors.New("resource grant revoked")
	ErrInvalidToken = errors.New("invalid resource token")
	ErrNotActive    = errors.New("resource is not active")
	ErrNotDir       = errors.New("not a directory")
	ErrIsDir        = errors.New("is a directory")
)

// AccessError reports that a handle could not be activated
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("could not access %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
