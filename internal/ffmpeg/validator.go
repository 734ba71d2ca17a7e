// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether a path may be added as an upmix input
type Validator interface {
	Validate(path string) error
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator creates a new Validator. Empty expressions are ignored. A
// path matching any block expression is rejected; when allow expressions
// are given, a path must match at least one of them.
func NewValidator(allow, block []string) (Validator, error) {
	v := &validator{}

	var err error
	if v.allow, err = compile("allow", allow); err != nil {
		return nil, err
	}
	if v.block, err = compile("block", block); err != nil {
		return nil, err
	}

	return v, nil
}

func compile(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *validator) Validate(path string) error {
	for _, e := range v.block {
		if e.MatchString(path) {
			return fmt.Errorf("%w: %s matches %s", ErrInputRejected, path, e)
		}
	}
	if len(v.allow) == 0 {
		return nil
	}
	for _, e := range v.allow {
		if e.MatchString(path) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s matches no allow expression", ErrInputRejected, path)
}
