// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEngineMissing = errors.New("ffmpeg executable not found")
	ErrCancelled     = errors.New("upmix operation was cancelled")
	ErrBusy          = errors.New("an ffmpeg process is already running")
	ErrUnsupported   = errors.New("not supported by this ffmpeg build")
	ErrInputRejected = errors.New("input rejected by validator")
)

// EngineError is a nonzero ffmpeg exit that was not caused by cancellation
type EngineError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EngineError) Error() string {
	if reason := e.Reason(); reason != "" {
		return fmt.Sprintf("ffmpeg failed (exit %d): %s", e.ExitCode, reason)
	}
	return fmt.Sprintf("ffmpeg failed (exit %d)", e.ExitCode)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Pre-compiled patterns for the most common fatal stderr messages. Checked
// in order; the first match names the failure.
var reasons = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)Unknown encoder|Encoder not found`), "encoder not available"},
	{regexp.MustCompile(`(?i)No such filter|Error (initializing|configuring) (complex )?filter`), "filter graph rejected"},
	{regexp.MustCompile(`(?i)Invalid data found when processing input|could not find codec parameters`), "unreadable input"},
	{regexp.MustCompile(`(?i)does not contain any stream|Stream map .* matches no streams|matches no streams`), "no audio stream"},
	{regexp.MustCompile(`(?i)Permission denied`), "permission denied"},
	{regexp.MustCompile(`(?i)No space left on device`), "no space left on device"},
}

// Reason returns a short classification of the stderr text, or the last
// non-empty stderr line when no known pattern matches.
func (e *EngineError) Reason() string {
	for _, r := range reasons {
		if r.re.MatchString(e.Stderr) {
			return r.reason
		}
	}
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
