// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package process

import "time"

// Parser consumes the engine's stderr. Parse returns a non-zero value when
// the line carried progress information.
type Parser interface {
	Parse(line string) uint64
	ResetStats()
	ResetLog()
	Log() []Line
}

// Line is a timestamped stderr line
type Line struct {
	Timestamp time.Time
	Data      string
}
