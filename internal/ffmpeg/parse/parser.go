// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package parse

import (
	"container/ring"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/upmixmanager/internal/process"
)

// Progress holds FFmpeg progress info parsed from stderr
type Progress struct {
	Duration float64 `json:"duration_seconds"`
	Time     float64 `json:"time_seconds"`
	Size     uint64  `json:"size_bytes"`
	Bitrate  float64 `json:"bitrate_kbits"`
	Speed    float64 `json:"speed"`
}

// Fraction is Time/Duration clamped to [0,1], zero while the duration is unknown.
func (p Progress) Fraction() float64 {
	if p.Duration <= 0 {
		return 0
	}
	f := p.Time / p.Duration
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// Parser implements process.Parser and parses FFmpeg stderr
type Parser interface {
	process.Parser
	Progress() Progress
	Text() string
}

type parser struct {
	re struct {
		duration *regexp.Regexp
		time     *regexp.Regexp
		size     *regexp.Regexp
		bitrate  *regexp.Regexp
		speed    *regexp.Regexp
	}

	log      *ring.Ring
	logLines int

	progress Progress
	lock     sync.RWMutex
}

// Config for the parser
type Config struct {
	LogLines int
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		logLines: config.LogLines,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.re.duration = regexp.MustCompile(`Duration:\s*([0-9]+):([0-9]{2}):([0-9]{2})\.([0-9]+)`)
	p.re.time = regexp.MustCompile(`time=\s*([0-9]+):([0-9]{2}):([0-9]{2})\.([0-9]+)`)
	p.re.size = regexp.MustCompile(`size=\s*([0-9]+)(kB|KiB)`)
	p.re.bitrate = regexp.MustCompile(`bitrate=\s*([0-9\.]+)kbits/s`)
	p.re.speed = regexp.MustCompile(`speed=\s*([0-9\.]+)x`)

	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) uint64 {
	now := time.Now()

	p.lock.Lock()
	defer p.lock.Unlock()

	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()

	if p.progress.Duration == 0 {
		if m := p.re.duration.FindStringSubmatch(line); m != nil {
			p.progress.Duration = clock(m)
			return 0
		}
	}

	if !strings.Contains(line, "time=") {
		return 0
	}

	if m := p.re.time.FindStringSubmatch(line); m != nil {
		p.progress.Time = clock(m)
	}
	if m := p.re.size.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Size = x * 1024
		}
	}
	if m := p.re.bitrate.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Bitrate = x
		}
	}
	if m := p.re.speed.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Speed = x
		}
	}

	return 1
}

// clock converts HH:MM:SS.frac submatches to seconds.
func clock(m []string) float64 {
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	frac := 0.0
	if len(m) > 4 && len(m[4]) > 0 {
		if x, err := strconv.ParseUint(m[4], 10, 64); err == nil {
			div := 1.0
			for range m[4] {
				div *= 10
			}
			frac = float64(x) / div
		}
	}
	return float64(h*3600+mm*60+s) + frac
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.progress = Progress{}
}

func (p *parser) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.log = ring.New(p.logLines)
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

// Text returns the captured lines joined by newlines, oldest first.
func (p *parser) Text() string {
	lines := p.Log()
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Data
	}
	return strings.Join(parts, "\n")
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}
