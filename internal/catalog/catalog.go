// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package catalog holds the fixed upmix formats and output qualities and
// derives the ffmpeg filter and codec parameters for a selection.

package catalog

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrUnknownFormat  = errors.New("unknown upmix format")
	ErrUnknownQuality = errors.New("unknown output quality")
)

// FormatID identifies an upmix format
type FormatID string

const (
	Surround51  FormatID = "5.1"
	Surround71  FormatID = "7.1"
	MasterAudio FormatID = "dts-ma"
	ObjectBed   FormatID = "atmos"
	Quad        FormatID = "4.0"
)

// QualityID identifies an output quality
type QualityID string

const (
	Standard QualityID = "standard"
	High     QualityID = "high"
	Studio   QualityID = "studio"
	Float    QualityID = "float"
)

// Format describes one upmix target
type Format struct {
	ID       FormatID `json:"id"`
	Name     string   `json:"name"`
	Channels int      `json:"channels"`
	Suffix   string   `json:"suffix"`
	Codec    string   `json:"codec"`
	Ext      string   `json:"ext"`
	layout   string
	mix      []channelMix
	extra    []string
}

// Quality describes sample depth and rate of the output
type Quality struct {
	ID         QualityID `json:"id"`
	Name       string    `json:"name"`
	BitDepth   int       `json:"bit_depth"`
	SampleRate int       `json:"sample_rate"`
	Float      bool      `json:"float"`
	Suffix     string    `json:"suffix"`
}

// Params are the codec arguments for a format/quality pair
type Params struct {
	Codec string
	Ext   string
	Args  []string
}

// channelMix is one output channel as a weighted sum of FL and FR.
type channelMix struct {
	name   string
	fl, fr float64
	direct string
}

func (c channelMix) String() string {
	if c.direct != "" {
		return c.name + "=" + c.direct
	}
	var terms []string
	if c.fl != 0 {
		terms = append(terms, weight(c.fl)+"*FL")
	}
	if c.fr != 0 {
		terms = append(terms, weight(c.fr)+"*FR")
	}
	return c.name + "=" + strings.Join(terms, "+")
}

func weight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

var formats = []Format{
	{
		ID: Surround51, Name: "5.1 Surround", Channels: 6, Suffix: "_5.1", Codec: "flac", Ext: "flac",
		layout: "5.1(side)",
		mix: []channelMix{
			{name: "FL", direct: "FL"},
			{name: "FR", direct: "FR"},
			{name: "FC", fl: 0.5, fr: 0.5},
			{name: "LFE", fl: 0.1, fr: 0.1},
			{name: "SL", fl: 0.5},
			{name: "SR", fr: 0.5},
		},
	},
	{
		ID: Surround71, Name: "7.1 PCM", Channels: 8, Suffix: "_7.1", Codec: "flac", Ext: "flac",
		layout: "7.1",
		mix: []channelMix{
			{name: "FL", direct: "FL"},
			{name: "FR", direct: "FR"},
			{name: "FC", fl: 0.5, fr: 0.5},
			{name: "LFE", fl: 0.1, fr: 0.1},
			{name: "SL", fl: 0.3},
			{name: "SR", fr: 0.3},
			{name: "BL", fl: 0.2},
			{name: "BR", fr: 0.2},
		},
	},
	{
		// 5.1 base with heavier center and LFE
		ID: MasterAudio, Name: "DTS Master Audio", Channels: 6, Suffix: "_DTS-MA", Codec: "dca", Ext: "dts",
		layout: "5.1(side)",
		mix: []channelMix{
			{name: "FL", direct: "FL"},
			{name: "FR", direct: "FR"},
			{name: "FC", fl: 0.6, fr: 0.6},
			{name: "LFE", fl: 0.15, fr: 0.15},
			{name: "SL", fl: 0.4},
			{name: "SR", fr: 0.4},
		},
		extra: []string{"-strict", "-2"},
	},
	{
		// 7.1 bed layer
		ID: ObjectBed, Name: "Atmos", Channels: 8, Suffix: "_Atmos", Codec: "flac", Ext: "flac",
		layout: "7.1",
		mix: []channelMix{
			{name: "FL", direct: "FL"},
			{name: "FR", direct: "FR"},
			{name: "FC", fl: 0.7, fr: 0.7},
			{name: "LFE", fl: 0.2, fr: 0.2},
			{name: "SL", fl: 0.4},
			{name: "SR", fr: 0.4},
			{name: "BL", fl: 0.3},
			{name: "BR", fr: 0.3},
		},
	},
	{
		ID: Quad, Name: "4.0 Quad", Channels: 4, Suffix: "_4.0", Codec: "flac", Ext: "flac",
		layout: "quad",
		mix: []channelMix{
			{name: "FL", direct: "FL"},
			{name: "FR", direct: "FR"},
			{name: "BL", fl: 0.5},
			{name: "BR", fr: 0.5},
		},
	},
}

var qualities = []Quality{
	{ID: Standard, Name: "16-bit / 48 kHz", BitDepth: 16, SampleRate: 48000},
	{ID: High, Name: "24-bit / 48 kHz", BitDepth: 24, SampleRate: 48000, Suffix: "_24bit"},
	{ID: Studio, Name: "24-bit / 96 kHz", BitDepth: 24, SampleRate: 96000, Suffix: "_96k"},
	{ID: Float, Name: "32-bit float / 96 kHz", BitDepth: 32, SampleRate: 96000, Float: true, Suffix: "_f32"},
}

// Formats returns all formats in display order.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// Qualities returns all qualities in display order.
func Qualities() []Quality {
	out := make([]Quality, len(qualities))
	copy(out, qualities)
	return out
}

// LookupFormat finds a format by id.
func LookupFormat(id FormatID) (Format, error) {
	for _, f := range formats {
		if f.ID == id {
			return f, nil
		}
	}
	return Format{}, ErrUnknownFormat
}

// LookupQuality finds a quality by id.
func LookupQuality(id QualityID) (Quality, error) {
	for _, q := range qualities {
		if q.ID == id {
			return q, nil
		}
	}
	return Quality{}, ErrUnknownQuality
}

// FilterExpression returns the pan filter that upmixes the first audio
// stream of input 0 into the format's layout.
func FilterExpression(f Format) string {
	parts := make([]string, 0, len(f.mix)+1)
	parts = append(parts, "[0:a]pan="+f.layout)
	for _, m := range f.mix {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "|")
}

// OutputParameters derives codec, container and sample flags.
func OutputParameters(f Format, q Quality) Params {
	if q.Float {
		// flac and dca have no float sample formats
		return Params{
			Codec: "pcm_f32le",
			Ext:   "wav",
			Args:  []string{"-sample_fmt", "flt", "-ar", strconv.Itoa(q.SampleRate)},
		}
	}

	p := Params{Codec: f.Codec, Ext: f.Ext}
	p.Args = append(p.Args, f.extra...)
	p.Args = append(p.Args, "-sample_fmt", sampleFormat(f, q), "-ar", strconv.Itoa(q.SampleRate))
	return p
}

func sampleFormat(f Format, q Quality) string {
	if f.Codec == "dca" || q.BitDepth > 16 {
		return "s32"
	}
	return "s16"
}

// OutputName builds the output file name for an input path.
func OutputName(input string, f Format, q Quality) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + f.Suffix + q.Suffix + "." + OutputParameters(f, q).Ext
}
