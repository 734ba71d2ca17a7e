// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Codec represents a codec with encoders and decoders
type Codec struct {
	Id       string
	Name     string
	Encoders []string
	Decoders []string
}

// Format represents a supported container format
type Format struct {
	Id   string
	Name string
}

// Filter represents a supported filter
type Filter struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

type ffmpegInfo struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of FFmpeg relevant to audio upmixing
type Skills struct {
	FFmpeg  ffmpegInfo
	Filters []Filter
	Codecs  struct {
		Audio []Codec
	}
	Formats struct {
		Demuxers []Format
		Muxers   []Format
	}
}

// New returns all skills that FFmpeg provides
func New(binary string) (Skills, error) {
	c := Skills{}

	ff, err := getVersion(binary)
	if ff.Version == "" || err != nil {
		if err != nil {
			return Skills{}, fmt.Errorf("can't parse ffmpeg version: %w", err)
		}
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}
	c.FFmpeg = ff

	c.Filters = parseFilters(output(binary, "-filters"))
	c.Codecs.Audio = parseCodecs(output(binary, "-codecs"))
	c.Formats.Demuxers, c.Formats.Muxers = parseFormats(output(binary, "-formats"))

	return c, nil
}

// HasEncoder reports whether an audio encoder with this name is compiled in.
func (s Skills) HasEncoder(name string) bool {
	for _, c := range s.Codecs.Audio {
		for _, e := range c.Encoders {
			if e == name {
				return true
			}
		}
	}
	return false
}

// HasFilter reports whether the filter is available.
func (s Skills) HasFilter(name string) bool {
	for _, f := range s.Filters {
		if f.Id == name {
			return true
		}
	}
	return false
}

// HasMuxer reports whether the container can be written.
func (s Skills) HasMuxer(name string) bool {
	for _, f := range s.Formats.Muxers {
		if f.Id == name {
			return true
		}
	}
	return false
}

func output(binary string, arg string) []byte {
	cmd := exec.Command(binary, "-hide_banner", arg)
	cmd.Env = []string{}
	stdout, _ := cmd.Output()
	return stdout
}

func getVersion(binary string) (ffmpegInfo, error) {
	cmd := exec.Command(binary, "-version")
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ffmpegInfo{}, err
	}
	return parseVersion(out), nil
}

func parseVersion(data []byte) ffmpegInfo {
	f := ffmpegInfo{}
	reVersion := regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler := regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration := regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary := regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func parseFilters(data []byte) []Filter {
	var filters []Filter
	re := regexp.MustCompile(`^\s[TSC.]{3} ([0-9A-Za-z_]+)\s+(?:.*?)\s+(.*)?$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if m := re.FindStringSubmatch(line); m != nil {
			filters = append(filters, Filter{Id: m[1], Name: m[2]})
		}
	}
	return filters
}

// parseCodecs keeps audio codecs only.
func parseCodecs(data []byte) []Codec {
	var codecs []Codec
	re := regexp.MustCompile(`^\s([D.])([E.])([VASDT]).{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:([^\)]+)\))?$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil || m[3] != "A" {
			continue
		}
		c := Codec{Id: m[4], Name: strings.TrimSpace(m[5])}
		if m[1] == "D" {
			if len(m[6]) == 0 {
				c.Decoders = []string{m[4]}
			} else {
				c.Decoders = strings.Fields(m[6])
			}
		}
		if m[2] == "E" {
			if len(m[7]) == 0 {
				c.Encoders = []string{m[4]}
			} else {
				c.Encoders = strings.Fields(m[7])
			}
		}
		codecs = append(codecs, c)
	}
	return codecs
}

// parseFormats reads both the two column layout (" DE flac") and the one
// with a device column (" DE  flac", " D d alsa").
func parseFormats(data []byte) (demuxers, muxers []Format) {
	re := regexp.MustCompile(`^\s([D ])([E ])[d ]?\s+([0-9A-Za-z_,]+)\s+(.*?)$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		for _, id := range strings.Split(m[3], ",") {
			format := Format{Id: id, Name: m[4]}
			if m[1] == "D" {
				demuxers = append(demuxers, format)
			}
			if m[2] == "E" {
				muxers = append(muxers, format)
			}
		}
	}
	return demuxers, muxers
}
