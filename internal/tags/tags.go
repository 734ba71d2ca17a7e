// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具
//
// Package tags reads display metadata from audio files.

package tags

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is the subset of tag data shown next to a batch item
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Year     int    `json:"year,omitempty"`
	Track    int    `json:"track,omitempty"`
	Format   string `json:"format,omitempty"`
	FileType string `json:"file_type,omitempty"`
}

// Empty reports whether nothing useful was found.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Artist == "" && m.Album == ""
}

// Display is "Artist - Title" when both are known, the title alone otherwise.
func (m Metadata) Display() string {
	switch {
	case m.Artist != "" && m.Title != "":
		return m.Artist + " - " + m.Title
	default:
		return m.Title
	}
}

// audioExtensions are the inputs worth handing to ffmpeg
var audioExtensions = map[string]bool{
	".wav":  true,
	".wave": true,
	".flac": true,
	".aiff": true,
	".aif":  true,
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wma":  true,
	".ape":  true,
	".wv":   true,
	".alac": true,
}

// IsAudioFile checks the extension of a file name.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// Read extracts tags from the file at path.
func Read(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	track, _ := m.Track()
	return Metadata{
		Title:    strings.TrimSpace(m.Title()),
		Artist:   strings.TrimSpace(m.Artist()),
		Album:    strings.TrimSpace(m.Album()),
		Genre:    strings.TrimSpace(m.Genre()),
		Year:     m.Year(),
		Track:    track,
		Format:   string(m.Format()),
		FileType: string(m.FileType()),
	}, nil
}
