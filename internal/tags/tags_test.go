// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package tags

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flacWithComments builds a FLAC header holding a single vorbis comment
// block, which is all the tag reader looks at.
func flacWithComments(comments ...string) []byte {
	var block bytes.Buffer
	vendor := "upmix test"
	binary.Write(&block, binary.LittleEndian, uint32(len(vendor)))
	block.WriteString(vendor)
	binary.Write(&block, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		binary.Write(&block, binary.LittleEndian, uint32(len(c)))
		block.WriteString(c)
	}

	var out bytes.Buffer
	out.WriteString("fLaC")
	n := block.Len()
	out.Write([]byte{0x80 | 4, byte(n >> 16), byte(n >> 8), byte(n)})
	out.Write(block.Bytes())
	return out.Bytes()
}

func TestReadFLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.flac")
	data := flacWithComments("TITLE=Blue in Green", "ARTIST=Miles Davis", "ALBUM=Kind of Blue", "TRACKNUMBER=3")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", m.Title)
	assert.Equal(t, "Miles Davis", m.Artist)
	assert.Equal(t, "Kind of Blue", m.Album)
	assert.Equal(t, 3, m.Track)
	assert.Equal(t, "FLAC", m.FileType)
	assert.Equal(t, "Miles Davis - Blue in Green", m.Display())
	assert.False(t, m.Empty())
}

func TestReadUntagged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not an audio file at all"), 0o644))

	m, err := Read(path)
	assert.Error(t, err)
	assert.True(t, m.Empty())
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "gone.flac"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("a.WAV"))
	assert.True(t, IsAudioFile("/x/y/track.flac"))
	assert.False(t, IsAudioFile("cover.jpg"))
	assert.False(t, IsAudioFile("README"))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "Solo", Metadata{Title: "Solo"}.Display())
	assert.Equal(t, "", Metadata{Artist: "Nobody"}.Display())
}
