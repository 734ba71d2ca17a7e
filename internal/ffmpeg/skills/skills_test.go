// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const versionOutput = `ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers
built with gcc 13 (Ubuntu 13.2.0-23ubuntu3)
configuration: --prefix=/usr --enable-gpl
libavutil      58. 29.100 / 58. 29.100
libavcodec     60. 31.102 / 60. 31.102
`

const codecsOutput = `Codecs:
 D..... = Decoding supported
 -------
 DEAIL. flac                 FLAC (Free Lossless Audio Codec)
 DEAIL. dts                  DCA (DTS Coherent Acoustics) (decoders: dca ) (encoders: dca )
 DEAI.S pcm_f32le            PCM 32-bit floating point little-endian
 DEV.L. h264                 H.264 / AVC (decoders: h264 h264_v4l2m2m ) (encoders: libx264 )
 D.AIL. mp3                  MP3 (MPEG audio layer 3) (decoders: mp3float mp3 )
`

const filtersOutput = `Filters:
  T.. = Timeline support
 ... pan               A->A       Remix channels with coefficients (panning).
 T.C volume            A->A       Change input volume.
`

const formatsOutput = `File formats:
 D. = Demuxing supported
 --
 DE flac            raw FLAC
  E dts             raw DTS
 DE wav             WAV / WAVE (Waveform Audio)
 D  mov,mp4,m4a     QuickTime / MOV
`

const formatsOutputDevices = `File formats:
 D.. = Demuxing supported
 .E. = Muxing supported
 ..d = Is a device
 ---
 D d alsa            ALSA audio output
  Ed alsa            ALSA audio output
 DE  flac            raw FLAC
  E  eac3            raw E-AC-3
 DE  wav             WAV / WAVE (Waveform Audio)
 D   mov,mp4,m4a     QuickTime / MOV
`

func TestParseVersion(t *testing.T) {
	info := parseVersion([]byte(versionOutput))
	assert.Equal(t, "6.1.1", info.Version)
	assert.Equal(t, "gcc 13 (Ubuntu 13.2.0-23ubuntu3)", info.Compiler)
	assert.Equal(t, "--prefix=/usr --enable-gpl", info.Configuration)
	require.Len(t, info.Libraries, 2)
	assert.Equal(t, "libavutil", info.Libraries[0].Name)
}

func TestParseCodecsAudioOnly(t *testing.T) {
	s := Skills{}
	s.Codecs.Audio = parseCodecs([]byte(codecsOutput))

	require.Len(t, s.Codecs.Audio, 4)
	assert.True(t, s.HasEncoder("flac"))
	assert.True(t, s.HasEncoder("dca"))
	assert.True(t, s.HasEncoder("pcm_f32le"))
	assert.False(t, s.HasEncoder("mp3"), "mp3 is decode only here")
	assert.False(t, s.HasEncoder("libx264"), "video codecs are skipped")
}

func TestParseFilters(t *testing.T) {
	s := Skills{Filters: parseFilters([]byte(filtersOutput))}
	assert.True(t, s.HasFilter("pan"))
	assert.True(t, s.HasFilter("volume"))
	assert.False(t, s.HasFilter("loudnorm"))
}

func TestParseFormats(t *testing.T) {
	s := Skills{}
	s.Formats.Demuxers, s.Formats.Muxers = parseFormats([]byte(formatsOutput))

	assert.True(t, s.HasMuxer("flac"))
	assert.True(t, s.HasMuxer("dts"))
	assert.True(t, s.HasMuxer("wav"))
	assert.False(t, s.HasMuxer("mp4"))
	assert.Len(t, s.Formats.Demuxers, 5)
}

func TestParseFormatsDeviceColumn(t *testing.T) {
	s := Skills{}
	s.Formats.Demuxers, s.Formats.Muxers = parseFormats([]byte(formatsOutputDevices))

	assert.True(t, s.HasMuxer("flac"))
	assert.True(t, s.HasMuxer("wav"))
	assert.True(t, s.HasMuxer("eac3"))
	assert.True(t, s.HasMuxer("alsa"))
	assert.False(t, s.HasMuxer("mov"))

	var demuxers []string
	for _, f := range s.Formats.Demuxers {
		demuxers = append(demuxers, f.Id)
	}
	assert.Equal(t, []string{"alsa", "flac", "wav", "mov", "mp4", "m4a"}, demuxers)
	assert.Equal(t, "raw FLAC", s.Formats.Muxers[1].Name)
}
