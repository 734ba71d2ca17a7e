// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package api

import (
	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg/skills"
)

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version       string          `json:"version"`
		Compiler      string          `json:"compiler"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	Filters []SkillsItem  `json:"filter"`
	Codecs  []SkillsCodec `json:"codecs"`
	Formats struct {
		Demuxers []SkillsItem `json:"demuxers"`
		Muxers   []SkillsItem `json:"muxers"`
	} `json:"formats"`

	// Upmix says for every format/quality pair whether this build can write it.
	Upmix []SkillsUpmix `json:"upmix"`
}

type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

type SkillsItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SkillsCodec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Encoders []string `json:"encoders"`
	Decoders []string `json:"decoders"`
}

type SkillsUpmix struct {
	Format    catalog.FormatID  `json:"format"`
	Quality   catalog.QualityID `json:"quality"`
	Codec     string            `json:"codec"`
	Supported bool              `json:"supported"`
	Reason    string            `json:"reason,omitempty"`
}

func skillsToAPI(s skills.Skills, supports func(catalog.Format, catalog.Quality) error) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Compiler = s.FFmpeg.Compiler
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{lib.Name, lib.Compiled, lib.Linked}
	}

	resp.Filters = make([]SkillsItem, len(s.Filters))
	for i, f := range s.Filters {
		resp.Filters[i] = SkillsItem{f.Id, f.Name}
	}

	resp.Codecs = make([]SkillsCodec, len(s.Codecs.Audio))
	for i, c := range s.Codecs.Audio {
		resp.Codecs[i] = SkillsCodec{ID: c.Id, Name: c.Name, Encoders: c.Encoders, Decoders: c.Decoders}
	}

	resp.Formats.Demuxers = make([]SkillsItem, len(s.Formats.Demuxers))
	for i, f := range s.Formats.Demuxers {
		resp.Formats.Demuxers[i] = SkillsItem{f.Id, f.Name}
	}
	resp.Formats.Muxers = make([]SkillsItem, len(s.Formats.Muxers))
	for i, f := range s.Formats.Muxers {
		resp.Formats.Muxers[i] = SkillsItem{f.Id, f.Name}
	}

	for _, f := range catalog.Formats() {
		for _, q := range catalog.Qualities() {
			u := SkillsUpmix{
				Format:    f.ID,
				Quality:   q.ID,
				Codec:     catalog.OutputParameters(f, q).Codec,
				Supported: true,
			}
			if err := supports(f, q); err != nil {
				u.Supported = false
				u.Reason = err.Error()
			}
			resp.Upmix = append(resp.Upmix, u)
		}
	}

	return resp
}
