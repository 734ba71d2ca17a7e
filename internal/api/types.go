// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package api

import (
	"github.com/ZSC714725/upmixmanager/internal/batch"
	"github.com/ZSC714725/upmixmanager/internal/catalog"
)

// AddFilesRequest for POST /files
type AddFilesRequest struct {
	Paths []string `json:"paths" binding:"required"`
}

// AddFilesResponse lists what was added and why the rest was not
type AddFilesResponse struct {
	Added  []batch.Item `json:"added"`
	Errors []string     `json:"errors,omitempty"`
}

// PathRequest for PUT /output
type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

// SelectRequest for PUT /format and PUT /quality
type SelectRequest struct {
	ID string `json:"id" binding:"required"`
}

// CommandRequest for start/cancel
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// FormatsResponse is the catalog
type FormatsResponse struct {
	Formats   []catalog.Format  `json:"formats"`
	Qualities []catalog.Quality `json:"qualities"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
