// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/upmixmanager/internal/batch"
	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
	"github.com/ZSC714725/upmixmanager/internal/resource"
	"github.com/ZSC714725/upmixmanager/internal/store"
)

// RunStore is the read side of the run history
type RunStore interface {
	Runs(limit int) ([]batch.RunRecord, error)
	Run(id string) (batch.RunRecord, error)
}

// Handler holds dependencies. ffmpeg and runs may be nil.
type Handler struct {
	engine *batch.Engine
	ffmpeg ffmpeg.FFmpeg
	runs   RunStore
}

// NewHandler creates API handler
func NewHandler(engine *batch.Engine, ff ffmpeg.FFmpeg, runs RunStore) *Handler {
	return &Handler{engine: engine, ffmpeg: ff, runs: runs}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// errorStatus maps engine errors to HTTP status codes.
func errorStatus(err error) int {
	var accessErr *resource.AccessError
	switch {
	case errors.Is(err, batch.ErrRunning),
		errors.Is(err, batch.ErrNotRunning),
		errors.Is(err, batch.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, batch.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrEmptyBatch),
		errors.Is(err, batch.ErrNoOutput),
		errors.Is(err, batch.ErrEngineMissing),
		errors.Is(err, ffmpeg.ErrUnsupported):
		return http.StatusPreconditionFailed
	case errors.As(err, &accessErr),
		errors.Is(err, ffmpeg.ErrInputRejected),
		errors.Is(err, catalog.ErrUnknownFormat),
		errors.Is(err, catalog.ErrUnknownQuality):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetState GET /api/v1/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// ListFiles GET /api/v1/files
func (h *Handler) ListFiles(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot().Items)
}

// AddFiles POST /api/v1/files
func (h *Handler) AddFiles(c *gin.Context) {
	var req AddFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if len(req.Paths) == 0 {
		errResp(c, http.StatusBadRequest, "At least one path required", "")
		return
	}

	added, err := h.engine.AddFiles(req.Paths)
	if err != nil && len(added) == 0 {
		errResp(c, errorStatus(err), "No file added", err.Error())
		return
	}

	resp := AddFilesResponse{Added: added}
	if resp.Added == nil {
		resp.Added = []batch.Item{}
	}
	if err != nil {
		resp.Errors = joinedMessages(err)
	}
	c.JSON(http.StatusOK, resp)
}

func joinedMessages(err error) []string {
	var msgs []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

// GetFile GET /api/v1/files/:id
func (h *Handler) GetFile(c *gin.Context) {
	it, ok := h.engine.Snapshot().Item(c.Param("id"))
	if !ok {
		errResp(c, http.StatusNotFound, "Unknown file ID", batch.ErrNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, it)
}

// RemoveFile DELETE /api/v1/files/:id
func (h *Handler) RemoveFile(c *gin.Context) {
	if err := h.engine.Remove(c.Param("id")); err != nil {
		errResp(c, errorStatus(err), "Remove failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// ClearFiles DELETE /api/v1/files
func (h *Handler) ClearFiles(c *gin.Context) {
	if err := h.engine.ClearAll(); err != nil {
		errResp(c, errorStatus(err), "Clear failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// SetOutput PUT /api/v1/output
func (h *Handler) SetOutput(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.engine.SetOutputDirectory(req.Path); err != nil {
		errResp(c, errorStatus(err), "Invalid output directory", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// SetFormat PUT /api/v1/format
func (h *Handler) SetFormat(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.engine.SetFormat(catalog.FormatID(req.ID)); err != nil {
		errResp(c, errorStatus(err), "Invalid format", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// SetQuality PUT /api/v1/quality
func (h *Handler) SetQuality(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.engine.SetQuality(catalog.QualityID(req.ID)); err != nil {
		errResp(c, errorStatus(err), "Invalid quality", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// Formats GET /api/v1/formats
func (h *Handler) Formats(c *gin.Context) {
	c.JSON(http.StatusOK, FormatsResponse{
		Formats:   catalog.Formats(),
		Qualities: catalog.Qualities(),
	})
}

// Command PUT /api/v1/command
func (h *Handler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var err error
	switch req.Command {
	case "start":
		err = h.engine.Start()
		var accessErr *resource.AccessError
		if errors.As(err, &accessErr) {
			errResp(c, http.StatusPreconditionFailed, "Command failed", err.Error())
			return
		}
	case "cancel":
		err = h.engine.Cancel()
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: start, cancel")
		return
	}

	if err != nil {
		errResp(c, errorStatus(err), "Command failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	if h.ffmpeg == nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg not available", batch.ErrEngineMissing.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills(), h.ffmpeg.Supports))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if h.ffmpeg == nil {
		errResp(c, http.StatusServiceUnavailable, "FFmpeg not available", batch.ErrEngineMissing.Error())
		return
	}
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills(), h.ffmpeg.Supports))
}

// ListRuns GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, []batch.RunRecord{})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}

	runs, err := h.runs.Runs(limit)
	if err != nil {
		errResp(c, http.StatusInternalServerError, "Listing runs failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetRun GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	if h.runs == nil {
		errResp(c, http.StatusNotFound, "Unknown run ID", store.ErrNotFound.Error())
		return
	}

	run, err := h.runs.Run(c.Param("id"))
	if err != nil {
		errResp(c, errorStatus(err), "Unknown run ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}
