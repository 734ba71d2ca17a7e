// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package api

import (
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZSC714725/upmixmanager/internal/metrics"
)

// NewRouter wires all routes of the handler.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default(), countRequests())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/state", h.GetState)
		v1.GET("/events", h.Events)

		v1.GET("/files", h.ListFiles)
		v1.POST("/files", h.AddFiles)
		v1.DELETE("/files", h.ClearFiles)
		v1.GET("/files/:id", h.GetFile)
		v1.DELETE("/files/:id", h.RemoveFile)

		v1.PUT("/output", h.SetOutput)
		v1.PUT("/format", h.SetFormat)
		v1.PUT("/quality", h.SetQuality)
		v1.GET("/formats", h.Formats)
		v1.PUT("/command", h.Command)

		v1.GET("/skills", h.Skills)
		v1.POST("/skills/reload", h.ReloadSkills)

		v1.GET("/runs", h.ListRuns)
		v1.GET("/runs/:id", h.GetRun)
	}

	return r
}

func countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
