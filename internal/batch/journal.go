// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package batch

import (
	"time"

	"github.com/ZSC714725/upmixmanager/internal/catalog"
)

// Journal persists the batch, the selection and finished runs. Errors are
// logged by the engine and never fail a command.
type Journal interface {
	SaveBatch(entries []Entry) error
	SaveSettings(settings Settings) error
	RecordRun(run RunRecord) error
}

// Entry is a persisted batch item
type Entry struct {
	ID    string
	Name  string
	Path  string
	Token []byte
}

// Settings is the persisted selection
type Settings struct {
	OutputPath  string
	OutputToken []byte
	Format      catalog.FormatID
	Quality     catalog.QualityID
}

// RunRecord summarizes one finished run
type RunRecord struct {
	ID        string            `json:"id"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
	Outcome   string            `json:"outcome"`
	Format    catalog.FormatID  `json:"format"`
	Quality   catalog.QualityID `json:"quality"`
	Output    string            `json:"output"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Cancelled int               `json:"cancelled"`
	Error     string            `json:"error,omitempty"`
	Results   []Result          `json:"results"`
}

// Result is the outcome of one item in a run
type Result struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Outcomes of a run
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)
