// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package batch

import (
	"github.com/ZSC714725/upmixmanager/internal/resource"
	"github.com/ZSC714725/upmixmanager/internal/tags"
)

// Status of a batch item
type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"
	Cancelled  Status = "cancelled"
)

// Finished reports whether the status is terminal for a run.
func (s Status) Finished() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Item is one input file of the batch
type Item struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Status   Status        `json:"status"`
	Err      *ItemError    `json:"error,omitempty"`
	Output   string        `json:"output,omitempty"`
	Stale    bool          `json:"stale,omitempty"`
	Metadata tags.Metadata `json:"metadata"`

	handle *resource.Handle
}

// copy returns a detached value safe to hand to subscribers.
func (i *Item) copy() Item {
	c := *i
	c.handle = nil
	c.Err = i.Err.clone()
	if i.handle != nil {
		c.Stale = i.handle.Stale()
	}
	return c
}

func (i *Item) reset() {
	i.Status = Pending
	i.Err = nil
	i.Output = ""
}
