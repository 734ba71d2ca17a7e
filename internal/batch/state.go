// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package batch

import (
	"github.com/ZSC714725/upmixmanager/internal/catalog"
	"github.com/ZSC714725/upmixmanager/internal/ffmpeg"
)

// Phase of the engine
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStarting   Phase = "starting"
	PhaseRunning    Phase = "running"
	PhaseCompleting Phase = "completing"
	PhaseCancelling Phase = "cancelling"
)

// State is a point-in-time copy of everything the engine exposes. Seq
// increases by one with every published change.
type State struct {
	Seq             uint64            `json:"seq"`
	RunID           string            `json:"run_id,omitempty"`
	Phase           Phase             `json:"phase"`
	Running         bool              `json:"running"`
	CancelRequested bool              `json:"cancel_requested"`
	Progress        float64           `json:"progress"`
	Message         string            `json:"message"`
	LastError       *ItemError        `json:"last_error,omitempty"`
	Format          catalog.FormatID  `json:"format"`
	Quality         catalog.QualityID `json:"quality"`
	Output          string            `json:"output,omitempty"`
	OutputStale     bool              `json:"output_stale,omitempty"`
	Items           []Item            `json:"items"`
	Current         *ffmpeg.Live      `json:"current,omitempty"`
}

// Item finds an item by id.
func (s State) Item(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Count returns how many items have the status.
func (s State) Count(status Status) int {
	n := 0
	for _, it := range s.Items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// subscribers fans snapshots out without ever blocking the publisher. Each
// channel holds at most one pending snapshot; a newer one replaces it, so
// a slow reader skips states but never sees them out of order.
type subscribers struct {
	next int
	subs map[int]chan State
}

func (s *subscribers) add() (int, chan State) {
	if s.subs == nil {
		s.subs = make(map[int]chan State)
	}
	s.next++
	ch := make(chan State, 1)
	s.subs[s.next] = ch
	return s.next, ch
}

func (s *subscribers) remove(id int) {
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// send must be called with the engine lock held.
func (s *subscribers) send(st State) {
	for _, ch := range s.subs {
		offer(ch, st)
	}
}

func (s *subscribers) len() int {
	return len(s.subs)
}

func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	// 丢弃旧快照
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
