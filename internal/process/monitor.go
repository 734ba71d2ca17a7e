// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package process

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Monitor samples CPU and memory of a running process. NullMonitor does nothing.
type Monitor interface {
	Start(pid int) error
	Stop()
	Current() (cpu float64, memory uint64)
}

type nullMonitor struct{}

// NewNullMonitor returns a no-op monitor
func NewNullMonitor() Monitor {
	return &nullMonitor{}
}

func (m *nullMonitor) Start(pid int) error        { return nil }
func (m *nullMonitor) Stop()                      {}
func (m *nullMonitor) Current() (float64, uint64) { return 0, 0 }

// sysMonitor 使用 gopsutil 采集进程 CPU 和内存
type sysMonitor struct {
	mu   sync.RWMutex
	proc *gopsutilprocess.Process
}

// NewSysMonitor 创建基于系统调用的采样器
func NewSysMonitor() Monitor {
	return &sysMonitor{}
}

func (m *sysMonitor) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.proc = proc
	m.mu.Unlock()
	return nil
}

func (m *sysMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proc = nil
}

func (m *sysMonitor) Current() (cpu float64, memory uint64) {
	m.mu.RLock()
	proc := m.proc
	m.mu.RUnlock()
	if proc == nil {
		return 0, 0
	}
	if pct, err := proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		memory = info.RSS
	}
	return cpu, memory
}
