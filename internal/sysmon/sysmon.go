// Package sysmon samples CPU and memory usage of the host and of server processes.
package sysmon

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Stats holds a single snapshot of system-wide resource usage.
type Stats struct {
	CPUPercent float64 // 0.0 .. 100.0
	MemPercent float64 // 0.0 .. 100.0
}

// Sample collects a single system-wide CPU and memory snapshot.
// CPU uses interval=0 (delta since last call). Returns zero values on error.
func Sample() Stats {
	var s Stats
	cpuPcts, err := cpu.Percent(0, false)
	if err == nil && len(cpuPcts) > 0 {
		s.CPUPercent = cpuPcts[0]
	}
	vmem, err := mem.VirtualMemory()
	if err == nil && vmem != nil {
		s.MemPercent = vmem.UsedPercent
	}
	return s
}

// ProcessStats is a snapshot of one process.
type ProcessStats struct {
	PID        int
	CPUPercent float64 // may exceed 100 on multi-core hosts
	RSS        uint64  // resident set size in bytes
}

// ProcessSampler samples processes by pid. It keeps a handle per pid so CPU
// usage is measured as the delta since the previous sample.
type ProcessSampler struct {
	mu    sync.Mutex
	procs map[int]*process.Process
}

// NewProcessSampler creates an empty sampler.
func NewProcessSampler() *ProcessSampler {
	return &ProcessSampler{procs: make(map[int]*process.Process)}
}

// Sample returns the stats of pid. The first sample of a pid reports CPU
// usage averaged over the process lifetime.
func (s *ProcessSampler) Sample(pid int) (ProcessStats, error) {
	if pid <= 0 {
		return ProcessStats{}, errors.Newf("invalid pid %d", pid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.procs[pid]
	if !ok {
		var err error
		p, err = process.NewProcess(int32(pid))
		if err != nil {
			return ProcessStats{}, errors.Wrapf(err, "open process %d", pid)
		}
		s.procs[pid] = p
	}

	st := ProcessStats{PID: pid}
	var err error
	if ok {
		st.CPUPercent, err = p.Percent(0)
	} else {
		st.CPUPercent, err = p.CPUPercent()
	}
	if err != nil {
		delete(s.procs, pid)
		return ProcessStats{}, errors.Wrapf(err, "cpu of process %d", pid)
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		delete(s.procs, pid)
		return ProcessStats{}, errors.Wrapf(err, "memory of process %d", pid)
	}
	st.RSS = mi.RSS
	return st, nil
}

// Forget drops the handle of pid, typically after the process exited.
func (s *ProcessSampler) Forget(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, pid)
}
