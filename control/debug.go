// File: control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime debug probes for state dumps.

package control

import (
	"runtime"
	"sync"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/uv"
)

var _ api.Debug = (*DebugProbes)(nil)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any)
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// RegisterRuntimeProbes adds process-wide runtime probes.
func RegisterRuntimeProbes(dp *DebugProbes) {
	dp.RegisterProbe("runtime.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("runtime.goroutines", func() any { return runtime.NumGoroutine() })
}

// RegisterLoopProbes adds probes describing l. DumpState must then be called
// on l's goroutine.
func RegisterLoopProbes(dp *DebugProbes, l *uv.Loop) {
	prefix := "loop." + l.ID().String()
	dp.RegisterProbe(prefix+".alive", func() any { return l.Alive() })
	dp.RegisterProbe(prefix+".metrics", func() any { return l.Metrics() })
	dp.RegisterProbe(prefix+".handles", func() any {
		byType := make(map[string]int)
		l.Walk(func(r uv.Resource) {
			switch v := r.(type) {
			case uv.AnyHandle:
				byType[v.Type().String()]++
			case uv.AnyRequest:
				byType["req:"+v.Type().String()]++
			}
		})
		return byType
	})
}
