// Package runmode holds the process-wide runtime mode and the entry point
// selected when a single file is run as a script.
package runmode

import (
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/gridhost/internal/model"
)

// Mode decides what a deployment does with a parsed file.
type Mode int32

const (
	// Server hosts the services of every deployed file.
	Server Mode = iota
	// RunFile runs the entry point of a single file.
	RunFile
	// Error marks a failed single-file startup. The host checks it and exits.
	Error
)

func (m Mode) String() string {
	switch m {
	case Server:
		return "SERVER"
	case RunFile:
		return "RUN_FILE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// EntryPoint is the function to run in RunFile mode and the file declaring it.
type EntryPoint struct {
	File     *model.File
	Function *model.Function
}

// State is the runtime mode holder. The zero value is in Server mode and
// safe for concurrent use.
type State struct {
	mode atomic.Int32

	mu    sync.RWMutex
	entry *EntryPoint
}

// New returns a State in the given mode.
func New(m Mode) *State {
	s := &State{}
	s.SetMode(m)
	return s
}

// Mode returns the current mode.
func (s *State) Mode() Mode { return Mode(s.mode.Load()) }

// SetMode changes the mode. Any transition is allowed.
func (s *State) SetMode(m Mode) { s.mode.Store(int32(m)) }

// Is reports whether the current mode is m.
func (s *State) Is(m Mode) bool { return s.Mode() == m }

// SetMainFunction records the entry point to run.
func (s *State) SetMainFunction(file *model.File, fn *model.Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &EntryPoint{File: file, Function: fn}
}

// MainFunction returns the recorded entry point.
func (s *State) MainFunction() (*EntryPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry, s.entry != nil
}
