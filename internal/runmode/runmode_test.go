package runmode

import (
	"sync"
	"testing"

	"github.com/specialistvlad/gridhost/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_DefaultsToServer(t *testing.T) {
	var s State
	assert.Equal(t, Server, s.Mode())
	assert.True(t, s.Is(Server))

	_, ok := s.MainFunction()
	assert.False(t, ok)
}

func TestState_Transitions(t *testing.T) {
	s := New(RunFile)
	assert.Equal(t, RunFile, s.Mode())

	s.SetMode(Error)
	assert.True(t, s.Is(Error))

	s.SetMode(Server)
	assert.True(t, s.Is(Server))
}

func TestState_MainFunction(t *testing.T) {
	s := New(RunFile)
	file := &model.File{Name: "script.hcl"}
	fn := &model.Function{Name: "main"}

	s.SetMainFunction(file, fn)

	entry, ok := s.MainFunction()
	require.True(t, ok)
	assert.Same(t, file, entry.File)
	assert.Same(t, fn, entry.Function)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := New(Server)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.SetMode(Error)
			}
			_ = s.Mode().String()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, Error, s.Mode())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "SERVER", Server.String())
	assert.Equal(t, "RUN_FILE", RunFile.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "UNKNOWN", Mode(42).String())
}
