package sqlintel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schemasense/engine/pkg/config"
)

func TestInitManager_InitialPhaseIsIdle(t *testing.T) {
	m := NewInitManager(&config.Config{}, "postgres", nil, nil)
	assert.Equal(t, InitPhaseIdle, m.Status().Phase)
}

func TestNotReadyPhases_CoversAllPreReadyPhases(t *testing.T) {
	assert.True(t, NotReadyPhases[InitPhaseIdle])
	assert.True(t, NotReadyPhases[InitPhaseStarting])
	assert.True(t, NotReadyPhases[InitPhaseRunning])
	assert.False(t, NotReadyPhases[InitPhaseReady])
	assert.False(t, NotReadyPhases[InitPhaseFailed])
	assert.False(t, NotReadyPhases[InitPhaseStopped])
}

func TestInitManager_SetPhaseStarting(t *testing.T) {
	m := NewInitManager(&config.Config{}, "postgres", nil, nil)
	m.setPhase(InitPhaseStarting, func(s *InitState) {
		s.Attempts++
	})
	state := m.Status()
	assert.Equal(t, InitPhaseStarting, state.Phase)
	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, "schema index is connecting to the database", m.Describe())
}

func TestInitManager_ExplorerRejectsDuringStarting(t *testing.T) {
	m := NewInitManager(&config.Config{}, "postgres", nil, nil)
	m.setPhase(InitPhaseStarting, nil)
	_, err := m.Explorer()
	assert.Error(t, err)
}
