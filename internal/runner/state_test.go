package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_FullyStopped(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateInitial, true},
		{StateStopped, true},
		{StateRunning, false},
		{StateStopRequested, false},
		{StateRerunRequested, false},
		{StatePauseRequested, false},
		{StatePaused, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.FullyStopped())
		})
	}
}
