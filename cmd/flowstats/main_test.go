package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spboyer/flowstats/internal/voiceflow"
)

func TestPartialCycleError(t *testing.T) {
	err := &PartialCycleError{Warnings: 2}
	assert.Equal(t, "cycle completed with partial data (2 warning(s))", err.Error())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitSuccess},
		{"partial", &PartialCycleError{Warnings: 1}, ExitPartial},
		{"wrapped partial", fmt.Errorf("export: %w", &PartialCycleError{}), ExitPartial},
		{"config error", voiceflow.ErrConfig, ExitError},
		{"other", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
