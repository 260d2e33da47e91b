package sysmon

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_ReturnsValidRanges(t *testing.T) {
	s := Sample()
	if s.CPUPercent < 0 || s.CPUPercent > 100 {
		t.Errorf("CPUPercent out of range: %f", s.CPUPercent)
	}
	if s.MemPercent < 0 || s.MemPercent > 100 {
		t.Errorf("MemPercent out of range: %f", s.MemPercent)
	}
}

func TestSample_MemPercentNonZero(t *testing.T) {
	s := Sample()
	if s.MemPercent == 0 {
		t.Error("expected non-zero MemPercent on a running system")
	}
}

func TestProcessSampler_Self(t *testing.T) {
	t.Parallel()
	s := NewProcessSampler()
	pid := os.Getpid()

	first, err := s.Sample(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, first.PID)
	assert.Positive(t, first.RSS)
	assert.GreaterOrEqual(t, first.CPUPercent, 0.0)

	second, err := s.Sample(pid)
	require.NoError(t, err)
	assert.Positive(t, second.RSS)

	s.Forget(pid)
	again, err := s.Sample(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, again.PID)
}

func TestProcessSampler_InvalidPID(t *testing.T) {
	t.Parallel()
	_, err := NewProcessSampler().Sample(0)
	require.Error(t, err)
	_, err = NewProcessSampler().Sample(-5)
	require.Error(t, err)
}
