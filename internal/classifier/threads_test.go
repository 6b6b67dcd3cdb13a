package classifier

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceCores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		brand string
		want  int
	}{
		{"Apple M1", 4},
		{"Apple M2 Pro", 8},
		{"Apple M3 Max", 12},
		{"Apple M4 Pro", 10},
		{"AMD Ryzen 9 7950X 16-Core Processor", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.brand, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, performanceCores(tt.brand))
		})
	}
}

func TestOptimalThreads(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 4, CPUInfo{PerformanceCores: 4, PhysicalCores: 10}.OptimalThreads(16))
	assert.Equal(t, 8, CPUInfo{PhysicalCores: 8, LogicalCores: 16}.OptimalThreads(16))
	assert.Equal(t, 4, CPUInfo{PhysicalCores: 8}.OptimalThreads(4))
	assert.Equal(t, 6, CPUInfo{}.OptimalThreads(6))
}

func TestDetermineThreadCount(t *testing.T) {
	t.Parallel()

	cpus := runtime.NumCPU()
	assert.Equal(t, 1, determineThreadCount(1))
	assert.Equal(t, cpus, determineThreadCount(cpus+100))

	auto := determineThreadCount(0)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, cpus)
}
