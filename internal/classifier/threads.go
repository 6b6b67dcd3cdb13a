package classifier

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUInfo summarises the host CPU for interpreter thread sizing.
type CPUInfo struct {
	BrandName        string
	PhysicalCores    int
	LogicalCores     int
	PerformanceCores int // 0 when unknown or not a hybrid part
}

// DetectCPU reads CPU details via cpuid.
func DetectCPU() CPUInfo {
	return CPUInfo{
		BrandName:        cpuid.CPU.BrandName,
		PhysicalCores:    cpuid.CPU.PhysicalCores,
		LogicalCores:     cpuid.CPU.LogicalCores,
		PerformanceCores: performanceCores(cpuid.CPU.BrandName),
	}
}

// OptimalThreads returns the recommended interpreter thread count, capped at available.
func (c CPUInfo) OptimalThreads(available int) int {
	var threads int
	switch {
	case c.PerformanceCores > 0:
		threads = c.PerformanceCores
	case c.PhysicalCores > 0:
		// SMT siblings do not help convolution-heavy inference
		threads = c.PhysicalCores
	default:
		threads = c.LogicalCores
	}
	if threads <= 0 || threads > available {
		return available
	}
	return threads
}

// determineThreadCount resolves the configured thread count; 0 means auto.
func determineThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured <= 0 {
		return max(1, DetectCPU().OptimalThreads(available))
	}
	return min(configured, available)
}

var appleChipRegex = regexp.MustCompile(`(?i)apple\s+(m[1-4])\s*(pro|max|ultra)?`)

// applePerformanceCores holds P-core counts for the largest binned variant of each chip.
var applePerformanceCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 8, "m2 ultra": 16,
	"m3": 4, "m3 pro": 6, "m3 max": 12, "m3 ultra": 24,
	"m4": 4, "m4 pro": 10, "m4 max": 12,
}

// performanceCores maps known hybrid parts to their P-core count.
func performanceCores(brandName string) int {
	m := appleChipRegex.FindStringSubmatch(brandName)
	if len(m) < 2 {
		return 0
	}

	chip := strings.ToLower(m[1])
	if variant := strings.ToLower(m[2]); variant != "" {
		chip += " " + variant
	}
	return applePerformanceCores[chip]
}
