// Package utils contains small numeric helpers shared by the detector and its tools.
package utils

// RollingAverage is the mean of the most recent values added. It is not safe for concurrent use.
type RollingAverage struct {
	data  []float64
	pos   int
	count int
}

// NewRollingAverage returns an average over the last numSamples values, at least one.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]float64, numSamples)}
}

// NumSamples is the size of the window.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add records x, replacing the oldest value once the window is full.
func (ra *RollingAverage) Add(x float64) {
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.count < len(ra.data) {
		ra.count++
	}
}

// Average is the mean of the values in the window, or 0 before anything is added.
func (ra *RollingAverage) Average() float64 {
	if ra.count == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range ra.data[:ra.count] {
		sum += d
	}
	return sum / float64(ra.count)
}
