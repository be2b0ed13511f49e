// Package numeric provides the small floating-point helpers used by the
// stochastic forwarder and by tests comparing pheromone values.
package numeric

import "math"

// CumSum returns the running sum of input. The result has the same length as
// input and result[i] = input[0] + ... + input[i].
func CumSum(input []float64) []float64 {
	result := make([]float64, len(input))
	var sum float64
	for i, v := range input {
		sum += v
		result[i] = sum
	}
	return result
}

// ApproximatelyEqual reports whether a and b differ by at most epsilon
// relative to the larger of their magnitudes.
func ApproximatelyEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= math.Max(math.Abs(a), math.Abs(b))*epsilon
}
