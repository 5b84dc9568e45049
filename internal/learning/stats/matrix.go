package stats

import "math"

// singularPivotEps is the pivot magnitude below which a matrix is treated as
// singular during elimination.
const singularPivotEps = 1e-10

// Identity returns the n-by-n identity matrix.
func Identity(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

// Invert inverts a square matrix via Gauss-Jordan elimination with partial
// pivoting. When a pivot collapses below the singularity threshold it returns
// the identity matrix and false instead of failing, so callers degrade to
// treating dimensions as independent.
func Invert(matrix [][]float64) (inverse [][]float64, ok bool) {
	n := len(matrix)
	if n == 0 {
		return nil, false
	}

	// Augment [A | I] and reduce in place on a copy.
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], matrix[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < singularPivotEps {
			return Identity(n), false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pivotVal := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pivotVal
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	inverse = make([][]float64, n)
	for i := 0; i < n; i++ {
		inverse[i] = make([]float64, n)
		copy(inverse[i], aug[i][n:])
	}
	return inverse, true
}

// SolveLinearSystem solves A·x = b via Gaussian elimination with partial
// pivoting. It returns false when A is singular to working precision.
func SolveLinearSystem(a [][]float64, b []float64) (x []float64, ok bool) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, false
	}

	// Work on an augmented copy so the caller's matrices stay untouched.
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, n+1)
		copy(aug[i], a[i])
		aug[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < singularPivotEps {
			return nil, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		for row := col + 1; row < n; row++ {
			factor := aug[row][col] / aug[col][col]
			if factor == 0 {
				continue
			}
			for j := col; j <= n; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	x = make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := aug[i][n]
		for j := i + 1; j < n; j++ {
			sum -= aug[i][j] * x[j]
		}
		x[i] = sum / aug[i][i]
	}
	return x, true
}
