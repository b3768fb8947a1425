package tracker

import (
	"math"
)

// linearAssignment matches rows to columns of cost minimising the total
// cost, pairs costing more than thresh are never matched.  rows and cols
// give the matrix dimensions for the case where cost is empty.
func linearAssignment(cost [][]float64, rows, cols int, thresh float64) (matches [][2]int,
	unmatchedRows, unmatchedCols []int) {

	if len(cost) == 0 || cols == 0 {
		for i := 0; i < rows; i++ {
			unmatchedRows = append(unmatchedRows, i)
		}
		for j := 0; j < cols; j++ {
			unmatchedCols = append(unmatchedCols, j)
		}
		return
	}

	// extend to a square rows+cols matrix where every row and column may
	// instead pair with a dummy at half the threshold, so a real pair is
	// only chosen when it is no worse than leaving both unmatched
	n := rows + cols
	extended := make([][]float64, n)

	for i := range extended {
		extended[i] = make([]float64, n)

		for j := range extended[i] {
			switch {
			case i < rows && j < cols:
				extended[i][j] = cost[i][j]
			case i >= rows && j >= cols:
				extended[i][j] = 0
			default:
				extended[i][j] = thresh / 2
			}
		}
	}

	rowsol := hungarian(extended)
	colMatched := make([]bool, cols)

	for i := 0; i < rows; i++ {
		j := rowsol[i]

		if j < cols && cost[i][j] <= thresh {
			matches = append(matches, [2]int{i, j})
			colMatched[j] = true
			continue
		}

		unmatchedRows = append(unmatchedRows, i)
	}

	for j, ok := range colMatched {
		if !ok {
			unmatchedCols = append(unmatchedCols, j)
		}
	}

	return
}

// hungarian solves the square assignment problem and returns the column
// assigned to each row
func hungarian(cost [][]float64) []int {

	n := len(cost)

	// potentials and the row matched to each column, all one based with
	// column 0 as a virtual start
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {

		p[0] = i
		j0 := 0

		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}

				cur := cost[i0-1][j-1] - u[i0] - v[j]

				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}

				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1

			if p[j0] == 0 {
				break
			}
		}

		// walk the augmenting path back to the start
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowsol := make([]int, n)

	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			rowsol[p[j]-1] = j - 1
		}
	}

	return rowsol
}
