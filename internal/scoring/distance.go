// Package scoring compares recognized text against a ground truth
// transcription. Nothing here returns an error: empty or malformed input
// degrades to the clamped bounds instead.
package scoring

// EditDistance returns the Levenshtein distance between a and b counted in
// Unicode code points. Only one row of the table is kept, sized by the
// shorter input.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	// keep the row along the shorter string
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			above := row[j]
			if ra[i-1] == rb[j-1] {
				row[j] = diag
			} else {
				row[j] = 1 + min(above, row[j-1], diag)
			}
			diag = above
		}
	}
	return row[len(rb)]
}
