package metrics

import "sort"

// SortBreakdown orders rows by descending count, then by label for stability.
func SortBreakdown(rows []CategoryCount) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].Count > rows[j].Count
	})
}

// BreakdownTotal sums the counts of all rows.
func BreakdownTotal(rows []CategoryCount) int64 {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	return total
}
