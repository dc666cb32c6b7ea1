package internal

// ReconstructPath follows parent indices from goal until it reaches an index
// whose parent is negative, then returns the chain in root-to-goal order.
//
// limit bounds the walk; a chain longer than limit can only be a cycle, and
// ok is false in that case.
func ReconstructPath(parentOf func(int) int, goal int, limit int) (path []int, ok bool) {
	path = []int{goal}
	current := goal
	for {
		previous := parentOf(current)
		if previous < 0 {
			break
		}
		if len(path) >= limit {
			return nil, false
		}
		path = append(path, previous)
		current = previous
	}

	// reverse path
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}
