package graph

// CycleEdge is a dependency edge (dependent -> blocker) that lies on at
// least one cycle. The detector only ever returns edges that genuinely
// exist in its input; it makes no minimality claim.
type CycleEdge struct {
	From string
	To   string
}

// DetectCycles finds every dependency edge that participates in a cycle.
//
// order is the node visit order (callers pass snapshot input order so the
// result is deterministic) and dependsOn maps a story id to the ids of its
// resolvable blockers. Runs one DFS per unvisited root, so disjoint cycles
// are all found, and fully-visited nodes are never re-reported. O(V+E).
func DetectCycles(order []string, dependsOn map[string][]string) []CycleEdge {
	nodes := make(map[string]bool, len(order))
	for _, id := range order {
		nodes[id] = true
	}

	visited := make(map[string]bool, len(order))
	inStack := make(map[string]bool, len(order))
	pathPos := make(map[string]int, len(order))
	var path []string

	seen := make(map[CycleEdge]bool)
	var result []CycleEdge

	emit := func(e CycleEdge) {
		if !seen[e] {
			seen[e] = true
			result = append(result, e)
		}
	}

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		inStack[id] = true
		pathPos[id] = len(path)
		path = append(path, id)

		for _, blocker := range dependsOn[id] {
			if !nodes[blocker] {
				continue
			}
			if inStack[blocker] {
				// Cycle closed. Walk the recorded path from the blocker's
				// position to the tail, then add the closing back-edge.
				start := pathPos[blocker]
				for i := start; i+1 < len(path); i++ {
					emit(CycleEdge{From: path[i], To: path[i+1]})
				}
				emit(CycleEdge{From: id, To: blocker})
				continue
			}
			if !visited[blocker] {
				visit(blocker)
			}
		}

		path = path[:len(path)-1]
		delete(pathPos, id)
		inStack[id] = false
	}

	for _, id := range order {
		if !visited[id] {
			visit(id)
		}
	}

	return result
}

// CycleStoryIDs returns the unique story ids touched by the given cycle
// edges, in first-seen order.
func CycleStoryIDs(edges []CycleEdge) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range edges {
		add(e.From)
		add(e.To)
	}
	return ids
}
