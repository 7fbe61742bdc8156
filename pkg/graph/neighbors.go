package graph

import "sort"

// Neighbors returns the distinct entities within depth hops of entityID,
// ignoring relationship direction, excluding the start entity. Results are
// ordered by hop distance, then by insertion order. A depth below 1 is
// treated as 1; an unknown start entity yields an empty result.
func (g *KnowledgeGraph) Neighbors(entityID string, depth int) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entity, 0)
	if _, ok := g.entities[entityID]; !ok {
		return out
	}
	if depth < 1 {
		depth = 1
	}

	seen := map[string]struct{}{entityID: {}}
	level := []string{entityID}

	for d := 0; d < depth && len(level) > 0; d++ {
		var next []*Entity
		for _, id := range level {
			// outgoing and bidirectional edges come from the adjacency index
			for n := range g.adjacency[id] {
				if _, ok := seen[n]; !ok {
					seen[n] = struct{}{}
					next = append(next, g.entities[n])
				}
			}
			// incoming directed edges are not in the index
			for relID := range g.incoming[id] {
				r := g.relationships[relID]
				if r.Bidirectional {
					continue
				}
				if _, ok := seen[r.SourceID]; !ok {
					seen[r.SourceID] = struct{}{}
					next = append(next, g.entities[r.SourceID])
				}
			}
		}

		sort.Slice(next, func(i, j int) bool { return next[i].seq < next[j].seq })
		level = level[:0]
		for _, e := range next {
			out = append(out, copyEntity(e))
			level = append(level, e.ID)
		}
	}

	return out
}
