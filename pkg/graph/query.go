package graph

// frontierEntry is one partial path in the breadth-first expansion.
type frontierEntry struct {
	at       string
	entities []string
	rels     []*Relationship
	weight   float64
	visited  map[string]struct{} // nil in FewestPaths mode
}

// Query returns the paths starting at startID that satisfy pattern, in
// breadth-first order.
//
// A path is emitted once it has at least one hop and at least
// pattern.MinDepth hops. Expansion stops at pattern.MaxDepth (default: the
// graph's MaxInferenceDepth). Every hop must land on an entity whose type is
// in EntityTypes and use a relationship whose type is in RelationshipTypes
// (when those lists are given), and may not revisit an entity already on the
// path. Traversal follows outgoing relationships and bidirectional
// relationships whose target is the current entity.
//
// An unknown start entity yields an empty result.
//
// Example:
//
//	// Everyone Alice reaches through "knows" within two hops
//	paths := g.Query(alice.ID, graph.GraphPattern{
//		RelationshipTypes: []string{"knows"},
//		EntityTypes:       []string{"person"},
//		MaxDepth:          2,
//	})
//	for _, p := range paths {
//		fmt.Println(p.String(), p.TotalWeight)
//	}
func (g *KnowledgeGraph) Query(startID string, pattern GraphPattern) []GraphPath {
	g.mu.RLock()
	defer g.mu.RUnlock()

	paths := make([]GraphPath, 0)
	if _, ok := g.entities[startID]; !ok {
		return paths
	}

	maxDepth := pattern.MaxDepth
	if maxDepth <= 0 {
		maxDepth = g.config.MaxInferenceDepth
	}
	entityTypes := toSet(pattern.EntityTypes)
	relTypes := toSet(pattern.RelationshipTypes)

	var globalVisited map[string]struct{}
	start := frontierEntry{at: startID, entities: []string{startID}}
	if pattern.Mode == FewestPaths {
		globalVisited = map[string]struct{}{startID: {}}
	} else {
		start.visited = map[string]struct{}{startID: {}}
	}

	queue := []frontierEntry{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := len(cur.rels)

		if depth > 0 && depth >= pattern.MinDepth {
			paths = append(paths, g.materializePathLocked(cur.entities, cur.rels, cur.weight))
			if pattern.MaxPaths > 0 && len(paths) >= pattern.MaxPaths {
				break
			}
		}
		if depth >= maxDepth {
			continue
		}

		for _, h := range g.hopsLocked(cur.at) {
			if relTypes != nil {
				if _, ok := relTypes[h.rel.Type]; !ok {
					continue
				}
			}
			if entityTypes != nil {
				if _, ok := entityTypes[g.entities[h.to].Type]; !ok {
					continue
				}
			}

			if globalVisited != nil {
				if _, seen := globalVisited[h.to]; seen {
					continue
				}
				globalVisited[h.to] = struct{}{}
			} else if _, seen := cur.visited[h.to]; seen {
				continue
			}

			next := frontierEntry{
				at:       h.to,
				entities: appendCopy(cur.entities, h.to),
				rels:     appendRelCopy(cur.rels, h.rel),
				weight:   cur.weight + h.rel.Weight,
			}
			if cur.visited != nil {
				next.visited = make(map[string]struct{}, len(cur.visited)+1)
				for id := range cur.visited {
					next.visited[id] = struct{}{}
				}
				next.visited[h.to] = struct{}{}
			}
			queue = append(queue, next)
		}
	}

	return paths
}

func (g *KnowledgeGraph) materializePathLocked(entityIDs []string, rels []*Relationship, weight float64) GraphPath {
	p := GraphPath{
		Entities:      make([]Entity, 0, len(entityIDs)),
		Relationships: make([]Relationship, 0, len(rels)),
		TotalWeight:   weight,
	}
	for _, id := range entityIDs {
		p.Entities = append(p.Entities, copyEntity(g.entities[id]))
	}
	for _, r := range rels {
		p.Relationships = append(p.Relationships, copyRelationship(r))
	}
	return p
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func appendCopy(s []string, v string) []string {
	out := make([]string, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func appendRelCopy(s []*Relationship, v *Relationship) []*Relationship {
	out := make([]*Relationship, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}
