package graph

import (
	"container/heap"
	"math"
)

// ShortestPath returns the minimum-weight path from fromID to toID, or nil
// when either entity is absent or toID is unreachable.
//
// Relationship weights are the edge costs (never negative). Traversal follows
// outgoing relationships and bidirectional relationships whose target is the
// current entity, the same rule Query uses. When fromID == toID the result is
// the single-entity path with weight 0.
//
// Ties are broken deterministically: among entities at equal distance the
// one inserted first is settled first, and among equal-cost routes into an
// entity the first one relaxed (relationships scanned in insertion order)
// is kept.
//
// Example:
//
//	// A->B (2), B->C (3), A->C (10)
//	path := g.ShortestPath(a.ID, c.ID)
//	fmt.Println(path.String(), path.TotalWeight) // A -[..]-> B -[..]-> C 5
func (g *KnowledgeGraph) ShortestPath(fromID, toID string) *GraphPath {
	g.mu.RLock()
	defer g.mu.RUnlock()

	from, ok := g.entities[fromID]
	if !ok {
		return nil
	}
	if _, ok := g.entities[toID]; !ok {
		return nil
	}
	if fromID == toID {
		return &GraphPath{
			Entities:      []Entity{copyEntity(from)},
			Relationships: []Relationship{},
		}
	}

	dist := map[string]float64{fromID: 0}
	prevRel := make(map[string]*Relationship)
	prevNode := make(map[string]string)
	settled := make(map[string]bool)

	pq := &distanceQueue{}
	heap.Push(pq, &queueItem{id: fromID, dist: 0, seq: from.seq})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*queueItem)
		if settled[item.id] {
			continue
		}
		settled[item.id] = true
		if item.id == toID {
			break
		}

		for _, h := range g.hopsLocked(item.id) {
			if settled[h.to] {
				continue
			}
			alt := item.dist + h.rel.Weight
			if d, seen := dist[h.to]; !seen || alt < d {
				dist[h.to] = alt
				prevRel[h.to] = h.rel
				prevNode[h.to] = item.id
				heap.Push(pq, &queueItem{id: h.to, dist: alt, seq: g.entities[h.to].seq})
			}
		}
	}

	total, reached := dist[toID]
	if !reached || math.IsInf(total, 1) || !settled[toID] {
		return nil
	}

	// walk predecessors back to the source
	var ids []string
	var rels []*Relationship
	for at := toID; at != fromID; at = prevNode[at] {
		ids = append(ids, at)
		rels = append(rels, prevRel[at])
	}
	ids = append(ids, fromID)

	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	for i, j := 0, len(rels)-1; i < j; i, j = i+1, j-1 {
		rels[i], rels[j] = rels[j], rels[i]
	}

	path := g.materializePathLocked(ids, rels, total)
	return &path
}

type queueItem struct {
	id    string
	dist  float64
	seq   uint64
	index int
}

// distanceQueue is a min-heap ordered by (dist, seq).
type distanceQueue []*queueItem

func (q distanceQueue) Len() int { return len(q) }

func (q distanceQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}

func (q distanceQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *distanceQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *distanceQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
