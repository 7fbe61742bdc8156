package graph

import (
	"errors"

	"github.com/orneryd/kgraph/pkg/events"
)

// Merge imports an external snapshot, such as another graph's Export.
//
// Entities:
//   - With deduplication enabled, an incoming entity matching an existing
//     (Name, Type) maps onto that entity and its properties are merged in.
//     It counts as DuplicatesSkipped.
//   - Otherwise it is inserted under a fresh id, keeping its timestamps, and
//     counts as EntitiesAdded.
//
// Relationships have their endpoints remapped to the local ids. An endpoint
// not in the snapshot keeps its original id, so a relationship may attach to
// an entity already in this graph. A relationship is skipped, counting as
// RelationshipsSkipped, when an endpoint does not exist here, when a
// relationship with the same (source, target, type) existed before the merge
// started, or when it fails validation.
//
// Capacity failures skip the item rather than failing the merge. Merging the
// same snapshot twice therefore adds nothing the second time.
//
// Example:
//
//	peer := remote.Export()
//	res, err := local.Merge(peer)
//	fmt.Printf("+%d entities, +%d relationships, %d duplicates\n",
//		res.EntitiesAdded, res.RelationshipsAdded, res.DuplicatesSkipped)
func (g *KnowledgeGraph) Merge(snap Snapshot) (MergeResult, error) {
	g.lock()
	defer g.unlock()

	var res MergeResult
	if err := g.checkEnabled(); err != nil {
		return res, err
	}

	startSeq := g.seq
	idMap := make(map[string]string, len(snap.Entities))

	for _, in := range snap.Entities {
		if in.Type == "" || in.Name == "" {
			g.logger.Debug("merge: entity skipped", "id", in.ID, "reason", "missing type or name")
			continue
		}

		if existing := g.findDuplicateLocked(in.Name, in.Type); existing != nil {
			g.mergePropertiesLocked(existing, in.Properties)
			idMap[in.ID] = existing.ID
			res.DuplicatesSkipped++
			continue
		}

		e, err := g.insertEntityLocked(EntityInput{
			Type:       in.Type,
			Name:       in.Name,
			Source:     in.Source,
			Properties: in.Properties,
		}, in.CreatedAt, in.UpdatedAt)
		if err != nil {
			g.logger.Warn("merge: entity skipped", "id", in.ID, "err", err)
			continue
		}
		idMap[in.ID] = e.ID
		res.EntitiesAdded++
	}

	for _, in := range snap.Relationships {
		source := remap(idMap, in.SourceID)
		target := remap(idMap, in.TargetID)

		if in.Type == "" {
			res.RelationshipsSkipped++
			continue
		}
		if _, ok := g.entities[source]; !ok {
			res.RelationshipsSkipped++
			continue
		}
		if _, ok := g.entities[target]; !ok {
			res.RelationshipsSkipped++
			continue
		}
		if startSeq > 0 && g.hasRelationshipLocked(source, target, in.Type, startSeq) {
			res.RelationshipsSkipped++
			continue
		}

		_, err := g.insertRelationshipLocked(RelationshipInput{
			SourceID:      source,
			TargetID:      target,
			Type:          in.Type,
			Weight:        in.Weight,
			Properties:    in.Properties,
			Bidirectional: in.Bidirectional,
		}, in.CreatedAt)
		if err != nil {
			if errors.Is(err, ErrCapacityExceeded) {
				g.logger.Warn("merge: relationship skipped at capacity", "id", in.ID)
			} else {
				g.logger.Debug("merge: relationship skipped", "id", in.ID, "err", err)
			}
			res.RelationshipsSkipped++
			continue
		}
		res.RelationshipsAdded++
	}

	if g.config.AutoInference {
		g.runInferenceLocked()
	}

	g.logger.Info("merge complete",
		"entities_added", res.EntitiesAdded,
		"relationships_added", res.RelationshipsAdded,
		"duplicates_skipped", res.DuplicatesSkipped,
		"relationships_skipped", res.RelationshipsSkipped)
	g.emit(events.Event{
		Name:               events.MergeComplete,
		EntitiesAdded:      res.EntitiesAdded,
		RelationshipsAdded: res.RelationshipsAdded,
		DuplicatesSkipped:  res.DuplicatesSkipped,
	})
	return res, nil
}

func remap(idMap map[string]string, id string) string {
	if mapped, ok := idMap[id]; ok {
		return mapped
	}
	return id
}
