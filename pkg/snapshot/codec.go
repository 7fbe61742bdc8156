// Package snapshot persists and exchanges knowledge graph snapshots.
//
// A snapshot is the plain entity/relationship export produced by
// graph.KnowledgeGraph.Export and consumed by Merge. This package provides:
//   - a JSON file codec (Encode, Decode, WriteFile, ReadFile, ReadFiles)
//   - a content digest (Digest) for integrity checks between peers
//   - BadgerStore, a named snapshot store backed by BadgerDB
//
// Example Usage:
//
//	// Ship a graph to a peer as a file
//	err := snapshot.WriteFile("peer-a.json", g.Export())
//
//	// ...and merge several peers at once
//	snaps, err := snapshot.ReadFiles(ctx, []string{"peer-a.json", "peer-b.json"})
//	for _, s := range snaps {
//		res, _ := local.Merge(s)
//		fmt.Println(res.EntitiesAdded, res.DuplicatesSkipped)
//	}
package snapshot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/kgraph/pkg/graph"
)

// MaxParallelReads bounds concurrent file decoding in ReadFiles.
const MaxParallelReads = 8

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap graph.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalize(snap)); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Decode reads a JSON snapshot.
func Decode(r io.Reader) (graph.Snapshot, error) {
	var snap graph.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return graph.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return normalize(snap), nil
}

// WriteFile encodes snap to path, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func WriteFile(path string, snap graph.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile decodes the snapshot stored at path.
func ReadFile(path string) (graph.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return graph.Snapshot{}, err
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// ReadFiles decodes several snapshot files concurrently. Results are in the
// order of paths. The first failure cancels the remaining reads.
func ReadFiles(ctx context.Context, paths []string) ([]graph.Snapshot, error) {
	out := make([]graph.Snapshot, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelReads)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, err := ReadFile(path)
			if err != nil {
				return err
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Digest returns the hex BLAKE2b-256 digest of the snapshot's compact JSON
// form. Map keys are encoded in sorted order, so equal snapshots always
// digest equally.
func Digest(snap graph.Snapshot) (string, error) {
	data, err := json.Marshal(normalize(snap))
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return digestBytes(data), nil
}

func digestBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// normalize replaces nil slices so empty snapshots encode as [] rather than
// null.
func normalize(snap graph.Snapshot) graph.Snapshot {
	if snap.Entities == nil {
		snap.Entities = []graph.Entity{}
	}
	if snap.Relationships == nil {
		snap.Relationships = []graph.Relationship{}
	}
	return snap
}
