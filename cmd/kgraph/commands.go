package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/kgraph/pkg/config"
	"github.com/orneryd/kgraph/pkg/graph"
	"github.com/orneryd/kgraph/pkg/inference"
	"github.com/orneryd/kgraph/pkg/snapshot"
)

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write an example config and rules file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			return runInit(cmd.OutOrStdout(), dir, force)
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite existing files")
	return cmd
}

func runInit(w io.Writer, dir string, force bool) error {
	fmt.Fprintf(w, "📂 Initializing kgraph in %s\n", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	files := []struct {
		name    string
		content string
	}{
		{"kgraph.yaml", config.ExampleConfigYAML},
		{"rules.yaml", inference.ExampleRulesYAML},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil && !force {
			fmt.Fprintf(w, "   ⏭️  %s exists, skipping\n", path)
			continue
		}
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(w, "   ✅ %s\n", path)
	}
	return nil
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Merge snapshot files into one graph",
		Long: `Reads the given snapshot files concurrently and merges them, in
argument order, into a fresh graph. With --rules, an inference pass
runs over the merged graph. The result is written to --out and/or
saved in the snapshot store under --save.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			save, _ := cmd.Flags().GetString("save")
			rules, _ := cmd.Flags().GetString("rules")
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), args, out, save, rules)
		},
	}
	cmd.Flags().StringP("out", "o", "", "Write the merged snapshot to this file")
	cmd.Flags().String("save", "", "Save the merged snapshot in the store under this name")
	cmd.Flags().String("rules", "", "Inference rules file applied after merging")
	return cmd
}

func (a *app) runImport(ctx context.Context, w io.Writer, paths []string, out, save, rulesPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	snaps, err := snapshot.ReadFiles(ctx, paths)
	if err != nil {
		return err
	}

	g := a.newGraph()
	if rulesPath != "" {
		if _, err := addRules(g, rulesPath); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "📥 Importing %d snapshot(s)\n", len(paths))
	for i, snap := range snaps {
		res, err := g.Merge(snap)
		if err != nil {
			return fmt.Errorf("merging %s: %w", paths[i], err)
		}
		fmt.Fprintf(w, "   %s: +%d entities, +%d relationships, %d duplicates, %d skipped\n",
			paths[i], res.EntitiesAdded, res.RelationshipsAdded, res.DuplicatesSkipped, res.RelationshipsSkipped)
	}

	if rulesPath != "" {
		created, err := g.RunInference()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "🧠 Inferred %d relationship(s)\n", len(created))
	}

	stats := g.Stats()
	fmt.Fprintf(w, "✅ Graph has %d entities and %d relationships\n", stats.TotalEntities, stats.TotalRelationships)
	return a.emitSnapshot(w, g.Export(), out, save)
}

// emitSnapshot writes snap to a file and/or the store.
func (a *app) emitSnapshot(w io.Writer, snap graph.Snapshot, out, save string) error {
	if out != "" {
		if err := snapshot.WriteFile(out, snap); err != nil {
			return err
		}
		fmt.Fprintf(w, "💾 Wrote %s\n", out)
	}
	if save != "" {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		info, err := store.Save(save, snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "💾 Saved %q (%s)\n", info.Name, shortDigest(info.Digest))
	}
	return nil
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a stored snapshot to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			return a.runExport(cmd.OutOrStdout(), args[0], out)
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) runExport(w io.Writer, name, out string) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap, _, err := store.Load(name)
	if err != nil {
		return err
	}
	if out == "" {
		return snapshot.Encode(w, snap)
	}
	if err := snapshot.WriteFile(out, snap); err != nil {
		return err
	}
	fmt.Fprintf(w, "💾 Wrote %s (%d entities, %d relationships)\n", out, len(snap.Entities), len(snap.Relationships))
	return nil
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Print graph statistics for a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGraph(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g.Stats())
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <file> <entity>",
		Short: "Enumerate paths from an entity",
		Long: `Loads a snapshot file and prints the paths starting at <entity>.
An entity is referenced by id, by "type:name" or by a unique name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pattern graph.GraphPattern
			pattern.MinDepth, _ = cmd.Flags().GetInt("min-depth")
			pattern.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
			pattern.MaxPaths, _ = cmd.Flags().GetInt("max-paths")
			pattern.EntityTypes, _ = cmd.Flags().GetStringSlice("entity-types")
			pattern.RelationshipTypes, _ = cmd.Flags().GetStringSlice("rel-types")
			if fewest, _ := cmd.Flags().GetBool("fewest"); fewest {
				pattern.Mode = graph.FewestPaths
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			g, err := a.loadGraph(args[0])
			if err != nil {
				return err
			}
			start, err := resolveEntity(g, args[1])
			if err != nil {
				return err
			}
			paths := g.Query(start.ID, pattern)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), paths)
			}
			for i := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  (%g)\n", paths[i].String(), paths[i].TotalWeight)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d path(s)\n", len(paths))
			return nil
		},
	}
	cmd.Flags().Int("min-depth", 0, "Minimum hops per path")
	cmd.Flags().Int("max-depth", 0, "Maximum hops per path (default: max inference depth)")
	cmd.Flags().Int("max-paths", 0, "Stop after this many paths (0 = unlimited)")
	cmd.Flags().StringSlice("entity-types", nil, "Allowed entity types for every hop")
	cmd.Flags().StringSlice("rel-types", nil, "Allowed relationship types for every hop")
	cmd.Flags().Bool("fewest", false, "Reach each entity once via its fewest-hop route")
	cmd.Flags().Bool("json", false, "Print paths as JSON")
	return cmd
}

func newPathCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path <file> <from> <to>",
		Short: "Find the minimum-weight path between two entities",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			g, err := a.loadGraph(args[0])
			if err != nil {
				return err
			}
			from, err := resolveEntity(g, args[1])
			if err != nil {
				return err
			}
			to, err := resolveEntity(g, args[2])
			if err != nil {
				return err
			}

			path := g.ShortestPath(from.ID, to.ID)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), path)
			}
			if path == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "❌ No path from %s to %s\n", from.Name, to.Name)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  (%g)\n", path.String(), path.TotalWeight)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the path as JSON")
	return cmd
}

func newNeighborsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors <file> <entity>",
		Short: "List entities within a number of hops",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			g, err := a.loadGraph(args[0])
			if err != nil {
				return err
			}
			start, err := resolveEntity(g, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g.Neighbors(start.ID, depth))
		},
	}
	cmd.Flags().Int("depth", 1, "Hop distance")
	return cmd
}

func newInferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer <file>",
		Short: "Apply inference rules to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rulesPath, _ := cmd.Flags().GetString("rules")
			out, _ := cmd.Flags().GetString("out")
			save, _ := cmd.Flags().GetString("save")

			g, err := a.loadGraph(args[0])
			if err != nil {
				return err
			}
			n, err := addRules(g, rulesPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧠 Running %d rule(s)\n", n)

			created, err := g.RunInference()
			if err != nil {
				return err
			}
			for _, rel := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "   + %s -[%s]-> %s (%v)\n",
					entityName(g, rel.SourceID), rel.Type, entityName(g, rel.TargetID), rel.Properties[inference.PropRuleName])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Inferred %d relationship(s)\n", len(created))
			return a.emitSnapshot(cmd.OutOrStdout(), g.Export(), out, save)
		},
	}
	cmd.Flags().String("rules", "rules.yaml", "Inference rules file")
	cmd.Flags().StringP("out", "o", "", "Write the result to this file")
	cmd.Flags().String("save", "", "Save the result in the store under this name")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the snapshot store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save <name> <file>",
		Short: "Store a snapshot file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGraph(args[1])
			if err != nil {
				return err
			}
			return a.emitSnapshot(cmd.OutOrStdout(), g.Export(), "", args[0])
		},
	})

	load := &cobra.Command{
		Use:   "load <name>",
		Short: "Write a stored snapshot to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			return a.runExport(cmd.OutOrStdout(), args[0], out)
		},
	}
	load.Flags().StringP("out", "o", "", "Output file (default stdout)")
	cmd.AddCommand(load)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.List()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(w, "No snapshots stored")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(w, "%-24s %6d entities %7d relationships  %s  %s\n",
					info.Name, info.Entities, info.Relationships,
					info.SavedAt.Format("2006-01-02 15:04:05"), shortDigest(info.Digest))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted %q\n", args[0])
			return nil
		},
	})

	return cmd
}

// addRules loads a rules file into g and returns how many rules were added.
func addRules(g *graph.KnowledgeGraph, path string) (int, error) {
	rules, err := inference.LoadRules(path)
	if err != nil {
		return 0, err
	}
	for _, r := range rules {
		if _, err := g.AddInferenceRule(r); err != nil {
			return 0, fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}
	return len(rules), nil
}

// resolveEntity finds an entity by id, by "type:name" or by exact name.
func resolveEntity(g *graph.KnowledgeGraph, ref string) (graph.Entity, error) {
	if e, ok := g.GetEntity(ref); ok {
		return e, nil
	}

	filter := graph.EntityFilter{Name: ref}
	name := ref
	if typ, n, ok := strings.Cut(ref, ":"); ok {
		filter = graph.EntityFilter{Type: typ, Name: n}
		name = n
	}

	var matches []graph.Entity
	for _, e := range g.FindEntities(filter) {
		if strings.EqualFold(e.Name, name) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return graph.Entity{}, fmt.Errorf("%w: %s", graph.ErrEntityNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return graph.Entity{}, fmt.Errorf("%q matches %d entities, use type:name or an id", ref, len(matches))
	}
}

func entityName(g *graph.KnowledgeGraph, id string) string {
	if e, ok := g.GetEntity(id); ok {
		return e.Name
	}
	return id
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
