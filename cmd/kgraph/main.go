// Package main provides the kgraph CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/orneryd/kgraph/pkg/config"
	"github.com/orneryd/kgraph/pkg/events"
	"github.com/orneryd/kgraph/pkg/graph"
	"github.com/orneryd/kgraph/pkg/logging"
	"github.com/orneryd/kgraph/pkg/metrics"
	"github.com/orneryd/kgraph/pkg/snapshot"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// app carries what every command needs, built once flags are parsed.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	bus      *events.Bus
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "kgraph",
		Short: "kgraph - in-memory knowledge graph for agent memory",
		Long: `kgraph stores typed entities and weighted relationships, answers
pattern queries and shortest-path requests, derives relationships
through rule-based inference and merges snapshots from peers.

Graphs are exchanged as JSON snapshot files and can be kept in a
local snapshot store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown(cmd)
		},
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json, logfmt")
	rootCmd.PersistentFlags().String("snapshot-dir", "", "Snapshot store directory")
	rootCmd.PersistentFlags().Bool("metrics", false, "Print metrics to stderr on exit")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kgraph v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(
		newInitCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newStatsCmd(a),
		newQueryCmd(a),
		newPathCmd(a),
		newNeighborsCmd(a),
		newInferCmd(a),
		newSnapshotCmd(a),
	)
	return rootCmd
}

// setup loads configuration (file, then env, then flags) and builds the
// logger, event bus and metrics.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromEnvOrFile(path)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v, _ := cmd.Flags().GetString("snapshot-dir"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v, _ := cmd.Flags().GetBool("metrics"); v {
		cfg.Metrics.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.Logging, cmd.ErrOrStderr())
	a.bus = events.NewBus()
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(a.registry, cfg.Metrics.Namespace)
		a.metrics.Attach(a.bus)
	}
	a.logger.Debug("configuration loaded", "config", cfg.String())
	return nil
}

func (a *app) teardown(cmd *cobra.Command) {
	if a.registry != nil {
		printMetrics(cmd, a.registry)
	}
	if a.bus != nil {
		a.bus.Close()
	}
}

// newGraph creates an empty graph wired to the app's logger, bus and
// metrics.
func (a *app) newGraph() *graph.KnowledgeGraph {
	g := graph.New(a.cfg.GraphOptions(),
		graph.WithLogger(logging.Component(a.logger, "graph")),
		graph.WithPublisher(a.bus),
	)
	if a.metrics != nil {
		a.metrics.WatchGraph(g)
	}
	return g
}

// loadGraph merges the snapshot file at path into a new graph.
func (a *app) loadGraph(path string) (*graph.KnowledgeGraph, error) {
	snap, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := a.newGraph()
	if _, err := g.Merge(snap); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return g, nil
}

func (a *app) openStore() (*snapshot.BadgerStore, error) {
	return snapshot.Open(snapshot.Options{
		Dir:        a.cfg.Snapshot.Dir,
		InMemory:   a.cfg.Snapshot.InMemory,
		SyncWrites: a.cfg.Snapshot.SyncWrites,
	})
}

// printMetrics writes every gathered family to stderr in the Prometheus text
// exposition format.
func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		return
	}
	enc := expfmt.NewEncoder(cmd.ErrOrStderr(), expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}
