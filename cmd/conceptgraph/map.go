package conceptgraph

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

var mapCmd = &cobra.Command{
	Use:   "map --user USER",
	Short: "Print a user's concept graph",
	RunE:  runMap,
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().String("user", "", "User who owns the graph (required)")
	mapCmd.Flags().String("format", "json", "Output format (json, yaml, text)")
	_ = mapCmd.MarkFlagRequired("user")

	addDatabaseFlags(mapCmd)
}

func runMap(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Reading the graph needs only the store.
	drv, err := driver.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}
	defer drv.Close()

	ctx := cmd.Context()
	nodes, err := drv.FindNodes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}
	edges, err := drv.FindEdges(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}
	if nodes == nil {
		nodes = []*types.Node{}
	}
	if edges == nil {
		edges = []*types.Edge{}
	}

	return renderGraph(cmd.OutOrStdout(), &types.Graph{Nodes: nodes, Edges: edges}, format)
}

// renderGraph writes g as json, yaml or a plain "source -> target" listing.
func renderGraph(w io.Writer, g *types.Graph, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		names := make(map[string]string, len(g.Nodes))
		for _, n := range g.Nodes {
			names[n.ID] = n.Name
		}
		lines := make([]string, 0, len(g.Edges))
		for _, e := range g.Edges {
			lines = append(lines, fmt.Sprintf("%s -> %s", names[e.SourceNodeID], names[e.TargetNodeID]))
		}
		sort.Strings(lines)
		fmt.Fprintf(w, "%d concepts, %d relations\n", len(g.Nodes), len(g.Edges))
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q (json, yaml, text)", format)
	}
}
