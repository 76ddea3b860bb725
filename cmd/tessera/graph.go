package main

import (
	"fmt"

	"github.com/aretw0/tessera"
	"github.com/aretw0/tessera/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the container composition",
	Long:  `Outputs a Mermaid diagram (graph TD) of the namespaces, their action methods and the registered segments.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(c *tessera.Container) error {
			topology, err := inspect(c)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(topology))
			return nil
		})
	},
}

func init() {
	graphCmd.Flags().StringSlice("load", nil, "Segments to load first")
	rootCmd.AddCommand(graphCmd)
}

func inspect(c *tessera.Container) (graph.Topology, error) {
	namespaces, err := c.Namespaces()
	if err != nil {
		return graph.Topology{}, err
	}
	tree, err := c.Actions()
	if err != nil {
		return graph.Topology{}, err
	}
	segments, err := c.Segments()
	if err != nil {
		return graph.Topology{}, err
	}

	methods := map[string][]string{"": tree.Root().Names()}
	for _, ns := range tree.Namespaces() {
		b, _ := tree.Namespace(ns)
		methods[ns] = b.Names()
	}
	return graph.Topology{Namespaces: namespaces, Methods: methods, Segments: segments}, nil
}
