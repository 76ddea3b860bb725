package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aretw0/tessera"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/segment"
	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch TYPE [PAYLOAD]",
	Short: "Dispatch an action and print the resulting state",
	Long: `Dispatches one action against a fresh demo container. PAYLOAD is parsed
as JSON, falling back to a plain string.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(c *tessera.Container) error {
			if err := c.Dispatch(domain.NewAction(args[0], payloadArg(args, 1), nil)); err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), c)
		})
	},
}

var callCmd = &cobra.Command{
	Use:   "call PATH [PAYLOAD]",
	Short: "Call an action method and print its result",
	Long:  `Calls "namespace.method" (or a root "method") on the action tree.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(c *tessera.Container) error {
			tree, err := c.Actions()
			if err != nil {
				return err
			}
			result, err := tree.Call(cmd.Context(), args[0], payloadArg(args, 1), nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		})
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "List the registered segments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(c *tessera.Container) error {
			infos, err := c.Segments()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\n", info.ID, info.Status)
			}
			return w.Flush()
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{dispatchCmd, callCmd, segmentsCmd} {
		cmd.Flags().StringSlice("load", nil, "Segments to load first")
		rootCmd.AddCommand(cmd)
	}
}

// withContainer runs fn against a container with the --load segments loaded.
func withContainer(cmd *cobra.Command, fn func(*tessera.Container) error) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	c, release, err := newContainer(cmd.Context(), cfg, logger, domain.LifecycleHooks{})
	if err != nil {
		return err
	}
	defer release()

	if ids, _ := cmd.Flags().GetStringSlice("load"); len(ids) > 0 {
		if _, err := c.LoadSegments(cmd.Context(), ids, segment.SkipOnLoaded()); err != nil {
			return err
		}
	}
	return fn(c)
}

func payloadArg(args []string, i int) any {
	if len(args) <= i {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(args[i]), &v); err != nil {
		return args[i]
	}
	return v
}

func printState(w io.Writer, c *tessera.Container) error {
	state, err := c.State()
	if err != nil {
		return err
	}
	return writeJSON(w, state)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
