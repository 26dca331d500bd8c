package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/notewise/internal/client"
)

// newToggleCmd builds pin and archive. The cache ignores unknown ids, so the
// command checks first and reports them.
func newToggleCmd(opts *options, use, short string, toggle func(*client.Cache, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := opts.loadCache(cmd.Context())
			if err != nil {
				return err
			}
			id := args[0]
			if _, ok := cache.Get(id); !ok {
				return fmt.Errorf("note %s not found", id)
			}
			if err := toggle(cache, cmd.Context(), id); err != nil {
				return err
			}
			n, _ := cache.Get(id)
			newRenderer(cmd.OutOrStdout()).note(n)
			return nil
		},
	}
}
