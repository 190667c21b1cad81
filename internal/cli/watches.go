package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/watchlog/internal/domain/model"
)

func addWatchCommands(topLevel *cobra.Command, o *Options) {
	topLevel.AddCommand(
		newWatchesCmd(o),
		newAddWatchCmd(o),
		newDelWatchCmd(o),
		newCurrentCmd(o),
	)
}

func newWatchesCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "watches",
		Aliases: []string{"lw"},
		Short:   "List all watches",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(_ context.Context, e *env) error {
				watches := e.session.Watches().Snapshot().Data
				rows := make([][]string, 0, len(watches))
				for _, w := range watches {
					rows = append(rows, []string{w.ID.String(), w.Name, cycleRanges(w.Cycles)})
				}
				if watches == nil {
					watches = []model.Watch{}
				}
				return e.out.Table(watches, []string{"ID", "Name", "Cycles"}, rows)
			})
		},
	}
}

func newAddWatchCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "add-watch NAME",
		Aliases: []string{"aw"},
		Short:   "Add a new watch",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				w, err := e.session.Pipeline().CreateWatch(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if e.out.json {
					return e.out.JSON(w)
				}
				return e.out.Done("Added watch %s (id %s)", w.Name, w.ID)
			})
		},
	}
}

func newDelWatchCmd(o *Options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "del-watch NAME",
		Aliases: []string{"dw"},
		Short:   "Delete a watch and all of its measurements",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Watch = strings.Join(args, " ")
			return o.run(cmd, func(ctx context.Context, e *env) error {
				sel, err := e.session.Current(ctx)
				if err != nil {
					return err
				}
				if sel.Watch == nil {
					return ErrNoWatch
				}
				if !yes && !confirm(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(),
					fmt.Sprintf("Are you sure you want to delete watch '%s'?", sel.Watch.Name)) {
					return e.out.Done("Nothing deleted")
				}
				if err := e.session.Pipeline().DeleteWatch(ctx, *sel.Watch); err != nil {
					return err
				}
				return e.out.Done("Deleted watch %s", sel.Watch.Name)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newCurrentCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "current",
		Aliases: []string{"cur"},
		Short:   "Show the watch and cycle commands act on",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				sel, err := e.session.Current(ctx)
				if err != nil {
					return err
				}
				if sel.Watch == nil {
					if e.out.json {
						return e.out.JSON(map[string]any{"watch": nil, "cycle": nil})
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "No watch selected.")
					return err
				}
				cycle := "-"
				if sel.Cycle.Valid {
					cycle = fmt.Sprint(sel.Cycle.Value)
				}
				return e.out.Table(
					map[string]any{"watch": sel.Watch, "cycle": sel.Cycle.Value},
					[]string{"Watch", "Cycle"},
					[][]string{{sel.Watch.Name, cycle}},
				)
			})
		},
	}
}

// confirm asks a y/n question until it gets an answer. EOF counts as no.
func confirm(r *bufio.Reader, out io.Writer, question string) bool {
	for {
		_, _ = fmt.Fprintf(out, "%s [y/n] ", question)
		line, err := r.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			return false
		}
	}
}
