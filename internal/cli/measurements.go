package cli

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/watchlog/internal/domain/model"
)

func addMeasurementCommands(topLevel *cobra.Command, o *Options) {
	topLevel.AddCommand(
		newLogCmd(o),
		newMeasureCmd(o),
		newDelLogCmd(o),
		newStatsCmd(o),
	)
}

func newLogCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "log",
		Aliases: []string{"ll"},
		Short:   "List the measurements of the selected watch and cycle",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				if _, err := selected(ctx, e.session); err != nil {
					return err
				}
				snap := e.session.Measurements().Snapshot()
				if err := failure(snap); err != nil {
					return err
				}
				logs := snap.Data
				if logs == nil {
					logs = []model.Measurement{}
				}
				rows := make([][]string, 0, len(logs))
				for _, m := range logs {
					diff := "-"
					if m.Difference != nil {
						diff = strconv.FormatFloat(*m.Difference, 'f', 2, 64)
					}
					rows = append(rows, []string{m.ID.String(), m.Datetime.String(), e.out.Signed(m.Measure), diff})
				}
				return e.out.Table(logs, []string{"Log ID", "Time", "Measure", "Difference"}, rows)
			})
		},
	}
}

func newMeasureCmd(o *Options) *cobra.Command {
	var (
		yes      bool
		newCycle bool
		at       string
		wait     time.Duration
	)
	cmd := &cobra.Command{
		Use:     "measure [SECONDS]",
		Aliases: []string{"m"},
		Short:   "Add a measurement to the selected cycle",
		Long: `Add a measurement to the selected cycle.

With SECONDS the deviation is stored as given. Without it a timing prompt is
shown: press ENTER when the watch shows the announced time and the deviation is
computed from the system clock.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				sel, err := selected(ctx, e.session)
				if err != nil {
					return err
				}
				if newCycle {
					c, err := e.session.Pipeline().CreateCycle(ctx)
					if err != nil {
						return err
					}
					sel.Cycle = model.Cycle(c)
				}

				var stamp model.Timestamp
				if at != "" {
					if stamp, err = model.ParseTimestamp(at); err != nil {
						return err
					}
				}

				value := ""
				if len(args) == 1 {
					value = args[0]
				} else {
					in := bufio.NewReader(cmd.InOrStdin())
					measure, err := timedMeasure(cmd, in, e, wait)
					if err != nil {
						return err
					}
					value = strconv.FormatFloat(measure, 'f', 1, 64)
					if !yes && !confirm(in, cmd.OutOrStdout(),
						fmt.Sprintf("Add measure %s to '%s' cycle %d?", value, sel.Watch.Name, sel.Cycle.Value)) {
						return e.out.Done("Measure not added")
					}
				}

				if err := e.session.Pipeline().CreateMeasurement(ctx, sel.Watch.ID, sel.Cycle.Value, stamp, value); err != nil {
					return err
				}
				return e.out.Done("Added measure %s to '%s' cycle %d", value, sel.Watch.Name, sel.Cycle.Value)
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	flags.BoolVar(&newCycle, "new-cycle", false, "start a new cycle and measure into it")
	flags.StringVar(&at, "at", "", `measurement time "YYYY-MM-DD HH:MM:SS" (default: now)`)
	flags.DurationVar(&wait, "interval", defaultPromptInterval, "timing prompt granularity")
	return cmd
}

// timedMeasure shows the timing prompt and returns the deviation in seconds.
// The prompt is shifted by the cycle's latest reading so it lands on a round
// time on the watch's dial.
func timedMeasure(cmd *cobra.Command, in *bufio.Reader, e *env, wait time.Duration) (float64, error) {
	offset := 0.0
	if logs := e.session.Measurements().Snapshot().Data; len(logs) > 0 {
		offset = logs[len(logs)-1].Measure
	}
	prompt := nextPrompt(time.Now(), wait, offset)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "press ENTER at %s ", prompt.Format(time.TimeOnly))
	if _, err := in.ReadString('\n'); err != nil {
		return 0, fmt.Errorf("read timing prompt: %w", err)
	}
	return deviation(prompt, time.Now()), nil
}

func newDelLogCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "del-log LOG_ID",
		Aliases: []string{"dl"},
		Short:   "Delete a measurement of the selected cycle",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				sel, err := selected(ctx, e.session)
				if err != nil {
					return err
				}
				if err := e.session.Pipeline().DeleteMeasurement(ctx, model.ID(args[0]), sel.Watch.ID, sel.Cycle.Value); err != nil {
					return err
				}
				return e.out.Done("Deleted log %s", args[0])
			})
		},
	}
}

func newStatsCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"ls"},
		Short:   "Show statistics of the selected watch and cycle",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				if _, err := selected(ctx, e.session); err != nil {
					return err
				}
				snap := e.session.Stats().Snapshot()
				if err := failure(snap); err != nil {
					return err
				}
				stats := snap.Data
				rows := make([][]string, 0, len(stats))
				for _, k := range stats.Keys() {
					rows = append(rows, []string{k, stats.Format(k)})
				}
				if stats == nil {
					stats = model.Stats{}
				}
				return e.out.Table(stats, []string{"Statistic", "Value"}, rows)
			})
		},
	}
}

const defaultPromptInterval = 10 * time.Second

// nextPrompt returns the next round instant, on a dial running offset seconds
// ahead of now, that is at least one interval away.
func nextPrompt(now time.Time, interval time.Duration, offset float64) time.Time {
	if interval < time.Second {
		interval = time.Second
	}
	shifted := now.Add(time.Duration(offset * float64(time.Second)))
	return shifted.Truncate(interval).Add(2 * interval).Truncate(time.Second)
}

// deviation is how far the dial was ahead of the clock when it showed prompt,
// in seconds rounded to tenths.
func deviation(prompt, pressed time.Time) float64 {
	return math.Round(prompt.Sub(pressed).Seconds()*10) / 10
}
