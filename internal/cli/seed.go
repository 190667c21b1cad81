package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/watchlog/internal/seed"
)

func addSeed(topLevel *cobra.Command, o *Options) {
	cfg := seed.DefaultConfig()
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the backend with generated watches and measurements",
		Example: `
watchlog seed --watches 3 --cycles 2 --per-cycle 30
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, e *env) error {
				run := cfg
				run.Verify = !noVerify
				res, err := seed.NewRunner(e.backend).Run(ctx, run)
				if err != nil {
					return err
				}
				if e.out.json {
					return e.out.JSON(res)
				}
				return e.out.Table(res, []string{"Watches", "Measurements", "Failed", "Cycles verified", "Duration"},
					[][]string{{
						strconv.Itoa(res.WatchesCreated),
						strconv.Itoa(res.MeasurementsSubmitted),
						strconv.Itoa(res.MeasurementsFailed),
						strconv.Itoa(res.CyclesVerified),
						res.Duration.Round(time.Millisecond).String(),
					}})
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Watches, "watches", cfg.Watches, "number of watches to create")
	flags.IntVar(&cfg.Cycles, "cycles", cfg.Cycles, "cycles per watch")
	flags.IntVar(&cfg.PerCycle, "per-cycle", cfg.PerCycle, "daily measurements per cycle")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent requests")
	flags.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "watch name prefix")
	flags.BoolVar(&noVerify, "no-verify", false, "skip reading the data back")
	topLevel.AddCommand(cmd)
}
