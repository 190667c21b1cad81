package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/watchlog/internal/adapters/http/client"
	service "github.com/okian/watchlog/internal/app"
	"github.com/okian/watchlog/internal/tui"
)

const reportBuffer = 16

func addUI(topLevel *cobra.Command, o *Options) {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive terminal interface",
		Example: `
watchlog ui
watchlog ui --watch "Seamaster"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			// The terminal belongs to the UI; logs go to log_file or nowhere.
			o.Verbose = false
			cfg, closeLog, err := o.loadConfig(cmd, io.Discard)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			reports := service.NewChannelReporter(reportBuffer)
			defaultWatch := cfg.DefaultWatch
			if o.Watch != "" {
				defaultWatch = o.Watch
			}
			session := service.New(
				client.New(cfg.BackendURL, client.WithTimeout(cfg.RequestTimeout())),
				service.WithQueueSize(cfg.QueueSize),
				service.WithReporter(reports),
				service.WithDefaultWatch(defaultWatch),
			)
			if err := session.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = session.Stop(context.Background()) }()

			return tui.Run(ctx, session, reports.C())
		},
	}
	topLevel.AddCommand(cmd)
}
