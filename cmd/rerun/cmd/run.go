package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/rerun/internal/config"
	"github.com/nfrund/rerun/internal/logging"
	"github.com/nfrund/rerun/internal/output"
	"github.com/nfrund/rerun/internal/pubsub"
	"github.com/nfrund/rerun/internal/runner"
	"github.com/nfrund/rerun/internal/session"
)

var (
	watchFlag      bool
	autoOutputFlag bool
	tracerFlag     bool
)

var runCmd = &cobra.Command{
	Use:   "run <script> [args...]",
	Short: "Run a Tengo script under the supervisor",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.New()

		cfg := config.New()
		if cmd.Flags().Changed("watch") {
			cfg.RunOnSave = watchFlag
		}
		if cmd.Flags().Changed("auto-output") {
			cfg.AutoOutput = autoOutputFlag
		}
		if cmd.Flags().Changed("tracer") {
			cfg.InstallTracer = tracerFlag
		}

		sess := session.New(args[0], args[1:])
		sink := output.NewWriterSink(os.Stdout)

		r := runner.New(runner.Dependencies{
			Session: sess,
			Sink:    sink,
			Config:  cfg,
		})

		bridge := pubsub.NewWatermillBridge()
		defer bridge.Close()
		runner.NewNotifier(bridge).Attach(r)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := bridge.Subscribe(ctx, runner.TopicStateChanged, func(_ context.Context, msg pubsub.Message) error {
			slog.Debug("Execution state changed", "state", string(msg.Payload))
			return nil
		})
		if err != nil {
			slog.Warn("State change subscription unavailable", "error", err)
		}

		if err := r.Init(ctx); err != nil {
			// The supervisor still works without a watcher; saves just
			// won't trigger reruns.
			slog.Warn("File watcher unavailable", "error", err)
		}

		r.Start()

		if cfg.RunOnSave {
			// Stay alive so saved edits keep rerunning the script.
			<-ctx.Done()
		} else {
			r.Wait()
		}

		return r.Close()
	},
}

func init() {
	runCmd.Flags().BoolVar(&watchFlag, "watch", true, "rerun the script when its file changes")
	runCmd.Flags().BoolVar(&autoOutputFlag, "auto-output", false, "forward bare expression results to the output sink")
	runCmd.Flags().BoolVar(&tracerFlag, "tracer", true, "install the per-statement interruption checkpoint")
	rootCmd.AddCommand(runCmd)
}
