package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/wlclip/internal/clip"
	"go.klb.dev/wlclip/internal/replay"
)

func newReplayCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "replay [trace.ndjson]",
		Short: "Drive the engine from a recorded event trace",
		Long: `Reads an NDJSON trace of compositor events (from the file, or stdin when
omitted or "-") and writes the requests the engine sends and every completed
transfer to stdout, one JSON record per line.

With --mirror, completed selections are also written to the host clipboard.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runReplay(cmd, v, args) },
	}

	f := cmd.Flags()
	f.Duration("timeout", 5*time.Second, "how long to wait for a transfer to complete")
	f.Bool("mirror", false, "copy received selections to the host clipboard")
	addAppFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runReplay(cmd *cobra.Command, v *viper.Viper, args []string) error {
	logs, err := setupLogging(v)
	if err != nil {
		return err
	}
	defer logs.Close()

	cfg, err := appConfig(v)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer f.Close()
		in = f
	}

	opts := replay.Options{App: cfg, Timeout: v.GetDuration("timeout")}
	if v.GetBool("mirror") {
		b := clip.New()
		defer b.Close()
		slog.Info("mirroring selections", "component", "replay", "backend", b.Name())
		opts.Mirror = b
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := replay.Run(ctx, in, cmd.OutOrStdout(), opts); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}
