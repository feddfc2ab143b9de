// wlclip: Wayland clipboard and drag-and-drop client engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "wlclip",
		Short: "Wayland clipboard and drag-and-drop engine",
		Long: `wlclip is the client side of the Wayland data-device protocol: it
tracks offers, sources and per-seat drag state, and moves data through pipes.

Use "wlclip replay" to drive the engine from a recorded NDJSON trace of
compositor events and print the requests it sends and the data it receives.

Config file search order (first found wins):
  /etc/wlclip/wlclip.toml
  $HOME/.config/wlclip/wlclip.toml
  path supplied via --config

All flags can be set via WLCLIP_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newReplayCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("wlclip %s\n", Version)
		},
	}
}
