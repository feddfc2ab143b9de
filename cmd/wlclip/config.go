package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/wlclip/internal/clipapp"
	"go.klb.dev/wlclip/internal/logging"
	"go.klb.dev/wlclip/internal/wlproto"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and WLCLIP_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → WLCLIP_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("wlclip")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/wlclip/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/wlclip", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("WLCLIP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("verbose", "v", false, "log every event, request and transfer (same as --log-level=debug)")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json (auto: text on a terminal)")
	cmd.Flags().String("log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().String("log-file", "", "append logs to this file instead of stderr")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addAppFlags adds the flags that shape how offers are accepted.
func addAppFlags(cmd *cobra.Command) {
	def := clipapp.DefaultConfig()
	f := cmd.Flags()
	f.StringSlice("accept", def.Accept, "MIME types to accept, most preferred first")
	f.String("actions", def.Actions.String(), "drag actions to support: copy|move|ask")
	f.String("preferred", def.Preferred.String(), "preferred drag action")
}

// setupLogging reads logging flags from viper and configures slog. The
// returned closer releases the log file, if any.
func setupLogging(v *viper.Viper) (io.Closer, error) {
	level, err := logging.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	w, err := logging.Open(v.GetString("log-file"))
	if err != nil {
		return nil, err
	}
	logging.Setup(w, logging.ParseFormat(v.GetString("log-format")), level)
	return w, nil
}

// appConfig builds the application policy from viper.
func appConfig(v *viper.Viper) (clipapp.Config, error) {
	cfg := clipapp.DefaultConfig()
	if accept := v.GetStringSlice("accept"); len(accept) > 0 {
		cfg.Accept = accept
	}
	actions, err := wlproto.ParseDndActions(v.GetString("actions"))
	if err != nil {
		return cfg, fmt.Errorf("actions: %w", err)
	}
	preferred, err := wlproto.ParseDndActions(v.GetString("preferred"))
	if err != nil {
		return cfg, fmt.Errorf("preferred: %w", err)
	}
	if preferred != wlproto.ActionNone && !preferred.Single() {
		return cfg, fmt.Errorf("preferred: %q is not a single action", v.GetString("preferred"))
	}
	cfg.Actions, cfg.Preferred = actions, preferred
	return cfg, nil
}
