package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/wlclip/internal/clipapp"
	"go.klb.dev/wlclip/internal/wlproto"
)

func replayViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := &cobra.Command{Use: "test"}
	addAppFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	if err := bindViper(cmd, v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestAppConfigDefaults(t *testing.T) {
	got, err := appConfig(replayViper(t))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(clipapp.DefaultConfig(), got); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestAppConfigFlags(t *testing.T) {
	got, err := appConfig(replayViper(t, "--accept", "text/uri-list,text/plain", "--actions", "move|ask", "--preferred", "move"))
	if err != nil {
		t.Fatal(err)
	}
	want := clipapp.Config{
		Accept:    []string{"text/uri-list", "text/plain"},
		Actions:   wlproto.ActionMove | wlproto.ActionAsk,
		Preferred: wlproto.ActionMove,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestAppConfigEnv(t *testing.T) {
	t.Setenv("WLCLIP_ACTIONS", "copy")
	got, err := appConfig(replayViper(t))
	if err != nil {
		t.Fatal(err)
	}
	if got.Actions != wlproto.ActionCopy {
		t.Errorf("Actions = %v, want copy", got.Actions)
	}
}

func TestAppConfigRejects(t *testing.T) {
	for _, args := range [][]string{
		{"--actions", "copy|fling"},
		{"--preferred", "copy|move"},
	} {
		if _, err := appConfig(replayViper(t, args...)); err == nil {
			t.Errorf("appConfig(%q) succeeded", args)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "replay.log")
	logs, err := setupLogging(replayViper(t, "-v", "--log-format", "json", "--log-file", path))
	if err != nil {
		t.Fatal(err)
	}
	slog.Debug("offer released", "offer", 7)
	logs.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), `"msg":"offer released"`) {
		t.Errorf("log file = %q, want the debug record as JSON", got)
	}

	if _, err := setupLogging(replayViper(t, "--log-level", "loud")); err == nil {
		t.Error("unknown log level accepted")
	}
}
