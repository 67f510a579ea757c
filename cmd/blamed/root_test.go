package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0", newApp())

	if cmd.Use != "blamed" {
		t.Errorf("expected Use='blamed', got %q", cmd.Use)
	}
	if cmd.Version != "1.0.0" {
		t.Errorf("expected Version='1.0.0', got %q", cmd.Version)
	}
}

func TestRootCmdHasFlags(t *testing.T) {
	cmd := NewRootCmd("1.0.0", nil)

	for _, name := range []string{"config", "log-level", "json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to exist", name)
		}
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	cmd := NewRootCmd("dev", newApp())

	for _, name := range []string{"serve", "blame", "mirror", "cache", "config"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestNeedsSetup(t *testing.T) {
	root := NewRootCmd("dev", newApp())

	cases := []struct {
		args []string
		want bool
	}{
		{[]string{"blame"}, true},
		{[]string{"mirror", "sync"}, true},
		{[]string{"cache", "get"}, true},
		{[]string{"config", "init"}, false},
		{[]string{"config", "show"}, false},
	}
	for _, tc := range cases {
		sub, _, err := root.Find(tc.args)
		if err != nil {
			t.Fatalf("find %v: %v", tc.args, err)
		}
		if got := needsSetup(sub); got != tc.want {
			t.Errorf("needsSetup(%v) = %v, want %v", tc.args, got, tc.want)
		}
	}

	if needsSetup(root) {
		t.Error("root command should not build the engine")
	}
}

// withRoot attaches cmd to a bare root carrying the persistent flags.
func withRoot(cmd *cobra.Command) *cobra.Command {
	root := &cobra.Command{Use: "blamed", SilenceErrors: true, SilenceUsage: true}
	addPersistentFlags(root)
	root.AddCommand(cmd)
	return root
}
