package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/boardgamescores/scorestore/cmd/scorestore/inspect"
	"github.com/boardgamescores/scorestore/cmd/scorestore/migrate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, err := NewCommand(ctx, viper.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		cancel()
		os.Exit(1)
	}
}

// NewCommand returns the root scorestore command. Every option can also be
// set through a SCORESTORE_ prefixed environment variable.
func NewCommand(ctx context.Context, v *viper.Viper) (*cobra.Command, error) {
	v.SetEnvPrefix("SCORESTORE")
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cmd := &cobra.Command{
		Use:          "scorestore",
		Short:        "Manage the local board game score store",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	migrateCmd, err := migrate.NewCommand(ctx, v)
	if err != nil {
		return nil, err
	}
	inspectCmd, err := inspect.NewCommand(ctx, v)
	if err != nil {
		return nil, err
	}
	cmd.AddCommand(migrateCmd, inspectCmd)
	return cmd, nil
}
