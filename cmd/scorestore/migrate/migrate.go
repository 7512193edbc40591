package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/inmem"
	"github.com/boardgamescores/scorestore/kit/cli"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration/all"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type migrateOptions struct {
	boltPath string
	timeout  time.Duration
	dryRun   bool
	backup   bool
}

// NewCommand returns the migrate command.
func NewCommand(ctx context.Context, v *viper.Viper) (*cobra.Command, error) {
	var o migrateOptions
	var logLevel zapcore.Level

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the store up to the latest schema version",
		Long: `Applies every pending schema version to the store, in order, one
transaction per version. A failed version is rolled back and the store stays
at the last version that completed; running the command again resumes from it.

The application runs the same migrations on startup. This command is useful to
migrate ahead of time, to take a backup first or to see what would change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logconf := &logger.Config{
				Format: "auto",
				Level:  logLevel,
			}
			log, err := logconf.New(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runMigrate(ctx, cmd.OutOrStdout(), log, o)
		},
	}

	opts := []cli.Opt{
		{
			DestP:   &o.boltPath,
			Flag:    "bolt-path",
			Default: storage.DefaultPath(),
			Desc:    "path for boltdb database",
			Short:   'm',
		},
		{
			DestP:   &o.timeout,
			Flag:    "timeout",
			Default: bolt.DefaultTimeout,
			Desc:    "how long to wait for a store locked by another process",
		},
		{
			DestP: &o.dryRun,
			Flag:  "dry-run",
			Desc:  "list the pending versions without applying them",
		},
		{
			DestP: &o.backup,
			Flag:  "backup",
			Desc:  "copy the store next to itself before applying pending versions",
		},
		{
			DestP:   &logLevel,
			Flag:    "log-level",
			Default: zapcore.InfoLevel,
			Desc:    "supported log levels are debug, info, warn and error",
		},
	}
	if err := cli.BindOptions(v, cmd, opts); err != nil {
		return nil, err
	}

	return cmd, nil
}

func runMigrate(ctx context.Context, w io.Writer, log *zap.Logger, o migrateOptions) error {
	if o.dryRun {
		return dryRun(ctx, w, log, o)
	}

	c := storage.NewConfig()
	c.Path = o.boltPath
	c.Timeout = o.timeout
	if o.backup {
		c.BackupPath = fmt.Sprintf("%s.%s-pre-migration.backup", o.boltPath, time.Now().UTC().Format("20060102T150405Z"))
	}

	e, err := storage.Open(ctx, log, c)
	if err != nil {
		return err
	}
	defer e.Close()

	version, err := e.Migrator().Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s is at schema version %d\n", o.boltPath, version)
	return nil
}

func dryRun(ctx context.Context, w io.Writer, log *zap.Logger, o migrateOptions) error {
	var store kv.Store
	if _, err := os.Stat(o.boltPath); errors.Is(err, os.ErrNotExist) {
		// a store that does not exist yet has every version pending
		store = inmem.NewKVStore()
	} else {
		s := bolt.NewKVStore(log.With(zap.String("service", "bolt")), o.boltPath,
			bolt.WithReadOnly, bolt.WithTimeout(o.timeout))
		if err := s.Open(ctx); err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	m, err := all.NewMigrator(log.With(zap.String("service", "migrations")), store)
	if err != nil {
		return err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Fprintf(w, "%s is up to date\n", o.boltPath)
		return nil
	}
	fmt.Fprintf(w, "%d pending version(s) for %s:\n", len(pending), o.boltPath)
	for _, mig := range pending {
		fmt.Fprintf(w, "%04d %s\n", mig.Version, mig.Name)
	}
	return nil
}
