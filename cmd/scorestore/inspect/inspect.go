package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/kit/cli"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/kv/migration/all"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/storage"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xlab/treeprint"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Report describes the persisted state of a store.
type Report struct {
	Path          string             `json:"path" yaml:"path"`
	Size          int64              `json:"size" yaml:"size"`
	Version       int                `json:"version" yaml:"version"`
	LatestVersion int                `json:"latestVersion" yaml:"latestVersion"`
	Migrations    []MigrationReport  `json:"migrations" yaml:"migrations"`
	Collections   []CollectionReport `json:"collections" yaml:"collections"`
	Buckets       []bolt.BucketStats `json:"buckets" yaml:"buckets"`
}

// MigrationReport is a single schema version and whether it was applied.
type MigrationReport struct {
	Version    int        `json:"version" yaml:"version"`
	Name       string     `json:"name" yaml:"name"`
	State      string     `json:"state" yaml:"state"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// CollectionReport is a collection as declared by the persisted schema.
type CollectionReport struct {
	Name       string   `json:"name" yaml:"name"`
	PrimaryKey string   `json:"primaryKey" yaml:"primaryKey"`
	Indexes    []string `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Records    int      `json:"records" yaml:"records"`
}

// NewCommand returns the inspect command.
func NewCommand(ctx context.Context, v *viper.Viper) (*cobra.Command, error) {
	var boltPath, format string
	var timeout time.Duration
	var logLevel zapcore.Level

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the schema version, migrations and collections of a store",
		Long: `Opens the store read-only and prints its persisted schema version, the
migrations applied to it and the record count of every collection. It never
migrates the store.`,
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

			s := bolt.NewKVStore(log.With(zap.String("service", "bolt")), boltPath,
				bolt.WithReadOnly, bolt.WithTimeout(timeout))
			if err := s.Open(ctx); err != nil {
				return err
			}
			defer s.Close()

			report, err := Inspect(ctx, log, s)
			if err != nil {
				return err
			}
			return Write(cmd.OutOrStdout(), report, format)
		},
	}

	opts := []cli.Opt{
		{
			DestP:   &boltPath,
			Flag:    "bolt-path",
			Default: storage.DefaultPath(),
			Desc:    "path for boltdb database",
			Short:   'm',
		},
		{
			DestP:   &format,
			Flag:    "format",
			Default: "tree",
			Desc:    "output format: tree, yaml or json",
		},
		{
			DestP:   &timeout,
			Flag:    "timeout",
			Default: bolt.DefaultTimeout,
			Desc:    "how long to wait for a store locked by another process",
		},
		{
			DestP:   &logLevel,
			Flag:    "log-level",
			Default: zapcore.WarnLevel,
			Desc:    "supported log levels are debug, info, warn and error",
		},
	}
	if err := cli.BindOptions(v, cmd, opts); err != nil {
		return nil, err
	}

	return cmd, nil
}

// Inspect builds the report of an open bolt store.
func Inspect(ctx context.Context, log *zap.Logger, s *bolt.KVStore) (*Report, error) {
	m, err := all.NewMigrator(log.With(zap.String("service", "migrations")), s)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Path:          s.Path(),
		LatestVersion: m.Registry().LatestVersion(),
	}
	fi, err := os.Stat(s.Path())
	if err != nil {
		return nil, err
	}
	r.Size = fi.Size()

	if r.Version, err = m.Version(ctx); err != nil {
		return nil, err
	}

	migrations, err := m.List(ctx)
	if err != nil {
		// a store written by a newer build still gets its collections reported
		log.Warn("Unable to list migrations", zap.Error(err))
	}
	for _, mig := range migrations {
		r.Migrations = append(r.Migrations, MigrationReport{
			Version:    mig.Version,
			Name:       mig.Name,
			State:      mig.State.String(),
			FinishedAt: mig.FinishedAt,
		})
	}

	if err := s.View(ctx, func(tx kv.Tx) error {
		d, ok, err := migration.ReadDescriptor(tx)
		if err != nil || !ok {
			return err
		}
		for _, spec := range d.Collections {
			c, err := kv.OpenCollection(tx, spec)
			if err != nil {
				return err
			}
			n, err := c.Count(ctx)
			if err != nil {
				return err
			}
			r.Collections = append(r.Collections, CollectionReport{
				Name:       spec.Name,
				PrimaryKey: spec.PrimaryKey,
				Indexes:    spec.Indexes,
				Records:    n,
			})
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if r.Buckets, err = s.Buckets(); err != nil {
		return nil, err
	}
	return r, nil
}

// Write renders r to w in the given format.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case "tree", "":
		_, err := io.WriteString(w, Tree(r).String())
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unknown format %q; supported formats are tree, yaml and json", format)
	}
}

// Tree returns r as a printable tree.
func Tree(r *Report) treeprint.Tree {
	root := treeprint.New()
	root.SetValue(fmt.Sprintf("%s (%s)", r.Path, humanize.Bytes(uint64(r.Size))))
	root.AddNode(fmt.Sprintf("schema version %d of %d", r.Version, r.LatestVersion))

	migrations := root.AddBranch("migrations")
	for _, mig := range r.Migrations {
		line := fmt.Sprintf("%04d %s [%s]", mig.Version, mig.Name, mig.State)
		if mig.FinishedAt != nil {
			line += " " + mig.FinishedAt.UTC().Format(time.RFC3339)
		}
		migrations.AddNode(line)
	}

	collections := root.AddBranch("collections")
	for _, c := range r.Collections {
		b := collections.AddBranch(c.Name)
		b.AddNode("primary key: " + c.PrimaryKey)
		if len(c.Indexes) > 0 {
			b.AddNode("indexes: " + strings.Join(c.Indexes, ", "))
		}
		b.AddNode(fmt.Sprintf("records: %d", c.Records))
	}

	buckets := root.AddBranch("buckets")
	for _, b := range r.Buckets {
		buckets.AddNode(fmt.Sprintf("%s: %d keys", b.Name, b.Keys))
	}
	return root
}
