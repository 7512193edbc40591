package migrate_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/cmd/scorestore/migrate"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/kv/migration/all"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd, err := migrate.NewCommand(context.Background(), viper.New())
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)

	out, err := execute(t, "--bolt-path", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, path+" is at schema version 6\n", out)

	out, err = execute(t, "--bolt-path", path, "--dry-run", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, path+" is up to date\n", out)
}

func TestMigrate_DryRunMissingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)

	out, err := execute(t, "-m", path, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "6 pending version(s) for "+path+":\n"+
		"0001 initial collections\n"+
		"0002 add settings\n"+
		"0003 add tabular scoring\n"+
		"0004 order tabular rows\n"+
		"0005 add session name\n"+
		"0006 add session started\n", out)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "dry run created %s", path)
}

func TestMigrate_DryRunPartialStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)

	s := bolt.NewKVStore(zaptest.NewLogger(t), path, bolt.WithNoSync)
	require.NoError(t, s.Open(ctx))
	m, err := migration.NewMigrator(zaptest.NewLogger(t), s, all.Migrations[:4]...)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, s.Close())

	out, err := execute(t, "-m", path, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "2 pending version(s) for "+path+":\n"+
		"0005 add session name\n"+
		"0006 add session started\n", out)
}

func TestMigrate_Backup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, bolt.DefaultFilename)

	s := bolt.NewKVStore(zaptest.NewLogger(t), path, bolt.WithNoSync)
	require.NoError(t, s.Open(ctx))
	m, err := migration.NewMigrator(zaptest.NewLogger(t), s, all.Migrations[:2]...)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, s.Close())

	_, err = execute(t, "-m", path, "--backup", "--log-level", "error")
	require.NoError(t, err)

	backups, err := filepath.Glob(path + ".*-pre-migration.backup")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	b := bolt.NewKVStore(zaptest.NewLogger(t), backups[0], bolt.WithReadOnly)
	require.NoError(t, b.Open(ctx))
	defer b.Close()
	old, err := all.NewMigrator(zaptest.NewLogger(t), b)
	require.NoError(t, err)
	version, err := old.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMigrate_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)
	t.Setenv("SCORESTORE_BOLT_PATH", path)

	v := viper.New()
	v.SetEnvPrefix("SCORESTORE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cmd, err := migrate.NewCommand(context.Background(), v)
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "error"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, path+" is at schema version 6\n", out.String())
}
