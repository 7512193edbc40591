package inspect_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/cmd/scorestore/inspect"
	"github.com/boardgamescores/scorestore/storage"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func newStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c := storage.NewConfig()
	c.Path = filepath.Join(t.TempDir(), bolt.DefaultFilename)
	c.NoSync = true
	e, err := storage.Open(ctx, zaptest.NewLogger(t), c)
	require.NoError(t, err)
	require.NoError(t, e.CreatePlayer(ctx, &scorestore.Player{Name: "Ada"}))
	require.NoError(t, e.CreatePlayer(ctx, &scorestore.Player{Name: "Grace"}))
	require.NoError(t, e.Close())
	return c.Path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd, err := inspect.NewCommand(context.Background(), viper.New())
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func collection(t *testing.T, r inspect.Report, name string) inspect.CollectionReport {
	t.Helper()
	for _, c := range r.Collections {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("collection %q not reported", name)
	return inspect.CollectionReport{}
}

func TestInspect_JSON(t *testing.T) {
	path := newStore(t)

	out, err := execute(t, "-m", path, "--format", "json")
	require.NoError(t, err)

	var r inspect.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, path, r.Path)
	assert.Positive(t, r.Size)
	assert.Equal(t, 6, r.Version)
	assert.Equal(t, 6, r.LatestVersion)
	require.Len(t, r.Migrations, 6)
	for _, m := range r.Migrations {
		assert.Equal(t, "up", m.State)
		assert.NotNil(t, m.FinishedAt)
	}

	assert.Equal(t, 1, collection(t, r, "settings").Records)
	players := collection(t, r, "players")
	assert.Equal(t, 2, players.Records)
	assert.Equal(t, "id", players.PrimaryKey)
	assert.Contains(t, players.Indexes, "createdAt")
	assert.Equal(t, 0, collection(t, r, "tabularRows").Records)
	assert.NotEmpty(t, r.Buckets)
}

func TestInspect_YAML(t *testing.T) {
	path := newStore(t)

	out, err := execute(t, "-m", path, "--format", "yaml")
	require.NoError(t, err)

	var r inspect.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	assert.Equal(t, 6, r.Version)
	assert.Equal(t, 2, collection(t, r, "players").Records)
}

func TestInspect_Tree(t *testing.T) {
	path := newStore(t)

	out, err := execute(t, "-m", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "schema version 6 of 6")
	assert.Contains(t, out, "0004 order tabular rows [up]")
	assert.Contains(t, out, "records: 2")
}

func TestInspect_MissingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)

	_, err := execute(t, "-m", path)
	require.Error(t, err)
}

func TestInspect_UnknownFormat(t *testing.T) {
	path := newStore(t)

	_, err := execute(t, "-m", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}
