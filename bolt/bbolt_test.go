package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func NewTestKVStore(t *testing.T, opts ...bolt.KVOption) *bolt.KVStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), bolt.DefaultFilename)
	s := bolt.NewKVStore(zaptest.NewLogger(t), path, append([]bolt.KVOption{bolt.WithNoSync}, opts...)...)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })

	return s
}
