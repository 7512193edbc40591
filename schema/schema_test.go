package schema_test

import (
	"errors"
	"testing"

	"github.com/boardgamescores/scorestore/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		def     string
		want    schema.Collection
		wantErr bool
	}{
		{
			name: "primary key only",
			def:  "id",
			want: schema.Collection{Name: "settings", PrimaryKey: "id"},
		},
		{
			name: "primary key and indexes",
			def:  " id, playerId ,createdAt",
			want: schema.Collection{Name: "settings", PrimaryKey: "id", Indexes: []string{"playerId", "createdAt"}},
		},
		{
			name:    "empty",
			def:     " , ",
			wantErr: true,
		},
		{
			name:    "duplicate field",
			def:     "id, createdAt, createdAt",
			wantErr: true,
		},
		{
			name:    "index repeats primary key",
			def:     "id, id",
			wantErr: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := schema.Parse("settings", c.def)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Fatalf("unexpected collection (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollection_String(t *testing.T) {
	c := schema.MustParse("tabularRows", "id, createdAt, order")
	assert.Equal(t, "id, createdAt, order", c.String())
	assert.True(t, c.HasIndex("order"))
	assert.False(t, c.HasIndex("id"))
}

func TestNewDescriptor(t *testing.T) {
	d, err := schema.NewDescriptor(1, map[string]string{
		"scoreEvents": "id, playerId, createdAt",
		"players":     "id, createdAt",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"players", "scoreEvents"}, d.Names())

	c, ok := d.Collection("scoreEvents")
	require.True(t, ok)
	assert.Equal(t, []string{"playerId", "createdAt"}, c.Indexes)

	_, ok = d.Collection("settings")
	assert.False(t, ok)

	_, err = schema.NewDescriptor(0, map[string]string{"players": "id"})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	v1 := schema.MustDescriptor(1, map[string]string{"players": "id, createdAt"})
	v2 := schema.MustDescriptor(2, map[string]string{"players": "id, createdAt", "settings": "id"})

	r, err := schema.NewRegistry(v1, v2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.LatestVersion())

	d, err := r.DescriptorFor(0)
	require.NoError(t, err)
	assert.Empty(t, d.Collections)

	d, err = r.DescriptorFor(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"players", "settings"}, d.Names())
	assert.Equal(t, v2, r.Latest())

	_, err = r.DescriptorFor(3)
	assert.True(t, errors.Is(err, schema.ErrUnknownVersion))
}

func TestRegistry_RejectsSkippedVersion(t *testing.T) {
	v1 := schema.MustDescriptor(1, map[string]string{"players": "id"})
	v3 := schema.MustDescriptor(3, map[string]string{"players": "id"})

	_, err := schema.NewRegistry(v1, v3)
	assert.Error(t, err)
}

func TestRegistry_RejectsPrimaryKeyChange(t *testing.T) {
	v1 := schema.MustDescriptor(1, map[string]string{"players": "id"})
	v2 := schema.MustDescriptor(2, map[string]string{"players": "name"})

	_, err := schema.NewRegistry(v1, v2)
	assert.True(t, errors.Is(err, schema.ErrPrimaryKeyChanged))
}

func TestDiff(t *testing.T) {
	from := schema.MustDescriptor(3, map[string]string{
		"players":     "id, createdAt",
		"legacy":      "id",
		"tabularRows": "id, createdAt, name",
	})
	to := schema.MustDescriptor(4, map[string]string{
		"players":     "id, createdAt",
		"settings":    "id",
		"tabularRows": "id, createdAt, order",
	})

	changes, err := schema.Diff(from, to)
	require.NoError(t, err)

	want := []schema.Change{
		{Kind: schema.DropCollection, Collection: schema.MustParse("legacy", "id")},
		{Kind: schema.CreateCollection, Collection: schema.MustParse("settings", "id")},
		{
			Kind:           schema.AlterCollection,
			Collection:     schema.MustParse("tabularRows", "id, createdAt, order"),
			AddedIndexes:   []string{"order"},
			DroppedIndexes: []string{"name"},
		},
	}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", diff)
	}
}

func TestDiff_Unchanged(t *testing.T) {
	d := schema.MustDescriptor(5, map[string]string{"players": "id, createdAt"})
	next := d
	next.Version = 6

	changes, err := schema.Diff(d, next)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
