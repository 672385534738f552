package debezium

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeprobe/lakeprobe/internal/testutil"
)

func TestParse(t *testing.T) {
	t.Run("schema-wrapped insert", func(t *testing.T) {
		raw, err := testutil.LoadBytes("debezium-insert.json")
		require.NoError(t, err)

		ev, err := Parse(raw)
		require.NoError(t, err)
		require.NotNil(t, ev.Schema)
		assert.Equal(t, "cdc.public.users.Envelope", ev.Schema.Name)

		assert.Equal(t, OpCreate, ev.Payload.Op)
		assert.Nil(t, ev.Payload.Before)
		assert.Equal(t, "a@x.com", ev.Payload.After["email"])
		assert.Equal(t, "public", ev.Payload.Source.Schema)
		assert.Equal(t, "users", ev.Payload.Source.Table)
		assert.Equal(t, int64(24023216), ev.Payload.Source.Lsn)
		assert.Equal(t, "false", ev.Payload.Source.Snapshot)
		assert.False(t, ev.Tombstone)
	})

	t.Run("bare update", func(t *testing.T) {
		raw, err := testutil.LoadBytes("debezium-update-bare.json")
		require.NoError(t, err)

		ev, err := Parse(raw)
		require.NoError(t, err)
		assert.Nil(t, ev.Schema)
		assert.Equal(t, OpUpdate, ev.Payload.Op)
		assert.Equal(t, "A", ev.Payload.Before["name"])
		assert.Equal(t, "A2", ev.Payload.After["name"])
		assert.Equal(t, ev.Payload.After, ev.Row(), "updates expose the after image")
	})

	t.Run("bare delete", func(t *testing.T) {
		raw, err := testutil.LoadBytes("debezium-delete-bare.json")
		require.NoError(t, err)

		ev, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, OpDelete, ev.Payload.Op)
		assert.Nil(t, ev.Payload.After)
		assert.Equal(t, ev.Payload.Before, ev.Row(), "deletes expose the before image")
	})

	t.Run("tombstone", func(t *testing.T) {
		for _, raw := range [][]byte{nil, {}, []byte("null")} {
			ev, err := Parse(raw)
			require.NoError(t, err)
			assert.True(t, ev.Tombstone)
			assert.Nil(t, ev.Row())
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Parse([]byte("{truncated"))
		require.Error(t, err)
	})

	t.Run("not an envelope", func(t *testing.T) {
		// unwrapped record as the ExtractNewRecordState transform emits it
		_, err := Parse([]byte(`{"id": 1, "email": "a@x.com", "name": "A"}`))
		require.Error(t, err)
	})
}

func TestEventField(t *testing.T) {
	ev := NewEventBuilder().
		WithOperation(OpCreate).
		WithAfter(map[string]any{"email": "a@x.com", "name": "A"}).
		WithSource(NewSourceBuilder("postgresql", "cdc").
			WithDatabase("inventory").
			WithSchema("public").
			WithTable("users").
			Build()).
		Build()

	v, ok := ev.Field("email")
	require.True(t, ok)
	assert.Equal(t, "a@x.com", v)

	_, ok = ev.Field("missing")
	assert.False(t, ok)

	assert.Equal(t, "users", ev.Payload.Source.Table)
	assert.Equal(t, "false", ev.Payload.Source.Snapshot)
}

func TestEventRowByOperation(t *testing.T) {
	before := map[string]any{"email": "a@x.com", "name": "old"}
	after := map[string]any{"email": "a@x.com", "name": "new"}

	tests := []struct {
		want map[string]any
		name string
		op   Operation
	}{
		{name: "create", op: OpCreate, want: after},
		{name: "update", op: OpUpdate, want: after},
		{name: "snapshot read", op: OpRead, want: after},
		{name: "delete", op: OpDelete, want: before},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEventBuilder().
				WithOperation(tt.op).
				WithBefore(before).
				WithAfter(after).
				Build()
			assert.Equal(t, tt.want, ev.Row())
		})
	}
}
