package client

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
	"github.com/rzpsarthak13/recordstore/internal/testutil"
)

type yamlProvider string

func (p yamlProvider) GetYAML() ([]byte, error) { return []byte(p), nil }

func TestClientPublishesEventChanges(t *testing.T) {
	ctx := context.Background()
	c, err := NewClientImpl(ctx, yamlProvider(`
database:
  driver: sqlite
changefeed:
  enabled: true
  queue_type: memory
  buffer_size: 10
`), testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Mirror())
	require.NotNil(t, c.Queue())
	assert.Equal(t, "sqlite", c.Connection().Dialect())

	events, err := c.Events(ctx)
	require.NoError(t, err)

	md, err := c.TableRegistry().Get(event.TableName)
	require.NoError(t, err)
	assert.True(t, md.Exists, "auto_create defaults to on")

	e := event.Make(event.WithName(1), event.WithStatus(2))
	require.NoError(t, events.Insert(ctx, e, false))

	changes, err := c.Queue().Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, core.OperationInsert, changes[0].Operation)
	assert.Equal(t, strconv.FormatInt(e.UUID, 10), changes[0].Key)
	assert.Equal(t, event.TableName, changes[0].Table)
}

func TestClientTableWithoutPublish(t *testing.T) {
	ctx := context.Background()
	c, err := NewClientImpl(ctx, yamlProvider(`
changefeed:
  enabled: true
tables:
  event:
    auto_create: true
    publish: false
`), nil)
	require.NoError(t, err)
	defer c.Close()

	events, err := c.Events(ctx)
	require.NoError(t, err)
	require.NoError(t, events.Insert(ctx, event.Make(event.WithName(1)), false))
	assert.Equal(t, 0, c.Queue().Size())
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewClientImpl(ctx, nil, nil)
	assert.Error(t, err)

	_, err = NewClientImpl(ctx, yamlProvider("database:\n  driver: oracle\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")

	_, err = NewClientImpl(ctx, yamlProvider("changefeed:\n  queue_type: sqs\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")

	c, err := NewClientImpl(ctx, yamlProvider(""), nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Events(ctx)
	assert.ErrorIs(t, err, ErrClientClosed)
}
