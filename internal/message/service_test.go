package message

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execConn fakes Exec with a fixed command tag.
type execConn struct {
	tag      string
	lastSQL  string
	lastArgs []any
}

func (c *execConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.lastSQL = sql
	c.lastArgs = args
	return pgconn.NewCommandTag(c.tag), nil
}

func (c *execConn) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (c *execConn) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func TestPersistValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, &execConn{tag: "INSERT 0 1"})
	ctx := context.Background()

	_, err := svc.Persist(ctx, PersistInput{Direction: DirectionInbound})
	assert.Error(t, err)

	_, err = svc.Persist(ctx, PersistInput{ConversationID: "conv-1", Direction: "sideways"})
	assert.Error(t, err)
}

func TestPersistDefaults(t *testing.T) {
	t.Parallel()

	conn := &execConn{tag: "INSERT 0 1"}
	svc := NewService(nil, conn)

	msg, err := svc.Persist(context.Background(), PersistInput{
		ConversationID: "conv-1",
		TenantID:       "tenant-1",
		Direction:      DirectionOutbound,
		Sender:         SenderAI,
		Text:           "your order ships tomorrow",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, DeliveryPending, msg.DeliveryStatus)
	assert.False(t, msg.CreatedAt.IsZero())
	require.Len(t, conn.lastArgs, 9)
}

func TestUpdateDeliveryStatus(t *testing.T) {
	t.Parallel()

	conn := &execConn{tag: "UPDATE 1"}
	svc := NewService(nil, conn)
	ctx := context.Background()

	require.NoError(t, svc.UpdateDeliveryStatus(ctx, "tenant-1", "evt-1", DeliveryRead))

	assert.Error(t, svc.UpdateDeliveryStatus(ctx, "tenant-1", "evt-1", "teleported"))

	conn.tag = "UPDATE 0"
	err := svc.UpdateDeliveryStatus(ctx, "tenant-1", "evt-unknown", DeliveryDelivered)
	assert.ErrorIs(t, err, ErrNotFound)
}
