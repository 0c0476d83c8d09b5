package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher_PublishLogout(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "test.logout")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub, "test.logout")
	publisher.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	require.NoError(t, publisher.PublishLogout(ctx, "42", "jti-1"))

	select {
	case msg := <-messages:
		var event LogoutEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "42", event.Subject)
		assert.Equal(t, "jti-1", event.TokenID)
		assert.Equal(t, int64(1_700_000_000), event.RevokedAt.Unix())
		assert.Equal(t, "42", msg.Metadata.Get("subject"))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("logout event was not delivered")
	}
}

func TestNewWatermillPublisher_DefaultTopic(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	publisher := NewWatermillPublisher(pubSub, "")
	assert.Equal(t, DefaultLogoutTopic, publisher.topic)
}

func TestWatermillPublisher_ClosedPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := NewWatermillPublisher(pubSub, "")
	require.NoError(t, publisher.Close())

	err := publisher.PublishLogout(context.Background(), "42", "jti-1")
	require.Error(t, err)
}
