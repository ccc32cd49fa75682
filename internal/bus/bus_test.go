package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspulse/internal/core"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New()
	ranking := b.Subscribe(TopicsGenerated, "ranking")
	insights := b.Subscribe(TopicsGenerated, "insights")

	id := b.Publish(TopicsGenerated, core.TopicsGenerated{TopicIDs: []int64{1, 2}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	m1, err := ranking.Receive(ctx)
	require.NoError(t, err)
	m2, err := insights.Receive(ctx)
	require.NoError(t, err)

	assert.Equal(t, id, m1.ID)
	assert.Equal(t, id, m2.ID)
	assert.Equal(t, []int64{1, 2}, m1.Payload.(core.TopicsGenerated).TopicIDs)
	assert.Equal(t, []int64{1, 2}, m2.Payload.(core.TopicsGenerated).TopicIDs)
}

func TestReceivePreservesFIFOOrderPerSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(RankingCreated, "insights")

	for i := int64(1); i <= 100; i++ {
		b.Publish(RankingCreated, core.RankingCreated{RankingID: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := int64(1); i <= 100; i++ {
		msg, err := sub.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, msg.Payload.(core.RankingCreated).RankingID)
	}
	assert.Equal(t, 0, sub.Pending())
}

func TestReceiveBlocksUntilPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicsGenerated, "ranking")

	var wg sync.WaitGroup
	wg.Add(1)
	received := make(chan Message, 1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		msg, err := sub.Receive(ctx)
		if err == nil {
			received <- msg
		}
	}()

	time.Sleep(50 * time.Millisecond)
	b.Publish(TopicsGenerated, core.TopicsGenerated{TopicIDs: []int64{7}})
	wg.Wait()

	select {
	case msg := <-received:
		assert.Equal(t, []int64{7}, msg.Payload.(core.TopicsGenerated).TopicIDs)
	default:
		t.Fatal("subscriber did not receive published message")
	}
}

func TestReceiveHonorsContextCancellation(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicsGenerated, "ranking")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := sub.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseDrainsThenReturnsErrClosed(t *testing.T) {
	b := New()
	sub := b.Subscribe(RankingCreated, "social")

	b.Publish(RankingCreated, core.RankingCreated{RankingID: 3})
	b.Close()

	ctx := context.Background()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), msg.Payload.(core.RankingCreated).RankingID)

	_, err = sub.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		b.Publish(TopicsGenerated, core.TopicsGenerated{TopicIDs: []int64{1}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}
