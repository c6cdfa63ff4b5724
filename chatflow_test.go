package chatflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chatflow-ai/chatflow"
	"github.com/chatflow-ai/chatflow/pkg/adapters/memory"
	"github.com/chatflow-ai/chatflow/pkg/adapters/redis"
	"github.com/chatflow-ai/chatflow/pkg/adapters/stub"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/dsl"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()

	b := dsl.New()
	b.Add("welcome").Text("Hi!").Go("assist")
	b.Add("assist").AI("Be helpful.")
	_, err := store.SaveFlow(context.Background(), b.Flow("Welcome", true))
	require.NoError(t, err)
	return store
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := chatflow.New(nil)
	assert.ErrorIs(t, err, chatflow.ErrNoStore)
}

func TestEngine_Defaults(t *testing.T) {
	eng, err := chatflow.New(seed(t))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, chatflow.BatchFirst, eng.BatchMode())

	out, err := eng.HandleMessage(ctx, domain.InboundMessage{From: "+15550001111", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", out.Reply)
	assert.True(t, out.Delivered)

	out, err = eng.HandleMessage(ctx, domain.InboundMessage{From: "+15550001111", Body: "and?"})
	require.NoError(t, err)
	assert.Equal(t, "This is a mocked AI response to your prompt: 'Be helpful.'", out.Reply)
	assert.Nil(t, out.NextNodeID)
}

func TestEngine_BatchAll(t *testing.T) {
	delivery := stub.NewDelivery(nil)
	eng, err := chatflow.New(seed(t), chatflow.WithDelivery(delivery), chatflow.WithBatchMode(chatflow.BatchAll))
	require.NoError(t, err)

	outcomes, err := eng.HandleWebhook(context.Background(), domain.WebhookPayload{Messages: []domain.InboundMessage{
		{From: "+15550001111", Body: "one"},
		{From: "+15550002222", Body: "two"},
	}})
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Len(t, delivery.Sent(), 2)
}

func TestEngine_ConcurrentSameContact(t *testing.T) {
	store := seed(t)
	eng, err := chatflow.New(store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.HandleMessage(context.Background(), domain.InboundMessage{From: "+15550003333", Body: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One contact, and each message advanced it exactly once: welcome, assist,
	// then two restarts from the trigger after the dead end.
	contacts := store.Contacts()
	require.Len(t, contacts, 1)
	assert.Len(t, store.Logs(), 8)
	assert.Equal(t, 0, eng.ActiveLocks())
}

func TestEngine_WithoutSerialization(t *testing.T) {
	eng, err := chatflow.New(seed(t), chatflow.WithSerialization(false))
	require.NoError(t, err)

	_, err = eng.HandleMessage(context.Background(), domain.InboundMessage{From: "+15550001111", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0, eng.ActiveLocks())
}

// A replica whose AI and delivery calls take nearly their full timeouts must
// still hold the contact when it finishes.
func TestEngine_DistributedLockCoversSlowReplies(t *testing.T) {
	const phone = "+15551234567"
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redis.NewLocker(client, "", redis.WithRetryInterval(5*time.Millisecond))

	store := memory.NewStore()
	b := dsl.New()
	b.Add("assist").AI("Be helpful.")
	_, err := store.SaveFlow(ctx, b.Flow("Assist", true))
	require.NoError(t, err)

	replicaB, err := chatflow.New(store, chatflow.WithDistributedLocker(locker))
	require.NoError(t, err)

	slowAI := ports.AIFunc(func(context.Context, string, []domain.ChatMessage) (string, error) {
		mr.FastForward(25 * time.Second)
		return "answer", nil
	})
	var otherErr error
	slowDelivery := ports.DeliveryFunc(func(context.Context, string, string) error {
		mr.FastForward(8 * time.Second)

		short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, otherErr = replicaB.HandleMessage(short, domain.InboundMessage{From: phone, Body: "again"})
		return nil
	})
	replicaA, err := chatflow.New(store,
		chatflow.WithDistributedLocker(locker),
		chatflow.WithAI(slowAI),
		chatflow.WithDelivery(slowDelivery),
	)
	require.NoError(t, err)

	out, err := replicaA.HandleMessage(ctx, domain.InboundMessage{From: phone, Body: "hello"})
	require.NoError(t, err)
	assert.True(t, out.Processed())
	assert.ErrorIs(t, otherErr, context.DeadlineExceeded, "the other replica must wait for the contact")
	assert.Empty(t, mr.Keys(), "lock released after the event")
}
