package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quesgenie/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a single subscriber should receive correct event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("session.changed"),
						eventWithName("topics.generated"),
					},
					subscribers: []subscriber{
						{
							name:        "notifier",
							subscribeTo: []string{"session.changed"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed")}, out.received["notifier"])
			},
		},

		"a single subscriber should receive all dispatched event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("session.changed"),
						eventWithName("session.changed"),
					},
					subscribers: []subscriber{
						{
							name:        "notifier",
							subscribeTo: []string{"session.changed"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed"), eventWithName("session.changed")}, out.received["notifier"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("session.changed"),
					},
					subscribers: []subscriber{
						{
							name:        "notifier",
							subscribeTo: []string{"session.changed"},
						},
						{
							name:        "auditor",
							subscribeTo: []string{"session.changed"},
						},
						{
							name:        "indexer",
							subscribeTo: []string{"session.changed"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed")}, out.received["notifier"])
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed")}, out.received["auditor"])
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed")}, out.received["indexer"])
			},
		},

		"multiple events should be dispatched correctly multiple subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("session.changed"),
						eventWithName("topics.generated"),
						eventWithName("session.changed"),
						eventWithName("questions.generated"),
					},
					subscribers: []subscriber{
						{
							name:        "notifier",
							subscribeTo: []string{"session.changed"},
						},
						{
							name:        "auditor",
							subscribeTo: []string{"session.changed", "topics.generated"},
						},
						{
							name:        "indexer",
							subscribeTo: []string{"questions.generated", "topics.generated"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed"), eventWithName("session.changed")}, out.received["notifier"])
				assert.ElementsMatch(t, []event.Event{eventWithName("session.changed"), eventWithName("session.changed"), eventWithName("topics.generated")}, out.received["auditor"])
				assert.ElementsMatch(t, []event.Event{eventWithName("topics.generated"), eventWithName("questions.generated")}, out.received["indexer"])
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus(event.BusConfig{})
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_SlowHandlerDoesNotBlockOthers(t *testing.T) {
	b := event.NewBus(event.BusConfig{PoolSize: 1})

	release := make(chan struct{})
	b.Subscribe("session.changed", func(ctx context.Context, e event.Event) error {
		<-release
		return nil
	})

	fast := make(chan struct{}, 3)
	b.Subscribe("session.changed", func(ctx context.Context, e event.Event) error {
		fast <- struct{}{}
		return nil
	})

	published := make(chan struct{})
	go func() {
		defer close(published)
		for range 3 {
			b.Publish(context.Background(), eventWithName("session.changed"))
		}
	}()

	// The slow handler holds its only slot, the fast one still gets the first event.
	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast handler was blocked by the slow one")
	}

	close(release)
	<-published
	b.Stop()
	assert.Len(t, fast, 2, "remaining events reach the fast handler")
}

func TestBus_HandlerFailures(t *testing.T) {
	b := event.NewBus(event.BusConfig{Timeout: 50 * time.Millisecond})

	var (
		mu       sync.Mutex
		deadline bool
	)

	b.Subscribe("session.changed", func(ctx context.Context, e event.Event) error {
		panic("boom")
	})
	b.Subscribe("session.changed", func(ctx context.Context, e event.Event) error {
		return errors.New("failed")
	})
	b.Subscribe("session.changed", func(ctx context.Context, e event.Event) error {
		_, ok := ctx.Deadline()
		mu.Lock()
		deadline = ok
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NotPanics(t, func() {
		b.Publish(ctx, eventWithName("session.changed"))
		b.Stop()
	})
	assert.True(t, deadline, "handlers run with their own timeout, detached from the publisher")
}

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
