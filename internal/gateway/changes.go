package gateway

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// changeChannelPrefix is the Redis pub/sub channel prefix for table changes.
const changeChannelPrefix = "changes:"

// ChangeFeed broadcasts row-level changes over Redis pub/sub. Subscribers
// use the notification as a refetch trigger; nothing is patched
// incrementally.
type ChangeFeed struct {
	client *redis.Client
}

// NewChangeFeed creates a ChangeFeed on the shared Redis client.
func NewChangeFeed(client *redis.Client) *ChangeFeed {
	return &ChangeFeed{client: client}
}

func changeChannel(table string) string {
	return changeChannelPrefix + table
}

// Publish broadcasts a change to every subscriber of the table's channel.
// Best-effort: failures are logged, not returned, so a flaky Redis cannot
// fail the mutation that triggered the notification.
func (f *ChangeFeed) Publish(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("[ChangeFeed] marshal change for %s: %v", change.Table, err)
		return
	}
	if err := f.client.Publish(ctx, changeChannel(change.Table), payload).Err(); err != nil {
		log.Printf("[ChangeFeed] publish %s/%s: %v", change.Table, change.Op, err)
	}
}

// Subscribe delivers every change on table to onChange until the returned
// Unsubscribe is called or ctx is cancelled. onChange runs on the
// subscription goroutine; keep it short (typically: schedule a refetch).
func (f *ChangeFeed) Subscribe(ctx context.Context, table string, onChange func(Change)) (Unsubscribe, error) {
	sub := f.client.Subscribe(ctx, changeChannel(table))

	// Wait for the subscription to be confirmed so callers don't miss
	// changes published right after Subscribe returns.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("[ChangeFeed] bad change payload on %s: %v", msg.Channel, err)
					continue
				}
				onChange(change)
			}
		}
	}()

	return sub.Close, nil
}
