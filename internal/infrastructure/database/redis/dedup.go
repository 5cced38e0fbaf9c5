package redis

import (
	"context"
	"time"
)

// SeenStore is the Redis-backed duplicate store, shared by all workers of a
// run.  It implements filter.SeenStore: CheckAndAdd is atomic through SETNX,
// so exactly one worker observes any canonical SMILES as new.
//
// Keys expire after the configured TTL so that long-lived deployments do not
// accumulate every molecule ever generated.
type SeenStore struct {
	client  *Client
	runID   string
	ttl     time.Duration
	timeout time.Duration
}

// NewSeenStore scopes a duplicate store to one run.
func NewSeenStore(client *Client, runID string, ttl time.Duration) *SeenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SeenStore{
		client:  client,
		runID:   runID,
		ttl:     ttl,
		timeout: 2 * time.Second,
	}
}

// CheckAndAdd implements filter.SeenStore.
func (s *SeenStore) CheckAndAdd(canonical string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.SetNX(ctx, s.key(canonical), 1, s.ttl)
}

func (s *SeenStore) key(canonical string) string {
	return "molgen:seen:" + s.runID + ":" + canonical
}
