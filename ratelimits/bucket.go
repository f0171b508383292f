package ratelimits

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// How many keys a bucket may contain when created
	BUCKET_INITIAL_FILL = 8

	// The maximum amount of keys a user may possess
	BUCKET_UPPER_BOUND = 16

	// How often new keys drip into the buckets
	DROP_INTERVAL = 10 * time.Second

	// How many keys may drop at a time
	DROP_SIZE = 1
)

var ErrNoKeysLeft = errors.New("no keys left")

// BucketContainer holds one command bucket per user
type BucketContainer struct {
	sync.Mutex

	initialFill int8
	upperBound  int8
	dropSize    int8

	// Maps discord ids to key-counts
	buckets map[string]int8
}

func NewBucketContainer() *BucketContainer {
	return &BucketContainer{
		initialFill: BUCKET_INITIAL_FILL,
		upperBound:  BUCKET_UPPER_BOUND,
		dropSize:    DROP_SIZE,
		buckets:     make(map[string]int8),
	}
}

// Refill drops new keys into every bucket, buckets that are full again are forgotten
func (b *BucketContainer) Refill() {
	b.Lock()
	defer b.Unlock()

	for user, keys := range b.buckets {
		keys += b.dropSize
		if keys >= b.upperBound {
			delete(b.buckets, user)
			continue
		}
		b.buckets[user] = keys
	}
}

// Run refills all buckets every interval until ctx is done
func (b *BucketContainer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Refill()
		}
	}
}

// Drain removes $amount keys from the bucket of $user if there are enough left
func (b *BucketContainer) Drain(amount int8, user string) error {
	b.Lock()
	defer b.Unlock()

	keys, ok := b.buckets[user]
	if !ok {
		keys = b.initialFill
	}

	if amount > keys {
		return ErrNoKeysLeft
	}

	b.buckets[user] = keys - amount
	return nil
}

// Get returns the keys $user has left
func (b *BucketContainer) Get(user string) int8 {
	b.Lock()
	defer b.Unlock()

	keys, ok := b.buckets[user]
	if !ok {
		return b.initialFill
	}
	return keys
}
