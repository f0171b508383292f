package ratelimits

import (
	"testing"
)

func TestBucketDrain(t *testing.T) {
	container := NewBucketContainer()

	for i := 0; i < BUCKET_INITIAL_FILL; i++ {
		if err := container.Drain(1, "user"); err != nil {
			t.Fatalf("Drain() failed after %d keys: %s", i, err.Error())
		}
	}

	if err := container.Drain(1, "user"); err != ErrNoKeysLeft {
		t.Fatalf("Drain() should fail once the bucket is empty, got %v", err)
	}

	if container.Get("other") != BUCKET_INITIAL_FILL {
		t.Fatalf("Get() should return the initial fill for unknown users")
	}
}

func TestBucketRefill(t *testing.T) {
	container := NewBucketContainer()
	for i := 0; i < BUCKET_INITIAL_FILL; i++ {
		container.Drain(1, "user")
	}

	container.Refill()
	if container.Get("user") != DROP_SIZE {
		t.Fatalf("Refill() should drop %d key, bucket has %d", DROP_SIZE, container.Get("user"))
	}

	for i := 0; i < BUCKET_UPPER_BOUND; i++ {
		container.Refill()
	}
	if container.Get("user") != BUCKET_INITIAL_FILL {
		t.Fatalf("full buckets should be reset to the initial fill, got %d", container.Get("user"))
	}
}
