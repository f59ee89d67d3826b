// Package checkpoint records each subject's last observed chain tip in Redis.
//
// A chain whose tail was deleted wholesale is still a perfectly linked prefix,
// so pure chain verification accepts it. Comparing against the recorded tip —
// kept outside the audited database — makes that truncation visible.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "loanproof:tip:"

// Store is a Redis-backed chain-tip checkpoint store. It implements
// ledger.CheckpointStore.
type Store struct {
	client *redis.Client
}

// New creates a Store over an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// NewFromURL connects to Redis at the given URL and verifies the connection.
// Returns (nil, nil) when the URL is empty, meaning checkpointing is not
// configured.
func NewFromURL(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

// Record stores the chain tip for a subject. The value format is
// "<sequence>:<hash>". Appends are serialized per subject, so a plain SET is
// enough; tips only move forward.
func (s *Store) Record(ctx context.Context, subjectID string, sequenceNum int, hash string) error {
	value := strconv.Itoa(sequenceNum) + ":" + hash
	return s.client.Set(ctx, keyPrefix+subjectID, value, 0).Err()
}

// Get returns the recorded tip for a subject. ok is false when no checkpoint
// exists yet.
func (s *Store) Get(ctx context.Context, subjectID string) (sequenceNum int, hash string, ok bool, err error) {
	value, err := s.client.Get(ctx, keyPrefix+subjectID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}

	seqStr, hash, found := strings.Cut(value, ":")
	if !found {
		return 0, "", false, fmt.Errorf("malformed checkpoint for %s: %q", subjectID, value)
	}
	sequenceNum, err = strconv.Atoi(seqStr)
	if err != nil {
		return 0, "", false, fmt.Errorf("malformed checkpoint sequence for %s: %q", subjectID, value)
	}
	return sequenceNum, hash, true, nil
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
