// Package cache keeps the last good snapshot of each content collection in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Snapshots implements content.Snapshots on top of Redis.
type Snapshots struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	// OnLookup is called after every Load with whether a snapshot was found.
	OnLookup func(name string, hit bool)
}

func NewSnapshots(client *redis.Client, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Snapshots{client: client, prefix: "snapshot:", ttl: ttl}
}

func (s *Snapshots) key(name string) string {
	return s.prefix + name
}

func (s *Snapshots) Load(ctx context.Context, name string, dst any) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.lookup(name, false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A snapshot written by an older schema is dropped rather than served.
		log.WithError(err).WithField("store", name).Warn("discarding unreadable snapshot")
		_ = s.client.Del(ctx, s.key(name)).Err()
		s.lookup(name, false)
		return false, nil
	}
	s.lookup(name, true)
	return true, nil
}

func (s *Snapshots) Save(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}
	if err := s.client.Set(ctx, s.key(name), raw, s.ttl).Err(); err != nil {
		log.WithError(err).WithField("store", name).Warn("snapshot write failed")
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return nil
}

func (s *Snapshots) lookup(name string, hit bool) {
	if s.OnLookup != nil {
		s.OnLookup(name, hit)
	}
}
