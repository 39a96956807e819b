// Package cache provides a Redis-backed read cache for the active
// milestone list. The cache only serves list reads; every milestone
// mutation invalidates the project's entry, and all correctness-bearing
// checks (the per-project cap, lock ownership) read straight from
// Postgres.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// TTL bounds staleness if an invalidation is ever missed.
const milestoneListTTL = 30 * time.Second

// MilestoneCache caches the active-milestones-per-project list. A nil
// *MilestoneCache is valid and disables caching.
type MilestoneCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewMilestoneCache creates a milestone list cache. Returns nil when the
// redis client is nil so callers can wire the cache unconditionally.
func NewMilestoneCache(client *redis.Client, logger *zap.Logger) *MilestoneCache {
	if client == nil {
		return nil
	}
	return &MilestoneCache{client: client, logger: logger}
}

func listKey(projectID uuid.UUID) string {
	return fmt.Sprintf("milestones:active:%s", projectID)
}

// GetActiveList returns the cached list for a project, or nil on miss or
// any cache error. Cache errors are logged and treated as misses.
func (c *MilestoneCache) GetActiveList(ctx context.Context, projectID uuid.UUID) []*models.Milestone {
	if c == nil {
		return nil
	}

	data, err := c.client.Get(ctx, listKey(projectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Milestone cache read failed", zap.Error(err))
		}
		return nil
	}

	var milestones []*models.Milestone
	if err := json.Unmarshal(data, &milestones); err != nil {
		c.logger.Warn("Milestone cache entry corrupt, dropping", zap.Error(err))
		_ = c.client.Del(ctx, listKey(projectID)).Err()
		return nil
	}

	return milestones
}

// SetActiveList stores the list for a project.
func (c *MilestoneCache) SetActiveList(ctx context.Context, projectID uuid.UUID, milestones []*models.Milestone) {
	if c == nil {
		return
	}

	data, err := json.Marshal(milestones)
	if err != nil {
		c.logger.Warn("Failed to marshal milestone list for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, listKey(projectID), data, milestoneListTTL).Err(); err != nil {
		c.logger.Warn("Milestone cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached list for a project. Called on every
// milestone mutation.
func (c *MilestoneCache) Invalidate(ctx context.Context, projectID uuid.UUID) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, listKey(projectID)).Err(); err != nil {
		c.logger.Warn("Milestone cache invalidation failed", zap.Error(err))
	}
}
