package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

type offerCacheRepository struct {
	client *redis.Client
}

func NewOfferCacheRepository(client *redis.Client) repository.OfferCache {
	return &offerCacheRepository{client: client}
}

func offerKey(id int64) string {
	return fmt.Sprintf("offer:%d", id)
}

func (r *offerCacheRepository) Get(ctx context.Context, id int64) (*entity.Offer, error) {
	data, err := r.client.Get(ctx, offerKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer %d from cache: %w", id, err)
	}

	var offer entity.Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached offer %d: %w", id, err)
	}
	return &offer, nil
}

func (r *offerCacheRepository) Set(ctx context.Context, offer *entity.Offer, ttl time.Duration) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer %d for cache: %w", offer.ID, err)
	}
	if err := r.client.Set(ctx, offerKey(offer.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache offer %d: %w", offer.ID, err)
	}
	return nil
}

func (r *offerCacheRepository) Delete(ctx context.Context, id int64) error {
	if err := r.client.Del(ctx, offerKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to evict offer %d from cache: %w", id, err)
	}
	return nil
}
