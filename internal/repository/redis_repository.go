package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/creatorhub/payout-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	recordKeyPrefix      = "payout:"
	providerRefKeyPrefix = "payout:pref:"
	internalRefKeyPrefix = "payout:iref:"
	recordTTL            = 30 * 24 * time.Hour // reconciliation window
)

// RedisRepository implements PayoutRepository using Redis
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) SavePayout(ctx context.Context, record *model.PayoutRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal payout record: %w", err)
	}

	pipe := r.client.Pipeline()

	pipe.Set(ctx, recordKeyPrefix+record.ID, data, recordTTL)

	// Reference indexes so verification can find the record later
	if record.ProviderReference != "" {
		pipe.Set(ctx, providerRefKeyPrefix+record.ProviderReference, record.ID, recordTTL)
	}
	if record.InternalReference != "" {
		pipe.Set(ctx, internalRefKeyPrefix+record.InternalReference, record.ID, recordTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save payout record: %w", err)
	}
	return nil
}

func (r *RedisRepository) GetPayout(ctx context.Context, id string) (*model.PayoutRecord, error) {
	data, err := r.client.Get(ctx, recordKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get payout record: %w", err)
	}

	var record model.PayoutRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal payout record: %w", err)
	}
	return &record, nil
}

func (r *RedisRepository) GetByProviderReference(ctx context.Context, reference string) (*model.PayoutRecord, error) {
	return r.getByIndex(ctx, providerRefKeyPrefix+reference)
}

func (r *RedisRepository) GetByInternalReference(ctx context.Context, reference string) (*model.PayoutRecord, error) {
	return r.getByIndex(ctx, internalRefKeyPrefix+reference)
}

func (r *RedisRepository) getByIndex(ctx context.Context, key string) (*model.PayoutRecord, error) {
	id, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: index %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve payout index: %w", err)
	}
	return r.GetPayout(ctx, id)
}

func (r *RedisRepository) ListPayouts(ctx context.Context, filter PayoutFilter) ([]*model.PayoutRecord, error) {
	// Simple scan; the record set is bounded by the TTL window
	var cursor uint64
	var records []*model.PayoutRecord

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, recordKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan payout records: %w", err)
		}

		for _, key := range keys {
			// Skip index keys
			if strings.HasPrefix(key, providerRefKeyPrefix) || strings.HasPrefix(key, internalRefKeyPrefix) {
				continue
			}

			data, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}

			var record model.PayoutRecord
			if err := json.Unmarshal(data, &record); err != nil {
				continue
			}

			if filter.Status != "" && record.Status != filter.Status {
				continue
			}
			if filter.Method != "" && record.Method != filter.Method {
				continue
			}
			if filter.UserID != "" && record.UserID != filter.UserID {
				continue
			}

			records = append(records, &record)

			if filter.Limit > 0 && len(records) >= filter.Limit {
				return records, nil
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return records, nil
}
