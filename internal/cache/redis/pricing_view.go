package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/observability"
)

const defaultKeyPrefix = "pricing"

var _ domain.PricingView = (*PricingView)(nil)

// PricingView keeps the current pricing projection in Redis so every
// instance behind a load balancer quotes from the same rows.
//
// Rows live in one hash (field = service id, value = JSON row) next to a
// string key holding the refresh time in unix nanoseconds. Replace swaps
// both inside MULTI/EXEC.
type PricingView struct {
	client    *redis.Client
	rowsKey   string
	stampKey  string
	keyPrefix string
}

// NewPricingView creates a Redis-backed pricing view. An empty prefix defaults to "pricing".
func NewPricingView(client *redis.Client, keyPrefix string) *PricingView {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &PricingView{
		client:    client,
		rowsKey:   keyPrefix + ":current",
		stampKey:  keyPrefix + ":refreshed_at",
		keyPrefix: keyPrefix,
	}
}

// Replace swaps the whole projection atomically.
func (v *PricingView) Replace(
	ctx context.Context,
	rows []domain.CurrentServicePricing,
	refreshedAt time.Time,
) error {
	logger := observability.FromContext(ctx)

	fields := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		if !row.ServiceID.Valid() {
			return fmt.Errorf("invalid service id in pricing row: %q", row.ServiceID)
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode pricing row %s: %w", row.ServiceID, err)
		}
		fields[string(row.ServiceID)] = data
	}

	_, err := v.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, v.rowsKey)
		if len(fields) > 0 {
			pipe.HSet(ctx, v.rowsKey, fields)
		}
		pipe.Set(ctx, v.stampKey, strconv.FormatInt(refreshedAt.UnixNano(), 10), 0)
		return nil
	})
	if err != nil {
		logger.Error("pricing view replace failed",
			observability.String("key_prefix", v.keyPrefix),
			observability.Error(err))
		return fmt.Errorf("failed to replace pricing view: %w", err)
	}

	logger.Debug("pricing view replaced",
		observability.String("key_prefix", v.keyPrefix),
		observability.Int("rows", len(rows)))
	return nil
}

// All returns every row ordered by service id.
func (v *PricingView) All(ctx context.Context) ([]domain.CurrentServicePricing, error) {
	values, err := v.client.HGetAll(ctx, v.rowsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing view: %w", err)
	}

	rows := make([]domain.CurrentServicePricing, 0, len(values))
	for id, raw := range values {
		row, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	domain.SortPricing(rows)
	return rows, nil
}

// Get returns the row for id.
func (v *PricingView) Get(ctx context.Context, id domain.ServiceID) (domain.CurrentServicePricing, error) {
	raw, err := v.client.HGet(ctx, v.rowsKey, string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.CurrentServicePricing{}, fmt.Errorf("pricing row %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CurrentServicePricing{}, fmt.Errorf("failed to read pricing row %s: %w", id, err)
	}
	return decodeRow(string(id), raw)
}

// RefreshedAt returns when the projection was last replaced (zero if never).
func (v *PricingView) RefreshedAt(ctx context.Context) (time.Time, error) {
	raw, err := v.client.Get(ctx, v.stampKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read pricing view timestamp: %w", err)
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt pricing view timestamp %q: %w", raw, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

func decodeRow(id, raw string) (domain.CurrentServicePricing, error) {
	var row domain.CurrentServicePricing
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return domain.CurrentServicePricing{}, fmt.Errorf("corrupt pricing row %s: %w", id, err)
	}
	return row, nil
}
