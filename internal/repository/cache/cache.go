package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/entity"
	"github.com/jgivc/tracksearch/internal/util"
)

const (
	keyPrefix    = "sr"
	KeySeparator = ":"

	ScanCount = 1000
)

// pageEntry is what one cached results page looks like in redis. Page one
// also carries the site-reported total so a cache hit can skip the
// pagination discovery.
type pageEntry struct {
	Results    []entity.SearchResult `json:"results"`
	TotalPages int                   `json:"total_pages"`
}

type searchCache struct {
	cl  *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewSearchCache(cl *redis.Client, ttl time.Duration, log *slog.Logger) *searchCache {
	return &searchCache{
		cl:  cl,
		ttl: ttl,
		log: log.With(slog.String("item", "SearchCache")),
	}
}

// GetPage returns the cached rows and reported total for (query, page).
func (c *searchCache) GetPage(ctx context.Context, query string, page int) ([]entity.SearchResult, int, error) {
	data, err := c.cl.Get(ctx, getKey(query, page)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, common.ErrCacheMiss
		}

		return nil, 0, fmt.Errorf("cannot get cached page: %w", err)
	}

	var e pageEntry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, 0, fmt.Errorf("cannot decode cached page: %w", err)
	}

	return e.Results, e.TotalPages, nil
}

func (c *searchCache) PutPage(ctx context.Context, query string, page int, results []entity.SearchResult, totalPages int) error {
	data, err := json.Marshal(pageEntry{Results: results, TotalPages: totalPages})
	if err != nil {
		return fmt.Errorf("cannot encode page: %w", err)
	}

	if _, err := c.cl.Set(ctx, getKey(query, page), data, c.ttl).Result(); err != nil {
		return fmt.Errorf("cannot cache page: %w", err)
	}

	return nil
}

// Flush drops every cached page.
func (c *searchCache) Flush(ctx context.Context) error {
	pattern := strings.Join([]string{keyPrefix, "*"}, KeySeparator)

	var (
		cursor       uint64
		deletedCount int64
	)

	for {
		keys, nextCursor, err := c.cl.Scan(ctx, cursor, pattern, ScanCount).Result()
		if err != nil {
			return fmt.Errorf("error scanning keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.cl.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("error deleting keys: %w", err)
			}
			deletedCount += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	c.log.Info("Cache flushed", slog.Int64("key_count", deletedCount))

	return nil
}

func getKey(query string, page int) string {
	q := strings.ToLower(strings.TrimSpace(query))

	return strings.Join([]string{keyPrefix, util.GetIDFromString(&q), strconv.Itoa(page)}, KeySeparator)
}
