package vectorindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/retry"
)

const scoreField = "__score"

// RedisConfig holds configuration for the RediSearch index adapter
type RedisConfig struct {
	Addr        string // Required
	Password    string
	DB          int
	Index       string // Required: FT index name
	VectorField string // Required: FLOAT32 vector field using COSINE distance
	Retry       retry.Policy
}

// ValidateRedisConfig validates the RedisConfig
func ValidateRedisConfig(config RedisConfig) error {
	if config.Addr == "" {
		return fmt.Errorf("redis address is required: %w", domain.ErrNotConfigured)
	}
	if config.Index == "" {
		return fmt.Errorf("redis index name is required")
	}
	if config.VectorField == "" {
		return fmt.Errorf("redis vector field is required")
	}
	return nil
}

// RedisIndex implements VectorIndex with a RediSearch KNN query
type RedisIndex struct {
	rdb         *redis.Client
	index       string
	vectorField string
	policy      retry.Policy
	logger      *zap.Logger
}

var _ repositories.VectorIndex = (*RedisIndex)(nil)

// NewRedisIndex creates a new RediSearch index adapter
func NewRedisIndex(config RedisConfig, logger *zap.Logger) (*RedisIndex, error) {
	if err := ValidateRedisConfig(config); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		// FT.SEARCH replies are parsed in their RESP2 array shape
		Protocol: 2,
	})

	policy := config.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return &RedisIndex{
		rdb:         rdb,
		index:       config.Index,
		vectorField: config.VectorField,
		policy:      policy,
		logger:      logger,
	}, nil
}

// Close closes the redis connection pool
func (r *RedisIndex) Close() error {
	return r.rdb.Close()
}

// Query implements repositories.VectorIndex
func (r *RedisIndex) Query(ctx context.Context, vector []float32, topK int) (*entities.KnowledgeResult, error) {
	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, r.vectorField, scoreField)

	var reply interface{}
	err := retry.Do(ctx, r.policy, r.logger, "redis.ftsearch", func(ctx context.Context) error {
		var err error
		reply, err = r.rdb.Do(ctx,
			"FT.SEARCH", r.index, query,
			"PARAMS", "2", "vec", encodeVector(vector),
			"SORTBY", scoreField, "ASC",
			"LIMIT", "0", strconv.Itoa(topK),
			"DIALECT", "2",
		).Result()
		return err
	})
	if err != nil {
		return nil, &domain.UpstreamError{Provider: "redis", Err: err}
	}

	matches, err := parseSearchReply(reply, r.vectorField)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: "redis", Err: err}
	}

	r.logger.Debug("Vector search completed", zap.String("index", r.index), zap.Int("matches", len(matches)))
	return &entities.KnowledgeResult{Namespace: r.index, Matches: matches}, nil
}

// encodeVector packs the vector as little-endian FLOAT32 bytes
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// parseSearchReply reads a RESP2 FT.SEARCH reply: total, then key and field
// list pairs. Cosine distance is turned into similarity.
func parseSearchReply(reply interface{}, vectorField string) ([]entities.KnowledgeChunk, error) {
	rows, ok := reply.([]interface{})
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("unexpected FT.SEARCH reply %T", reply)
	}

	matches := []entities.KnowledgeChunk{}
	for i := 1; i+1 < len(rows); i += 2 {
		id, ok := rows[i].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected document key %T", rows[i])
		}
		fields, ok := rows[i+1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected field list %T for %s", rows[i+1], id)
		}

		chunk := entities.KnowledgeChunk{ID: id, Metadata: map[string]interface{}{}}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			switch name {
			case vectorField:
			case scoreField:
				distance, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid score %q for %s: %w", value, id, err)
				}
				chunk.Score = 1 - distance
			default:
				chunk.Metadata[name] = value
			}
		}
		matches = append(matches, chunk)
	}
	return matches, nil
}
