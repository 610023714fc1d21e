package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisSink mirrors audit entries onto a Redis stream so external consumers
// (dashboards, compliance jobs) can tail the trail. Publishing is best
// effort: a sink failure is logged as an incident and never blocks or fails
// the governance path.
type RedisSink struct {
	client     *redis.Client
	stream     string
	maxLen     int64
	publishTTL time.Duration
}

// RedisSinkConfig configures the stream sink.
type RedisSinkConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"` // approximate stream trim target
}

// DefaultRedisSinkConfig returns the conventional sink settings.
func DefaultRedisSinkConfig() RedisSinkConfig {
	return RedisSinkConfig{
		Addr:   "localhost:6379",
		Stream: "decisioncore:audit",
		MaxLen: 100_000,
	}
}

// NewRedisSink creates a stream sink. The connection is verified lazily on
// first publish, not here, so a cold Redis does not block startup.
func NewRedisSink(cfg RedisSinkConfig) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisSink{
		client:     client,
		stream:     cfg.Stream,
		maxLen:     cfg.MaxLen,
		publishTTL: 2 * time.Second,
	}
}

// Publish appends the entry to the stream.
func (s *RedisSink) Publish(entry Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("audit sink: marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTTL)
	defer cancel()

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"seq":   entry.Seq,
			"kind":  string(entry.Kind),
			"entry": payload,
		},
	}).Err()
	if err != nil {
		log.Error().Err(err).Str("stream", s.stream).Uint64("seq", entry.Seq).
			Msg("audit sink: stream publish failed")
	}
}

// Close releases the underlying client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
