package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/utils"
)

// RunEvent is one progress update for a regeneration run, published for the
// UI collaborator to stream to clients.
type RunEvent struct {
	RunID   string                 `json:"run_id"`
	Phase   string                 `json:"phase"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
	Emitted time.Time              `json:"emitted"`
}

type Publisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent)
	Close() error
}

type redisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects to REDIS_ADDR. Callers that can run without a
// bus should fall back to NewNopPublisher when this fails.
func NewRedisPublisher(log *logger.Logger) (Publisher, error) {
	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel := utils.GetEnv("REDIS_RUN_CHANNEL", "match_runs", log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisPublisher{
		log:     log.With("service", "RedisRunBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *redisPublisher) PublishRunEvent(ctx context.Context, event RunEvent) {
	event.Emitted = time.Now().UTC()
	raw, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("Failed to marshal run event", "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		// Progress events are best-effort; a publish failure never fails a run.
		p.log.Warn("Failed to publish run event", "run_id", event.RunID, "phase", event.Phase, "error", err)
	}
}

func (p *redisPublisher) Close() error {
	return p.rdb.Close()
}

type nopPublisher struct{}

func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) PublishRunEvent(ctx context.Context, event RunEvent) {}
func (nopPublisher) Close() error                                        { return nil }
