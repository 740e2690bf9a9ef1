package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courierops/dispatchd/core/model"
)

// Redis appends terminal requests to a Redis list as JSON documents.
type Redis struct {
	client *redis.Client
	key    string
}

// RedisConfig holds connection settings for the Redis archive.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Key == "" {
		cfg.Key = "dispatchd:archive"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, key: cfg.Key}, nil
}

type archivedRequest struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	FailReason string     `json:"fail_reason,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	Size       float64    `json:"size"`
	Priority   int        `json:"priority"`
	CreatedAt  time.Time  `json:"created_at"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	ArchivedAt time.Time  `json:"archived_at"`
}

func newArchivedRequest(req model.Request, at time.Time) archivedRequest {
	return archivedRequest{
		ID:         req.ID,
		Status:     req.Status.String(),
		FailReason: req.FailReason,
		AssignedTo: req.AssignedTo,
		Size:       req.Size,
		Priority:   req.Priority,
		CreatedAt:  req.CreatedAt,
		Deadline:   req.Deadline,
		ArchivedAt: at,
	}
}

// Archive implements fleet.Archiver.
func (r *Redis) Archive(ctx context.Context, req model.Request) error {
	payload, err := json.Marshal(newArchivedRequest(req, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal archived request: %w", err)
	}
	if err := r.client.LPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("archive request %s: %w", req.ID, err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
