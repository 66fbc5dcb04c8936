package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelJobUpdates = "audio_job_updates"
	TypeJobUpdate     = "job_update"
)

// JobMessage 任务状态变化消息，UserID 与 GuestID 二选一
type JobMessage struct {
	Type          string `json:"type"`
	JobID         int64  `json:"job_id"`
	UserID        int64  `json:"user_id,omitempty"`
	GuestID       int64  `json:"guest_id,omitempty"`
	Status        string `json:"status"`
	VocalsPath    string `json:"vocals_path,omitempty"`
	BacksoundPath string `json:"backsound_path,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, channel: ChannelJobUpdates}
}

// Publish 发布任务消息
func (p *Publisher) Publish(ctx context.Context, msg *JobMessage) error {
	msg.Type = TypeJobUpdate

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client, channel: ChannelJobUpdates}
}

// Subscribe 阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*JobMessage)) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	// 等待订阅确认，避免错过之后立即发布的消息
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var jobMsg JobMessage
			if err := json.Unmarshal([]byte(msg.Payload), &jobMsg); err != nil {
				slog.Warn("dropping malformed job message", "error", err)
				continue
			}

			handler(&jobMsg)
		}
	}
}
