package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/dto"
)

// AlertEventPublisher broadcasts dispatch summaries to other subscribers.
type AlertEventPublisher interface {
	PublishDispatch(ctx context.Context, result dto.DispatchResult) error
}

type alertEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewAlertEventPublisher builds a publisher over Redis pub/sub and NATS. Either
// connection may be nil. Nil is returned when neither is usable.
func NewAlertEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) AlertEventPublisher {
	if channelBase == "" || (redisClient == nil && natsConn == nil) {
		return nil
	}

	return &alertEventPublisher{
		redis:        redisClient,
		redisChannel: channelBase + ":alerts:dispatch",
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(channelBase, ":", ".") + ".alerts.dispatch",
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "alert_events").Logger(),
	}
}

func (p *alertEventPublisher) PublishDispatch(ctx context.Context, result dto.DispatchResult) error {
	event := dto.AlertDispatchEvent{
		Source:      p.nodeID,
		Result:      result,
		CompletedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
