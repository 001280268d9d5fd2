// Package notify carries the user-visible outcome of write operations.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sitebook/gateway/internal/metrics"
	"go.uber.org/zap"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

type Notification struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	Entity     string    `json:"entity"`
	Op         string    `json:"op"`
	EntityID   string    `json:"entity_id,omitempty"`
	Message    string    `json:"message"`
	SiteID     string    `json:"site_id"`
	BusinessID string    `json:"business_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// New fills in the id and timestamp.
func New(kind Kind, entity, op, message string) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Entity:    entity,
		Op:        op,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	metrics.RecordNotification(n.Entity, string(n.Kind))
	var errs []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("entity", n.Entity),
		zap.String("op", n.Op),
		zap.String("entity_id", n.EntityID),
		zap.String("site_id", n.SiteID),
		zap.String("user_id", n.UserID),
		zap.String("message", n.Message),
	}
	if n.Kind == KindError {
		l.logger.Warn("write failed", fields...)
		return nil
	}
	l.logger.Info("write succeeded", fields...)
	return nil
}
