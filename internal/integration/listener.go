package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the NOTIFY channel the source table triggers publish on.
const ChangeChannel = "ledger_source_changed"

// NotificationHandler consumes NOTIFY payloads.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, payload string) error
}

type notificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Listener holds a dedicated connection listening on ChangeChannel and
// reconnects with backoff when it drops.
type Listener struct {
	pool           *pgxpool.Pool
	handler        NotificationHandler
	logger         *slog.Logger
	channel        string
	initialBackoff time.Duration
	maxBackoff     time.Duration
	wait           func(context.Context, time.Duration) error
}

// NewListener constructs a Listener on ChangeChannel.
func NewListener(pool *pgxpool.Pool, handler NotificationHandler, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		pool:           pool,
		handler:        handler,
		logger:         logger,
		channel:        ChangeChannel,
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
		wait:           sleepCtx,
	}
}

// Run blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	if l == nil || l.pool == nil || l.handler == nil {
		return errors.New("integration: listener not configured")
	}
	return l.reconnect(ctx, l.listenOnce)
}

// reconnect repeats session until ctx is done. The delay doubles across
// consecutive failed attempts and starts over once a session got as far as
// LISTEN.
func (l *Listener) reconnect(ctx context.Context, session func(context.Context) (bool, error)) error {
	backoff := l.initialBackoff
	for {
		listened, err := session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if listened {
			backoff = l.initialBackoff
		}
		l.logger.Warn("change listener disconnected", slog.Any("error", err), slog.Duration("retry_in", backoff))
		if err := l.wait(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Listener) listenOnce(ctx context.Context) (bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("integration: acquire listener conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return false, fmt.Errorf("integration: listen: %w", err)
	}
	l.logger.Info("listening for ledger source changes", slog.String("channel", l.channel))
	return true, l.consume(ctx, conn.Conn())
}

func (l *Listener) consume(ctx context.Context, src notificationSource) error {
	for {
		n, err := src.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := l.handler.HandleNotification(ctx, n.Payload); err != nil {
			l.logger.Error("handle ledger source change", slog.String("payload", n.Payload), slog.Any("error", err))
		}
	}
}
