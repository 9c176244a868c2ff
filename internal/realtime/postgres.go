package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PGNotifier publishes events with pg_notify so every instance listening on
// the channel receives them, including the sender.
type PGNotifier struct {
	db      *sql.DB
	channel string
}

func NewPGNotifier(db *sql.DB, channel string) *PGNotifier {
	return &PGNotifier{db: db, channel: channel}
}

var _ Notifier = (*PGNotifier)(nil)

func (n *PGNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Listener holds a dedicated connection LISTENing on a channel and republishes
// every notification on the local hub.
type Listener struct {
	dsn     string
	channel string
	hub     *Hub
	log     *zap.Logger

	connect    func(ctx context.Context, dsn string) (*pgx.Conn, error)
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(dsn, channel string, hub *Hub, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		dsn:        dsn,
		channel:    channel,
		hub:        hub,
		log:        log.With(zap.String("component", "realtime_listener")),
		connect:    pgx.Connect,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled, reconnecting with exponential backoff
// whenever the connection drops.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.minBackoff
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn("listener disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info("listening", zap.String("channel", l.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := decodeEvent(n.Payload)
		if err != nil {
			l.log.Warn("dropping malformed notification", zap.Error(err))
			continue
		}
		l.hub.Publish(ev)
	}
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Topic == "" {
		return Event{}, errors.New("decode event: missing topic")
	}
	return ev, nil
}
