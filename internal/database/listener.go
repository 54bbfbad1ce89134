package database

import (
	"log"
	"time"

	"clinic-booking/internal/configs"
	"clinic-booking/internal/logging"

	"github.com/lib/pq"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
)

// ChangeListener listens to a Postgres notification channel and invokes a callback
// on every received event. It is the store's change-notification primitive: a trigger
// on the appointments table emits pg_notify on every write (see scripts/schema.sql),
// so changes made by other processes are observed too.
type ChangeListener struct {
	listener *pq.Listener
	done     chan struct{}
}

// NewChangeListener starts listening to the given channel. The onEvent callback
// receives the notification payload and runs on the listener goroutine.
func NewChangeListener(config configs.Config, channel string, logger *log.Logger, onEvent func(payload string)) (*ChangeListener, error) {
	listener := pq.NewListener(config.DatabaseDSN(), listenerMinReconnect, listenerMaxReconnect, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logging.PrintlnError(logger, "notification listener:", err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, err
	}
	c := &ChangeListener{listener: listener, done: make(chan struct{})}
	go func() {
		for {
			select {
			case notification := <-listener.Notify:
				// A nil notification signals a reconnection; consumers re-query anyway.
				payload := ""
				if notification != nil {
					payload = notification.Extra
				}
				onEvent(payload)
			case <-c.done:
				return
			}
		}
	}()
	return c, nil
}

// Close stops the listener and releases its connection.
func (c *ChangeListener) Close() {
	close(c.done)
	if err := c.listener.Close(); err != nil {
		log.Printf("could not close the notification listener %v\n", err)
	}
}
