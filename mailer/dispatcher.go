package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/basit/rushupload-backend/metrics"
)

// LogSender writes messages to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info().Strs("to", msg.To).Str("subject", msg.Subject).Str("link", msg.Link).Msg("mail delivery skipped: no SMTP relay configured")
	return nil
}

// Dispatcher sends messages in the background.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout}
}

// Deliver queues msg and returns immediately.
func (d *Dispatcher) Deliver(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			metrics.MailDeliveryFailures.Inc()
			log.Warn().Err(err).Strs("to", msg.To).Str("subject", msg.Subject).Msg("mail delivery failed")
			return
		}
		log.Debug().Strs("to", msg.To).Msg("mail delivered")
	}()
}

// Wait blocks until every queued delivery has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
