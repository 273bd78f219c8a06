package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gsarrco/MuoVErsi/internal/session"
)

// Handler runs one user turn; session.Manager implements it.
type Handler interface {
	Handle(ctx context.Context, chatID int64, ev session.Event) []session.Effect
}

type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

type Options struct {
	UpdatesSubject string
	RepliesPrefix  string
	QueueGroup     string
	LogSubjects    bool
	// TurnTimeout bounds a single turn including its database queries.
	TurnTimeout time.Duration
	// DrainTimeout bounds how long shutdown waits for buffered updates.
	DrainTimeout time.Duration
}

// NATSGateway receives updates from a queue subscription and publishes the
// resulting effects, one message each, on <RepliesPrefix>.<chat_id>.
type NATSGateway struct {
	nc      *nats.Conn
	opts    Options
	metrics Metrics
	turns   *dispatcher
}

func NewNATSGateway(url string, opts Options, h Handler, m Metrics) (*NATSGateway, error) {
	nc, err := nats.Connect(url,
		nats.Name("muoversi"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected to %s", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 15 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	g := &NATSGateway{nc: nc, opts: opts, metrics: m}
	g.turns = newDispatcher(h, g.publish, opts.TurnTimeout)
	return g, nil
}

// Run subscribes and blocks until ctx is done. On return every received
// update has been handled and its replies published.
func (g *NATSGateway) Run(ctx context.Context) error {
	sub, err := g.nc.QueueSubscribe(g.opts.UpdatesSubject, g.opts.QueueGroup, func(msg *nats.Msg) {
		chatID, ev, err := DecodeUpdate(msg.Data)
		if err != nil {
			log.Printf("nats drop update: %v", err)
			return
		}
		if !g.turns.enqueue(ctx, chatID, ev) {
			log.Printf("nats drop update chat=%d: shutting down", chatID)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", g.opts.UpdatesSubject, err)
	}
	log.Printf("nats listening subject=%s queue=%s", g.opts.UpdatesSubject, g.opts.QueueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		log.Printf("nats drain subscription: %v", err)
	}
	// Drain returns at once; callbacks for buffered messages still run until
	// the subscription is closed.
	deadline := time.Now().Add(g.opts.DrainTimeout)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if sub.IsValid() {
		log.Printf("nats drain subscription: timed out after %s", g.opts.DrainTimeout)
	}
	g.turns.close()
	return nil
}

func (g *NATSGateway) publish(chatID int64, e session.Effect) error {
	b, err := EncodeReply(chatID, e)
	if err != nil {
		return err
	}
	subject := ReplySubject(g.opts.RepliesPrefix, chatID)
	if g.opts.LogSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	err = g.nc.Publish(subject, b)
	if g.metrics != nil {
		if err != nil {
			g.metrics.NATSPublishErrInc()
		} else {
			g.metrics.NATSPublishedInc()
		}
	}
	return err
}

func (g *NATSGateway) Close() {
	if g.nc != nil {
		g.nc.Drain()
		g.nc.Close()
	}
}

func ReplySubject(prefix string, chatID int64) string {
	return fmt.Sprintf("%s.%s", prefix, subjectToken(strconv.FormatInt(chatID, 10)))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
