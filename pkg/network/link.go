package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/cardstage/pkg/clients"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/session"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
)

const (
	DefaultOutboxSize   = 64
	DefaultPingInterval = 15 * time.Second
	DefaultIdleTimeout  = 45 * time.Second
	writeTimeout        = 5 * time.Second
	// maxCloseReason is the limit of a websocket close frame reason.
	maxCloseReason = 123
)

var (
	ErrLinkClosed  = errors.New("link is closed")
	ErrOutboxFull  = errors.New("outbox is full")
	errIdleTimeout = errors.New("idle timeout")
)

var _ session.Connection = &Link{}

// Link is the connection of one participant over a websocket. Send never
// blocks on network I/O: actions are buffered in a bounded outbox drained by
// a writer goroutine.
type Link struct {
	conn   *websocket.Conn
	outbox chan messages.Action
	closed chan struct{}
	once   sync.Once
	reason string

	pingInterval time.Duration
	idleTimeout  time.Duration
	lastSeen     atomic.Int64
	logger       *log.Logger
}

type LinkOptions struct {
	OutboxSize   int
	PingInterval time.Duration
	IdleTimeout  time.Duration
}

func (o LinkOptions) withDefaults() LinkOptions {
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}

func NewLink(conn *websocket.Conn, opts LinkOptions, logger *log.Logger) *Link {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	l := &Link{
		conn:         conn,
		outbox:       make(chan messages.Action, opts.OutboxSize),
		closed:       make(chan struct{}),
		pingInterval: opts.PingInterval,
		idleTimeout:  opts.IdleTimeout,
		logger:       logger,
	}
	l.touch()
	return l
}

// Send queues an action for the participant. It fails when the link is
// closed or its outbox is full.
func (l *Link) Send(action messages.Action) error {
	select {
	case <-l.closed:
		return ErrLinkClosed
	default:
	}
	select {
	case l.outbox <- action:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close flushes the outbox and closes the websocket with reason.
func (l *Link) Close(reason string) {
	l.once.Do(func() {
		l.reason = reason
		close(l.closed)
	})
}

func (l *Link) touch() {
	l.lastSeen.Store(time.Now().UnixNano())
}

func (l *Link) idle() time.Duration {
	return time.Since(time.Unix(0, l.lastSeen.Load()))
}

// Run pumps frames between the websocket and the session of ticket until
// either side closes. The ticket is left when Run returns.
func (l *Link) Run(ctx context.Context, ticket *clients.Ticket) error {
	defer ticket.Leave()
	defer l.Close("disconnected")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.read(ctx, ticket) })
	g.Go(func() error { return l.write(ctx) })
	g.Go(func() error { return l.keepalive(ctx) })

	err := g.Wait()
	if errors.Is(err, ErrLinkClosed) || websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Link) read(ctx context.Context, ticket *clients.Ticket) error {
	for {
		typ, data, err := l.conn.Read(ctx)
		if err != nil {
			return err
		}
		l.touch()

		action := messages.Decode(messages.Frame{Type: frameType(typ), Data: data})
		if invalid, ok := action.(*messages.Invalid); ok {
			l.logger.Debug("Received an invalid frame: %s", invalid.Reason)
		}
		if err := ticket.Send(action); err != nil {
			return fmt.Errorf("failed to relay action: %v", err)
		}
	}
}

func (l *Link) write(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action := <-l.outbox:
			if err := l.writeAction(ctx, action); err != nil {
				return err
			}
		case <-l.closed:
			l.flush(ctx)
			reason := l.reason
			if len(reason) > maxCloseReason {
				reason = reason[:maxCloseReason]
			}
			if err := l.conn.Close(websocket.StatusNormalClosure, reason); err != nil {
				l.logger.Trace("Failed to close websocket: %v", err)
			}
			return ErrLinkClosed
		}
	}
}

// flush writes what is left in the outbox before the close frame.
func (l *Link) flush(ctx context.Context) {
	for {
		select {
		case action := <-l.outbox:
			if err := l.writeAction(ctx, action); err != nil {
				l.logger.Trace("Failed to flush %s: %v", action.Type(), err)
				return
			}
		default:
			return
		}
	}
}

func (l *Link) writeAction(ctx context.Context, action messages.Action) error {
	frame, err := messages.Encode(action)
	if err != nil {
		l.logger.Error("Failed to encode %s: %v", action.Type(), err)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := l.conn.Write(ctx, messageType(frame.Type), frame.Data); err != nil {
		return fmt.Errorf("failed to write %s: %v", action.Type(), err)
	}
	return nil
}

func (l *Link) keepalive(ctx context.Context) error {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case <-ticker.C:
			if idle := l.idle(); idle > l.idleTimeout {
				l.logger.Info("Closing link idle for %s", idle.Round(time.Millisecond))
				l.conn.Close(websocket.StatusPolicyViolation, errIdleTimeout.Error())
				return errIdleTimeout
			}
			pingCtx, cancel := context.WithTimeout(ctx, l.pingInterval)
			err := l.conn.Ping(pingCtx)
			cancel()
			if err == nil {
				l.touch()
			}
		}
	}
}

func frameType(t websocket.MessageType) messages.FrameType {
	if t == websocket.MessageText {
		return messages.FrameTypeText
	}
	return messages.FrameTypeBinary
}

func messageType(t messages.FrameType) websocket.MessageType {
	if t == messages.FrameTypeText {
		return websocket.MessageText
	}
	return websocket.MessageBinary
}
