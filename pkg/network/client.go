package network

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cbodonnell/cardstage/pkg/messages"
	"nhooyr.io/websocket"
)

// Client is a participant connection to a Server.
type Client struct {
	conn *websocket.Conn
}

type DialOptions struct {
	// ReconnectToken reclaims a previous seat.
	ReconnectToken string
	// AuthToken is sent as a bearer token.
	AuthToken string
}

// Dial connects to the websocket endpoint at rawURL.
func Dial(ctx context.Context, rawURL string, opts DialOptions) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %v", err)
	}
	if opts.ReconnectToken != "" {
		q := u.Query()
		q.Set("token", opts.ReconnectToken)
		u.RawQuery = q.Encode()
	}

	dialOpts := &websocket.DialOptions{}
	if opts.AuthToken != "" {
		dialOpts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + opts.AuthToken}}
	}

	conn, _, err := websocket.Dial(ctx, u.String(), dialOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %v", u.Redacted(), err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	return &Client{conn: conn}, nil
}

// Send writes an action to the server.
func (c *Client) Send(ctx context.Context, action messages.Action) error {
	frame, err := messages.Encode(action)
	if err != nil {
		return fmt.Errorf("failed to encode action: %v", err)
	}
	return c.SendFrame(ctx, frame)
}

// SendFrame writes a raw frame to the server.
func (c *Client) SendFrame(ctx context.Context, frame messages.Frame) error {
	if err := c.conn.Write(ctx, messageType(frame.Type), frame.Data); err != nil {
		return fmt.Errorf("failed to write frame: %v", err)
	}
	return nil
}

// Receive blocks for the next action from the server. Once the server closed
// the connection, the error carries the close status and reason.
func (c *Client) Receive(ctx context.Context) (messages.Action, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return messages.Decode(messages.Frame{Type: frameType(typ), Data: data}), nil
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
