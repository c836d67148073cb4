package client

import (
	"context"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/spacemmo/server/internal/net"
)

// Conn is the slice of a WebSocket connection the client drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to one shard.
type Dialer interface {
	Dial(ctx context.Context, shardURL string) (Conn, error)
}

// WSDialer dials shards over gorilla/websocket and requests the codec.
type WSDialer struct {
	Codec  net.Codec
	Dialer *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context, shardURL string) (Conn, error) {
	u, err := url.Parse(shardURL)
	if err != nil {
		return nil, err
	}
	if d.Codec != nil && d.Codec != net.JSON {
		q := u.Query()
		q.Set("codec", d.Codec.Name())
		u.RawQuery = q.Encode()
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
