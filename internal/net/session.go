package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spacemmo/server/internal/protocol"
)

const (
	maxMessageSize      = 4096
	defaultWriteTimeout = 10 * time.Second
	defaultReadTimeout  = 60 * time.Second
)

// SessionOptions carries the per-connection limits from [network].
type SessionOptions struct {
	InQueueSize       int
	OutQueueSize      int
	MessagesPerSecond float64 // 0 = unlimited
	MessageBurst      int
	WriteTimeout      time.Duration // <= 0 selects defaultWriteTimeout
	ReadTimeout       time.Duration // <= 0 selects defaultReadTimeout
}

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	ID    uint64
	conn  *websocket.Conn
	codec Codec
	state atomic.Int32 // protocol.SessionState stored as int32

	InQueue  chan []byte // game loop reads raw frames from here
	OutQueue chan []byte // writer goroutine reads from here

	IP string

	// WantsAOI is set by the aoi opt-in message (game loop only).
	WantsAOI bool

	outBuf [][]byte // buffered frames, flushed by OutputSystem (game loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	limiter      *rate.Limiter // readLoop goroutine only
	writeTimeout time.Duration
	readTimeout  time.Duration

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, codec Codec, ip string, opts SessionOptions, log *zap.Logger) *Session {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	s := &Session{
		ID:           id,
		conn:         conn,
		codec:        codec,
		InQueue:      make(chan []byte, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           ip,
		closeCh:      make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		log:          log.With(zap.Uint64("session", id)),
	}
	if opts.MessagesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst)
	}
	s.state.Store(int32(protocol.StateConnected))
	return s
}

func (s *Session) State() protocol.SessionState {
	return protocol.SessionState(s.state.Load())
}

func (s *Session) SetState(st protocol.SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) Codec() Codec { return s.codec }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Decode unmarshals one inbound frame with the session's codec.
func (s *Session) Decode(frame []byte, v any) error {
	return s.codec.Unmarshal(frame, v)
}

// Send encodes msg and buffers it for sending. Nothing reaches the socket
// until FlushOutput is called by OutputSystem.
// Called only from the game loop goroutine, so outBuf needs no lock.
func (s *Session) Send(msg any) {
	data, err := s.codec.Marshal(msg)
	if err != nil {
		s.log.Error("encode failed", zap.Error(err))
		return
	}
	s.SendEncoded(data)
}

// SendEncoded buffers a frame already encoded with this session's codec.
func (s *Session) SendEncoded(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(protocol.StateDisconnecting)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads frames from the socket and
// pushes them onto InQueue for the game loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn("message rate exceeded, disconnecting")
			return
		}

		// Block until InQueue has space or session closes. Dropping a turn
		// would leave every observer with a stale position.
		select {
		case s.InQueue <- frame:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It writes queued frames and keeps the
// connection alive with pings.
func (s *Session) writeLoop() {
	pingEvery := s.readTimeout * 9 / 10
	if pingEvery <= 0 {
		pingEvery = s.readTimeout
	}
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeFrame(s.codec.FrameType(), data) {
				return
			}
		case <-ticker.C:
			if !s.writeFrame(websocket.PingMessage, nil) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeFrame(frameType int, data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(frameType, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
