package handler

import (
	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/world"
)

// Dispatcher delivers outbound messages to ships over their sessions. Each
// message is encoded at most once per codec regardless of audience size.
// Game loop only.
type Dispatcher struct {
	world *world.State
	store *net.SessionStore
	log   *zap.Logger
}

func NewDispatcher(ws *world.State, store *net.SessionStore, log *zap.Logger) *Dispatcher {
	return &Dispatcher{world: ws, store: store, log: log}
}

// ToShip sends msg to the session controlling ship id.
func (d *Dispatcher) ToShip(id world.EntityID, msg any) {
	d.ToShips([]world.EntityID{id}, msg)
}

// ToShips sends msg to every listed ship. Unknown or disconnected ships are skipped.
func (d *Dispatcher) ToShips(ids []world.EntityID, msg any) {
	if len(ids) == 0 {
		return
	}
	enc := newEncoder(msg, d.log)
	for _, id := range ids {
		if sess := d.sessionOf(id); sess != nil {
			enc.sendTo(sess)
		}
	}
}

// Broadcast sends msg to every ship in the shard.
func (d *Dispatcher) Broadcast(msg any) {
	d.BroadcastExcept(0, msg)
}

// BroadcastExcept sends msg to every ship except the given one.
func (d *Dispatcher) BroadcastExcept(except world.EntityID, msg any) {
	enc := newEncoder(msg, d.log)
	for _, ship := range d.world.Ships() {
		if ship.ID == except {
			continue
		}
		if sess := d.store.Get(ship.SessionID); sess != nil && !sess.IsClosed() {
			enc.sendTo(sess)
		}
	}
}

// ToSessions sends msg to arbitrary sessions, joined or not.
func (d *Dispatcher) ToSessions(sessions []*net.Session, msg any) {
	enc := newEncoder(msg, d.log)
	for _, sess := range sessions {
		if !sess.IsClosed() {
			enc.sendTo(sess)
		}
	}
}

func (d *Dispatcher) sessionOf(id world.EntityID) *net.Session {
	ship := d.world.Ship(id)
	if ship == nil {
		return nil
	}
	sess := d.store.Get(ship.SessionID)
	if sess == nil || sess.IsClosed() {
		return nil
	}
	return sess
}

// encoder memoizes the encoded frame of one message per codec.
type encoder struct {
	msg    any
	frames map[string][]byte
	failed bool
	log    *zap.Logger
}

func newEncoder(msg any, log *zap.Logger) *encoder {
	return &encoder{msg: msg, frames: make(map[string][]byte, 2), log: log}
}

func (e *encoder) sendTo(sess *net.Session) {
	if e.failed {
		return
	}
	codec := sess.Codec()
	frame, ok := e.frames[codec.Name()]
	if !ok {
		var err error
		frame, err = codec.Marshal(e.msg)
		if err != nil {
			e.log.Error("encode failed", zap.String("codec", codec.Name()), zap.Error(err))
			e.failed = true
			return
		}
		e.frames[codec.Name()] = frame
	}
	sess.SendEncoded(frame)
}
