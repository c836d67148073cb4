// Package client is a headless space-battle client. It mirrors the ships and
// rockets its shard reports, moves them locally between server updates, and
// migrates to the neighbouring shard when its own ship crosses the midline.
package client

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/config"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/shard"
	"github.com/spacemmo/server/internal/world"
)

// ErrNotJoined is returned by actions issued before the join reply arrived.
var ErrNotJoined = errors.New("client not joined")

type Config struct {
	ShardURLs   []string // indexed by shard id
	StartShard  int
	Bounds      world.Bounds
	Kinematics  world.Kinematics
	FramePeriod time.Duration
	Topology    *shard.Topology
	Codec       net.Codec

	DialAttempts int
	DialBackoff  time.Duration // multiplied by the attempt number
}

// FromServerConfig derives a client configuration from the shared TOML file.
func FromServerConfig(cfg *config.Config, topo *shard.Topology) (Config, error) {
	codec, err := net.CodecByName(cfg.Client.Codec)
	if err != nil {
		return Config{}, err
	}
	return Config{
		ShardURLs:  cfg.Client.ShardURLs,
		StartShard: cfg.Shard.ID,
		Bounds:     world.Bounds{Width: cfg.World.Width, Height: cfg.World.Height},
		Kinematics: world.Kinematics{
			ShipSpeed:   cfg.World.ShipSpeed,
			RocketSpeed: cfg.World.RocketSpeed,
			HitExtent:   cfg.World.HitExtent,
		},
		FramePeriod: cfg.World.TickPeriod(),
		Topology:    topo,
		Codec:       codec,
	}, nil
}

func (cfg Config) withDefaults() Config {
	if cfg.Bounds.Width <= 0 || cfg.Bounds.Height <= 0 {
		cfg.Bounds = world.Bounds{Width: 1000, Height: 700}
	}
	if cfg.Kinematics == (world.Kinematics{}) {
		cfg.Kinematics = world.DefaultKinematics()
	}
	if cfg.FramePeriod <= 0 {
		cfg.FramePeriod = 25 * time.Millisecond
	}
	if cfg.Topology == nil {
		cfg.Topology = shard.DefaultTopology()
	}
	if cfg.Codec == nil {
		cfg.Codec = net.JSON
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = 3
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = 200 * time.Millisecond
	}
	return cfg
}

// Hooks are invoked on the Run goroutine. They may call the Client's
// accessors and actions freely.
type Hooks struct {
	OnJoin    func(c *Client)
	OnTick    func(c *Client)
	OnHit     func(c *Client, target world.EntityID, rocket world.RocketID)
	OnHandoff func(c *Client, from, to int)
}

type frame struct {
	gen  uint64
	data []byte
	err  error
}

// Client drives one ship across shards. Everything except State is owned by
// the goroutine executing Run.
type Client struct {
	cfg    Config
	dialer Dialer
	hooks  Hooks
	log    *zap.Logger

	state atomic.Int32

	conn    Conn
	gen     uint64
	inbound chan frame
	done    chan struct{}

	shard   int
	carry   *protocol.Position
	me      world.EntityID
	ships   map[world.EntityID]*world.Ship
	rockets map[world.RocketID]*world.Rocket
	aoi     []int
	wantAOI bool
}

func New(cfg Config, dialer Dialer, hooks Hooks, log *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		dialer:  dialer,
		hooks:   hooks,
		log:     log.Named("client"),
		inbound: make(chan frame, 64),
		done:    make(chan struct{}),
		shard:   cfg.StartShard,
		ships:   make(map[world.EntityID]*world.Ship),
		rockets: make(map[world.RocketID]*world.Rocket),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(to State) {
	from := c.State()
	if from == to {
		return
	}
	if !canTransition(from, to) {
		c.log.Warn("invalid state transition",
			zap.Stringer("from", from), zap.Stringer("to", to))
		return
	}
	c.state.Store(int32(to))
	c.log.Debug("state", zap.Stringer("from", from), zap.Stringer("to", to))
}

// Run connects to the start shard and plays until ctx is cancelled (nil) or
// the connection fails for good. A Client runs once.
func (c *Client) Run(ctx context.Context) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	defer c.shutdown()

	if err := c.connect(ctx); err != nil {
		return ctxOr(ctx, err)
	}

	ticker := time.NewTicker(c.cfg.FramePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-c.inbound:
			if f.gen != c.gen {
				continue // frame from a connection we already left
			}
			if f.err != nil {
				return fmt.Errorf("shard %d: connection lost: %w", c.shard, f.err)
			}
			if err := c.handle(ctx, f.data); err != nil {
				return ctxOr(ctx, err)
			}
		case <-ticker.C:
			if err := c.step(ctx); err != nil {
				return ctxOr(ctx, err)
			}
		}
	}
}

func ctxOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) shutdown() {
	c.setState(StateClosed)
	c.closeConn()
	close(c.done)
}

func (c *Client) closeConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// connect dials the current shard and sends join, carrying the position of a
// ship that is migrating in.
func (c *Client) connect(ctx context.Context) error {
	if c.shard < 0 || c.shard >= len(c.cfg.ShardURLs) {
		return fmt.Errorf("no url for shard %d", c.shard)
	}
	url := c.cfg.ShardURLs[c.shard]

	var conn Conn
	var err error
	for attempt := 1; attempt <= c.cfg.DialAttempts; attempt++ {
		conn, err = c.dialer.Dial(ctx, url)
		if err == nil {
			break
		}
		c.log.Warn("dial failed",
			zap.Int("shard", c.shard), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == c.cfg.DialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.DialBackoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		return fmt.Errorf("dial shard %d: %w", c.shard, err)
	}

	c.gen++
	c.conn = conn
	go c.readLoop(conn, c.gen)

	c.log.Info("connected", zap.Int("shard", c.shard), zap.String("url", url))
	return c.send(protocol.Inbound{Type: protocol.TypeJoin, Position: c.carry})
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case c.inbound <- frame{gen: gen, data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) send(msg protocol.Inbound) error {
	if c.conn == nil {
		return ErrClosed
	}
	data, err := c.cfg.Codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	if err := c.conn.WriteMessage(c.cfg.Codec.FrameType(), data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// handoff leaves the current shard and joins next with the given motion.
// The old shard sees an ordinary disconnect.
func (c *Client) handoff(ctx context.Context, next int, m world.Motion) error {
	from := c.shard
	c.setState(StateHandoffPending)
	c.log.Info("handoff", zap.Int("from", from), zap.Int("to", next),
		zap.Float64("x", m.X), zap.Float64("y", m.Y), zap.String("dir", string(m.Dir)))

	c.closeConn()
	c.carry = &protocol.Position{X: m.X, Y: m.Y, Dir: string(m.Dir)}
	c.me = 0
	clear(c.ships)
	clear(c.rockets)
	c.aoi = nil
	c.shard = next
	c.setState(StateConnecting)

	if c.hooks.OnHandoff != nil {
		c.hooks.OnHandoff(c, from, next)
	}
	return c.connect(ctx)
}

// step moves the mirror by one frame and starts a handoff when the own ship
// crossed the midline in its direction of travel.
func (c *Client) step(ctx context.Context) error {
	if c.State() != StateJoined {
		return nil
	}
	b := c.cfg.Bounds
	k := c.cfg.Kinematics

	crossed := false
	for _, s := range c.ships {
		prevX, prevY := s.X, s.Y
		s.Step(k.ShipSpeed)
		s.X, s.Y = b.Wrap(s.X, s.Y)
		if s.ID == c.me && shard.Crossed(b, prevX, prevY, s.X, s.Y, s.Dir) {
			crossed = true
		}
	}
	for id, r := range c.rockets {
		r.Step(k.RocketSpeed)
		if !b.Contains(r.X, r.Y) {
			delete(c.rockets, id)
		}
	}

	if crossed {
		me := c.ships[c.me]
		if next, ok := c.cfg.Topology.Next(c.shard, me.Dir); ok {
			return c.handoff(ctx, next, me.Motion)
		}
	}
	if c.hooks.OnTick != nil {
		c.hooks.OnTick(c)
	}
	return nil
}

// ---------- accessors (Run goroutine / hooks only) ----------

func (c *Client) Shard() int                         { return c.shard }
func (c *Client) ID() world.EntityID                 { return c.me }
func (c *Client) Bounds() world.Bounds               { return c.cfg.Bounds }
func (c *Client) AOI() []int                         { return c.aoi }
func (c *Client) RocketCount() int                   { return len(c.rockets) }
func (c *Client) Ship(id world.EntityID) *world.Ship { return c.ships[id] }

// Me returns the own ship, nil before the join reply.
func (c *Client) Me() *world.Ship {
	if c.me == 0 {
		return nil
	}
	return c.ships[c.me]
}

// Ships returns the mirrored ships sorted by ID.
func (c *Client) Ships() []*world.Ship {
	out := make([]*world.Ship, 0, len(c.ships))
	for _, s := range c.ships {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *world.Ship) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// ---------- actions ----------

// Turn changes the own ship's heading and reports it with the current position.
func (c *Client) Turn(dir world.Direction) error {
	me := c.Me()
	if me == nil || c.State() != StateJoined {
		return ErrNotJoined
	}
	me.Turn(dir)
	return c.send(protocol.Inbound{Type: protocol.TypeTurn, X: me.X, Y: me.Y, Dir: string(dir)})
}

// Fire launches a rocket along the current heading. The rocket appears in the
// mirror once the shard echoes it back.
func (c *Client) Fire() error {
	me := c.Me()
	if me == nil || c.State() != StateJoined {
		return ErrNotJoined
	}
	return c.send(protocol.Inbound{Type: protocol.TypeFire, X: me.X, Y: me.Y, Dir: string(me.Dir)})
}

// WatchAOI subscribes to the shard's occupied-cell stream. The subscription
// is renewed after every handoff.
func (c *Client) WatchAOI() error {
	c.wantAOI = true
	if c.conn == nil {
		return nil
	}
	return c.send(protocol.Inbound{Type: protocol.TypeAOI})
}
