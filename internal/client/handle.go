package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/world"
)

func decode[T any](c *Client, data []byte) (T, bool) {
	var msg T
	if err := c.cfg.Codec.Unmarshal(data, &msg); err != nil {
		c.log.Warn("decode failed", zap.Error(err))
		return msg, false
	}
	return msg, true
}

// handle applies one server message to the mirror. Unknown types and
// references to entities the mirror does not hold are logged and dropped.
func (c *Client) handle(ctx context.Context, data []byte) error {
	env, ok := decode[protocol.Envelope](c, data)
	if !ok {
		return nil
	}

	switch env.Type {
	case protocol.TypeJoin:
		if m, ok := decode[protocol.Join](c, data); ok {
			return c.onJoin(m)
		}
	case protocol.TypeNew:
		if m, ok := decode[protocol.ShipState](c, data); ok {
			c.ships[m.ID] = &world.Ship{ID: m.ID, Motion: world.Motion{X: m.X, Y: m.Y, Dir: m.Dir}}
		}
	case protocol.TypeTurn:
		if m, ok := decode[protocol.ShipState](c, data); ok {
			s, found := c.ships[m.ID]
			if !found {
				// gained observers learn about a ship through its first turn
				s = &world.Ship{ID: m.ID}
				c.ships[m.ID] = s
			}
			s.JumpTo(m.X, m.Y)
			s.Turn(m.Dir)
		}
	case protocol.TypeFire:
		if m, ok := decode[protocol.Fire](c, data); ok {
			c.rockets[m.Rocket] = &world.Rocket{
				ID:     m.Rocket,
				From:   m.Ship,
				Motion: world.Motion{X: m.X, Y: m.Y, Dir: m.Dir},
			}
		}
	case protocol.TypeHit:
		if m, ok := decode[protocol.Hit](c, data); ok {
			c.onHit(m)
		}
	case protocol.TypeDelete:
		if m, ok := decode[protocol.Delete](c, data); ok {
			delete(c.ships, m.ID)
		}
	case protocol.TypeAOI:
		if m, ok := decode[protocol.AOI](c, data); ok {
			c.aoi = m.CellIndexes
		}
	case protocol.TypeHandoff:
		if m, ok := decode[protocol.Handoff](c, data); ok {
			if c.State() != StateJoined {
				return nil // already migrating
			}
			return c.handoff(ctx, m.Shard, world.Motion{X: m.X, Y: m.Y, Dir: m.Dir})
		}
	default:
		c.log.Debug("unknown message type", zap.String("type", env.Type))
	}
	return nil
}

func (c *Client) onJoin(m protocol.Join) error {
	if c.State() != StateConnecting {
		c.log.Warn("unexpected join", zap.Stringer("state", c.State()))
		return nil
	}
	c.me = m.ID
	c.shard = m.Shard
	c.carry = nil
	c.ships[m.ID] = &world.Ship{ID: m.ID, Motion: world.Motion{X: m.X, Y: m.Y, Dir: m.Dir}}
	c.setState(StateJoined)
	c.log.Info("joined", zap.Uint64("ship", uint64(m.ID)), zap.Int("shard", m.Shard))

	if c.wantAOI {
		if err := c.send(protocol.Inbound{Type: protocol.TypeAOI}); err != nil {
			return err
		}
	}
	if c.hooks.OnJoin != nil {
		c.hooks.OnJoin(c)
	}
	return nil
}

func (c *Client) onHit(m protocol.Hit) {
	if s, ok := c.ships[m.Ship]; ok {
		s.Hits++
	}
	if r, ok := c.rockets[m.Rocket]; ok {
		if shooter, ok := c.ships[r.From]; ok {
			shooter.Kills++
		}
		delete(c.rockets, m.Rocket)
	}
	if c.hooks.OnHit != nil {
		c.hooks.OnHit(c, m.Ship, m.Rocket)
	}
}
