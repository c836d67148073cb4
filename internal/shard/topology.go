// Package shard holds the static 2×2 room layout and the midline crossing
// rule that decides when a client must migrate to a neighbouring shard.
package shard

import (
	"fmt"

	"github.com/spacemmo/server/internal/world"
)

// Topology maps (shard, exit direction) to the destination shard.
type Topology struct {
	next []map[world.Direction]int
}

// DefaultTopology is the toroidal 2×2 layout.
func DefaultTopology() *Topology {
	return &Topology{next: []map[world.Direction]int{
		{world.Up: 3, world.Down: 3, world.Left: 1, world.Right: 1},
		{world.Up: 2, world.Down: 2, world.Left: 0, world.Right: 0},
		{world.Up: 1, world.Down: 1, world.Left: 3, world.Right: 3},
		{world.Up: 0, world.Down: 0, world.Left: 2, world.Right: 2},
	}}
}

// NewTopology validates a table indexed by shard ID. Every shard must name a
// destination for all four directions and every destination must exist.
func NewTopology(table []map[world.Direction]int) (*Topology, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("topology has no shards")
	}
	for id, exits := range table {
		for _, d := range world.Directions {
			dst, ok := exits[d]
			if !ok {
				return nil, fmt.Errorf("shard %d: no exit for %s", id, d)
			}
			if dst < 0 || dst >= len(table) {
				return nil, fmt.Errorf("shard %d: exit %s to unknown shard %d", id, d, dst)
			}
		}
	}
	return &Topology{next: table}, nil
}

// Next returns the shard entered when leaving shard in direction dir.
func (t *Topology) Next(shard int, dir world.Direction) (int, bool) {
	if shard < 0 || shard >= len(t.next) {
		return 0, false
	}
	dst, ok := t.next[shard][dir]
	return dst, ok
}

// Size returns the number of shards.
func (t *Topology) Size() int { return len(t.next) }
