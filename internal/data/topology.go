package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spacemmo/server/internal/shard"
	"github.com/spacemmo/server/internal/world"
)

// TopologyEntry names the neighbour shard entered through each midline.
type TopologyEntry struct {
	Shard int    `yaml:"shard"`
	Up    int    `yaml:"up"`
	Down  int    `yaml:"down"`
	Left  int    `yaml:"left"`
	Right int    `yaml:"right"`
	Note  string `yaml:"note"`
}

// LoadTopology loads topology.yaml. Shard IDs must cover 0..n-1 exactly once.
func LoadTopology(path string) (*shard.Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	var entries []TopologyEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	table := make([]map[world.Direction]int, len(entries))
	for _, e := range entries {
		if e.Shard < 0 || e.Shard >= len(entries) {
			return nil, fmt.Errorf("topology: shard %d out of range [0,%d)", e.Shard, len(entries))
		}
		if table[e.Shard] != nil {
			return nil, fmt.Errorf("topology: shard %d listed twice", e.Shard)
		}
		table[e.Shard] = map[world.Direction]int{
			world.Up:    e.Up,
			world.Down:  e.Down,
			world.Left:  e.Left,
			world.Right: e.Right,
		}
	}
	topo, err := shard.NewTopology(table)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return topo, nil
}
