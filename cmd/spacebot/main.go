// Command spacebot connects headless ships that wander and shoot at random.
// It is used to load a shard cluster and to watch handoffs in the logs.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemmo/server/internal/client"
	"github.com/spacemmo/server/internal/config"
	"github.com/spacemmo/server/internal/data"
	"github.com/spacemmo/server/internal/shard"
	"github.com/spacemmo/server/internal/world"
)

const (
	turnChance = 1.0 / 80 // per frame
	fireChance = 1.0 / 30
	retryDelay = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("SPACEMMO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	count := 1
	if s := os.Getenv("SPACEBOT_COUNT"); s != "" {
		if count, err = strconv.Atoi(s); err != nil || count <= 0 {
			return fmt.Errorf("SPACEBOT_COUNT: want a positive integer, got %q", s)
		}
	}

	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	topo := shard.DefaultTopology()
	if cfg.Shard.TopologyFile != "" {
		if topo, err = data.LoadTopology(cfg.Shard.TopologyFile); err != nil {
			return fmt.Errorf("load topology: %w", err)
		}
	}
	clientCfg, err := client.FromServerConfig(cfg, topo)
	if err != nil {
		return fmt.Errorf("client config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting bots", zap.Int("count", count), zap.String("codec", clientCfg.Codec.Name()))

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		botCfg := clientCfg
		botCfg.StartShard = i % topo.Size()
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runBot(ctx, botCfg, log.With(zap.Int("bot", n)))
		}(i)
	}
	wg.Wait()
	log.Info("bots stopped")
	return nil
}

// runBot plays until ctx is cancelled, starting over on the start shard
// whenever a client fails.
func runBot(ctx context.Context, cfg client.Config, log *zap.Logger) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	hooks := client.Hooks{
		OnTick: func(c *client.Client) {
			if rng.Float64() < turnChance {
				dir := world.Directions[rng.Intn(len(world.Directions))]
				if err := c.Turn(dir); err != nil {
					log.Debug("turn", zap.Error(err))
				}
			}
			if rng.Float64() < fireChance {
				if err := c.Fire(); err != nil {
					log.Debug("fire", zap.Error(err))
				}
			}
		},
		OnHit: func(c *client.Client, target world.EntityID, _ world.RocketID) {
			if target == c.ID() {
				log.Info("hit", zap.Int("hits", c.Me().Hits))
			}
		},
		OnHandoff: func(_ *client.Client, from, to int) {
			log.Info("handoff", zap.Int("from", from), zap.Int("to", to))
		},
	}

	for {
		c := client.New(cfg, client.WSDialer{Codec: cfg.Codec}, hooks, log)
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warn("client stopped, retrying", zap.Error(err), zap.Duration("delay", retryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func newLogger(levelName string) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	zapCfg.DisableCaller = true
	zapCfg.DisableStacktrace = true
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
