package main

import (
    "context"
    "errors"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/config"
    "aggmesh/pkg/memkv"
    "aggmesh/pkg/neighbors"
    "aggmesh/pkg/observability"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/radio/udp"
    "aggmesh/pkg/sensor"
    "aggmesh/pkg/tree"
    "aggmesh/pkg/wire/codec"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    addr := cfg.Address()
    nlog := observability.NodeLogger(logger, addr)

    // Startup logs + configuration dump
    zap.L().Info("aggmesh-node started", zap.String("name", cfg.NodeName), zap.Stringer("addr", addr), zap.Stringer("sink", cfg.SinkAddr()))
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    loop := clock.NewLoop(0)
    udpOpts, err := cfg.UDPOptions()
    if err != nil {
        zap.L().Error("invalid radio config", zap.Error(err))
        return 1
    }
    link, err := udp.Listen(addr, udpOpts, loop, nlog)
    if err != nil {
        zap.L().Error("failed to open udp radio", zap.String("listen", udpOpts.Listen), zap.Error(err))
        return 1
    }
    defer link.Close()
    zap.L().Info("udp radio listening", zap.Stringer("local", link.LocalAddr()), zap.Int("neighbors", len(udpOpts.Neighbors)))

    reg, err := codec.NewRegistry()
    if err != nil {
        zap.L().Error("failed to build codecs", zap.Error(err))
        return 1
    }
    kv := memkv.New(memkv.Options{})
    nb := neighbors.NewStore(kv, addr, cfg.Tree.NeighborTTL, nlog)
    h := sensor.NewHandler(sensor.NewSynthetic(addr, cfg.Sensor.Seed), reg, cfg.PayloadFormat(), nil, nlog)

    // everything touching timers runs on the loop goroutine
    var conn *tree.Conn
    openErr := make(chan error, 1)
    loop.Post(func() {
        var err error
        conn, err = tree.Open(tree.Deps{
            Mux:       radio.NewMux(link, nlog),
            Sched:     loop,
            Neighbors: nb,
            Log:       logger,
        }, cfg.SinkAddr(), cfg.Channels(), sensor.AggregateSize, h, cfg.TreeOptions())
        openErr <- err
        if err == nil && opts.StatusEvery > 0 {
            startStatus(loop, conn, nb, link, opts, nlog)
        }
    })

    runCtx, cancel := context.WithCancel(ctx)
    defer cancel()
    done := make(chan error, 1)
    go func() { done <- loop.Run(runCtx) }()

    if err := <-openErr; err != nil {
        zap.L().Error("failed to join the tree", zap.Error(err))
        cancel()
        <-done
        return 1
    }
    zap.L().Info("node is running; press Ctrl+C to exit")

    err = <-done
    // the loop has stopped, so closing from here is race free
    conn.Close()
    if err != nil && !errors.Is(err, context.Canceled) {
        zap.L().Error("event loop stopped", zap.Error(err))
        return 1
    }
    zap.L().Info("aggmesh-node stopped", zap.Stringer("state", conn.State()), zap.Any("stats", conn.Stats()))
    return 0
}

// startStatus logs the tree state and the neighbour table periodically.
func startStatus(loop *clock.Loop, conn *tree.Conn, nb *neighbors.Store, link *udp.Link, opts Options, log *zap.Logger) {
    var t clock.Timer
    t = loop.AfterFunc(opts.StatusEvery, func() {
        t.Reset()
        log.Info("status",
            zap.Stringer("state", conn.State()),
            zap.Stringer("parent", conn.Parent()),
            zap.Uint32("hops", conn.Hops()),
            zap.Bool("leaf", conn.IsLeaf()),
            zap.Int("neighbors", len(nb.List())),
            zap.Int("children", len(nb.Children())),
            zap.Uint64("shaped", link.Shaped()),
            zap.Any("tree", conn.Stats()),
            zap.Any("transport", conn.Transport().Stats()))
    })
}
