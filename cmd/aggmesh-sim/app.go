package main

import (
    "io"
    "os"
    "strings"

    "go.uber.org/zap"

    "aggmesh/pkg/config"
    "aggmesh/pkg/observability"
    "aggmesh/pkg/sim"
)

// run is the main entry point after CLI parsing. It returns 2 when the
// network built a broken tree.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }
    applyOverrides(cfg, opts)

    // the report owns stdout unless it goes to a file
    if opts.Out == "" {
        for i, out := range cfg.Log.Outputs {
            if strings.EqualFold(out, "stdout") {
                cfg.Log.Outputs[i] = "stderr"
            }
        }
    }
    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("aggmesh-sim started", zap.String("name", cfg.NodeName))
    zap.L().Debug("effective configuration", zap.Any("config", cfg))

    simOpts, err := sim.FromConfig(cfg, logger)
    if err != nil {
        zap.L().Error("failed to build topology", zap.Error(err))
        return 1
    }
    nw, err := sim.New(simOpts)
    if err != nil {
        zap.L().Error("failed to build network", zap.Error(err))
        return 1
    }
    defer nw.Close()

    report := nw.Run(cfg.Sim.Duration)

    var w io.Writer = os.Stdout
    if opts.Out != "" {
        f, err := os.Create(opts.Out)
        if err != nil {
            zap.L().Error("failed to create report file", zap.String("path", opts.Out), zap.Error(err))
            return 1
        }
        defer f.Close()
        w = f
    }
    if err := report.Encode(w, opts.Format); err != nil {
        zap.L().Error("failed to write report", zap.Error(err))
        return 1
    }
    if !report.Acyclic || !report.HopsConsistent {
        zap.L().Error("tree check failed", zap.Strings("problems", report.Problems))
        return 2
    }
    return 0
}

func applyOverrides(cfg *config.Config, opts Options) {
    if opts.Nodes > 0 {
        cfg.Sim.Nodes = opts.Nodes
    }
    if opts.Topology != "" {
        cfg.Sim.Topology = strings.ToLower(opts.Topology)
    }
    if opts.Seed != 0 {
        cfg.Sim.Seed = opts.Seed
        cfg.Sensor.Seed = opts.Seed
    }
    if opts.Duration > 0 {
        cfg.Sim.Duration = opts.Duration
    }
}
