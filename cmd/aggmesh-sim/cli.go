package main

import (
    "flag"
    "time"
)

// Options holds CLI options for the simulator.
type Options struct {
    ConfigPath string
    Format     string
    Out        string
    // zero values keep the configured sim section
    Nodes    int
    Topology string
    Seed     int64
    Duration time.Duration
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("aggmesh-sim", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Format, "format", "text", "Report format: text|json|cbor")
    fs.StringVar(&opts.Out, "out", "", "Write the report to this file instead of stdout")
    fs.IntVar(&opts.Nodes, "nodes", 0, "Override sim.nodes")
    fs.StringVar(&opts.Topology, "topology", "", "Override sim.topology: random|line|grid")
    fs.Int64Var(&opts.Seed, "seed", 0, "Override sim.seed")
    fs.DurationVar(&opts.Duration, "duration", 0, "Override sim.duration (virtual time)")
    _ = fs.Parse(args)
    return opts
}
