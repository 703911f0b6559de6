package main

import (
    "flag"
    "time"
)

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    // StatusEvery logs the node's tree state periodically; 0 disables it.
    StatusEvery time.Duration
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("aggmesh-node", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.DurationVar(&opts.StatusEvery, "status", 30*time.Second, "Status log period")
    _ = fs.Parse(args)
    return opts
}
