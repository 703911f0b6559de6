// Package config provides YAML-based configuration loading for aggmesh.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/spf13/viper"

    "aggmesh/pkg/multipacket"
    "aggmesh/pkg/radio/medium"
    "aggmesh/pkg/radio/udp"
    "aggmesh/pkg/tree"
    "aggmesh/pkg/wire"
    "aggmesh/pkg/wire/codec"
)

// Config is the root application configuration.
type Config struct {
    // NodeName is a free-form label put on startup logs
    NodeName string `mapstructure:"node_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Radio describes this node's link and its neighbours
    Radio RadioConfig `mapstructure:"radio"`

    // Transport tunes the fragment transport
    Transport TransportConfig `mapstructure:"transport"`

    // Tree holds the protocol windows
    Tree TreeConfig `mapstructure:"tree"`

    // Sensor configures the reference application
    Sensor SensorConfig `mapstructure:"sensor"`

    // Sim configures aggmesh-sim
    Sim SimConfig `mapstructure:"sim"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// RadioConfig describes the UDP radio of a single node.
type RadioConfig struct {
    // Address of this node, "hi.lo"
    Address string `mapstructure:"address"`
    // Sink address; the node whose Address equals it is the sink
    Sink string `mapstructure:"sink"`
    // Listen is the local UDP endpoint
    Listen string `mapstructure:"listen"`
    // Neighbors in radio range, "addr@host:port"
    Neighbors []string `mapstructure:"neighbors"`
    MTU       int      `mapstructure:"mtu"`
    // Loss drops outbound frames with this probability
    Loss       float64 `mapstructure:"loss"`
    RateBytes  int64   `mapstructure:"rate_bytes"`
    BurstBytes int64   `mapstructure:"burst_bytes"`

    SetupChannel uint16 `mapstructure:"setup_channel"`
    DataChannel  uint16 `mapstructure:"data_channel"`
}

// TransportConfig mirrors multipacket.Options.
type TransportConfig struct {
    FrameSize          int           `mapstructure:"frame_size"`
    SendInterval       time.Duration `mapstructure:"send_interval"`
    MaxRetx            int           `mapstructure:"max_retx"`
    RetxTimeout        time.Duration `mapstructure:"retx_timeout"`
    MaxMessage         int           `mapstructure:"max_message"`
    MaxQueuedBytes     int           `mapstructure:"max_queued_bytes"`
    MaxReassemblyBytes int           `mapstructure:"max_reassembly_bytes"`
    ReassemblyTimeout  time.Duration `mapstructure:"reassembly_timeout"`
}

// TreeConfig mirrors tree.Options.
type TreeConfig struct {
    SettleDelay      time.Duration `mapstructure:"settle_delay"`
    StubbornMin      time.Duration `mapstructure:"stubborn_min"`
    StubbornMax      time.Duration `mapstructure:"stubborn_max"`
    StubbornWait     time.Duration `mapstructure:"stubborn_wait"`
    ParentDetectWait time.Duration `mapstructure:"parent_detect_wait"`
    AggregationWait  time.Duration `mapstructure:"aggregation_wait"`
    LeafInterval     time.Duration `mapstructure:"leaf_interval"`
    SetupTimeout     time.Duration `mapstructure:"setup_timeout"`
    SinkFoldsOwn     bool          `mapstructure:"sink_folds_own"`
    // NeighborTTL forgets neighbours not heard for this long; 0 keeps them
    NeighborTTL time.Duration `mapstructure:"neighbor_ttl"`
}

// SensorConfig configures the reference sensor application.
type SensorConfig struct {
    // Format of aggregates on the air: cbor, json or proto
    Format string `mapstructure:"format"`
    // Seed of the synthetic readings
    Seed int64 `mapstructure:"seed"`
}

// SimConfig configures a whole-network simulation.
type SimConfig struct {
    Nodes int `mapstructure:"nodes"`
    // Topology: random, line or grid
    Topology  string  `mapstructure:"topology"`
    Radius    float64 `mapstructure:"radius"`
    GridWidth int     `mapstructure:"grid_width"`
    Seed      int64   `mapstructure:"seed"`
    // Loss is the per-receiver frame loss probability of the medium
    Loss     float64       `mapstructure:"loss"`
    Delay    time.Duration `mapstructure:"delay"`
    Duration time.Duration `mapstructure:"duration"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    tw := tree.DefaultOptions()
    return &Config{
        NodeName: "aggmesh-node",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/aggmesh.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Radio: RadioConfig{
            Address:      "1.0",
            Sink:         "1.0",
            Listen:       ":7001",
            MTU:          medium.DefaultMTU,
            SetupChannel: tree.DefaultChannels.Setup,
            DataChannel:  tree.DefaultChannels.Data,
        },
        Transport: TransportConfig{
            FrameSize:         multipacket.DefaultFrameSize,
            SendInterval:      multipacket.DefaultSendInterval,
            MaxRetx:           multipacket.DefaultMaxRetx,
            ReassemblyTimeout: multipacket.DefaultReassemblyTimeout,
        },
        Tree: TreeConfig{
            SettleDelay:      tw.SettleDelay,
            StubbornMin:      tw.StubbornMin,
            StubbornMax:      tw.StubbornMax,
            StubbornWait:     tw.StubbornWait,
            ParentDetectWait: tw.ParentDetectWait,
            AggregationWait:  tw.AggregationWait,
            LeafInterval:     tw.LeafInterval,
            NeighborTTL:      10 * time.Minute,
        },
        Sensor: SensorConfig{Format: "cbor", Seed: 1},
        Sim: SimConfig{
            Nodes:     20,
            Topology:  "random",
            Radius:    0.35,
            GridWidth: 5,
            Seed:      1,
            Delay:     5 * time.Millisecond,
            Duration:  15 * time.Minute,
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix AGGMESH and `.`/`-` are replaced with `_`.
// Example: AGGMESH_TREE_AGGREGATION_WAIT=30s
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("AGGMESH")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("node_name", cfg.NodeName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    // Radio
    v.SetDefault("radio.address", cfg.Radio.Address)
    v.SetDefault("radio.sink", cfg.Radio.Sink)
    v.SetDefault("radio.listen", cfg.Radio.Listen)
    v.SetDefault("radio.neighbors", cfg.Radio.Neighbors)
    v.SetDefault("radio.mtu", cfg.Radio.MTU)
    v.SetDefault("radio.loss", cfg.Radio.Loss)
    v.SetDefault("radio.rate_bytes", cfg.Radio.RateBytes)
    v.SetDefault("radio.burst_bytes", cfg.Radio.BurstBytes)
    v.SetDefault("radio.setup_channel", cfg.Radio.SetupChannel)
    v.SetDefault("radio.data_channel", cfg.Radio.DataChannel)
    // Transport
    v.SetDefault("transport.frame_size", cfg.Transport.FrameSize)
    v.SetDefault("transport.send_interval", cfg.Transport.SendInterval)
    v.SetDefault("transport.max_retx", cfg.Transport.MaxRetx)
    v.SetDefault("transport.retx_timeout", cfg.Transport.RetxTimeout)
    v.SetDefault("transport.max_message", cfg.Transport.MaxMessage)
    v.SetDefault("transport.max_queued_bytes", cfg.Transport.MaxQueuedBytes)
    v.SetDefault("transport.max_reassembly_bytes", cfg.Transport.MaxReassemblyBytes)
    v.SetDefault("transport.reassembly_timeout", cfg.Transport.ReassemblyTimeout)
    // Tree
    v.SetDefault("tree.settle_delay", cfg.Tree.SettleDelay)
    v.SetDefault("tree.stubborn_min", cfg.Tree.StubbornMin)
    v.SetDefault("tree.stubborn_max", cfg.Tree.StubbornMax)
    v.SetDefault("tree.stubborn_wait", cfg.Tree.StubbornWait)
    v.SetDefault("tree.parent_detect_wait", cfg.Tree.ParentDetectWait)
    v.SetDefault("tree.aggregation_wait", cfg.Tree.AggregationWait)
    v.SetDefault("tree.leaf_interval", cfg.Tree.LeafInterval)
    v.SetDefault("tree.setup_timeout", cfg.Tree.SetupTimeout)
    v.SetDefault("tree.sink_folds_own", cfg.Tree.SinkFoldsOwn)
    v.SetDefault("tree.neighbor_ttl", cfg.Tree.NeighborTTL)
    // Sensor
    v.SetDefault("sensor.format", cfg.Sensor.Format)
    v.SetDefault("sensor.seed", cfg.Sensor.Seed)
    // Sim
    v.SetDefault("sim.nodes", cfg.Sim.Nodes)
    v.SetDefault("sim.topology", cfg.Sim.Topology)
    v.SetDefault("sim.radius", cfg.Sim.Radius)
    v.SetDefault("sim.grid_width", cfg.Sim.GridWidth)
    v.SetDefault("sim.seed", cfg.Sim.Seed)
    v.SetDefault("sim.loss", cfg.Sim.Loss)
    v.SetDefault("sim.delay", cfg.Sim.Delay)
    v.SetDefault("sim.duration", cfg.Sim.Duration)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("AGGMESH_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `aggmesh`
        v.SetConfigName("aggmesh")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".aggmesh"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }

    if _, err := wire.ParseAddr(c.Radio.Address); err != nil {
        return fmt.Errorf("invalid radio.address: %w", err)
    }
    if _, err := wire.ParseAddr(c.Radio.Sink); err != nil {
        return fmt.Errorf("invalid radio.sink: %w", err)
    }
    if _, err := c.Neighbors(); err != nil {
        return fmt.Errorf("invalid radio.neighbors: %w", err)
    }
    if c.Radio.Loss < 0 || c.Radio.Loss > 1 {
        return fmt.Errorf("invalid radio.loss: %v", c.Radio.Loss)
    }
    if c.Radio.SetupChannel == c.Radio.DataChannel {
        return fmt.Errorf("radio.setup_channel and radio.data_channel are both %d", c.Radio.SetupChannel)
    }
    if c.Transport.MaxRetx < 0 || c.Transport.MaxRetx > 255 {
        return fmt.Errorf("invalid transport.max_retx: %d", c.Transport.MaxRetx)
    }
    if c.Radio.MTU > 0 && c.Transport.FrameSize+wire.FragmentHeaderSize > c.Radio.MTU {
        return fmt.Errorf("transport.frame_size %d does not fit radio.mtu %d", c.Transport.FrameSize, c.Radio.MTU)
    }
    if err := c.TreeOptions().Validate(); err != nil {
        return err
    }

    c.Sensor.Format = strings.ToLower(strings.TrimSpace(c.Sensor.Format))
    if _, err := codec.ParseFormat(c.Sensor.Format); err != nil {
        return fmt.Errorf("invalid sensor.format: %w", err)
    }

    c.Sim.Topology = strings.ToLower(strings.TrimSpace(c.Sim.Topology))
    switch c.Sim.Topology {
    case "random", "line", "grid":
    default:
        return fmt.Errorf("invalid sim.topology: %q", c.Sim.Topology)
    }
    if c.Sim.Nodes < 1 {
        return fmt.Errorf("invalid sim.nodes: %d", c.Sim.Nodes)
    }
    if c.Sim.Loss < 0 || c.Sim.Loss > 1 {
        return fmt.Errorf("invalid sim.loss: %v", c.Sim.Loss)
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}

// Address is the parsed radio.address.
func (c *Config) Address() wire.Addr { return wire.MustParseAddr(c.Radio.Address) }

// SinkAddr is the parsed radio.sink.
func (c *Config) SinkAddr() wire.Addr { return wire.MustParseAddr(c.Radio.Sink) }

func (c *Config) Channels() tree.Channels {
    return tree.Channels{Setup: c.Radio.SetupChannel, Data: c.Radio.DataChannel}
}

func (c *Config) Neighbors() ([]udp.Neighbor, error) {
    out := make([]udp.Neighbor, 0, len(c.Radio.Neighbors))
    for _, s := range c.Radio.Neighbors {
        n, err := udp.ParseNeighbor(s)
        if err != nil { return nil, err }
        out = append(out, n)
    }
    return out, nil
}

// UDPOptions builds the link options of aggmesh-node.
func (c *Config) UDPOptions() (udp.Options, error) {
    nbs, err := c.Neighbors()
    if err != nil { return udp.Options{}, err }
    return udp.Options{
        Listen:     c.Radio.Listen,
        Neighbors:  nbs,
        MTU:        c.Radio.MTU,
        Loss:       c.Radio.Loss,
        RateBytes:  c.Radio.RateBytes,
        BurstBytes: c.Radio.BurstBytes,
    }, nil
}

// MediumOptions builds the shared medium of aggmesh-sim.
func (c *Config) MediumOptions() medium.Options {
    return medium.Options{
        Delay: c.Sim.Delay,
        Loss:  c.Sim.Loss,
        MTU:   c.Radio.MTU,
        Seed:  c.Sim.Seed,
    }
}

func (c *Config) TransportOptions() multipacket.Options {
    return multipacket.Options{
        FrameSize:          c.Transport.FrameSize,
        SendInterval:       c.Transport.SendInterval,
        MaxRetx:            uint8(c.Transport.MaxRetx),
        RetxTimeout:        c.Transport.RetxTimeout,
        MaxMessage:         c.Transport.MaxMessage,
        MaxQueuedBytes:     c.Transport.MaxQueuedBytes,
        MaxReassemblyBytes: c.Transport.MaxReassemblyBytes,
        ReassemblyTimeout:  c.Transport.ReassemblyTimeout,
    }
}

func (c *Config) TreeOptions() tree.Options {
    return tree.Options{
        SettleDelay:      c.Tree.SettleDelay,
        StubbornMin:      c.Tree.StubbornMin,
        StubbornMax:      c.Tree.StubbornMax,
        StubbornWait:     c.Tree.StubbornWait,
        ParentDetectWait: c.Tree.ParentDetectWait,
        AggregationWait:  c.Tree.AggregationWait,
        LeafInterval:     c.Tree.LeafInterval,
        SetupTimeout:     c.Tree.SetupTimeout,
        SinkFoldsOwn:     c.Tree.SinkFoldsOwn,
        Transport:        c.TransportOptions(),
    }
}

// PayloadFormat is the parsed sensor.format.
func (c *Config) PayloadFormat() codec.Format {
    f, err := codec.ParseFormat(c.Sensor.Format)
    if err != nil {
        return codec.FormatCBOR
    }
    return f
}
