// Package config handles router configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/vrouter/internal/core"
	"firestige.xyz/vrouter/internal/log"
)

// Link types understood by link.New.
const (
	LinkAFPacket = "afpacket"
	LinkPcap     = "pcap"
)

// GlobalConfig maps to the `vrouter:` root key in YAML.
type GlobalConfig struct {
	Interfaces []InterfaceConfig `mapstructure:"interfaces"`
	Routes     string            `mapstructure:"routes"`
	Link       LinkConfig        `mapstructure:"link"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Log        log.Config        `mapstructure:"log"`
}

// InterfaceConfig names a router port. Index in the list is the interface
// number used by the route table. MAC and IP override what the kernel
// reports; empty values are resolved from the named interface at startup.
type InterfaceConfig struct {
	Name string `mapstructure:"name"`
	MAC  string `mapstructure:"mac"`
	IP   string `mapstructure:"ip"` // address or CIDR
}

// LinkConfig selects the frame I/O backend. Options are decoded by the
// backend itself.
type LinkConfig struct {
	Type    string                 `mapstructure:"type"`
	Options map[string]interface{} `mapstructure:"options"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

type configRoot struct {
	VRouter GlobalConfig `mapstructure:"vrouter"`
}

// Load loads configuration from file.
// The YAML file uses `vrouter:` as root key; env vars use the VROUTER_ prefix
// (e.g. VROUTER_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// key "vrouter.log.level" maps to env "VROUTER_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.VRouter

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vrouter.routes", "rtable.txt")
	v.SetDefault("vrouter.link.type", LinkAFPacket)

	v.SetDefault("vrouter.log.level", log.DefaultLevel)
	v.SetDefault("vrouter.log.pattern", log.DefaultPattern)
	v.SetDefault("vrouter.log.time", log.DefaultTime)
	v.SetDefault("vrouter.log.file.enabled", false)
	v.SetDefault("vrouter.log.file.filename", "/var/log/vrouter/vrouter.log")
	v.SetDefault("vrouter.log.file.max_size", 100)
	v.SetDefault("vrouter.log.file.max_age", 30)
	v.SetDefault("vrouter.log.file.max_backups", 5)
	v.SetDefault("vrouter.log.file.compress", true)

	v.SetDefault("vrouter.metrics.enabled", false)
	v.SetDefault("vrouter.metrics.listen", ":9091")
	v.SetDefault("vrouter.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults checks the configuration for errors a running
// router could not recover from.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}

	if len(cfg.Interfaces) == 0 {
		return fmt.Errorf("at least one interface is required")
	}
	seen := make(map[string]int, len(cfg.Interfaces))
	for i := range cfg.Interfaces {
		ifc := &cfg.Interfaces[i]
		ifc.Name = strings.TrimSpace(ifc.Name)
		if ifc.Name == "" {
			return fmt.Errorf("interfaces[%d]: name is required", i)
		}
		if j, dup := seen[ifc.Name]; dup {
			return fmt.Errorf("interfaces[%d]: %s already configured as interfaces[%d]", i, ifc.Name, j)
		}
		seen[ifc.Name] = i
		if ifc.MAC != "" {
			if _, err := core.ParseMAC(ifc.MAC); err != nil {
				return fmt.Errorf("interfaces[%d]: %w", i, err)
			}
		}
		if ifc.IP != "" {
			if _, err := ParseInterfaceIP(ifc.IP); err != nil {
				return fmt.Errorf("interfaces[%d]: %w", i, err)
			}
		}
	}

	if cfg.Routes == "" {
		return fmt.Errorf("routes path is required")
	}

	cfg.Link.Type = strings.ToLower(cfg.Link.Type)
	switch cfg.Link.Type {
	case LinkAFPacket, LinkPcap:
	default:
		return fmt.Errorf("unsupported link.type: %s (must be afpacket/pcap)", cfg.Link.Type)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with '/': %q", cfg.Metrics.Path)
		}
	}
	return nil
}

// ParseInterfaceIP accepts "10.0.0.1" or "10.0.0.1/24" and returns the
// IPv4 address part.
func ParseInterfaceIP(s string) (netip.Addr, error) {
	var addr netip.Addr
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("invalid interface ip %q: %w", s, err)
		}
		addr = p.Addr()
	} else {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("invalid interface ip %q: %w", s, err)
		}
		addr = a
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("interface ip %q is not IPv4", s)
	}
	return addr, nil
}
