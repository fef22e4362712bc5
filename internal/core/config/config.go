// Package config loads service configuration from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type FlashCfg struct {
	Driver    string // memory|redis
	RedisAddr string
	TTL       time.Duration
	Capacity  int
	OpTimeout time.Duration
	// Container receives popup validation messages.
	Container string
}

type HostCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Timeout time.Duration

	// Subscribe loads collections the host publishes on ModelTopic.
	Subscribe  bool
	ModelTopic string
	GroupID    string
}

// Palette holds the default feature colors used for markers per base-map style.
type Palette struct {
	DarkFeature      string `yaml:"dark_feature"`
	LightFeature     string `yaml:"light_feature"`
	SatelliteFeature string `yaml:"satellite_feature"`
}

type Config struct {
	Addr          string
	LogLevel      string
	LogConsole    bool
	LogSampleN    int
	Mode          string
	BaseStyle     string
	SeedFile      string
	PopupCapacity int
	SurfaceH3Res  int
	Flash         FlashCfg
	Host          HostCfg
	Palette       Palette
}

// FileConfig is the optional YAML overlay.
type FileConfig struct {
	Mode      string   `yaml:"mode,omitempty"`
	BaseStyle string   `yaml:"style,omitempty"`
	Seed      string   `yaml:"seed,omitempty"`
	Palette   *Palette `yaml:"palette,omitempty"`
}

const (
	DefaultDarkFeatureColor      = "#555555"
	DefaultLightFeatureColor     = "#e8e8e8"
	DefaultSatelliteFeatureColor = "#00f900"
)

func FromEnv() Config {
	h3Res := getint("SURFACE_H3_RES", 11)
	if h3Res < 0 || h3Res > 15 {
		h3Res = 11
	}

	return Config{
		Addr:          getenv("ADDR", ":8090"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogConsole:    getbool("LOG_CONSOLE", false),
		LogSampleN:    getint("LOG_SAMPLE_N", 0),
		Mode:          getenv("EDITOR_MODE", "project_bounds"),
		BaseStyle:     getenv("BASE_STYLE", "Streets"),
		SeedFile:      getenv("SEED_FILE", ""),
		PopupCapacity: getint("POPUP_CAPACITY", 256),
		SurfaceH3Res:  h3Res,
		Flash: FlashCfg{
			Driver:    strings.ToLower(getenv("FLASH_DRIVER", "memory")),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("FLASH_TTL", 5*time.Second),
			Capacity:  getint("FLASH_CAPACITY", 1024),
			OpTimeout: getduration("FLASH_OP_TIMEOUT", 250*time.Millisecond),
			Container: getenv("FLASH_CONTAINER", "map"),
		},
		Host: HostCfg{
			Enabled: getbool("HOST_SYNC_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "plot-editor-model"),
			Timeout: getduration("HOST_SYNC_TIMEOUT", 5*time.Second),

			Subscribe:  getbool("HOST_MODEL_SUBSCRIBE", false),
			ModelTopic: getenv("KAFKA_MODEL_TOPIC", "plot-editor-host"),
			GroupID:    getenv("KAFKA_GROUP_ID", "plot-editor"),
		},
		Palette: Palette{
			DarkFeature:      DefaultDarkFeatureColor,
			LightFeature:     DefaultLightFeatureColor,
			SatelliteFeature: DefaultSatelliteFeatureColor,
		},
	}
}

// LoadFile overlays the YAML file at path onto cfg. Empty fields are ignored.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}

	if fc.Mode != "" {
		cfg.Mode = fc.Mode
	}
	if fc.BaseStyle != "" {
		cfg.BaseStyle = fc.BaseStyle
	}
	if fc.Seed != "" {
		cfg.SeedFile = fc.Seed
	}
	if p := fc.Palette; p != nil {
		if p.DarkFeature != "" {
			cfg.Palette.DarkFeature = p.DarkFeature
		}
		if p.LightFeature != "" {
			cfg.Palette.LightFeature = p.LightFeature
		}
		if p.SatelliteFeature != "" {
			cfg.Palette.SatelliteFeature = p.SatelliteFeature
		}
	}
	return nil
}

// BrokerList splits the comma separated broker list.
func (h HostCfg) BrokerList() []string {
	var out []string
	for p := range strings.SplitSeq(h.Brokers, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
