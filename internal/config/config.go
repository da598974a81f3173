// Package config loads the spacebus daemon configuration from YAML with
// environment overrides. Command-line flags are applied on top by main.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Console ConsoleConfig `yaml:"console"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Redis   RedisConfig   `yaml:"redis"`
	Journal JournalConfig `yaml:"journal"`
	GPIO    GPIOConfig    `yaml:"gpio"`
}

// ConsoleConfig controls the simulation.
type ConsoleConfig struct {
	Tick            time.Duration            `yaml:"tick"`
	Firewall        time.Duration            `yaml:"firewall"`
	ChannelFirewall map[string]time.Duration `yaml:"channel_firewall"`
	AxisStep        float64                  `yaml:"axis_step"`
	Ignored         []string                 `yaml:"ignored_channels"`
	FreqIncrement   int64                    `yaml:"freq_increment"`
	Scenario        string                   `yaml:"scenario"`
	Cells           string                   `yaml:"cells"`
	// Sounds maps sound names to their length in seconds.
	Sounds    map[string]float64 `yaml:"sounds"`
	Heartbeat time.Duration      `yaml:"heartbeat"`
	AutoStart bool               `yaml:"auto_start"`
}

// MQTTConfig holds broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Prefix     string `yaml:"prefix"`
	BufferSize int    `yaml:"buffer_size"`
	WSBroker   string `yaml:"ws_broker"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds the state mirror settings. An empty addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
	Channel  string `yaml:"channel"`
}

// JournalConfig holds the SQLite journal path. Empty disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// GPIOConfig maps panel lines. An empty chip disables GPIO.
type GPIOConfig struct {
	Chip string        `yaml:"chip"`
	Poll time.Duration `yaml:"poll"`
	// Inputs maps input channel names to line offsets.
	Inputs map[string]int `yaml:"inputs"`
	// LEDs maps indicator ids to line offsets.
	LEDs map[int]int `yaml:"leds"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Console: ConsoleConfig{
			Tick:          20 * time.Millisecond,
			Firewall:      50 * time.Millisecond,
			AxisStep:      1,
			FreqIncrement: 1,
			Scenario:      "scenario.yaml",
			Heartbeat:     15 * time.Minute,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			ClientID:   "spacebus",
			Prefix:     "spacebus",
			BufferSize: 1000,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Redis: RedisConfig{
			Key:     "spacebus:state",
			Channel: "spacebus:state",
		},
		GPIO: GPIOConfig{
			Chip: "",
			Poll: 10 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPACEBUS_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("SPACEBUS_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("SPACEBUS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SPACEBUS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SPACEBUS_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("SPACEBUS_SCENARIO"); v != "" {
		cfg.Console.Scenario = v
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Console.Tick <= 0 {
		errs = append(errs, "console.tick must be positive")
	}
	if c.Console.Firewall < 0 {
		errs = append(errs, "console.firewall must not be negative")
	}
	for ch, fw := range c.Console.ChannelFirewall {
		if fw < 0 {
			errs = append(errs, fmt.Sprintf("console.channel_firewall.%s must not be negative", ch))
		}
	}
	if c.Console.AxisStep < 0 {
		errs = append(errs, "console.axis_step must not be negative")
	}
	if c.Console.Heartbeat < 0 {
		errs = append(errs, "console.heartbeat must not be negative")
	}
	for name, secs := range c.Console.Sounds {
		if secs < 0 {
			errs = append(errs, fmt.Sprintf("console.sounds.%s must not be negative", name))
		}
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.Prefix == "" {
			errs = append(errs, "mqtt.prefix is required")
		}
		if c.MQTT.BufferSize <= 0 {
			errs = append(errs, "mqtt.buffer_size must be positive")
		}
	}

	if c.Redis.Addr != "" && c.Redis.Key == "" {
		errs = append(errs, "redis.key is required")
	}

	if c.GPIO.Chip != "" {
		if c.GPIO.Poll <= 0 {
			errs = append(errs, "gpio.poll must be positive")
		}
		for ch, line := range c.GPIO.Inputs {
			if line < 0 {
				errs = append(errs, fmt.Sprintf("gpio.inputs.%s must not be negative", ch))
			}
		}
		for id, line := range c.GPIO.LEDs {
			if line < 0 {
				errs = append(errs, fmt.Sprintf("gpio.leds.%d must not be negative", id))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SoundLengths converts the sound table to durations.
func (c *ConsoleConfig) SoundLengths() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Sounds))
	for name, secs := range c.Sounds {
		out[name] = time.Duration(secs * float64(time.Second))
	}
	return out
}
