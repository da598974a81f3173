package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
console:
  tick: 10ms
  firewall: 80ms
  channel_firewall:
    joystick2-axis0: 120ms
  ignored_channels: [joystick1-axis2]
  scenario: missions/mars.yaml
  sounds:
    intro: 3.5
mqtt:
  broker: tcp://broker:1883
  prefix: ship
gpio:
  chip: gpiochip0
  inputs:
    joystick0-button0: 17
  leds:
    33: 22
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Console.Tick != 10*time.Millisecond {
		t.Errorf("Console.Tick = %v, want 10ms", cfg.Console.Tick)
	}
	if cfg.Console.Firewall != 80*time.Millisecond {
		t.Errorf("Console.Firewall = %v, want 80ms", cfg.Console.Firewall)
	}
	if got := cfg.Console.ChannelFirewall["joystick2-axis0"]; got != 120*time.Millisecond {
		t.Errorf("ChannelFirewall = %v, want 120ms", got)
	}
	if len(cfg.Console.Ignored) != 1 || cfg.Console.Ignored[0] != "joystick1-axis2" {
		t.Errorf("Ignored = %v", cfg.Console.Ignored)
	}
	if cfg.MQTT.Prefix != "ship" || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.GPIO.Inputs["joystick0-button0"] != 17 || cfg.GPIO.LEDs[33] != 22 {
		t.Errorf("GPIO = %+v", cfg.GPIO)
	}
	if got := cfg.Console.SoundLengths()["intro"]; got != 3500*time.Millisecond {
		t.Errorf("SoundLengths[intro] = %v, want 3.5s", got)
	}

	// Unset values keep their defaults.
	if cfg.MQTT.BufferSize != 1000 {
		t.Errorf("MQTT.BufferSize = %d, want default 1000", cfg.MQTT.BufferSize)
	}
	if cfg.Console.AxisStep != 1 {
		t.Errorf("Console.AxisStep = %v, want default 1", cfg.Console.AxisStep)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Console.Tick != Default().Console.Tick {
		t.Errorf("Tick = %v", cfg.Console.Tick)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "console: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPACEBUS_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("SPACEBUS_REDIS_ADDR", "redis:6379")
	t.Setenv("SPACEBUS_JOURNAL_PATH", "/var/lib/spacebus/journal.db")
	t.Setenv("SPACEBUS_SCENARIO", "env.yaml")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker: tcp://file:1883\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" {
		t.Errorf("Broker = %q, env should win", cfg.MQTT.Broker)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Journal.Path != "/var/lib/spacebus/journal.db" {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.Console.Scenario != "env.yaml" {
		t.Errorf("Scenario = %q", cfg.Console.Scenario)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero tick", func(c *Config) { c.Console.Tick = 0 }, "console.tick"},
		{"negative firewall", func(c *Config) { c.Console.Firewall = -1 }, "console.firewall"},
		{"negative channel firewall", func(c *Config) {
			c.Console.ChannelFirewall = map[string]time.Duration{"a": -1}
		}, "channel_firewall.a"},
		{"negative sound", func(c *Config) { c.Console.Sounds = map[string]float64{"x": -1} }, "sounds.x"},
		{"no prefix", func(c *Config) { c.MQTT.Prefix = "" }, "mqtt.prefix"},
		{"zero buffer", func(c *Config) { c.MQTT.BufferSize = 0 }, "mqtt.buffer_size"},
		{"redis without key", func(c *Config) { c.Redis.Addr = "x:1"; c.Redis.Key = "" }, "redis.key"},
		{"gpio without poll", func(c *Config) { c.GPIO.Chip = "gpiochip0"; c.GPIO.Poll = 0 }, "gpio.poll"},
		{"negative led line", func(c *Config) {
			c.GPIO.Chip = "gpiochip0"
			c.GPIO.LEDs = map[int]int{4: -2}
		}, "gpio.leds.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Broker = ""
	cfg.MQTT.Prefix = ""
	cfg.GPIO.Poll = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Console.Tick = 0
	cfg.MQTT.BufferSize = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "console.tick") || !strings.Contains(err.Error(), "mqtt.buffer_size") {
		t.Errorf("Validate() = %v, want both problems", err)
	}
}
