package config

import (
	"fmt"
	"os"
	"time"

	"github.com/itohio/fieldwatch/pkg/irrigation"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Industrial IndustrialConfig `yaml:"industrial"`
	Irrigation IrrigationConfig `yaml:"irrigation"`
	History    HistoryConfig    `yaml:"history"`
	Mock       MockConfig       `yaml:"mock"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	HTTP       HTTPConfig       `yaml:"http"`
	Weather    WeatherConfig    `yaml:"weather"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// IndustrialConfig holds the limits of the industrial monitor.
type IndustrialConfig struct {
	TempWarning     float32       `yaml:"temp_warning"`
	TempCritical    float32       `yaml:"temp_critical"`
	TempShutdown    float32       `yaml:"temp_shutdown"`
	VibWarning      float32       `yaml:"vib_warning"`
	VibCritical     float32       `yaml:"vib_critical"`
	DistMin         float32       `yaml:"dist_min"`
	DistMax         float32       `yaml:"dist_max"`
	DistWarningLow  float32       `yaml:"dist_warning_low"`
	DistWarningHigh float32       `yaml:"dist_warning_high"`
	Period          time.Duration `yaml:"period"`
	ToneHz          uint32        `yaml:"tone_hz"`
}

// Thresholds converts the limits for the classifier.
func (c IndustrialConfig) Thresholds() monitor.Thresholds {
	return monitor.Thresholds{
		TempWarning:     c.TempWarning,
		TempCritical:    c.TempCritical,
		TempShutdown:    c.TempShutdown,
		VibWarning:      c.VibWarning,
		VibCritical:     c.VibCritical,
		DistMin:         c.DistMin,
		DistMax:         c.DistMax,
		DistWarningLow:  c.DistWarningLow,
		DistWarningHigh: c.DistWarningHigh,
	}
}

// IrrigationConfig holds the irrigation controller settings.
type IrrigationConfig struct {
	DryBelow float32 `yaml:"dry_below"` // humidity %, pump allowed below
	PHScale  string  `yaml:"ph_scale"`  // "fine" or "coarse"
	// SwitchesActiveLow is set for pull-up wired nutrient switches.
	SwitchesActiveLow bool          `yaml:"switches_active_low"`
	Period            time.Duration `yaml:"period"`
}

// Settings converts the configuration for the controller.
func (c IrrigationConfig) Settings() irrigation.Settings {
	return irrigation.Settings{
		DryBelow: c.DryBelow,
		Scale:    irrigation.ParseScale(c.PHScale),
	}
}

// HistoryConfig controls the in-memory report window.
type HistoryConfig struct {
	Window time.Duration `yaml:"window"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Kind       string        `yaml:"kind"`        // "industrial" or "irrigation"
	SampleRate time.Duration `yaml:"sample_rate"` // Cycle period of the simulated board
	Drift      time.Duration `yaml:"drift"`       // Period of the simulated sensor swing
	NoiseLevel float64       `yaml:"noise_level"` // Relative noise added to each reading
}

// MQTTConfig configures publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StoreConfig selects the reading store. An empty DSN keeps readings in memory.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// CacheConfig configures the latest-status cache. An empty address disables it.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// HTTPConfig configures the API listener. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WeatherConfig configures the rain outlook used for irrigation advice.
type WeatherConfig struct {
	APIKey  string        `yaml:"api_key"`
	City    string        `yaml:"city"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	RainProbabilityLimit float64 `yaml:"rain_probability_limit"` // %, skip irrigation at or above when rain is expected
	WetAbove             float64 `yaml:"wet_above"`              // humidity %, never irrigate at or above
	IrrigateBelow        float64 `yaml:"irrigate_below"`         // humidity %, irrigate below
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	th := monitor.DefaultThresholds()
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0", // ESP32 dev boards; "COM3" on Windows
			BaudRate: 115200,
		},
		Industrial: IndustrialConfig{
			TempWarning:     th.TempWarning,
			TempCritical:    th.TempCritical,
			TempShutdown:    th.TempShutdown,
			VibWarning:      th.VibWarning,
			VibCritical:     th.VibCritical,
			DistMin:         th.DistMin,
			DistMax:         th.DistMax,
			DistWarningLow:  th.DistWarningLow,
			DistWarningHigh: th.DistWarningHigh,
			Period:          monitor.DefaultPeriod,
			ToneHz:          monitor.DefaultToneHz,
		},
		Irrigation: IrrigationConfig{
			DryBelow: irrigation.DefaultDryBelow,
			PHScale:  irrigation.ScaleFine.String(),
			Period:   irrigation.DefaultPeriod,
		},
		History: HistoryConfig{
			Window: 10 * time.Minute,
		},
		Mock: MockConfig{
			Kind:       "industrial",
			SampleRate: 200 * time.Millisecond,
			Drift:      time.Minute,
			NoiseLevel: 0.02,
		},
		MQTT: MQTTConfig{
			ClientID: "fieldwatch",
			Prefix:   "fieldwatch",
			QoS:      1,
		},
		Cache: CacheConfig{
			TTL: time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Weather: WeatherConfig{
			City:                 "Sao Paulo,BR",
			BaseURL:              "https://api.openweathermap.org/data/2.5",
			Timeout:              10 * time.Second,
			RainProbabilityLimit: 50,
			WetAbove:             70,
			IrrigateBelow:        40,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the limits are ordered.
func (c *Config) Validate() error {
	in := c.Industrial
	if !(in.TempWarning < in.TempCritical) {
		return fmt.Errorf("industrial: temp_warning %.1f must be below temp_critical %.1f", in.TempWarning, in.TempCritical)
	}
	if !(in.VibWarning < in.VibCritical) {
		return fmt.Errorf("industrial: vib_warning %.2f must be below vib_critical %.2f", in.VibWarning, in.VibCritical)
	}
	if !(in.DistMin <= in.DistWarningLow && in.DistWarningLow < in.DistWarningHigh && in.DistWarningHigh <= in.DistMax) {
		return fmt.Errorf("industrial: distance limits must satisfy dist_min <= dist_warning_low < dist_warning_high <= dist_max")
	}
	if c.Irrigation.PHScale != "fine" && c.Irrigation.PHScale != "coarse" {
		return fmt.Errorf("irrigation: unknown ph_scale %q", c.Irrigation.PHScale)
	}
	if c.Mock.Kind != "industrial" && c.Mock.Kind != "irrigation" {
		return fmt.Errorf("mock: unknown kind %q", c.Mock.Kind)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Industrial.Period == 0 {
		c.Industrial.Period = def.Industrial.Period
	}
	if c.Industrial.ToneHz == 0 {
		c.Industrial.ToneHz = def.Industrial.ToneHz
	}

	if c.Irrigation.DryBelow == 0 {
		c.Irrigation.DryBelow = def.Irrigation.DryBelow
	}
	if c.Irrigation.PHScale == "" {
		c.Irrigation.PHScale = def.Irrigation.PHScale
	}
	if c.Irrigation.Period == 0 {
		c.Irrigation.Period = def.Irrigation.Period
	}

	if c.History.Window == 0 {
		c.History.Window = def.History.Window
	}

	if c.Mock.Kind == "" {
		c.Mock.Kind = def.Mock.Kind
	}
	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.Drift == 0 {
		c.Mock.Drift = def.Mock.Drift
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = def.MQTT.Prefix
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = def.Cache.TTL
	}

	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = def.Weather.BaseURL
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = def.Weather.Timeout
	}
	if c.Weather.RainProbabilityLimit == 0 {
		c.Weather.RainProbabilityLimit = def.Weather.RainProbabilityLimit
	}
	if c.Weather.WetAbove == 0 {
		c.Weather.WetAbove = def.Weather.WetAbove
	}
	if c.Weather.IrrigateBelow == 0 {
		c.Weather.IrrigateBelow = def.Weather.IrrigateBelow
	}
}
