package config

import (
	"os"
	"testing"
	"time"

	"github.com/itohio/fieldwatch/pkg/irrigation"
	"github.com/itohio/fieldwatch/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, monitor.DefaultThresholds(), cfg.Industrial.Thresholds())
	assert.Equal(t, time.Second, cfg.Industrial.Period)
	assert.Equal(t, uint32(1000), cfg.Industrial.ToneHz)
	assert.Equal(t, float32(50), cfg.Irrigation.DryBelow)
	assert.Equal(t, "fine", cfg.Irrigation.PHScale)
	assert.Equal(t, 2*time.Second, cfg.Irrigation.Period)
	assert.Equal(t, 10*time.Minute, cfg.History.Window)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Empty(t, cfg.Store.DSN)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, float64(50), cfg.Weather.RainProbabilityLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyACM0"
  baud_rate: 9600

industrial:
  temp_warning: 50
  temp_critical: 70
  temp_shutdown: 85
  vib_warning: 0.8
  vib_critical: 1.5
  dist_min: 3
  dist_max: 300
  dist_warning_low: 8
  dist_warning_high: 250
  period: 500ms
  tone_hz: 2000

irrigation:
  dry_below: 45
  ph_scale: coarse
  switches_active_low: true
  period: 5s

mqtt:
  broker: "tcp://localhost:1883"
  prefix: farm

weather:
  api_key: secret
  city: "Campinas,BR"
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)

	th := cfg.Industrial.Thresholds()
	assert.Equal(t, float32(50), th.TempWarning)
	assert.Equal(t, float32(85), th.TempShutdown)
	assert.Equal(t, float32(1.5), th.VibCritical)
	assert.Equal(t, float32(300), th.DistMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Industrial.Period)
	assert.Equal(t, uint32(2000), cfg.Industrial.ToneHz)

	s := cfg.Irrigation.Settings()
	assert.Equal(t, float32(45), s.DryBelow)
	assert.Equal(t, irrigation.ScaleCoarse, s.Scale)
	assert.True(t, cfg.Irrigation.SwitchesActiveLow)
	assert.Equal(t, 5*time.Second, cfg.Irrigation.Period)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "farm", cfg.MQTT.Prefix)
	assert.Equal(t, "fieldwatch", cfg.MQTT.ClientID) // default

	assert.Equal(t, "secret", cfg.Weather.APIKey)
	assert.Equal(t, "Campinas,BR", cfg.Weather.City)
	assert.Equal(t, float64(40), cfg.Weather.IrrigateBelow) // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"temperature order", "industrial:\n  temp_warning: 90\n  temp_critical: 80\n"},
		{"vibration order", "industrial:\n  vib_warning: 3\n"},
		{"distance order", "industrial:\n  dist_warning_low: 300\n"},
		{"ph scale", "irrigation:\n  ph_scale: medium\n"},
		{"mock kind", "mock:\n  kind: boiler\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.content))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyACM0"
history:
  window: 0s
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 10*time.Minute, cfg.History.Window)
	assert.Equal(t, monitor.DefaultThresholds(), cfg.Industrial.Thresholds())
	assert.Equal(t, "industrial", cfg.Mock.Kind)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyACM1"
	cfg.Industrial.TempShutdown = 95
	cfg.Irrigation.PHScale = "coarse"

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", loaded.Serial.Port)
	assert.Equal(t, float32(95), loaded.Industrial.TempShutdown)
	assert.Equal(t, "coarse", loaded.Irrigation.PHScale)
	assert.Equal(t, cfg.Weather, loaded.Weather)
}
