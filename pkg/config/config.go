// Package config loads and validates the daemon configuration: defaults,
// then a YAML file, then SELCALL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Ringer    RingerConfig    `mapstructure:"ringer"`
	PTT       GPIOPinConfig   `mapstructure:"ptt"`
	LED       GPIOPinConfig   `mapstructure:"led"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Web       WebConfig       `mapstructure:"web"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

// ProtocolConfig selects the selective-calling standard
type ProtocolConfig struct {
	Name            string `mapstructure:"name"`                  // e.g. ZVEI-1, CCIR-1
	CodeLength      int    `mapstructure:"code_length"`           // 0 = protocol standard
	ToneDurationMS  int    `mapstructure:"tone_duration_ms"`      // 0 = protocol standard
	GapToleranceWin int    `mapstructure:"gap_tolerance_windows"` // 0 = protocol standard
}

// AudioConfig holds the sample format and transports
type AudioConfig struct {
	SampleRate int          `mapstructure:"sample_rate"`
	Input      InputConfig  `mapstructure:"input"`
	Output     OutputConfig `mapstructure:"output"`
}

// InputConfig selects the receive audio source
type InputConfig struct {
	Type   string `mapstructure:"type"`   // stdin, wav, udp
	Path   string `mapstructure:"path"`   // wav file
	Listen string `mapstructure:"listen"` // udp bind address
}

// OutputConfig selects an audio destination
type OutputConfig struct {
	Type   string `mapstructure:"type"`   // none, stdout, wav, udp
	Path   string `mapstructure:"path"`   // wav file
	Target string `mapstructure:"target"` // udp address
}

// BandpassConfig bounds the decoder's analysis band
type BandpassConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	LowHz   float64 `mapstructure:"low_hz"`
	HighHz  float64 `mapstructure:"high_hz"`
}

// DecoderConfig holds the receive chain configuration
type DecoderConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	TargetCode     string         `mapstructure:"target_code"` // empty monitors without matching
	GateHoldS      float64        `mapstructure:"gate_hold_s"`
	RampMS         int            `mapstructure:"ramp_ms"`
	MinConsecutive int            `mapstructure:"min_consecutive"`
	RatioThreshold float64        `mapstructure:"ratio_threshold"`
	Bandpass       BandpassConfig `mapstructure:"bandpass"`
	Decimation     int            `mapstructure:"decimation"` // 0/1 = analyze at full rate
	Debug          bool           `mapstructure:"debug"`
}

// EncoderConfig holds the transmit chain configuration
type EncoderConfig struct {
	Enabled      bool         `mapstructure:"enabled"`
	PersonalCode string       `mapstructure:"personal_code"` // empty sends destination-only calls
	Amplitude    float64      `mapstructure:"amplitude"`
	FieldOrder   string       `mapstructure:"field_order"` // source-first or destination-first
	LeadMS       int          `mapstructure:"lead_ms"`
	TailMS       int          `mapstructure:"tail_ms"`
	BusyPolicy   string       `mapstructure:"busy_policy"` // reject or queue
	QueueSize    int          `mapstructure:"queue_size"`
	MaxTxS       float64      `mapstructure:"max_tx_s"`
	Output       OutputConfig `mapstructure:"output"`
}

// RingerConfig holds the two-tone alarm configuration
type RingerConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	DurationS  float64 `mapstructure:"duration_s"`
	Amplitude  float64 `mapstructure:"amplitude"`
	FreqAHz    float64 `mapstructure:"freq_a_hz"`
	FreqBHz    float64 `mapstructure:"freq_b_hz"`
	IntervalMS int     `mapstructure:"interval_ms"`
}

// GPIOPinConfig selects a line on a gpiochip character device
type GPIOPinConfig struct {
	Type      string `mapstructure:"type"` // none or gpio
	Chip      string `mapstructure:"chip"`
	Line      int    `mapstructure:"line"`
	ActiveLow bool   `mapstructure:"active_low"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig holds call log persistence configuration
type DatabaseConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"` // 0 keeps everything
}

// DirectoryConfig holds the code directory syncer configuration
type DirectoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("selcall")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/selcall")
	}

	v.SetEnvPrefix("SELCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no file is fine, defaults + env apply
		} else if os.IsNotExist(err) {
			// explicitly named file missing is fine too
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Sanitized returns a copy safe to expose over the status API.
func (c *Config) Sanitized() Config {
	out := *c
	if out.MQTT.Password != "" {
		out.MQTT.Password = "<redacted>"
	}
	return out
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("protocol.name", "ZVEI-1")
	v.SetDefault("protocol.code_length", 0)
	v.SetDefault("protocol.tone_duration_ms", 0)
	v.SetDefault("protocol.gap_tolerance_windows", 0)

	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.input.type", "stdin")
	v.SetDefault("audio.input.listen", ":7355")
	v.SetDefault("audio.output.type", "none")

	v.SetDefault("decoder.enabled", true)
	v.SetDefault("decoder.target_code", "")
	v.SetDefault("decoder.gate_hold_s", 20)
	v.SetDefault("decoder.ramp_ms", 5)
	v.SetDefault("decoder.min_consecutive", 1)
	v.SetDefault("decoder.ratio_threshold", 2.5)
	v.SetDefault("decoder.bandpass.enabled", true)
	v.SetDefault("decoder.bandpass.low_hz", 700)
	v.SetDefault("decoder.bandpass.high_hz", 2500)
	v.SetDefault("decoder.decimation", 6)
	v.SetDefault("decoder.debug", false)

	v.SetDefault("encoder.enabled", false)
	v.SetDefault("encoder.personal_code", "")
	v.SetDefault("encoder.amplitude", 0.8)
	v.SetDefault("encoder.field_order", "source-first")
	v.SetDefault("encoder.lead_ms", 700)
	v.SetDefault("encoder.tail_ms", 700)
	v.SetDefault("encoder.busy_policy", "reject")
	v.SetDefault("encoder.queue_size", 4)
	v.SetDefault("encoder.max_tx_s", 10)
	v.SetDefault("encoder.output.type", "none")

	v.SetDefault("ringer.enabled", true)
	v.SetDefault("ringer.duration_s", 5)
	v.SetDefault("ringer.amplitude", 0.5)
	v.SetDefault("ringer.freq_a_hz", 800)
	v.SetDefault("ringer.freq_b_hz", 1010)
	v.SetDefault("ringer.interval_ms", 300)

	v.SetDefault("ptt.type", "none")
	v.SetDefault("ptt.chip", "gpiochip0")
	v.SetDefault("ptt.line", 17)
	v.SetDefault("led.type", "none")
	v.SetDefault("led.chip", "gpiochip0")
	v.SetDefault("led.line", 27)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "selcall")
	v.SetDefault("mqtt.qos", 0)

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", "selcall.db")
	v.SetDefault("database.retention_days", 30)

	v.SetDefault("directory.enabled", false)
	v.SetDefault("directory.refresh_hours", 24)
}
