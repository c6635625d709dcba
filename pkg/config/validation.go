package config

import (
	"fmt"
	"strings"

	"github.com/pietro2356/gr-selcall/pkg/encoder"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate protocol config
	spec, err := protocol.Get(cfg.Protocol.Name)
	if err != nil {
		return fmt.Errorf("protocol.name: %w", err)
	}
	if cfg.Protocol.CodeLength < 0 || cfg.Protocol.CodeLength > 32 {
		return fmt.Errorf("protocol.code_length must be between 0 and 32")
	}
	if cfg.Protocol.ToneDurationMS < 0 {
		return fmt.Errorf("protocol.tone_duration_ms must not be negative")
	}
	if cfg.Protocol.GapToleranceWin < 0 {
		return fmt.Errorf("protocol.gap_tolerance_windows must not be negative")
	}
	codeLen := cfg.Protocol.CodeLength
	if codeLen == 0 {
		codeLen = spec.DefaultCodeLen
	}

	// Validate audio config
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	switch strings.ToLower(cfg.Audio.Input.Type) {
	case "stdin":
	case "wav":
		if cfg.Audio.Input.Path == "" {
			return fmt.Errorf("audio.input.path is required for wav input")
		}
	case "udp":
		if cfg.Audio.Input.Listen == "" {
			return fmt.Errorf("audio.input.listen is required for udp input")
		}
	default:
		return fmt.Errorf("audio.input.type must be stdin, wav, or udp, got %q", cfg.Audio.Input.Type)
	}
	if err := validateOutput("audio.output", &cfg.Audio.Output); err != nil {
		return err
	}

	// Validate decoder config
	if cfg.Decoder.Enabled {
		if cfg.Decoder.TargetCode != "" {
			if err := spec.ValidateCode(cfg.Decoder.TargetCode, codeLen); err != nil {
				return fmt.Errorf("decoder.target_code: %w", err)
			}
		}
		if cfg.Decoder.GateHoldS < 0 {
			return fmt.Errorf("decoder.gate_hold_s must not be negative")
		}
		if cfg.Decoder.RampMS < 0 {
			return fmt.Errorf("decoder.ramp_ms must not be negative")
		}
		if cfg.Decoder.MinConsecutive < 1 {
			return fmt.Errorf("decoder.min_consecutive must be at least 1")
		}
		if cfg.Decoder.RatioThreshold <= 1 {
			return fmt.Errorf("decoder.ratio_threshold must be greater than 1")
		}
		if cfg.Decoder.Bandpass.Enabled {
			if cfg.Decoder.Bandpass.LowHz <= 0 {
				return fmt.Errorf("decoder.bandpass.low_hz must be positive")
			}
			if cfg.Decoder.Bandpass.HighHz <= cfg.Decoder.Bandpass.LowHz {
				return fmt.Errorf("decoder.bandpass.high_hz must be above low_hz")
			}
		}
		if cfg.Decoder.Decimation < 0 {
			return fmt.Errorf("decoder.decimation must not be negative")
		}
		decim := cfg.Decoder.Decimation
		if decim < 1 {
			decim = 1
		}
		analysisRate := float64(cfg.Audio.SampleRate) / float64(decim)
		if top := maxToneHz(spec); analysisRate <= 2*top {
			return fmt.Errorf("decoder.decimation %d leaves analysis rate %.0f Hz below Nyquist for %s tones up to %.0f Hz",
				cfg.Decoder.Decimation, analysisRate, spec.Name, top)
		}
	}

	// Validate encoder config
	if cfg.Encoder.Enabled {
		if cfg.Encoder.PersonalCode != "" {
			if err := spec.ValidateCode(cfg.Encoder.PersonalCode, codeLen); err != nil {
				return fmt.Errorf("encoder.personal_code: %w", err)
			}
		}
		if cfg.Encoder.Amplitude < 0 || cfg.Encoder.Amplitude > 1 {
			return fmt.Errorf("encoder.amplitude must be within [0, 1]")
		}
		if _, err := encoder.ParseFieldOrder(cfg.Encoder.FieldOrder); err != nil {
			return fmt.Errorf("encoder.field_order: %w", err)
		}
		if cfg.Encoder.LeadMS < 0 || cfg.Encoder.TailMS < 0 {
			return fmt.Errorf("encoder.lead_ms and tail_ms must not be negative")
		}
		switch strings.ToLower(cfg.Encoder.BusyPolicy) {
		case "reject":
		case "queue":
			if cfg.Encoder.QueueSize < 1 {
				return fmt.Errorf("encoder.queue_size must be at least 1 for the queue busy policy")
			}
		default:
			return fmt.Errorf("encoder.busy_policy must be reject or queue, got %q", cfg.Encoder.BusyPolicy)
		}
		if cfg.Encoder.MaxTxS < 0 {
			return fmt.Errorf("encoder.max_tx_s must not be negative")
		}
		if err := validateOutput("encoder.output", &cfg.Encoder.Output); err != nil {
			return err
		}
	}

	// Validate ringer config
	if cfg.Ringer.Enabled {
		if cfg.Ringer.DurationS <= 0 {
			return fmt.Errorf("ringer.duration_s must be positive")
		}
		if cfg.Ringer.Amplitude <= 0 || cfg.Ringer.Amplitude > 1 {
			return fmt.Errorf("ringer.amplitude must be within (0, 1]")
		}
		if cfg.Ringer.FreqAHz <= 0 || cfg.Ringer.FreqBHz <= 0 {
			return fmt.Errorf("ringer tone frequencies must be positive")
		}
		if cfg.Ringer.IntervalMS <= 0 {
			return fmt.Errorf("ringer.interval_ms must be positive")
		}
	}

	// Validate GPIO pins
	if err := validatePin("ptt", &cfg.PTT); err != nil {
		return err
	}
	if err := validatePin("led", &cfg.LED); err != nil {
		return err
	}

	// Validate MQTT config
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
		}
	}

	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate metrics config
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535")
		}
	}

	// Validate database config
	if cfg.Database.Enabled {
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required when the database is enabled")
		}
		if cfg.Database.RetentionDays < 0 {
			return fmt.Errorf("database.retention_days must not be negative")
		}
	}

	// Validate directory config
	if cfg.Directory.Enabled {
		if cfg.Directory.URL == "" {
			return fmt.Errorf("directory.url is required when the directory is enabled")
		}
		if cfg.Directory.RefreshHours <= 0 {
			return fmt.Errorf("directory.refresh_hours must be positive")
		}
		if !cfg.Database.Enabled {
			return fmt.Errorf("directory.enabled requires database.enabled for persistence")
		}
	}

	return nil
}

// validateOutput checks an audio destination section
func validateOutput(prefix string, out *OutputConfig) error {
	switch strings.ToLower(out.Type) {
	case "", "none", "stdout":
		return nil
	case "wav":
		if out.Path == "" {
			return fmt.Errorf("%s.path is required for wav output", prefix)
		}
		return nil
	case "udp":
		if out.Target == "" {
			return fmt.Errorf("%s.target is required for udp output", prefix)
		}
		return nil
	default:
		return fmt.Errorf("%s.type must be none, stdout, wav, or udp, got %q", prefix, out.Type)
	}
}

// validatePin checks a GPIO line section
func validatePin(prefix string, pin *GPIOPinConfig) error {
	switch strings.ToLower(pin.Type) {
	case "", "none":
		return nil
	case "gpio":
		if pin.Chip == "" {
			return fmt.Errorf("%s.chip is required for gpio control", prefix)
		}
		if pin.Line < 0 {
			return fmt.Errorf("%s.line must not be negative", prefix)
		}
		return nil
	default:
		return fmt.Errorf("%s.type must be none or gpio, got %q", prefix, pin.Type)
	}
}

// maxToneHz returns the highest frequency the protocol keys, pause included.
func maxToneHz(spec *protocol.Spec) float64 {
	top := spec.PauseFrequency()
	for _, f := range spec.Frequencies() {
		if f > top {
			top = f
		}
	}
	return top
}
