package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// Spot-check a few defaults
	if cfg.Protocol.Name != "ZVEI-1" {
		t.Errorf("expected Protocol.Name default ZVEI-1, got %q", cfg.Protocol.Name)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("expected Audio.SampleRate default 48000, got %d", cfg.Audio.SampleRate)
	}
	if !cfg.Decoder.Enabled {
		t.Error("expected Decoder.Enabled default true")
	}
	if cfg.Decoder.GateHoldS != 20 {
		t.Errorf("expected Decoder.GateHoldS default 20, got %v", cfg.Decoder.GateHoldS)
	}
	if cfg.Encoder.Enabled {
		t.Error("expected Encoder.Enabled default false")
	}
	if cfg.Encoder.BusyPolicy != "reject" {
		t.Errorf("expected Encoder.BusyPolicy default reject, got %q", cfg.Encoder.BusyPolicy)
	}
	if cfg.MQTT.TopicPrefix != "selcall" {
		t.Errorf("expected MQTT.TopicPrefix default selcall, got %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected Web.Port default 8080, got %d", cfg.Web.Port)
	}
	if cfg.Database.RetentionDays != 30 {
		t.Errorf("expected Database.RetentionDays default 30, got %d", cfg.Database.RetentionDays)
	}
}

func TestLoad_DefaultsAreMonitorMode(t *testing.T) {
	// The bare config must validate: an empty target_code only monitors.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Decoder.TargetCode != "" {
		t.Errorf("expected empty default target_code, got %q", cfg.Decoder.TargetCode)
	}
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selcall.yaml")
	yaml := `
protocol:
  name: CCIR-1
audio:
  sample_rate: 22050
decoder:
  target_code: "12345"
  decimation: 2
encoder:
  enabled: true
  personal_code: "54321"
mqtt:
  enabled: true
  broker: tcp://broker.example:1883
  password: hunter2
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Protocol.Name != "CCIR-1" {
		t.Errorf("expected Protocol.Name CCIR-1, got %q", cfg.Protocol.Name)
	}
	if cfg.Audio.SampleRate != 22050 {
		t.Errorf("expected Audio.SampleRate 22050, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Decoder.TargetCode != "12345" {
		t.Errorf("expected Decoder.TargetCode 12345, got %q", cfg.Decoder.TargetCode)
	}
	if cfg.Encoder.PersonalCode != "54321" {
		t.Errorf("expected Encoder.PersonalCode 54321, got %q", cfg.Encoder.PersonalCode)
	}
	// Unset keys keep their defaults
	if cfg.Decoder.RatioThreshold != 2.5 {
		t.Errorf("expected Decoder.RatioThreshold default 2.5, got %v", cfg.Decoder.RatioThreshold)
	}
}

func TestLoad_MissingExplicitFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Protocol.Name != "ZVEI-1" {
		t.Errorf("expected defaults, got Protocol.Name %q", cfg.Protocol.Name)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SELCALL_AUDIO_SAMPLE_RATE", "44100")
	t.Setenv("SELCALL_DECODER_TARGET_CODE", "99999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("expected env override 44100, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Decoder.TargetCode != "99999" {
		t.Errorf("expected env override 99999, got %q", cfg.Decoder.TargetCode)
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selcall.yaml")
	yaml := `
decoder:
  target_code: "12*45"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for malformed target_code")
	}
}

// baseConfig returns a configuration that passes validation, for mutation
// by the error subtests.
func baseConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return cfg
}

func TestValidate_Errors(t *testing.T) {
	t.Run("unknown protocol", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Protocol.Name = "EEA-9"
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for unknown protocol name")
		}
	})

	t.Run("bad target code", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Decoder.TargetCode = "123"
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for short target_code")
		}
	})

	t.Run("wav input without path", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Audio.Input.Type = "wav"
		cfg.Audio.Input.Path = ""
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for wav input with no path")
		}
	})

	t.Run("inverted bandpass", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Decoder.Bandpass.LowHz = 2500
		cfg.Decoder.Bandpass.HighHz = 700
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for high_hz below low_hz")
		}
	})

	t.Run("decimation below Nyquist", func(t *testing.T) {
		cfg := baseConfig(t)
		// 48000/12 = 4000 Hz analysis rate, ZVEI tones reach 2800 Hz
		cfg.Decoder.Decimation = 12
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for analysis rate below Nyquist")
		}
	})

	t.Run("queue policy without queue size", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Encoder.Enabled = true
		cfg.Encoder.BusyPolicy = "queue"
		cfg.Encoder.QueueSize = 0
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for queue policy with zero queue_size")
		}
	})

	t.Run("bad personal code", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Encoder.Enabled = true
		cfg.Encoder.PersonalCode = "9Z999"
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for symbol outside the alphabet")
		}
	})

	t.Run("gpio pin without chip", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.PTT.Type = "gpio"
		cfg.PTT.Chip = ""
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for gpio pin with no chip")
		}
	})

	t.Run("mqtt enabled without broker", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = ""
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for mqtt with no broker")
		}
	})

	t.Run("web port out of range", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Web.Enabled = true
		cfg.Web.Port = 70000
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for web.port out of range")
		}
	})

	t.Run("directory enabled without url", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Directory.Enabled = true
		cfg.Directory.URL = ""
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for directory with no url")
		}
	})

	t.Run("directory without database", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Directory.Enabled = true
		cfg.Directory.URL = "http://example.com/directory.json"
		cfg.Database.Enabled = false
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for directory without the database")
		}
	})
}

func TestConfig_Sanitized(t *testing.T) {
	cfg := baseConfig(t)
	cfg.MQTT.Password = "hunter2"

	out := cfg.Sanitized()
	if out.MQTT.Password != "<redacted>" {
		t.Errorf("expected redacted password, got %q", out.MQTT.Password)
	}
	if cfg.MQTT.Password != "hunter2" {
		t.Error("Sanitized must not mutate the original")
	}
}
