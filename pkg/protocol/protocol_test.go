package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestGet_KnownProtocols(t *testing.T) {
	names := []string{"ZVEI-1", "ZVEI-2", "CCIR-1", "CCIR-2", "CCIR-7", "PCCIR"}
	for _, name := range names {
		spec, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", name, err)
		}
		if spec.Name != name {
			t.Errorf("Expected name %q, got %q", name, spec.Name)
		}
		if len(spec.Tones) != 15 {
			t.Errorf("%s: expected 15 alphabet entries, got %d", name, len(spec.Tones))
		}
	}
}

func TestGet_CaseInsensitive(t *testing.T) {
	spec, err := Get("zvei-1")
	if err != nil {
		t.Fatalf("Get(zvei-1) failed: %v", err)
	}
	if spec.Name != "ZVEI-1" {
		t.Errorf("Expected ZVEI-1, got %q", spec.Name)
	}

	spec, err = Get("ccir7")
	if err != nil {
		t.Fatalf("Get(ccir7) failed: %v", err)
	}
	if spec.Name != "CCIR-7" {
		t.Errorf("Expected CCIR-7, got %q", spec.Name)
	}

	spec, err = Get("  pccir ")
	if err != nil {
		t.Fatalf("Get with whitespace failed: %v", err)
	}
	if spec.Name != "PCCIR" {
		t.Errorf("Expected PCCIR, got %q", spec.Name)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("DTMF")
	if err == nil {
		t.Fatal("Expected error for unknown protocol")
	}
	if !errors.Is(err, ErrUnknownProtocol) {
		t.Errorf("Expected ErrUnknownProtocol, got %v", err)
	}
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	if len(names) != 6 {
		t.Fatalf("Expected 6 protocols, got %d: %v", len(names), names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names not sorted: %v", names)
		}
	}
}

func TestSpec_Frequencies(t *testing.T) {
	tests := []struct {
		protocol string
		symbol   Symbol
		freq     float64
	}{
		{"ZVEI-1", '1', 1060},
		{"ZVEI-1", '0', 2400},
		{"ZVEI-1", 'A', 2800},
		{"ZVEI-1", 'E', 2600},
		{"ZVEI-2", 'A', 885},
		{"ZVEI-2", 'E', 970},
		{"CCIR-1", '1', 1124},
		{"CCIR-1", '0', 1981},
		{"CCIR-1", 'C', 2246},
		{"CCIR-2", '9', 1860},
		{"PCCIR", 'A', 1050},
		{"PCCIR", 'C', 2400},
	}

	for _, tt := range tests {
		spec, err := Get(tt.protocol)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", tt.protocol, err)
		}
		freq, ok := spec.Frequency(tt.symbol)
		if !ok {
			t.Errorf("%s: symbol %q missing", tt.protocol, tt.symbol)
			continue
		}
		if freq != tt.freq {
			t.Errorf("%s symbol %q: expected %.0f Hz, got %.0f Hz", tt.protocol, tt.symbol, tt.freq, freq)
		}
	}
}

func TestSpec_ToneDurations(t *testing.T) {
	tests := []struct {
		protocol string
		duration time.Duration
	}{
		{"ZVEI-1", 70 * time.Millisecond},
		{"ZVEI-2", 70 * time.Millisecond},
		{"CCIR-1", 100 * time.Millisecond},
		{"CCIR-2", 70 * time.Millisecond},
		{"CCIR-7", 70 * time.Millisecond},
		{"PCCIR", 100 * time.Millisecond},
	}

	for _, tt := range tests {
		spec, err := Get(tt.protocol)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", tt.protocol, err)
		}
		if spec.ToneDuration != tt.duration {
			t.Errorf("%s: expected tone duration %v, got %v", tt.protocol, tt.duration, spec.ToneDuration)
		}
	}
}

func TestSpec_SymbolsAlignedWithFrequencies(t *testing.T) {
	spec, err := Get("CCIR-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	syms := spec.Symbols()
	freqs := spec.Frequencies()
	if len(syms) != len(freqs) {
		t.Fatalf("Symbols/Frequencies length mismatch: %d vs %d", len(syms), len(freqs))
	}
	for i, sym := range syms {
		want, ok := spec.Frequency(sym)
		if !ok {
			t.Fatalf("Symbol %q missing from table", sym)
		}
		if freqs[i] != want {
			t.Errorf("Index %d (%q): expected %.0f Hz, got %.0f Hz", i, sym, want, freqs[i])
		}
	}
}

func TestSpec_PauseFrequency(t *testing.T) {
	zvei, _ := Get("ZVEI-1")
	if got := zvei.PauseFrequency(); got != 970 {
		t.Errorf("ZVEI-1 pause: expected 970 Hz, got %.0f", got)
	}
	ccir, _ := Get("CCIR-1")
	if got := ccir.PauseFrequency(); got != 2246 {
		t.Errorf("CCIR-1 pause: expected 2246 Hz, got %.0f", got)
	}
}

func TestSpec_ValidateCode(t *testing.T) {
	spec, err := Get("ZVEI-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := spec.ValidateCode("12345", 5); err != nil {
		t.Errorf("Valid code rejected: %v", err)
	}
	if err := spec.ValidateCode("1234b", 5); err != nil {
		t.Errorf("Lower-case in-alphabet code rejected: %v", err)
	}

	if err := spec.ValidateCode("1234", 5); err == nil {
		t.Error("Expected error for short code")
	} else if !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Expected ErrInvalidCode, got %v", err)
	}

	if err := spec.ValidateCode("123456", 5); err == nil {
		t.Error("Expected error for long code")
	}

	if err := spec.ValidateCode("123X5", 5); err == nil {
		t.Error("Expected error for out-of-alphabet symbol")
	} else if !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Expected ErrInvalidCode, got %v", err)
	}
}

func TestSpec_DefaultCodeLengths(t *testing.T) {
	ccir7, _ := Get("CCIR-7")
	if ccir7.DefaultCodeLen != 7 {
		t.Errorf("CCIR-7: expected default length 7, got %d", ccir7.DefaultCodeLen)
	}
	zvei, _ := Get("ZVEI-1")
	if zvei.DefaultCodeLen != 5 {
		t.Errorf("ZVEI-1: expected default length 5, got %d", zvei.DefaultCodeLen)
	}
}
