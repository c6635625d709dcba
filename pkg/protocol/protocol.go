// Package protocol defines the SelCall tone standards (ZVEI, CCIR, PCCIR):
// symbol alphabets, tone frequencies, timings and the code helpers shared
// by the decoder and encoder.
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Symbol is a single tone element of a protocol alphabet ('0'-'9', 'A'-'E').
type Symbol byte

// String returns the symbol as a one-character string.
func (s Symbol) String() string {
	return string(rune(s))
}

// Errors reported by registry lookups and code validation
var (
	ErrUnknownProtocol = errors.New("unknown protocol")
	ErrInvalidCode     = errors.New("invalid code")
)

// Spec is the immutable definition of one SelCall standard. Instances are
// created once at package init and must never be mutated.
type Spec struct {
	Name           string             // canonical identifier, e.g. "ZVEI-1"
	Tones          map[Symbol]float64 // symbol -> tone frequency in Hz
	ToneDuration   time.Duration      // nominal length of one tone window
	DefaultCodeLen int                // usual address length for this standard
	Repeat         Symbol             // repeated-digit marker
	Group          Symbol             // group-call wildcard
	Pause          Symbol             // inter-field pause / EOM
	GapTolerance   int                // tolerated silent windows inside a code
}

// registry holds the supported standards keyed by normalized name, so
// "ZVEI-1", "zvei1" and "Zvei-1" all resolve to the same Spec.
var registry = map[string]*Spec{}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "")
}

func register(spec *Spec) {
	registry[normalizeName(spec.Name)] = spec
}

func init() {
	register(&Spec{
		Name:           "ZVEI-1",
		Tones:          zvei1Tones,
		ToneDuration:   ZVEIToneDuration,
		DefaultCodeLen: DefaultCodeLength,
		Repeat:         SymbolRepeat,
		Group:          SymbolGroup,
		Pause:          SymbolPause,
		GapTolerance:   2,
	})
	register(&Spec{
		Name:           "ZVEI-2",
		Tones:          zvei2Tones,
		ToneDuration:   ZVEIToneDuration,
		DefaultCodeLen: DefaultCodeLength,
		Repeat:         SymbolRepeat,
		Group:          SymbolGroup,
		Pause:          SymbolPause,
		GapTolerance:   2,
	})
	register(&Spec{
		Name:           "CCIR-1",
		Tones:          ccirTones,
		ToneDuration:   CCIR1ToneDuration,
		DefaultCodeLen: DefaultCodeLength,
		Repeat:         SymbolRepeat,
		Group:          SymbolGroup,
		Pause:          SymbolPause,
		GapTolerance:   2,
	})
	register(&Spec{
		Name:           "CCIR-2",
		Tones:          ccirTones,
		ToneDuration:   CCIR2ToneDuration,
		DefaultCodeLen: DefaultCodeLength,
		Repeat:         SymbolRepeat,
		Group:          SymbolGroup,
		Pause:          SymbolPause,
		GapTolerance:   2,
	})
	register(&Spec{
		Name:           "CCIR-7",
		Tones:          ccirTones,
		ToneDuration:   CCIR7ToneDuration,
		DefaultCodeLen: CCIR7DefaultCodeLength,
		Repeat:         SymbolRepeat,
		Group:          SymbolGroup,
		Pause:          SymbolPause,
		GapTolerance:   2,
	})
	register(&Spec{
		Name:           "PCCIR",
		Tones:          pccirTones,
		ToneDuration:   PCCIRToneDuration,
		DefaultCodeLen: DefaultCodeLength,
		Repeat:         SymbolRepeat,
		Group:          SymbolGroup,
		Pause:          SymbolPause,
		GapTolerance:   2,
	})
}

// Get returns the Spec for a protocol identifier. Lookup ignores case and
// hyphens, so "zvei1" finds "ZVEI-1".
func Get(name string) (*Spec, error) {
	spec, ok := registry[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	return spec, nil
}

// Names returns the supported protocol identifiers, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, spec := range registry {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

// Symbols returns the alphabet in canonical order (digits first, then the
// special tones). The detector relies on this ordering for its filter bank.
func (s *Spec) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(symbolOrder))
	for i := 0; i < len(symbolOrder); i++ {
		syms = append(syms, Symbol(symbolOrder[i]))
	}
	return syms
}

// Frequencies returns the tone frequencies aligned with Symbols().
func (s *Spec) Frequencies() []float64 {
	freqs := make([]float64, 0, len(symbolOrder))
	for i := 0; i < len(symbolOrder); i++ {
		freqs = append(freqs, s.Tones[Symbol(symbolOrder[i])])
	}
	return freqs
}

// Frequency returns the tone frequency for a symbol.
func (s *Spec) Frequency(sym Symbol) (float64, bool) {
	f, ok := s.Tones[sym]
	return f, ok
}

// PauseFrequency returns the frequency the inter-field pause is transmitted
// at. SelCall pauses are not silence: the pause symbol's tone is keyed.
func (s *Spec) PauseFrequency() float64 {
	return s.Tones[s.Pause]
}

// Contains reports whether sym is part of this protocol's alphabet.
func (s *Spec) Contains(sym Symbol) bool {
	_, ok := s.Tones[sym]
	return ok
}

// ValidateCode checks that code has exactly length symbols, all from this
// protocol's alphabet. Codes are compared case-insensitively.
func (s *Spec) ValidateCode(code string, length int) error {
	code = Normalize(code)
	if len(code) != length {
		return fmt.Errorf("%w: %q has %d symbols, want %d", ErrInvalidCode, code, len(code), length)
	}
	for i := 0; i < len(code); i++ {
		if !s.Contains(Symbol(code[i])) {
			return fmt.Errorf("%w: symbol %q not in %s alphabet", ErrInvalidCode, string(code[i]), s.Name)
		}
	}
	return nil
}

// Normalize upper-cases a code string for comparison and lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
