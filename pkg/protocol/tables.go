package protocol

import "time"

// Special symbols shared by all supported standards
const (
	SymbolRepeat Symbol = 'E' // repeated-digit marker (e.g. "11" transmits as 1,E)
	SymbolGroup  Symbol = 'A' // group-call wildcard digit
	SymbolPause  Symbol = 'C' // inter-field pause, doubles as EOM
	NoSymbol     Symbol = '-' // detector output for a silent/ambiguous window
)

// Tone durations per standard
const (
	ZVEIToneDuration  = 70 * time.Millisecond
	CCIR1ToneDuration = 100 * time.Millisecond
	CCIR2ToneDuration = 70 * time.Millisecond
	CCIR7ToneDuration = 70 * time.Millisecond
	PCCIRToneDuration = 100 * time.Millisecond
)

// DefaultCodeLength is the usual SelCall address length (5 tones).
// CCIR-7 fleets use 7-tone addresses.
const (
	DefaultCodeLength      = 5
	CCIR7DefaultCodeLength = 7
)

// symbolOrder is the canonical alphabet ordering used for detector banks
// (digits 1-9, 0, then the special tones).
const symbolOrder = "1234567890ABCDE"

// ZVEI-1 tone plan (Hz)
var zvei1Tones = map[Symbol]float64{
	'1': 1060, '2': 1160, '3': 1270, '4': 1400, '5': 1530,
	'6': 1670, '7': 1830, '8': 2000, '9': 2200, '0': 2400,
	'A': 2800, 'B': 810, 'C': 970, 'D': 886, 'E': 2600,
}

// ZVEI-2 shares the ZVEI-1 digit tones; the special tones differ
var zvei2Tones = map[Symbol]float64{
	'1': 1060, '2': 1160, '3': 1270, '4': 1400, '5': 1530,
	'6': 1670, '7': 1830, '8': 2000, '9': 2200, '0': 2400,
	'A': 885, 'B': 810, 'C': 740, 'D': 680, 'E': 970,
}

// CCIR tone plan (Hz), shared by CCIR-1, CCIR-2 and CCIR-7
var ccirTones = map[Symbol]float64{
	'1': 1124, '2': 1197, '3': 1275, '4': 1358, '5': 1446,
	'6': 1540, '7': 1640, '8': 1747, '9': 1860, '0': 1981,
	'A': 2400, 'B': 930, 'C': 2246, 'D': 991, 'E': 2110,
}

// PCCIR moves the group tone to 1050 Hz and the pause to 2400 Hz
var pccirTones = map[Symbol]float64{
	'1': 1124, '2': 1197, '3': 1275, '4': 1358, '5': 1446,
	'6': 1540, '7': 1640, '8': 1747, '9': 1860, '0': 1981,
	'A': 1050, 'B': 930, 'C': 2400, 'D': 991, 'E': 2110,
}
