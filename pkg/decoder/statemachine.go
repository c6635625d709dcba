package decoder

import (
	"fmt"

	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

// State represents the code matcher's position in a transmission.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateMatched
	StateMismatch
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateMatched:
		return "matched"
	case StateMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// sessionRaw is capped so a stuck tone source cannot grow it without bound.
const maxSessionSymbols = 128

// Result reports one completed code evaluation.
type Result struct {
	Raw     string // field symbols as received, repeat markers intact
	Code    string // repeat-expanded code
	Display string // formatted view of the transmission so far
	Matched bool
	Pos     int64 // sample position of the final symbol's window
}

// StateMachine accumulates confirmed symbols into fixed-length fields and
// evaluates each completed field against the configured code. A pause tone
// is a field boundary; a partial field at a boundary or after too long a
// gap is discarded.
type StateMachine struct {
	spec     *protocol.Spec
	target   string
	codeLen  int
	gapLimit int

	state      State
	buf        []byte
	gapRun     int
	sessionRaw []byte
}

// NewStateMachine builds a matcher for the given target code. An empty
// target monitors decodes without ever matching.
func NewStateMachine(spec *protocol.Spec, target string, codeLen, gapLimit int) (*StateMachine, error) {
	if spec == nil {
		return nil, fmt.Errorf("state machine: protocol spec is required")
	}
	if codeLen == 0 {
		codeLen = spec.DefaultCodeLen
	}
	if codeLen < 1 {
		return nil, fmt.Errorf("state machine: code length must be at least 1, got %d", codeLen)
	}
	if gapLimit == 0 {
		gapLimit = spec.GapTolerance
	}
	if gapLimit < 0 {
		return nil, fmt.Errorf("state machine: gap tolerance must not be negative, got %d", gapLimit)
	}
	target = protocol.Normalize(target)
	if target != "" {
		if err := spec.ValidateCode(target, codeLen); err != nil {
			return nil, err
		}
	}
	return &StateMachine{
		spec:     spec,
		target:   target,
		codeLen:  codeLen,
		gapLimit: gapLimit,
		state:    StateIdle,
	}, nil
}

// Feed consumes one detector event and returns a Result when it completes
// a field, nil otherwise.
func (m *StateMachine) Feed(ev SymbolEvent) *Result {
	if ev.Symbol == protocol.NoSymbol {
		m.gapRun++
		if m.gapRun > m.gapLimit {
			m.buf = m.buf[:0]
			m.sessionRaw = m.sessionRaw[:0]
			m.state = StateIdle
		}
		return nil
	}
	m.gapRun = 0

	m.appendSession(byte(ev.Symbol))
	if ev.Symbol == m.spec.Pause {
		if m.state == StateAccumulating {
			// boundary hit mid-field, the partial cannot be completed
			m.buf = m.buf[:0]
			m.state = StateIdle
		}
		return nil
	}

	m.state = StateAccumulating
	m.buf = append(m.buf, byte(ev.Symbol))
	if len(m.buf) < m.codeLen {
		return nil
	}

	raw := string(m.buf)
	code := m.spec.ExpandRepeatMarkers(raw)
	matched := m.target != "" && code == m.target
	if matched {
		m.state = StateMatched
	} else {
		m.state = StateMismatch
	}
	m.buf = m.buf[:0]
	return &Result{
		Raw:     raw,
		Code:    code,
		Display: m.spec.Format(string(m.sessionRaw), m.codeLen),
		Matched: matched,
		Pos:     ev.Pos,
	}
}

func (m *StateMachine) appendSession(b byte) {
	if len(m.sessionRaw) >= maxSessionSymbols {
		n := copy(m.sessionRaw, m.sessionRaw[maxSessionSymbols/2:])
		m.sessionRaw = m.sessionRaw[:n]
	}
	m.sessionRaw = append(m.sessionRaw, b)
}

// State returns the matcher's current state.
func (m *StateMachine) State() State {
	return m.state
}

// Target returns the normalized code the matcher compares against.
func (m *StateMachine) Target() string {
	return m.target
}

// Reset returns the matcher to idle and clears all accumulation.
func (m *StateMachine) Reset() {
	m.buf = m.buf[:0]
	m.sessionRaw = m.sessionRaw[:0]
	m.gapRun = 0
	m.state = StateIdle
}
