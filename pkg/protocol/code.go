package protocol

import "strings"

// Terminator is an end-of-message pattern some fleet plans append to a
// transmission; Format truncates anything after it.
const Terminator = "4E4E"

// ApplyRepeatMarkers rewrites a code for transmission, substituting the
// protocol's repeat marker for every symbol equal to the previously
// rendered one. The comparison is against the substituted output, so runs
// alternate digit and marker: "111" becomes "1E1", "99999" becomes
// "9E9E9". Alternation is what keeps a run of identical digits
// distinguishable after receivers collapse duplicate detections.
func (s *Spec) ApplyRepeatMarkers(code string) string {
	code = Normalize(code)
	out := make([]byte, 0, len(code))
	var prev byte
	for i := 0; i < len(code); i++ {
		c := code[i]
		if i > 0 && c == prev {
			c = byte(s.Repeat)
		}
		out = append(out, c)
		prev = c
	}
	return string(out)
}

// ExpandRepeatMarkers reverses ApplyRepeatMarkers: each repeat marker
// becomes the previously expanded symbol. A leading marker has no
// predecessor and stays literal.
func (s *Spec) ExpandRepeatMarkers(raw string) string {
	raw = Normalize(raw)
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if Symbol(raw[i]) == s.Repeat && len(out) > 0 {
			out = append(out, out[len(out)-1])
			continue
		}
		out = append(out, raw[i])
	}
	return string(out)
}

// CollapseRuns merges adjacent identical symbols into one. Legitimate
// transmissions never key the same tone twice in a row (they use the
// repeat marker), so runs are always re-detections of a single tone.
func CollapseRuns(raw string) string {
	if raw == "" {
		return ""
	}
	out := make([]byte, 1, len(raw))
	out[0] = raw[0]
	for i := 1; i < len(raw); i++ {
		if raw[i] != raw[i-1] {
			out = append(out, raw[i])
		}
	}
	return string(out)
}

// Format renders a raw symbol run for display: truncates after a
// Terminator if present, expands repeat markers, drops pause symbols that
// fall on a field boundary (they are separators), and joins the fields
// with "-". A pause or repeat marker inside a field repeats the previous
// symbol, matching receiver behavior for mid-field markers.
func (s *Spec) Format(raw string, groupSize int) string {
	raw = Normalize(raw)
	if groupSize <= 0 {
		groupSize = s.DefaultCodeLen
	}
	if idx := strings.Index(raw, Terminator); idx >= 0 {
		raw = raw[:idx+len(Terminator)]
	}

	expanded := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		sym := Symbol(raw[i])
		if sym != s.Repeat && sym != s.Pause {
			expanded = append(expanded, raw[i])
			continue
		}
		if i != 0 && i%groupSize == 0 {
			// marker on a field boundary acts as the separator
			continue
		}
		if len(expanded) > 0 {
			expanded = append(expanded, expanded[len(expanded)-1])
		} else if i > 0 {
			expanded = append(expanded, raw[i-1])
		}
	}

	groups := make([]string, 0, (len(expanded)+groupSize-1)/groupSize)
	for start := 0; start < len(expanded); start += groupSize {
		end := start + groupSize
		if end > len(expanded) {
			end = len(expanded)
		}
		groups = append(groups, string(expanded[start:end]))
	}
	return strings.Join(groups, "-")
}
