// Package guardrail rewrites untrusted model output into a single bounded
// read-only SQL statement. The transformation is pure text rewriting with no
// I/O, so callers can apply it to anything a model returns without trusting
// that the model followed its instructions.
package guardrail

import "strings"

// Outcome is the result of applying the guardrail to a candidate statement.
type Outcome struct {
	// Statement starts with SELECT and carries exactly one trailing
	// semicolon. It is not guaranteed to be semantically valid; unknown
	// identifiers surface at execution time.
	Statement string

	// Coerced reports that the candidate did not lead with SELECT and had
	// the prefix prepended.
	Coerced bool
}

// Sanitize applies the full guardrail rewrite and returns the safe statement.
func Sanitize(raw string) string {
	return Apply(raw).Statement
}

// Apply runs the ordered rewrite steps: strip code fences, strip inline
// comments, drop blank lines, coerce a SELECT prefix when missing, truncate
// at the first statement terminator, and re-terminate.
//
// Known gap: the prefix coercion only checks whether the candidate is missing
// a leading SELECT; it never scans for write verbs. "DELETE FROM t;" gets a
// SELECT prepended but the DELETE body survives into the statement instead of
// being rejected. Do not close this silently; it is pinned by
// TestWriteVerbPassesThrough.
func Apply(raw string) Outcome {
	text := stripFences(raw)
	text = stripLineComments(text)
	text = dropBlankLines(text)
	text = strings.TrimSpace(text)

	coerced := false
	if !hasSelectPrefix(text) {
		text = "SELECT " + text
		coerced = true
	}

	if i := strings.Index(text, ";"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text) + ";"

	return Outcome{Statement: text, Coerced: coerced}
}

func stripFences(s string) string {
	s = removeFold(s, "```sql")
	return strings.ReplaceAll(s, "```", "")
}

// removeFold deletes every case-insensitive occurrence of marker.
func removeFold(s, marker string) string {
	lower := strings.ToLower(s)
	marker = strings.ToLower(marker)
	var b strings.Builder
	for {
		i := strings.Index(lower, marker)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(marker):]
		lower = lower[i+len(marker):]
	}
}

func stripLineComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if j := strings.Index(line, "--"); j >= 0 {
			lines[i] = line[:j]
		}
	}
	return strings.Join(lines, "\n")
}

func dropBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func hasSelectPrefix(s string) bool {
	return len(s) >= len("select") && strings.EqualFold(s[:len("select")], "select")
}
