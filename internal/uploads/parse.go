package uploads

import (
	"strconv"
	"strings"
	"time"
)

// Marker prefixes recognized in upload step output.
const (
	MarkerResult  = "UPLOAD_RESULT"
	MarkerSkipped = "UPLOAD_SKIPPED"
)

// MaxHistory bounds the uploads list carried in the persisted run state.
const MaxHistory = 20

const (
	watchURLPrefix = "https://www.youtube.com/watch?v="
	shortURLPrefix = "https://www.youtube.com/shorts/"
)

// Result is one parsed upload event. Records are immutable once created;
// only the bounded history list they live in is pruned.
type Result struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id,omitempty"`
	Privacy   string    `json:"privacy,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	URLWatch  string    `json:"url_watch,omitempty"`
	URLShort  string    `json:"url_short,omitempty"`
}

// ParseLine extracts a Result from one line of upload step output. The
// second return value reports whether the line was a valid marker record.
func ParseLine(line string, now time.Time) (Result, bool) {
	trimmed := strings.TrimSpace(line)

	var skipped bool
	switch {
	case strings.HasPrefix(trimmed, MarkerResult+" "):
		trimmed = strings.TrimPrefix(trimmed, MarkerResult+" ")
	case strings.HasPrefix(trimmed, MarkerSkipped+" "):
		trimmed = strings.TrimPrefix(trimmed, MarkerSkipped+" ")
		skipped = true
	default:
		return Result{}, false
	}

	fields := parseTokens(trimmed)
	result := Result{
		Kind:      fields["kind"],
		ID:        fields["id"],
		Privacy:   fields["privacy"],
		Reason:    fields["reason"],
		Skipped:   skipped,
		Timestamp: now,
	}

	// A successful upload without an id is useless downstream; drop it.
	if !skipped && result.ID == "" {
		return Result{}, false
	}
	if result.ID != "" {
		result.URLWatch = watchURLPrefix + result.ID
		result.URLShort = shortURLPrefix + result.ID
	}
	return result, true
}

// Prepend inserts a result at the head of the history list (most recent
// first) and truncates to max entries.
func Prepend(history []Result, result Result, max int) []Result {
	out := make([]Result, 0, len(history)+1)
	out = append(out, result)
	out = append(out, history...)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// parseTokens splits whitespace-separated key=value tokens. Values may be
// Go-quoted to carry whitespace or '='; unparseable tokens are skipped.
func parseTokens(s string) map[string]string {
	fields := make(map[string]string)
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			break
		}
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			// No key ahead; discard up to the next separator.
			next := strings.IndexAny(s, " \t")
			if next < 0 {
				break
			}
			s = s[next:]
			continue
		}
		key := s[:eq]
		rest := s[eq+1:]
		if strings.ContainsAny(key, " \t") {
			// '=' belonged to a later token; skip the stray word.
			cut := strings.IndexAny(key, " \t")
			s = s[cut+1:]
			continue
		}

		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, remainder, ok := cutQuoted(rest)
			if !ok {
				break
			}
			unquoted, err := strconv.Unquote(quoted)
			if err != nil {
				s = remainder
				continue
			}
			value = unquoted
			s = remainder
		} else {
			next := strings.IndexAny(rest, " \t")
			if next < 0 {
				value = rest
				s = ""
			} else {
				value = rest[:next]
				s = rest[next:]
			}
		}
		if key != "" && value != "" {
			fields[key] = value
		}
	}
	return fields
}

// cutQuoted returns the leading Go-quoted string of s and the remainder.
func cutQuoted(s string) (quoted, rest string, ok bool) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", false
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return s[:i+1], s[i+1:], true
		}
	}
	return "", "", false
}
