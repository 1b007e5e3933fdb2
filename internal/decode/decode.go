// Package decode implements the Command Decoder: given a textual command
// line, walk the prefix trie to locate the longest routable prefix and
// produce a (topic, payload, response-suffix) tuple (spec §4.5).
package decode

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mistwave/unicornsh/internal/registry"
)

// Decoded is the result of a successful decode.
type Decoded struct {
	Topic   string
	Payload string
	Suffix  string
	Route   *registry.Route
}

// Decode walks trie by the shell-lexed tokens of line, remembering the
// longest routable prefix seen. It returns ok=false if no routable prefix was
// found at all (spec §8 property 4).
func Decode(trie *registry.Trie, line string) (Decoded, bool) {
	type mark struct {
		before, after int
		route         *registry.Route
	}

	var longest *mark
	cursor := trie
	offset := 0
	remaining := line

	for {
		tok, rest, ok := nextShellToken(remaining)
		if !ok {
			break
		}
		before := offset
		consumed := len(remaining) - len(rest)
		after := offset + consumed
		offset = after
		remaining = rest

		child, ok := cursor.Children[tok]
		if !ok {
			break
		}
		cursor = child
		if cursor.Route.Routable() {
			longest = &mark{before: before, after: after, route: cursor.Route}
		}
	}

	if longest == nil {
		return Decoded{}, false
	}

	pos := longest.after
	if longest.route.IncludeHead {
		pos = longest.before
	}
	if pos > len(line) {
		pos = len(line)
	}
	payload := strings.TrimSpace(line[pos:])

	suffix := ""
	topic := longest.route.Topic
	if longest.route.AdHocChannels {
		suffix = "/" + uuid.New().String()
		topic = longest.route.Topic + suffix
	}

	return Decoded{Topic: topic, Payload: payload, Suffix: suffix, Route: longest.route}, true
}

// nextShellToken consumes one POSIX shell word (honoring single quotes,
// double quotes, and backslash escapes) from the front of s, mirroring the
// incremental scanner Python's shlex gives decode_command via
// instream.tell(). It returns the token's unescaped text, the remainder of s
// starting immediately after the consumed token, and whether a token was
// found at all (false once only trailing whitespace remains).
func nextShellToken(s string) (tok string, rest string, ok bool) {
	i := 0
	for i < len(s) && isBlank(s[i]) {
		i++
	}
	if i >= len(s) {
		return "", s, false
	}

	var b strings.Builder
	for i < len(s) && !isBlank(s[i]) {
		switch s[i] {
		case '\'':
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				b.WriteString(s[i+1:])
				i = len(s)
			} else {
				b.WriteString(s[i+1 : i+1+j])
				i += j + 2
			}
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				b.WriteByte(s[i])
				i++
			}
			if i < len(s) {
				i++ // consume closing quote
			}
		case '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
			} else {
				i++
			}
		default:
			b.WriteByte(s[i])
			i++
		}
	}

	return b.String(), s[i:], true
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
