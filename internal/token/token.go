// Package token implements the cursor-aware shell-word tokenizer that feeds
// the grammar engine's completion and decoding passes.
package token

import (
	"strings"
	"unicode"

	"github.com/kballard/go-shellquote"
)

// NoCursor is the sentinel cursor value meaning a Token is complete and not
// eligible for completion.
const NoCursor = -1

// Token is a single lexeme read from a command line, paired with the column
// of the user's input cursor within it. Cursor is NoCursor if the token is
// complete.
type Token struct {
	Text   string
	Cursor int
}

// Partial reports whether this token carries a cursor position and is
// therefore eligible for completion.
func (t Token) Partial() bool {
	return t.Cursor != NoCursor
}

// Prefix returns the portion of Text up to the cursor, lowercased. For a
// token that is not partial it returns Text unchanged, without lowercasing.
func (t Token) Prefix() string {
	if !t.Partial() {
		return t.Text
	}
	if t.Cursor > len(t.Text) {
		return strings.ToLower(t.Text)
	}
	return strings.ToLower(t.Text[:t.Cursor])
}

// Stream is a non-restartable ordered sequence of Tokens produced from a
// single buffer/cursor pair. Consumers advance it with Next.
type Stream struct {
	tokens []Token
	pos    int

	// captures holds parameter values recorded by String/Number nodes that
	// carry an id, keyed by that id.
	captures map[string]string
}

// NewStream tokenizes buffer[0:loc] following POSIX shell-word rules and
// attaches cursor semantics for the word under loc.
//
// If buffer[loc-1] is whitespace (or loc is 0), every produced token is
// complete and a synthetic ("", 0) token is appended so completion begins a
// fresh word. Otherwise the final token produced is marked partial with its
// cursor set to its own length. If no tokens are produced at all, a single
// ("", 0) token is emitted.
func NewStream(buffer string, loc int) *Stream {
	if loc > len(buffer) {
		loc = len(buffer)
	}
	if loc < 0 {
		loc = 0
	}
	head := buffer[:loc]

	words, err := shellquote.Split(head)
	if err != nil {
		// an unterminated quote mid-edit is normal while typing; fall back to
		// a best-effort whitespace split of what we have so the user still
		// gets some completion rather than none.
		words = strings.Fields(head)
	}

	atWordBoundary := loc == 0 || isShellSpace(rune(head[len(head)-1]))

	var toks []Token
	if len(words) == 0 {
		toks = []Token{{Text: "", Cursor: 0}}
	} else if atWordBoundary {
		for _, w := range words {
			toks = append(toks, Token{Text: w, Cursor: NoCursor})
		}
		toks = append(toks, Token{Text: "", Cursor: 0})
	} else {
		for _, w := range words[:len(words)-1] {
			toks = append(toks, Token{Text: w, Cursor: NoCursor})
		}
		last := words[len(words)-1]
		toks = append(toks, Token{Text: last, Cursor: len(last)})
	}

	return &Stream{tokens: toks, captures: map[string]string{}}
}

func isShellSpace(r rune) bool {
	return r == ' ' || r == '\t' || unicode.IsSpace(r)
}

// Next returns the next token in the stream. If peek is true the stream
// position is not advanced. Once the stream is exhausted, Next repeatedly
// returns a complete empty token rather than panicking, matching the
// original tokenizer's "synthetic trailing empty token" behavior.
func (s *Stream) Next(peek bool) Token {
	if s.pos >= len(s.tokens) {
		return Token{Text: "", Cursor: NoCursor}
	}
	tok := s.tokens[s.pos]
	if !peek {
		s.pos++
	}
	return tok
}

// Remaining returns the count of tokens not yet consumed.
func (s *Stream) Remaining() int {
	r := len(s.tokens) - s.pos
	if r < 0 {
		return 0
	}
	return r
}

// EOF reports whether the stream has been fully consumed.
func (s *Stream) EOF() bool {
	return s.pos >= len(s.tokens)
}

// Capture records a parameter value for the given id, as performed by String
// and Number grammar nodes that carry an id and consume a complete token.
func (s *Stream) Capture(id, value string) {
	if s.captures == nil {
		s.captures = map[string]string{}
	}
	s.captures[id] = value
}

// Captured returns the value previously recorded under id, and whether one
// was recorded at all.
func (s *Stream) Captured(id string) (string, bool) {
	v, ok := s.captures[id]
	return v, ok
}
