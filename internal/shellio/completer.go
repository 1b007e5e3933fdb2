// Package shellio is the Shell Frontend: line-editor glue, prompt handling,
// output painting, and the dmenu-tree export — specified in spec §4 only
// through the interfaces the core consumes (§1 "the terminal line editor ...
// is [an] external collaborator").
package shellio

import (
	"github.com/chzyer/readline"

	"github.com/mistwave/unicornsh/internal/shell"
)

// Completer adapts Shell.Completer to readline.AutoCompleter: readline wants
// candidate *suffixes* sharing the token's already-typed prefix, not the full
// candidate text, so this does the same length-of-shared-prefix bookkeeping
// the chzyer/readline docs describe for Do.
type Completer struct {
	sh *shell.Shell
}

// NewCompleter wraps sh for use as a readline.AutoCompleter.
func NewCompleter(sh *shell.Shell) *Completer {
	return &Completer{sh: sh}
}

// Do implements readline.AutoCompleter.
func (c *Completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	buffer := string(line[:pos])
	candidates := c.sh.Completer(buffer, pos)
	if len(candidates) == 0 {
		return nil, 0
	}

	prefixLen := tokenPrefixLen(buffer)
	out := make([][]rune, 0, len(candidates))
	for _, cand := range candidates {
		if len(cand) < prefixLen {
			continue
		}
		out = append(out, []rune(cand[prefixLen:]))
	}
	return out, prefixLen
}

// tokenPrefixLen returns how much of buffer's final (partial) word has
// already been typed, i.e. how much of each candidate readline should not
// re-insert.
func tokenPrefixLen(buffer string) int {
	for i := len(buffer) - 1; i >= 0; i-- {
		if buffer[i] == ' ' || buffer[i] == '\t' {
			return len(buffer) - i - 1
		}
	}
	return len(buffer)
}

var _ readline.AutoCompleter = (*Completer)(nil)
