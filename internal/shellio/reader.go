package shellio

import (
	"bufio"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// LineReader is the minimal interface the Shell Frontend needs from a line
// source: read one line at a time, and clean up on Close. Both concrete
// implementations below satisfy it, mirroring the
// DirectCommandReader/InteractiveCommandReader split in the teacher's
// internal/input package.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// DirectReader reads raw lines from any io.Reader, with no completion,
// history, or escape-sequence handling. Used when stdin isn't a TTY, or when
// the caller forces it.
type DirectReader struct {
	r *bufio.Reader
}

func NewDirectReader(r io.Reader) *DirectReader {
	return &DirectReader{r: bufio.NewReader(r)}
}

func (d *DirectReader) ReadLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (d *DirectReader) Close() error { return nil }

// InteractiveReader reads from stdin through chzyer/readline, wiring in the
// given completer and history file path.
type InteractiveReader struct {
	rl *readline.Instance
}

// NewInteractiveReader builds an InteractiveReader with tab-completion
// driven by completer and command history persisted to historyFile (empty
// disables history persistence).
func NewInteractiveReader(prompt, historyFile string, completer readline.AutoCompleter) (*InteractiveReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, err
	}
	return &InteractiveReader{rl: rl}, nil
}

func (i *InteractiveReader) ReadLine() (string, error) {
	return i.rl.Readline()
}

func (i *InteractiveReader) Close() error { return i.rl.Close() }

// Instance exposes the underlying readline.Instance so a TerminalRenderer can
// paint beneath the live prompt.
func (i *InteractiveReader) Instance() *readline.Instance { return i.rl }
