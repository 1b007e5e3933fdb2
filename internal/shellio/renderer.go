package shellio

import (
	"bufio"
	"fmt"

	"github.com/chzyer/readline"
	"github.com/dekarrin/rosed"
)

const consoleOutputWidth = 100

const (
	tagOut    = "\x1b[32;1mout\x1b[0m"
	tagErr    = "\x1b[31;1merr\x1b[0m"
	tagResult = "\x1b[35;1mret\x1b[0m"
)

// TerminalRenderer implements shell.Renderer by painting decorated response
// lines to the terminal beneath the in-progress prompt, the same refresh
// trick the source's println does: clear to end of screen, print the line,
// then redraw the prompt and whatever the user has typed so far.
//
// TerminalRenderer is written to directly from the bus network thread (spec
// §5: "terminal I/O is treated as line-atomic"), so no locking is done here
// beyond whatever readline.Instance itself provides.
type TerminalRenderer struct {
	rl *readline.Instance
	w  *bufio.Writer
}

// NewTerminalRenderer paints through rl when non-nil (so the prompt and
// in-progress input are preserved across an async write), or falls through
// to a plain buffered writer for non-interactive/direct-reader sessions.
func NewTerminalRenderer(rl *readline.Instance, w *bufio.Writer) *TerminalRenderer {
	return &TerminalRenderer{rl: rl, w: w}
}

func (t *TerminalRenderer) RenderOut(line string)    { t.println(tagOut, line) }
func (t *TerminalRenderer) RenderErr(line string)    { t.println(tagErr, line) }
func (t *TerminalRenderer) RenderResult(line string) { t.println(tagResult, line) }

func (t *TerminalRenderer) println(tag, line string) {
	wrapped := rosed.Edit(line).Wrap(consoleOutputWidth).String()
	decorated := fmt.Sprintf("[%s] %s", tag, wrapped)

	if t.rl != nil {
		fmt.Fprintln(t.rl.Stdout(), decorated)
		return
	}
	fmt.Fprintln(t.w, decorated)
	t.w.Flush()
}
