package shellio

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/mistwave/unicornsh/internal/decode"
	"github.com/mistwave/unicornsh/internal/grammar"
	"github.com/mistwave/unicornsh/internal/registry"
)

// DMenuTree renders the composite grammar as a textual menu-tree script
// understood by "dmenu tree" style launchers (spec §1, §6: the dmenu tool
// itself is an out-of-scope external collaborator; this function only
// produces the text that would feed it, grounded directly on shell.py's
// printDMenuTree). Each leaf command decodes to a ":output mosquitto_pub ..."
// line; each Keyword level below the root that has output becomes a
// ":push"/":pop" pair around its children (the root level is not wrapped).
func DMenuTree(trie *registry.Trie, composite *grammar.Keyword, host string) string {
	var b strings.Builder
	walkDMenu(&b, composite, trie, nil, host)
	return b.String()
}

func walkDMenu(b *strings.Builder, node grammar.Node, trie *registry.Trie, cmdline []string, host string) {
	kw, ok := node.(*grammar.Keyword)
	if !ok {
		return
	}

	var inner strings.Builder
	for k, child := range kw.Stmts {
		childCmdline := append(append([]string{}, cmdline...), k)

		if isLeaf(child) {
			if d, ok := decode.Decode(trie, shellquote.Join(childCmdline...)); ok {
				inner.WriteString(k + "\n")
				inner.WriteString(fmt.Sprintf(":output %s\n",
					shellquote.Join("mosquitto_pub", "-h", host, "-t", d.Topic, "-m", d.Payload)))
			}
			continue
		}

		var sub strings.Builder
		walkDMenu(&sub, child, trie, childCmdline, host)
		if sub.Len() > 0 {
			inner.WriteString(k + "\n")
			inner.WriteString(sub.String())
		}
	}

	if inner.Len() == 0 {
		return
	}
	if len(cmdline) > 0 {
		b.WriteString(":push\n")
		b.WriteString(inner.String())
		b.WriteString(":pop\n")
	} else {
		b.WriteString(inner.String())
	}
}

// isLeaf reports whether n terminates a command path (Empty, or anything
// that isn't itself a Keyword with further branches worth descending into).
func isLeaf(n grammar.Node) bool {
	switch n.(type) {
	case *grammar.Keyword:
		return false
	default:
		return true
	}
}
