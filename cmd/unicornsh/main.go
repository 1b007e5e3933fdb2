/*
Unicornsh starts an interactive pub/sub command shell.

It federates remote command handlers advertised via small IDL documents over
an MQTT broker into a single composed, tab-completable command grammar, then
either drives an interactive readline session or runs a single one-shot
command and exits.

Usage:

	unicornsh [flags]

The flags are:

	-v, --version
		Give the current version of unicornsh and then exit.

	-c, --config FILE
		Load bus host/port, proxy, history, and cache settings from the given
		TOML config file.

	-d, --direct
		Force reading directly from stdin instead of going through GNU
		readline based routines, even if launched in a tty.

	--options
		Treat any residual, non-flag CLI arguments as a partial command
		line and print its tab-completion candidates — space-separated
		and shell-quoted — instead of starting a session.

	--dmenu-tree
		Dump the composed grammar as a dmenu "tree" script and exit.

	--introspect ADDR
		Serve the debug HTTP introspection surface on ADDR (e.g. ":8080").
		Requires --introspect-token-hash.

	--introspect-token-hash HASH
		bcrypt hash (see unicornsh-hashtoken) of the bearer token the
		introspection surface accepts.

Any other residual, non-flag argument (or everything following a bare "--")
is instead joined into one shell-quoted command line, published once through
a transient bus connection that connects, publishes, and disconnects, and the
process exits without ever starting readline or the interactive session.

Once a session has started, tab completion and dispatch are driven entirely
by IDL documents announced on the bus; unicornsh has no commands of its own
beyond reading and publishing.
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/mistwave/unicornsh/internal/audit"
	"github.com/mistwave/unicornsh/internal/bus"
	"github.com/mistwave/unicornsh/internal/bus/mqttbus"
	"github.com/mistwave/unicornsh/internal/config"
	"github.com/mistwave/unicornsh/internal/introspect"
	"github.com/mistwave/unicornsh/internal/shell"
	"github.com/mistwave/unicornsh/internal/shellio"
	"github.com/mistwave/unicornsh/internal/version"
)

const (
	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitInitError indicates an unsuccessful program execution due to an
	// issue initializing the shell or its bus connection.
	ExitInitError

	// ExitRunError indicates an unsuccessful program execution during the
	// run itself.
	ExitRunError
)

var (
	returnCode = ExitSuccess

	flagVersion    = pflag.BoolP("version", "v", false, "Gives the version info")
	flagConfig     = pflag.StringP("config", "c", "", "TOML config file with bus/proxy/history/cache settings")
	flagDirect     = pflag.BoolP("direct", "d", false, "Force reading directly from stdin instead of going through GNU readline where possible")
	flagOptions    = pflag.Bool("options", false, "Complete the residual CLI arguments as a command line and exit")
	flagDMenuTree  = pflag.Bool("dmenu-tree", false, "Dump the composed grammar as a dmenu tree script and exit")
	flagIntrospect = pflag.String("introspect", "", "Serve the debug HTTP introspection surface on the given address")
	flagTokenHash  = pflag.String("introspect-token-hash", "", "bcrypt hash of the introspection bearer token (required with --introspect)")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	log := stdLogger{}

	var store *audit.Store
	if cfg.CacheFile != "" {
		if s, err := audit.Open(cfg.CacheFile + ".audit.db"); err == nil {
			store = s
			defer store.Close()
		} else {
			log.Logf("audit history disabled: %s", err.Error())
		}
	}

	sh := shell.New(shell.Options{
		Bus:        dialer(cfg),
		Logger:     log,
		CachePath:  cfg.CacheFile,
		AckTimeout: time.Duration(cfg.AckTimeoutSeconds) * time.Second,
		OnDispatch: func(topic, payload, suffix string) {
			if store == nil {
				return
			}
			if _, err := store.Record(context.Background(), topic, payload, suffix); err != nil {
				log.Logf("failed to record dispatch: %s", err.Error())
			}
		},
	})

	if *flagOptions {
		dumpOptions(sh, pflag.Args())
		return
	}
	if *flagDMenuTree {
		dumpDMenuTree(sh, cfg.BusHost)
		return
	}

	if residual := pflag.Args(); len(residual) > 0 {
		dial := func() (bus.Bus, error) { return dialer(cfg), nil }
		if err := runNonInteractive(sh, dial, residual); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
			returnCode = ExitRunError
		}
		return
	}

	interactive := !*flagDirect && isatty.IsTerminal(os.Stdin.Fd())

	var reader shellio.LineReader
	if interactive {
		ir, err := shellio.NewInteractiveReader("unicornsh> ", cfg.HistoryFile, shellio.NewCompleter(sh))
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: init readline: %s\n", err.Error())
			returnCode = ExitInitError
			return
		}
		reader = ir
		sh.SetRenderer(shellio.NewTerminalRenderer(ir.Instance(), nil))
	} else {
		reader = shellio.NewDirectReader(os.Stdin)
		sh.SetRenderer(shellio.NewTerminalRenderer(nil, bufio.NewWriter(os.Stdout)))
	}
	defer reader.Close()

	if *flagIntrospect != "" {
		startIntrospect(sh, store, *flagIntrospect, *flagTokenHash)
	}

	if err := runInteractive(sh, reader); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitRunError
		return
	}
}

func dialer(cfg config.Config) bus.Bus {
	var proxy *mqttbus.ProxyTriple
	if cfg.Proxy != nil {
		proxy = &mqttbus.ProxyTriple{Host: cfg.Proxy.Host, Port: cfg.Proxy.Port, UserID: cfg.Proxy.UserID}
	}
	return mqttbus.New(cfg.BusHost, cfg.BusPort, proxy)
}

// dumpOptions implements --options: the residual, non-flag CLI arguments are
// treated as a partial command line, tokenized exactly as the interactive
// completer would tokenize a readline buffer, and the resulting candidates
// are printed space-separated and shell-quoted on a single line
// (original_source/py/unicorn/shell.py's "--options" branch joins and quotes
// the accumulated command line, appends a trailing space to mark a new empty
// word, and prints lang.complete(toks) the same way).
func dumpOptions(sh *shell.Shell, args []string) {
	buffer := shellquote.Join(args...) + " "
	candidates := sh.Completer(buffer, len(buffer))
	fmt.Println(shellquote.Join(candidates...))
}

// runNonInteractive implements the non-interactive single-command path: the
// residual CLI arguments are joined into one shell-quoted command line,
// decoded against the (cache-seeded) registry, and published through a
// transient bus connection that connects, publishes once, and disconnects,
// without ever starting readline or the event loop (mirrors
// original_source/py/unicorn/shell.py's fNonInteractive branch, which calls
// process_command(None, ...)).
func runNonInteractive(sh *shell.Shell, dial func() (bus.Bus, error), args []string) error {
	line := shellquote.Join(args...)
	d, ok := sh.Decode(line)
	if !ok {
		return nil
	}

	return bus.DialOnce(context.Background(), dial, d.Topic, []byte(d.Payload))
}

func dumpDMenuTree(sh *shell.Shell, host string) {
	reg := sh.Registry()
	fmt.Print(shellio.DMenuTree(reg.Trie, reg.Composite, host))
}

func startIntrospect(sh *shell.Shell, store *audit.Store, addr, tokenHash string) {
	if tokenHash == "" {
		fmt.Fprintln(os.Stderr, "ERROR: --introspect requires --introspect-token-hash")
		return
	}
	srv := introspect.New(sh, store, tokenHash, []byte(tokenHash))
	go func() {
		if err := http.ListenAndServe(addr, srv); err != nil {
			fmt.Fprintf(os.Stderr, "introspection server stopped: %s\n", err.Error())
		}
	}()
}

func runInteractive(sh *shell.Shell, reader shellio.LineReader) error {
	sh.AttachBus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sh.Run(ctx)

	for {
		line, err := reader.ReadLine()
		if err != nil {
			sh.PushTerminate()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.PushInput(line)
	}
}

type stdLogger struct{}

func (stdLogger) Logf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
