package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mrd-project/mrd/pkg/coordinator"
)

// Console is the coordinator's interactive operator shell. It reads
// commands from a readline.Instance and reports on a running Listener's
// job; it never mutates job state, since task.Manager exposes none of
// that to outside callers beyond what workers report over the wire.
type Console struct {
	listener *coordinator.Listener
	rl       *readline.Instance
	out      io.Writer
}

// New builds a Console that reports on listener's job. Quitting the
// console (the "quit" command, or EOF/Ctrl-D) does not stop the job;
// it only closes the shell.
func New(listener *coordinator.Listener) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mrd> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	return &Console{listener: listener, rl: rl, out: rl.Stdout()}, nil
}

// newForTest builds a Console around an explicit writer and no terminal,
// exercising only the reporting commands (not the readline loop itself).
func newForTest(listener *coordinator.Listener, out io.Writer) *Console {
	return &Console{listener: listener, out: out}
}

// Close releases the underlying terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}

// Run drives the command loop until "quit" or EOF. An interrupt (Ctrl-C)
// discards the current line and the loop continues.
func (c *Console) Run() error {
	fmt.Fprintln(c.out, "mrd coordinator console. Type 'help' for commands.")

	for {
		line, err := c.rl.Readline()
		switch err {
		case nil:
		case readline.ErrInterrupt:
			continue
		case io.EOF:
			return nil
		default:
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "status":
			c.cmdStatus()
		case "address", "addr":
			fmt.Fprintln(c.out, c.listener.Addr().String())
		case "progress":
			c.cmdProgress(args)
		case "quit", "exit", "q":
			return nil
		default:
			fmt.Fprintf(c.out, "unknown command %q (type 'help')\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  status            show job phase and map/reduce progress
  progress [map|reduce]
                    show detailed counts for one phase
  address           show the coordinator's bound address
  help              show this message
  quit              close the console (the job keeps running)
`)
}

func (c *Console) cmdStatus() {
	s := c.listener.Manager().Status()
	fmt.Fprintf(c.out, "phase: %s\n", s.Phase)
	fmt.Fprintf(c.out, "map:    %d/%d done, %d outstanding\n", s.MapDone, s.MapTotal, s.MapOutstanding)
	fmt.Fprintf(c.out, "reduce: %d/%d done, %d outstanding\n", s.ReduceDone, s.ReduceTotal, s.ReduceOutstanding)

	select {
	case <-c.listener.Manager().Done():
		fmt.Fprintln(c.out, "job finished")
	default:
	}
}

func (c *Console) cmdProgress(args []string) {
	s := c.listener.Manager().Status()
	which := "map"
	if len(args) > 0 {
		which = strings.ToLower(args[0])
	}

	switch which {
	case "map":
		printBar(c.out, "map", s.MapDone, s.MapTotal)
	case "reduce":
		printBar(c.out, "reduce", s.ReduceDone, s.ReduceTotal)
	default:
		fmt.Fprintf(c.out, "unknown phase %q (want map or reduce)\n", which)
	}
}

func printBar(out io.Writer, label string, done, total int) {
	if total == 0 {
		fmt.Fprintf(out, "%s: no tasks\n", label)
		return
	}
	pct := done * 100 / total
	const width = 30
	filled := pct * width / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	fmt.Fprintf(out, "%-6s [%s] %3d%% (%d/%d)\n", label, bar, pct, done, total)
}
