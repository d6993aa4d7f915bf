// Package console is the line-oriented user interface of the monitor.
//
// Each input line is one command. Commands map onto registry, subscription,
// polling and snapshot operations; failures are shown as "! message" notices
// and never stop the loop.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/model"
	"github.com/rickgao/quantpulse-monitor/internal/poller"
	"github.com/rickgao/quantpulse-monitor/internal/registry"
	"github.com/rickgao/quantpulse-monitor/internal/render"
	"github.com/rickgao/quantpulse-monitor/internal/snapshot"
	"github.com/rickgao/quantpulse-monitor/internal/subscription"
)

// Selector is the polling controller surface used by the console.
type Selector interface {
	Select(symbol string) error
	Deselect() error
	Watched() (string, bool)
	State() poller.State
	Generation() uint64
	Latest() (model.RenderSnapshot, bool)
	Stats() poller.Stats
}

// Deps are the components a Console drives.
type Deps struct {
	Registry     *registry.Registry
	Subscription *subscription.Client
	Poller       Selector
	Snapshots    *snapshot.Service
	Renderer     *render.Renderer
}

type usageError string

func (e usageError) Error() string {
	return "usage: " + string(e)
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// Console executes user commands.
type Console struct {
	deps     Deps
	logger   *slog.Logger
	commands map[string]command
	order    []string
}

// New creates a Console.
func New(deps Deps, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		deps:     deps,
		logger:   logger,
		commands: make(map[string]command),
	}

	c.register("add", "add SYMBOL PRICE QTY", "add an instrument to the registry", c.add)
	c.register("list", "list", "show registered instruments", c.list)
	c.register("load", "load", "register all instruments with the backend", c.load)
	c.register("loaded", "loaded", "show instruments the backend has loaded", c.loaded)
	c.register("subscribe", "subscribe SYM[,SYM...] MODE [CSV_FILE]", "start feeds (modes: simulation, csv)", c.subscribe)
	c.register("unsubscribe", "unsubscribe SYMBOL", "stop the feed for a symbol", c.unsubscribe)
	c.register("select", "select SYMBOL", "watch a symbol", c.selectSymbol)
	c.register("deselect", "deselect", "stop watching", c.deselect)
	c.register("snapshot", "snapshot [EPOCH_SECONDS]", "point-in-time data for the watched symbol", c.snapshot)
	c.register("status", "status", "show polling state", c.status)
	c.register("help", "help", "show this list", c.help)
	return c
}

func (c *Console) register(name, usage, help string, run func(context.Context, []string) error) {
	c.commands[name] = command{usage: usage, help: help, run: run}
	c.order = append(c.order, name)
}

// Run reads commands from in until quit, EOF or ctx is cancelled.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if c.Execute(ctx, line) {
				return nil
			}
		}
	}
}

// Execute runs one command line. It reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	if name == "quit" || name == "exit" {
		return true
	}

	cmd, ok := c.commands[name]
	if !ok {
		c.deps.Renderer.Notice(fmt.Sprintf("unknown command %q, try help", fields[0]))
		return false
	}

	if err := cmd.run(ctx, fields[1:]); err != nil {
		c.logger.Debug("command failed", "command", name, "error", err)
		c.deps.Renderer.Notice(noticeText(err))
	}
	c.drainChanges()
	return false
}

// drainChanges refreshes the symbol selector after registry additions.
func (c *Console) drainChanges() {
	var changed bool
	for drained := false; !drained; {
		select {
		case <-c.deps.Registry.Changes():
			changed = true
		default:
			drained = true
		}
	}
	if changed {
		c.deps.Renderer.Printf("symbols: %s", strings.Join(c.deps.Registry.Symbols(), ", "))
	}
}

func (c *Console) add(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usageError(c.commands["add"].usage)
	}
	inst, err := registry.Parse(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if inst, err = c.deps.Registry.Add(inst); err != nil {
		return err
	}
	c.deps.Renderer.Printf("added %s entry %s qty %d", inst.Symbol, render.Price(inst.EntryPrice), inst.Quantity)
	return nil
}

func (c *Console) list(ctx context.Context, args []string) error {
	instruments := c.deps.Registry.List()
	if len(instruments) == 0 {
		c.deps.Renderer.Printf("no instruments")
		return nil
	}
	for i, inst := range instruments {
		c.deps.Renderer.Printf("%d. %s entry %s qty %d", i+1, inst.Symbol, render.Price(inst.EntryPrice), inst.Quantity)
	}
	return nil
}

func (c *Console) load(ctx context.Context, args []string) error {
	symbols, err := c.deps.Subscription.RegisterInstruments(ctx, c.deps.Registry.List())
	if err != nil {
		return err
	}
	c.deps.Renderer.Printf("loaded: %s", strings.Join(symbols, ", "))
	return nil
}

func (c *Console) loaded(ctx context.Context, args []string) error {
	instruments, err := c.deps.Subscription.Loaded(ctx)
	if err != nil {
		return err
	}
	if len(instruments) == 0 {
		c.deps.Renderer.Printf("backend has no instruments")
		return nil
	}
	symbols := make([]string, 0, len(instruments))
	for s := range instruments {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		inst := instruments[s]
		c.deps.Renderer.Printf("%s entry %s qty %d", s, render.Price(inst.EntryPrice), inst.Quantity)
	}
	return nil
}

func (c *Console) subscribe(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usageError(c.commands["subscribe"].usage)
	}
	var csvFile string
	if len(args) == 3 {
		csvFile = args[2]
	}

	results, err := c.deps.Subscription.Subscribe(ctx, subscription.ParseSymbols(args[0]), subscription.Mode(args[1]), csvFile)
	if err != nil {
		return err
	}
	for _, r := range results {
		line := r.Symbol + " " + r.Status
		if r.Mode != "" {
			line += " (" + r.Mode + ")"
		}
		if r.Message != "" {
			line += ": " + r.Message
		}
		c.deps.Renderer.Printf("%s", line)
	}
	return nil
}

func (c *Console) unsubscribe(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError(c.commands["unsubscribe"].usage)
	}
	msg, err := c.deps.Subscription.Unsubscribe(ctx, args[0])
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "unsubscribed " + args[0]
	}
	c.deps.Renderer.Printf("%s", msg)
	return nil
}

func (c *Console) selectSymbol(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError(c.commands["select"].usage)
	}
	symbol := args[0]
	if !c.deps.Registry.Contains(symbol) {
		return fmt.Errorf("%s is not registered, add it first", symbol)
	}
	if err := c.deps.Poller.Select(symbol); err != nil {
		return err
	}
	c.deps.Renderer.Printf("watching %s", symbol)
	return nil
}

func (c *Console) deselect(ctx context.Context, args []string) error {
	if err := c.deps.Poller.Deselect(); err != nil {
		return err
	}
	c.deps.Renderer.Printf("idle")
	return nil
}

func (c *Console) snapshot(ctx context.Context, args []string) error {
	var at time.Time
	switch len(args) {
	case 0:
	case 1:
		sec, err := strconv.ParseFloat(args[0], 64)
		if err != nil || sec <= 0 {
			return fmt.Errorf("invalid timestamp %q: want epoch seconds", args[0])
		}
		at = model.EpochToTime(sec)
	default:
		return usageError(c.commands["snapshot"].usage)
	}

	snap, err := c.deps.Snapshots.Fetch(ctx, at)
	if err != nil {
		return err
	}
	c.deps.Renderer.Point(snap)
	return nil
}

func (c *Console) status(ctx context.Context, args []string) error {
	p := c.deps.Poller
	stats := p.Stats()

	state := p.State().String()
	if symbol, ok := p.Watched(); ok {
		state += " " + symbol
	}
	c.deps.Renderer.Printf("state %s  generation %d  instruments %d", state, p.Generation(), c.deps.Registry.Len())
	c.deps.Renderer.Printf("ticks %d  published %d  failed %d  discarded %d",
		stats.Ticks, stats.Published, stats.Failed, stats.Discarded)

	if latest, ok := p.Latest(); ok {
		c.deps.Renderer.HandleSnapshot(latest)
	}
	return nil
}

func (c *Console) help(ctx context.Context, args []string) error {
	for _, name := range c.order {
		cmd := c.commands[name]
		c.deps.Renderer.Printf("  %-40s %s", cmd.usage, cmd.help)
	}
	c.deps.Renderer.Printf("  %-40s %s", "quit", "exit the monitor")
	return nil
}

// noticeText turns an operation error into a user-facing message.
func noticeText(err error) string {
	var (
		verr *registry.ValidationError
		serr *api.ServerError
		nerr *api.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, subscription.ErrEmptyInput):
		return "nothing to send: add instruments or symbols first"
	case errors.Is(err, subscription.ErrInvalidMode):
		return fmt.Sprintf("%v (modes: simulation, csv)", err)
	case errors.Is(err, snapshot.ErrNoSelection):
		return "select a symbol first"
	case errors.As(err, &nerr):
		return "backend unreachable: " + nerr.Err.Error()
	case errors.As(err, &serr):
		return serr.Error()
	}
	return err.Error()
}
