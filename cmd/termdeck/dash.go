package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/pslog"
	"pkt.systems/termdeck"
	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/internal/appconfig"
	"pkt.systems/termdeck/internal/eventbus"
	"pkt.systems/termdeck/internal/token"
	"pkt.systems/termdeck/internal/uistate"
	"pkt.systems/termdeck/internal/vtsurface"
	"pkt.systems/termdeck/internal/wsconn"
	"pkt.systems/termdeck/schema"
)

// Key bindings: Ctrl-Q detaches, Ctrl-B prefixes a deck command.
const (
	keyQuit   = 0x11 // Ctrl-Q
	keyPrefix = 0x02 // Ctrl-B
)

func newDashCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Attach the terminal deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			return runDash(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func runDash(ctx context.Context, cfg appconfig.Config) error {
	logger := pslog.Ctx(ctx)

	terminalToken, err := token.Resolve(token.Source{
		Value: cfg.Terminal.Token,
		File:  cfg.Terminal.TokenFile,
	})
	if err != nil {
		return err
	}
	apiKey, err := token.Resolve(token.Source{Env: cfg.Turn.APIKeyEnv})
	if err != nil {
		return err
	}

	stdinFD := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFD) {
		return fmt.Errorf("dash requires an interactive terminal")
	}
	cols, rows, err := term.GetSize(stdinFD)
	if err != nil {
		return fmt.Errorf("terminal size: %w", err)
	}

	surfaces, err := vtsurface.NewFactory(vtsurface.FactoryConfig{
		Output:  os.Stdout,
		Initial: schema.Geometry{Cols: cols, Rows: rows},
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	store, err := uistate.NewStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return err
	}

	deck, err := termdeck.New(termdeck.DeckConfig{
		Service:      cfg.ServiceConfig(),
		Turn:         cfg.TurnServiceConfig(),
		DefaultModel: schema.ModelID(cfg.Models.Default),
	}, termdeck.DeckDeps{
		ServiceDeps: core.ServiceDeps{
			Dialer:   wsconn.NewDialer(wsconn.DialerConfig{Token: terminalToken, Logger: logger}),
			Surfaces: surfaces,
			Logger:   logger,
		},
		Store: store,
	})
	if err != nil {
		return err
	}

	oldState, err := term.MakeRaw(stdinFD)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer func() { _ = term.Restore(stdinFD, oldState) }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := deck.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = deck.Stop(stopCtx)
	}()

	go watchWinch(ctx, deck, surfaces, stdinFD)
	go renderTurns(ctx, deck)

	dash := &dashLoop{
		deck:     deck,
		surfaces: surfaces,
		apiKey:   apiKey,
		baseURL:  cfg.Turn.BaseURL,
		logger:   logger,
		stdinFD:  stdinFD,
		oldState: oldState,
	}
	return dash.run(ctx)
}

type dashLoop struct {
	deck     termdeck.Deck
	surfaces *vtsurface.Factory
	apiKey   string
	baseURL  string
	logger   pslog.Logger
	stdinFD  int
	oldState *term.State
	prefixed bool
	input    chan []byte
}

func (d *dashLoop) run(ctx context.Context) error {
	// The goroutine below is the only reader of stdin; promptChat consumes
	// from the same channel rather than opening a second reader on fd 0.
	input := make(chan []byte, 64)
	d.input = input
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case input <- data:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				close(input)
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-input:
			if !ok {
				return nil
			}
			if done := d.handle(ctx, data); done {
				return nil
			}
		}
	}
}

// handle consumes one stdin chunk. Returns true when the deck should detach.
func (d *dashLoop) handle(ctx context.Context, data []byte) bool {
	for len(data) > 0 {
		if d.prefixed {
			d.prefixed = false
			d.command(ctx, data[0])
			data = data[1:]
			continue
		}
		switch data[0] {
		case keyQuit:
			return true
		case keyPrefix:
			d.prefixed = true
			data = data[1:]
		default:
			next := nextControlByte(data)
			d.surfaces.RouteInput(data[:next])
			data = data[next:]
		}
	}
	return false
}

func (d *dashLoop) command(ctx context.Context, key byte) {
	service := d.deck.Service()
	switch key {
	case 'c':
		if _, err := service.OpenSession(ctx, schema.OpenSessionRequest{
			Scope:    schema.ScopeInteractive,
			Activate: true,
		}); err != nil {
			d.logger.Warn("dash open session failed", "err", err)
		}
	case 'n':
		d.activateNext(ctx)
	case 'x':
		d.closeActive(ctx)
	case '1', '2', '3', '4':
		modes := map[byte]schema.LayoutMode{
			'1': schema.LayoutSingle,
			'2': schema.LayoutVSplit,
			'3': schema.LayoutHSplit,
			'4': schema.LayoutQuad,
		}
		if _, err := service.SetLayout(ctx, schema.SetLayoutRequest{Mode: modes[key]}); err != nil {
			d.logger.Warn("dash layout change failed", "err", err)
		}
	case 'a':
		d.toggleAgent(ctx)
	case 'm':
		d.promptChat(ctx)
	case 'r':
		d.deck.ResetThreads()
	case keyPrefix:
		// Double prefix passes the literal byte through.
		d.surfaces.RouteInput([]byte{keyPrefix})
	default:
		d.logger.Debug("dash unbound key", "key", fmt.Sprintf("%#x", key))
	}
}

func (d *dashLoop) activateNext(ctx context.Context) {
	listing, err := d.deck.Service().ListSessions(ctx, schema.ListSessionsRequest{Scope: schema.ScopeInteractive})
	if err != nil || len(listing.Sessions) == 0 {
		return
	}
	idx := 0
	for i, session := range listing.Sessions {
		if session.ID == listing.ActiveInteractive {
			idx = (i + 1) % len(listing.Sessions)
			break
		}
	}
	target := listing.Sessions[idx].ID
	if _, err := d.deck.Service().ActivateSession(ctx, schema.ActivateSessionRequest{SessionID: target}); err != nil {
		d.logger.Warn("dash activate failed", "err", err)
	}
}

func (d *dashLoop) closeActive(ctx context.Context) {
	listing, err := d.deck.Service().ListSessions(ctx, schema.ListSessionsRequest{Scope: schema.ScopeInteractive})
	if err != nil || listing.ActiveInteractive == "" {
		return
	}
	if _, err := d.deck.Service().CloseSession(ctx, schema.CloseSessionRequest{SessionID: listing.ActiveInteractive}); err != nil {
		d.logger.Warn("dash close failed", "err", err)
	}
}

func (d *dashLoop) toggleAgent(ctx context.Context) {
	listing, err := d.deck.Service().ListSessions(ctx, schema.ListSessionsRequest{})
	if err != nil {
		return
	}
	if _, err := d.deck.Service().SetAgentCollapsed(ctx, schema.SetAgentCollapsedRequest{
		Collapsed: !listing.Layout.AgentCollapsed,
	}); err != nil {
		d.logger.Warn("dash agent toggle failed", "err", err)
	}
}

// promptChat drops to cooked mode for one line of chat input.
func (d *dashLoop) promptChat(ctx context.Context) {
	_ = term.Restore(d.stdinFD, d.oldState)
	defer func() {
		if state, err := term.MakeRaw(d.stdinFD); err == nil {
			d.oldState = state
		}
	}()

	fmt.Fprint(os.Stdout, "\r\nchat> ")
	line, ok := readLine(ctx, d.input)
	if !ok {
		return
	}
	message := strings.TrimSpace(line)
	if message == "" {
		return
	}
	if err := d.deck.SubmitChat(ctx, schema.TurnRequest{
		Message: message,
		APIKey:  d.apiKey,
		BaseURL: d.baseURL,
	}); err != nil {
		d.logger.Warn("dash chat submit failed", "err", err)
	}
}

// readLine assembles stdin chunks from the reader goroutine's channel into
// one line. Bytes after the newline in the final chunk are discarded.
func readLine(ctx context.Context, input <-chan []byte) (string, bool) {
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return "", false
		case data, ok := <-input:
			if !ok {
				return "", false
			}
			buf = append(buf, data...)
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				return string(buf[:i]), true
			}
		}
	}
}

// nextControlByte returns the length of the leading run that contains no
// deck key bindings.
func nextControlByte(data []byte) int {
	for i, b := range data {
		if b == keyQuit || b == keyPrefix {
			return i
		}
	}
	return len(data)
}

// watchWinch refits every session when the host terminal resizes.
func watchWinch(ctx context.Context, deck termdeck.Deck, surfaces *vtsurface.Factory, fd int) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-winch:
			cols, rows, err := term.GetSize(fd)
			if err != nil {
				continue
			}
			listing, err := deck.Service().ListSessions(ctx, schema.ListSessionsRequest{})
			if err != nil {
				continue
			}
			for _, session := range listing.Sessions {
				surfaces.SetSize(session.ID, schema.Geometry{Cols: cols, Rows: rows})
				_, _ = deck.Service().ResizeSession(ctx, schema.ResizeSessionRequest{SessionID: session.ID})
			}
		}
	}
}

// renderTurns prints chat and agent turn results as out-of-band lines.
func renderTurns(ctx context.Context, deck termdeck.Deck) {
	events, cancel := deck.Events().Subscribe()
	defer cancel()
	printed := make(map[string]int)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type != eventbus.EventTurn {
				continue
			}
			snap := event.Turn
			// Progress is a bounded window; ProgressTotal keeps counting
			// past evictions, so index from the tail.
			start := len(snap.Progress) - (snap.ProgressTotal - printed[event.Source])
			if start < 0 {
				start = 0
			}
			for i := start; i < len(snap.Progress); i++ {
				fmt.Fprintf(os.Stdout, "\r\n[%s] %s", event.Source, snap.Progress[i])
			}
			printed[event.Source] = snap.ProgressTotal
			if snap.Status.Terminal() {
				printed[event.Source] = 0
				if snap.Answer != "" {
					fmt.Fprintf(os.Stdout, "\r\n[%s] %s\r\n", event.Source, snap.Answer)
				}
				if snap.Err != "" {
					fmt.Fprintf(os.Stdout, "\r\n[%s] error: %s\r\n", event.Source, snap.Err)
				}
			}
		}
	}
}
