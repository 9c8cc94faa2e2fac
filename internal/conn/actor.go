// Package conn implements the per-source connection actor: a single
// goroutine owning one transport connection's lifecycle (connect, auth,
// heartbeat, reconnect with backoff, clean shutdown). Transport callbacks
// and external operations are funneled through channels into the actor
// loop, so concurrent signals for the same actor serialize by construction.
package conn

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mirador/newswire/internal/backoff"
	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateReconnectPending:
		return "reconnect_pending"
	default:
		return "unknown"
	}
}

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultConnectTimeout    = 15 * time.Second
	DefaultDisconnectTimeout = 1 * time.Second
)

// Config is the per-source connection configuration. It is copy-on-write:
// an in-flight connection never observes a partial update, only an old value
// followed by a full reconnect cycle with the new one.
type Config struct {
	URL   string
	Token string
}

// ActorConfig holds the dependencies and tunables for one actor.
type ActorConfig struct {
	Source feedv1.SourceSystem
	Dialer Dialer
	Logger *slog.Logger

	Backoff           backoff.Policy
	HeartbeatInterval time.Duration
	ConnectTimeout    time.Duration
	DisconnectTimeout time.Duration

	// OnMessage receives every inbound frame that is not a heartbeat reply.
	// Called on the actor loop, so invocations are strictly sequential.
	OnMessage func(raw []byte)

	// OnUp fires after each successful open. reconnected reports prior
	// connectivity, i.e. there may be a gap to backfill.
	OnUp func(reconnected bool)
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdEnsure
	cmdSetConfig
	cmdCleanup
)

type command struct {
	kind cmdKind
	cfg  Config
	done chan struct{}
}

type evKind int

const (
	evOpened evKind = iota
	evMessage
	evClosed
)

type transportEvent struct {
	kind      evKind
	gen       uint64
	transport Transport
	data      []byte
	err       error
}

type Actor struct {
	cfg    ActorConfig
	logger *slog.Logger

	cmds   chan command
	events chan transportEvent
	done   chan struct{}

	state   atomic.Int32
	cleaned atomic.Bool

	// Everything below is owned by the run loop.
	conn              Config
	configDirty       bool
	gen               uint64
	transport         Transport
	attempts          int
	wasConnected      bool
	cleanDisconnect   bool
	disconnectWaiters []chan struct{}
	heartbeat         *time.Ticker
	reconnectTimer    *time.Timer
	guardTimer        *time.Timer
	closeTimer        *time.Timer
}

func NewActor(cfg ActorConfig) *Actor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if cfg.Backoff == (backoff.Policy{}) {
		cfg.Backoff = backoff.DefaultReconnect()
	}

	a := &Actor{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "conn-actor", "source", cfg.Source.String()),
		cmds:   make(chan command, 16),
		events: make(chan transportEvent, 256),
		done:   make(chan struct{}),
	}

	go a.run()
	return a
}

// State returns the current lifecycle state.
func (a *Actor) State() State {
	return State(a.state.Load())
}

// Connected reports whether the actor currently holds an open transport.
func (a *Actor) Connected() bool {
	return a.State() == StateConnected
}

// SetConfig replaces the connection configuration. A change triggers a full
// disconnect/reconnect cycle, never a live renegotiation.
func (a *Actor) SetConfig(cfg Config) {
	a.send(command{kind: cmdSetConfig, cfg: cfg})
}

// Connect opens the transport. No-op if already connecting or connected with
// no pending config change.
func (a *Actor) Connect() {
	a.send(command{kind: cmdConnect})
}

// EnsureConnected is the idempotent external wake: reconnect if down,
// otherwise ping and signal a gap check. Safe to call redundantly from
// multiple triggers without double-connecting.
func (a *Actor) EnsureConnected() {
	a.send(command{kind: cmdEnsure})
}

// Disconnect closes the transport cleanly, suppressing automatic reconnect
// for this one cycle. It returns once the close handshake completes or the
// fallback timeout elapses, leaving the actor Disconnected with no pending
// reconnect timer.
func (a *Actor) Disconnect(ctx context.Context) error {
	done := make(chan struct{})
	if !a.send(command{kind: cmdDisconnect, done: done}) {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup terminally shuts the actor down: transport closed, timers
// cancelled, no further callbacks. Idempotent; any later operation on the
// actor is a no-op with a logged warning.
func (a *Actor) Cleanup() {
	if a.cleaned.Swap(true) {
		return
	}
	a.post(command{kind: cmdCleanup})
}

func (a *Actor) send(cmd command) bool {
	if a.cleaned.Load() {
		a.logger.Warn("operation on cleaned-up actor ignored")
		return false
	}
	return a.post(cmd)
}

func (a *Actor) post(cmd command) bool {
	select {
	case a.cmds <- cmd:
		return true
	case <-a.done:
		return false
	}
}

func (a *Actor) deliver(ev transportEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (a *Actor) run() {
	for {
		select {
		case cmd := <-a.cmds:
			a.handleCommand(cmd)
		case ev := <-a.events:
			a.handleTransportEvent(ev)
		case <-tickerC(a.heartbeat):
			a.sendHeartbeat()
		case <-timerC(a.reconnectTimer):
			a.reconnectTimer = nil
			a.openTransport()
		case <-timerC(a.guardTimer):
			a.guardTimer = nil
			a.onConnectTimeout()
		case <-timerC(a.closeTimer):
			a.closeTimer = nil
			a.logger.Warn("close handshake timed out, forcing disconnect")
			a.finishDisconnect()
		case <-a.done:
			return
		}
	}
}

func (a *Actor) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdSetConfig:
		changed := cmd.cfg != a.conn
		a.conn = cmd.cfg
		if !changed {
			return
		}
		a.configDirty = true
		if a.State() != StateDisconnected {
			a.logger.Info("config changed, cycling connection")
			a.teardown()
			a.openTransport()
		}

	case cmdConnect:
		st := a.State()
		if (st == StateConnecting || st == StateConnected) && !a.configDirty {
			return
		}
		a.teardown()
		a.openTransport()

	case cmdEnsure:
		switch a.State() {
		case StateConnected:
			if err := a.transport.WriteText("ping"); err != nil {
				a.logger.Warn("wake ping failed", "error", err)
				a.abnormalClose(err)
				return
			}
			if a.cfg.OnUp != nil {
				go a.cfg.OnUp(true)
			}
		case StateConnecting:
			// Already on the way up.
		default:
			a.teardown()
			a.openTransport()
		}

	case cmdDisconnect:
		a.cleanDisconnect = true
		a.stopReconnect()
		if cmd.done != nil {
			a.disconnectWaiters = append(a.disconnectWaiters, cmd.done)
		}
		if a.transport == nil {
			a.finishDisconnect()
			return
		}
		a.setState(StateClosing)
		if err := a.transport.CloseGracefully(); err != nil {
			a.finishDisconnect()
			return
		}
		a.closeTimer = time.NewTimer(a.cfg.DisconnectTimeout)

	case cmdCleanup:
		a.teardown()
		a.setState(StateDisconnected)
		for _, done := range a.disconnectWaiters {
			close(done)
		}
		a.disconnectWaiters = nil
		a.logger.Info("actor cleaned up")
		close(a.done)
	}
}

func (a *Actor) handleTransportEvent(ev transportEvent) {
	if ev.gen != a.gen {
		// Stale event from a torn-down connection.
		if ev.kind == evOpened {
			ev.transport.Close()
		}
		return
	}

	switch ev.kind {
	case evOpened:
		if a.State() != StateConnecting {
			ev.transport.Close()
			return
		}
		a.stopGuard()
		a.transport = ev.transport
		a.setState(StateConnected)
		a.attempts = 0

		if a.conn.Token != "" {
			if err := a.transport.WriteText("login " + a.conn.Token); err != nil {
				a.logger.Warn("auth frame send failed", "error", err)
				a.abnormalClose(err)
				return
			}
		}

		a.heartbeat = time.NewTicker(a.cfg.HeartbeatInterval)
		go a.readLoop(ev.gen, ev.transport)

		reconnected := a.wasConnected
		a.wasConnected = true
		a.logger.Info("connected", "reconnected", reconnected)
		if a.cfg.OnUp != nil {
			go a.cfg.OnUp(reconnected)
		}

	case evMessage:
		if bytes.Equal(bytes.TrimSpace(ev.data), []byte("pong")) {
			a.logger.Debug("heartbeat ack")
			return
		}
		if a.cfg.OnMessage != nil {
			a.cfg.OnMessage(ev.data)
		}

	case evClosed:
		a.closeTransport()
		if a.cleanDisconnect {
			a.finishDisconnect()
			return
		}
		a.logger.Warn("connection lost", "error", ev.err)
		a.scheduleReconnect()
	}
}

func (a *Actor) openTransport() {
	if a.conn.URL == "" {
		a.setState(StateDisconnected)
		return
	}

	a.configDirty = false
	a.gen++
	gen := a.gen
	url := a.conn.URL

	a.setState(StateConnecting)
	a.guardTimer = time.NewTimer(a.cfg.ConnectTimeout)
	a.logger.Info("connecting", "url", url, "attempt", a.attempts+1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ConnectTimeout)
		defer cancel()

		t, err := a.cfg.Dialer.Dial(ctx, url)
		if err != nil {
			a.deliver(transportEvent{kind: evClosed, gen: gen, err: err})
			return
		}
		a.deliver(transportEvent{kind: evOpened, gen: gen, transport: t})
	}()
}

func (a *Actor) onConnectTimeout() {
	if a.State() != StateConnecting {
		return
	}
	a.logger.Warn("connect timed out")
	a.closeTransport()
	if a.cleanDisconnect {
		a.finishDisconnect()
		return
	}
	a.scheduleReconnect()
}

func (a *Actor) sendHeartbeat() {
	if a.State() != StateConnected || a.transport == nil {
		return
	}
	if err := a.transport.WriteText("ping"); err != nil {
		// A heartbeat send failure is an immediate abnormal close.
		a.logger.Warn("heartbeat send failed", "error", err)
		a.abnormalClose(err)
	}
}

func (a *Actor) abnormalClose(err error) {
	a.closeTransport()
	if a.cleanDisconnect {
		a.finishDisconnect()
		return
	}
	a.scheduleReconnect()
}

func (a *Actor) scheduleReconnect() {
	if a.conn.URL == "" {
		a.setState(StateDisconnected)
		return
	}
	a.attempts++
	delay := a.cfg.Backoff.Delay(a.attempts)
	a.setState(StateReconnectPending)
	a.logger.Info("reconnect scheduled", "attempt", a.attempts, "delay", delay)
	a.reconnectTimer = time.NewTimer(delay)
}

func (a *Actor) finishDisconnect() {
	a.stopCloseTimer()
	a.closeTransport()
	a.stopReconnect()
	a.stopGuard()
	a.cleanDisconnect = false // suppression lasts one cycle only
	a.setState(StateDisconnected)
	for _, done := range a.disconnectWaiters {
		close(done)
	}
	a.disconnectWaiters = nil
	a.logger.Info("disconnected")
}

func (a *Actor) teardown() {
	a.stopGuard()
	a.stopReconnect()
	a.stopCloseTimer()
	a.closeTransport()
}

func (a *Actor) closeTransport() {
	a.stopHeartbeat()
	if a.transport != nil {
		a.transport.Close()
		a.transport = nil
	}
	// Invalidate in-flight dials and read loops for the old connection.
	a.gen++
}

func (a *Actor) stopHeartbeat() {
	if a.heartbeat != nil {
		a.heartbeat.Stop()
		a.heartbeat = nil
	}
}

func (a *Actor) stopReconnect() {
	if a.reconnectTimer != nil {
		a.reconnectTimer.Stop()
		a.reconnectTimer = nil
	}
}

func (a *Actor) stopGuard() {
	if a.guardTimer != nil {
		a.guardTimer.Stop()
		a.guardTimer = nil
	}
}

func (a *Actor) stopCloseTimer() {
	if a.closeTimer != nil {
		a.closeTimer.Stop()
		a.closeTimer = nil
	}
}

func (a *Actor) setState(s State) {
	old := State(a.state.Swap(int32(s)))
	if old != s {
		a.logger.Debug("state transition", "from", old.String(), "to", s.String())
	}
}

func (a *Actor) readLoop(gen uint64, t Transport) {
	for {
		data, err := t.Read()
		if err != nil {
			a.deliver(transportEvent{kind: evClosed, gen: gen, err: err})
			return
		}
		a.deliver(transportEvent{kind: evMessage, gen: gen, data: data})
	}
}
