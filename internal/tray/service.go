// Package tray runs the daemon-side status tracker: it mirrors the
// controller's phase into the icon-state file the tray frontend renders,
// taking pushed status messages when the bus is up and reconciling against
// the session marker otherwise.
package tray

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/fluesterlabs/fluestern/internal/bus"
	"github.com/fluesterlabs/fluestern/internal/config"
	"github.com/fluesterlabs/fluestern/internal/protocol"
	"github.com/fluesterlabs/fluestern/internal/session"
	"github.com/fluesterlabs/fluestern/internal/status"
	"github.com/mattn/go-shellwords"
	"github.com/nats-io/nats.go"
)

type Service struct {
	cfg       config.TrayConfig
	ctrl      config.ControllerConfig
	bus       *bus.Client
	logger    *slog.Logger
	sessions  *session.Store
	subStatus *nats.Subscription
	subToggle *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.RWMutex
	current protocol.Status

	// runToggle is swapped out in tests; the default invokes the
	// configured controller command.
	runToggle func(ctx context.Context) error
}

func NewService(parent context.Context, cfg config.Config, busClient *bus.Client, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		cfg:      cfg.Tray,
		ctrl:     cfg.Controller,
		bus:      busClient,
		logger:   logger.With(slog.String("component", "tray")),
		sessions: session.NewStore(cfg.Controller.SessionMarker),
		ctx:      ctx,
		cancel:   cancel,
		current:  protocol.Status{State: protocol.StateIdle, Timestamp: time.Now().UTC()},
	}
	s.runToggle = s.execToggle
	return s
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.bus != nil && s.bus.Healthy() {
		sub, err := s.bus.Conn().Subscribe(protocol.SubjectStatus, s.handleStatus)
		if err != nil {
			return err
		}
		s.subStatus = sub

		subToggle, err := s.bus.Conn().Subscribe(protocol.SubjectToggle, s.handleToggle)
		if err != nil {
			s.subStatus.Drain()
			return err
		}
		s.subToggle = subToggle
	}

	s.wg.Add(1)
	go s.pollLoop()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.subStatus != nil {
		_ = s.subStatus.Drain()
	}
	if s.subToggle != nil {
		_ = s.subToggle.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ctx.Err() == nil
}

// Snapshot returns the last observed controller status.
func (s *Service) Snapshot() protocol.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) handleStatus(msg *nats.Msg) {
	var st protocol.Status
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		s.logger.Warn("failed to decode status message", slogError(err))
		return
	}
	s.apply(st)
}

// handleToggle forwards a bus-originated toggle request to the controller
// binary. The controller owns all session logic; the daemon only triggers it.
func (s *Service) handleToggle(msg *nats.Msg) {
	var req protocol.Toggle
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode toggle request", slogError(err))
		return
	}
	s.logger.Info("forwarding toggle request", slog.String("source", req.Source))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runToggle(s.ctx); err != nil {
			s.logger.Warn("toggle command failed", slogError(err))
		}
	}()
}

func (s *Service) execToggle(ctx context.Context) error {
	parser := shellwords.NewParser()
	args, err := parser.Parse(s.cfg.ToggleCommand)
	if err != nil || len(args) == 0 {
		s.logger.Warn("unusable toggle command", slog.String("command", s.cfg.ToggleCommand))
		return err
	}
	return exec.CommandContext(ctx, args[0], args[1:]...).Run()
}

// pollLoop reconciles the displayed state against the session marker and
// icon-state file. Push via the bus is faster, but the poll keeps the tray
// correct when the controller could not reach the bus.
func (s *Service) pollLoop() {
	defer s.wg.Done()
	interval := time.Duration(s.cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.reconcile()
		}
	}
}

func (s *Service) reconcile() {
	state := status.ReadIconState(s.ctrl.IconState)

	// The marker is authoritative for "recording": a crashed controller
	// leaves a stale icon-state file but no live session.
	sess, err := s.sessions.Current()
	if err == nil && sess == nil && state == protocol.StateRecording {
		state = protocol.StateIdle
	}
	if err == nil && sess != nil && state == protocol.StateIdle {
		state = protocol.StateRecording
	}

	s.mu.RLock()
	unchanged := s.current.State == state
	s.mu.RUnlock()
	if unchanged {
		return
	}
	s.apply(protocol.Status{State: state, Timestamp: time.Now().UTC()})
}

func (s *Service) apply(st protocol.Status) {
	s.mu.Lock()
	changed := s.current.State != st.State
	s.current = st
	s.mu.Unlock()

	if !changed {
		return
	}
	if err := status.WriteIconState(s.ctrl.IconState, st.State); err != nil {
		s.logger.Warn("failed to write icon state", slogError(err))
	}
	s.logger.Debug("state changed", slog.String("state", string(st.State)))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
