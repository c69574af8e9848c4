// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package jikong

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the connection state of a Client
type State int

// Connection states
const (
	StateDisconnected State = iota
	StateScanning
	StateConnecting
	StateBootstrapping
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateBootstrapping:
		return "bootstrapping"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Client drives one BMS connection at a time.
//
// All per-connection state (assembler, last known frames, pending requests,
// device identity, statistics) lives in a session created by Connect and
// discarded by Disconnect. Client is safe for concurrent use.
type Client struct {
	transport Transport
	address   string
	config    Config

	mu    sync.Mutex
	state State
	sess  *session
	last  Statistics
}

// session is the state of one connection
type session struct {
	id             string
	link           Link
	characteristic string
	log            *zap.Logger
	hook           func(*Frame, error)

	// mu serializes fragment handling
	mu        sync.Mutex
	assembler *Assembler
	pending   *PendingTable
	router    *Router
	stats     *recorder
	identity  DeviceIdentity
}

// New creates a Client for the device at address.
//
// Example:
//
//	client := jikong.New(ble.NewTransport(ble.Options{}), "C8:47:8C:F7:AD:B4",
//	    jikong.WithLogger(logger),
//	)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
func New(transport Transport, address string, opts ...Option) *Client {
	if transport == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		transport: transport,
		address:   address,
		config:    cfg,
	}
}

// Address returns the device address
func (c *Client) Address() string {
	return c.address
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Identity returns the device identity learned at connect
func (c *Client) Identity() (DeviceIdentity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.state != StateConnected {
		return DeviceIdentity{}, false
	}
	return c.sess.identity, true
}

// Statistics returns a snapshot of the current connection's statistics, or
// of the previous connection while disconnected.
func (c *Client) Statistics() Statistics {
	c.mu.Lock()
	s := c.sess
	last := c.last
	c.mu.Unlock()

	if s == nil {
		return last
	}
	return s.stats.snapshot()
}

// Connect discovers the device, connects with retry and runs the bootstrap
// queries. It returns once telemetry is streaming.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect: client is %s", state)
	}
	c.state = StateScanning
	c.mu.Unlock()

	link, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	id := uuid.NewString()
	s := &session{
		id:             id,
		link:           link,
		characteristic: c.config.Characteristic,
		log:            c.config.Logger.With(zap.String("address", c.address), zap.String("session", id)),
		hook:           c.config.FrameHook,
		assembler:      NewAssembler(),
		pending:        NewPendingTable(),
		stats:          newRecorder(),
	}
	s.router = NewRouter(s.pending)

	c.mu.Lock()
	c.sess = s
	c.state = StateBootstrapping
	c.mu.Unlock()

	identity, err := c.bootstrap(ctx, s)
	if err != nil {
		c.teardown(s)
		return fmt.Errorf("bootstrap: %w", err)
	}

	// A Disconnect racing the end of bootstrap owns the teardown
	c.mu.Lock()
	if c.sess != s || c.state != StateBootstrapping {
		c.mu.Unlock()
		return fmt.Errorf("bootstrap: %w", ErrDisconnected)
	}
	s.identity = identity
	c.state = StateConnected
	c.mu.Unlock()

	s.log.Info("connected", zap.Int("cells", identity.Cells), zap.Float64("capacity_ah", identity.Capacity))
	return nil
}

// dial runs discovery and connect attempts with backoff
func (c *Client) dial(ctx context.Context) (Link, error) {
	log := c.config.Logger.With(zap.String("address", c.address))
	retry := c.config.Retry

	for attempt := 1; ; attempt++ {
		link, err := c.attempt(ctx, log, attempt)
		if err == nil {
			return link, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("connect %s: %w", c.address, ctxErr)
		}

		if attempt >= retry.Attempts {
			log.Error("giving up", zap.Int("attempts", attempt), zap.Error(err))
			return nil, &ConnectionFailedError{Address: c.address, Attempts: attempt, Err: err}
		}

		delay := RetryDelay(retry, attempt)
		log.Info("retry after error", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if err := c.config.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("connect %s: %w", c.address, err)
		}
	}
}

// attempt discovers, then connects once. Discovery is refreshed on every
// attempt: some stacks abort connections to devices missing from a recent
// scan.
func (c *Client) attempt(ctx context.Context, log *zap.Logger, attempt int) (Link, error) {
	c.setState(StateScanning)
	found, err := c.transport.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: discover: %w", ErrTransport, err)
	}
	if !containsAddress(found, c.address) {
		return nil, fmt.Errorf("%w: device %s not discovered (%d devices seen)", ErrTransport, c.address, len(found))
	}

	c.setState(StateConnecting)
	log.Info("connect attempt", zap.Int("attempt", attempt))
	link, err := c.transport.Connect(ctx, c.address, c.config.ConnectTimeout)
	if err != nil {
		if link != nil {
			if derr := link.Disconnect(); derr != nil {
				log.Debug("disconnect after failed connect", zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("%w: connect: %w", ErrTransport, err)
	}
	return link, nil
}

func containsAddress(found []string, address string) bool {
	for _, a := range found {
		if strings.EqualFold(a, address) {
			return true
		}
	}
	return false
}

// bootstrap subscribes and runs the two queries that start the telemetry
// stream, then reads the device identity from the settings frame.
func (c *Client) bootstrap(ctx context.Context, s *session) (DeviceIdentity, error) {
	if err := s.link.Subscribe(s.characteristic, s.handleFragment); err != nil {
		return DeviceIdentity{}, fmt.Errorf("%w: subscribe: %w", ErrTransport, err)
	}

	timeout := c.config.QueryTimeout
	if _, err := s.query(ctx, OpcodeDeviceInfo, TagDeviceInfo, timeout); err != nil {
		return DeviceIdentity{}, fmt.Errorf("device info: %w", err)
	}
	if _, err := s.query(ctx, OpcodeCellInfo, TagCellInfo, timeout); err != nil {
		return DeviceIdentity{}, fmt.Errorf("device state: %w", err)
	}

	settings, err := s.latest(ctx, TagSettings, timeout)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("settings: %w", err)
	}
	return DecodeDeviceIdentity(settings)
}

// Disconnect unsubscribes, wakes every pending waiter with ErrDisconnected
// and releases the link. It is a no-op while disconnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.teardown(s)
}

func (c *Client) teardown(s *session) error {
	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnecting
	c.mu.Unlock()

	s.log.Info("disconnecting")

	var errs []error
	if err := s.link.Unsubscribe(s.characteristic); err != nil {
		errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
	}
	if n := s.pending.CancelAll(ErrDisconnected); n > 0 {
		s.log.Debug("cancelled pending requests", zap.Int("count", n))
	}
	if err := s.link.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}

	s.mu.Lock()
	s.assembler.Reset()
	s.router.Reset()
	s.mu.Unlock()

	c.mu.Lock()
	c.last = s.stats.snapshot()
	c.sess = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrTransport, errors.Join(errs...))
	}
	return nil
}

// active returns the current session during bootstrap or steady state
func (c *Client) active() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || (c.state != StateConnected && c.state != StateBootstrapping) {
		return nil, ErrDisconnected
	}
	return c.sess, nil
}

// connected returns the current session once bootstrap completed
func (c *Client) connected() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.state != StateConnected {
		return nil, ErrDisconnected
	}
	return c.sess, nil
}

// HandleFragment feeds a notification fragment to the current session.
// Transports created through Link.Subscribe do this themselves; this entry
// point serves push-style integrations. Fragments are dropped while
// disconnected.
func (c *Client) HandleFragment(fragment []byte) {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s != nil {
		s.handleFragment(fragment)
	}
}

// AwaitResponse waits for the next frame of tag
func (c *Client) AwaitResponse(ctx context.Context, tag byte, timeout time.Duration) (*Frame, error) {
	s, err := c.active()
	if err != nil {
		return nil, err
	}
	w, err := s.pending.Register(tag)
	if err != nil {
		return nil, err
	}
	return s.wait(ctx, w, timeout)
}

// Query writes a command with opcode and waits for the next frame of tag
func (c *Client) Query(ctx context.Context, opcode, tag byte, timeout time.Duration) (*Frame, error) {
	s, err := c.active()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, opcode, tag, timeout)
}

// Fetch decodes a telemetry sample. With wait it blocks for the next cell
// info frame; otherwise it decodes the last one received, failing with
// ErrNoDataYet if there is none.
//
// A *CapacityMismatchError is returned together with the decoded sample.
func (c *Client) Fetch(ctx context.Context, wait bool) (Sample, error) {
	s, err := c.connected()
	if err != nil {
		return Sample{}, err
	}

	var f *Frame
	if wait {
		w, err := s.pending.Register(TagCellInfo)
		if err != nil {
			return Sample{}, err
		}
		if f, err = s.wait(ctx, w, c.config.QueryTimeout); err != nil {
			return Sample{}, err
		}
	} else {
		var ok bool
		if f, ok = s.router.Last(TagCellInfo); !ok {
			return Sample{}, ErrNoDataYet
		}
	}

	sample, err := DecodeSample(f, s.identity)
	if errors.Is(err, ErrCapacityMismatch) {
		s.stats.error(err)
		s.log.Warn("telemetry integrity check failed", zap.Error(err))
	}
	return sample, err
}

// FetchCellVoltages decodes per-cell voltages from the last cell info frame
func (c *Client) FetchCellVoltages() ([]float64, error) {
	s, err := c.connected()
	if err != nil {
		return nil, err
	}
	f, ok := s.router.Last(TagCellInfo)
	if !ok {
		return nil, ErrNoDataYet
	}
	return DecodeCellVoltages(f, s.identity.Cells)
}

// LastFrame returns the last frame received for tag on the current connection
func (c *Client) LastFrame(tag byte) (*Frame, bool) {
	s, err := c.active()
	if err != nil {
		return nil, false
	}
	return s.router.Last(tag)
}

// handleFragment is the notification callback
func (s *session) handleFragment(fragment []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.fragment(len(fragment))
	frames, err := s.assembler.Feed(fragment)
	if err != nil {
		for _, e := range splitErrors(err) {
			s.stats.error(e)
			s.log.Warn("dropping frame", zap.Error(e))
			if s.hook != nil {
				s.hook(nil, e)
			}
		}
	}

	for _, f := range frames {
		s.stats.frame(f)
		if s.hook != nil {
			s.hook(f, nil)
		}
		woke := s.router.Route(f)
		s.log.Debug("frame", zap.String("type", FormatMessageType(f.Type())), zap.Int("len", f.Len()), zap.Bool("waiter", woke))
	}
}

func splitErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// query registers the waiter before writing so a fast response is not lost
func (s *session) query(ctx context.Context, opcode, tag byte, timeout time.Duration) (*Frame, error) {
	w, err := s.pending.Register(tag)
	if err != nil {
		return nil, err
	}

	frame := BuildCommand(opcode, [4]byte{})
	s.log.Debug("write", zap.String("command", FormatMessageType(opcode)), zap.String("frame", hex.EncodeToString(frame)))
	if err := s.link.Write(s.characteristic, frame); err != nil {
		s.pending.Remove(w)
		return nil, fmt.Errorf("%w: write: %w", ErrTransport, err)
	}

	return s.wait(ctx, w, timeout)
}

func (s *session) wait(ctx context.Context, w *Waiter, timeout time.Duration) (*Frame, error) {
	f, err := w.Wait(ctx, timeout)
	if errors.Is(err, ErrResponseTimeout) {
		s.stats.error(err)
		s.log.Warn("response timeout", zap.String("type", FormatMessageType(w.Tag())), zap.Duration("timeout", timeout))
	}
	return f, err
}

// latest returns the stored frame for tag, waiting for one if none arrived.
// The waiter is registered before the store is checked so a frame arriving
// in between is not missed.
func (s *session) latest(ctx context.Context, tag byte, timeout time.Duration) (*Frame, error) {
	w, err := s.pending.Register(tag)
	if err != nil {
		return nil, err
	}
	if f, ok := s.router.Last(tag); ok {
		s.pending.Remove(w)
		return f, nil
	}
	return s.wait(ctx, w, timeout)
}
