package testutil

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
	"github.com/foldnet/foldnet/ledger"
)

// Clock is a manually advanced time source for cooldown tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock at a fixed, arbitrary starting instant.
func NewClock() *Clock {
	return &Clock{now: time.Unix(1700000000, 0)}
}

// Now returns the current instant. Pass this method as the ledger's time
// source.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// EventRecorder is an EventSink that appends every event to a slice.
type EventRecorder struct {
	mu     sync.Mutex
	events []ledger.Event
}

// Emit implements ledger.EventSink.
func (r *EventRecorder) Emit(e ledger.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of all recorded events in emission order.
func (r *EventRecorder) Events() []ledger.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns recorded events of one kind, in emission order.
func (r *EventRecorder) OfKind(kind ledger.EventKind) []ledger.Event {
	var out []ledger.Event
	for _, e := range r.Events() {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewAddress generates a fresh identity and returns its ledger address.
func NewAddress(t *testing.T) ledger.Address {
	t.Helper()
	pub, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return ledger.Address(pub.String())
}

// Fixture bundles a ledger with the collaborators tests poke at.
type Fixture struct {
	Ledger   *ledger.Ledger
	Engine   *fhe.MockEngine
	Clock    *Clock
	Recorder *EventRecorder
	Owner    ledger.Address
}

// FixtureOption adjusts the fixture configuration.
type FixtureOption func(*ledger.Config)

// WithCooldown sets the initial cooldown window.
func WithCooldown(d time.Duration) FixtureOption {
	return func(cfg *ledger.Config) { cfg.Cooldown = d }
}

// NewFixture builds a ledger backed by a mock engine, a manual clock, and an
// event recorder. The default cooldown is zero so tests opt in to rate
// limiting explicitly.
func NewFixture(t *testing.T, opts ...FixtureOption) *Fixture {
	t.Helper()

	engine, err := fhe.NewMockEngine()
	if err != nil {
		t.Fatalf("create mock engine: %v", err)
	}

	owner := NewAddress(t)
	cfg := ledger.Config{Owner: owner}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := NewClock()
	recorder := &EventRecorder{}
	l := ledger.New(engine, cfg,
		ledger.WithClock(clock.Now),
		ledger.WithSink(recorder),
	)

	return &Fixture{
		Ledger:   l,
		Engine:   engine,
		Clock:    clock,
		Recorder: recorder,
		Owner:    owner,
	}
}

// MustEncrypt mints a ciphertext handle for a plaintext score.
func (f *Fixture) MustEncrypt(t *testing.T, value uint64) fhe.Ciphertext {
	t.Helper()
	ct, err := f.Engine.Encrypt(value)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return ct
}

// AddProvider enrolls a fresh provider identity and returns its address.
func (f *Fixture) AddProvider(t *testing.T) ledger.Address {
	t.Helper()
	addr := NewAddress(t)
	if err := f.Ledger.AddProvider(f.Owner, addr); err != nil {
		t.Fatalf("add provider: %v", err)
	}
	return addr
}
