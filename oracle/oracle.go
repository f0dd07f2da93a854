// Package oracle runs the external decryption process the ledger's
// coordinator dispatches to.
//
// The ledger never waits for the oracle: it records a request context and
// moves on, and the oracle answers through the callback whenever it gets
// around to it. Local models that asynchronous gap in-process, servicing the
// mock engine's pending requests from a background worker.
package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foldnet/foldnet/fhe"
)

// CallbackTarget consumes decryption results. Implemented by *ledger.Ledger.
type CallbackTarget interface {
	OnDecryptionResult(id fhe.RequestID, cleartexts []byte, proof []byte) error
}

// Decrypter is the oracle-facing side of the encrypted-arithmetic
// capability: the queue of dispatched requests and the ability to resolve
// them into signed cleartexts.
type Decrypter interface {
	TakePendingRequests() []fhe.PendingRequest
	Decrypt(id fhe.RequestID) (*fhe.DecryptionResult, error)
}

// Local is an in-process decryption oracle.
type Local struct {
	decrypter Decrypter
	target    CallbackTarget
	log       *slog.Logger

	pollInterval time.Duration
	latency      time.Duration

	runMutex sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Local oracle.
type Option func(*Local)

// WithPollInterval sets how often the oracle checks for pending requests.
func WithPollInterval(d time.Duration) Option {
	return func(o *Local) { o.pollInterval = d }
}

// WithLatency adds an artificial delay before each request is fulfilled,
// widening the request/callback gap for tests and demos.
func WithLatency(d time.Duration) Option {
	return func(o *Local) { o.latency = d }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Local) { o.log = log }
}

// NewLocal creates an oracle servicing decrypter requests into target.
func NewLocal(decrypter Decrypter, target CallbackTarget, opts ...Option) *Local {
	o := &Local{
		decrypter:    decrypter,
		target:       target,
		log:          slog.Default(),
		pollInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the background worker. Calling Start on a running oracle is
// a no-op.
func (o *Local) Start(ctx context.Context) {
	o.runMutex.Lock()
	defer o.runMutex.Unlock()
	if o.running {
		return
	}
	o.running = true

	ctx, o.cancel = context.WithCancel(ctx)
	o.done = make(chan struct{})
	go o.run(ctx)
}

// Stop shuts the worker down and waits for it to exit.
func (o *Local) Stop() {
	o.runMutex.Lock()
	defer o.runMutex.Unlock()
	if !o.running {
		return
	}
	o.cancel()
	<-o.done
	o.running = false
}

func (o *Local) run(ctx context.Context) {
	defer close(o.done)

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.servicePending(ctx)
		}
	}
}

func (o *Local) servicePending(ctx context.Context) {
	for _, req := range o.decrypter.TakePendingRequests() {
		if o.latency > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.latency):
			}
		}

		result, err := o.decrypter.Decrypt(req.ID)
		if err != nil {
			o.log.Error("decrypting request", "requestID", req.ID, "err", err)
			continue
		}

		if err := o.target.OnDecryptionResult(result.ID, result.Cleartexts, result.Proof); err != nil {
			// The callback was rejected; the request context stays as it
			// was and the rejection is the ledger's final word on it.
			o.log.Warn("decryption callback rejected", "requestID", req.ID, "err", err)
		} else {
			o.log.Info("decryption fulfilled", "requestID", req.ID)
		}
	}
}
