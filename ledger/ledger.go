// Package ledger implements the FoldNet batch ledger: an access-controlled,
// rate-limited sequence of batches accumulating encrypted folding scores,
// with a decryption coordinator that hands closed batch totals to an
// external oracle and consumes its callbacks exactly once.
//
// All mutation goes through one Ledger value guarded by a single mutex, so
// every operation is atomic with respect to all ledger state. The only
// asynchrony in the system is the gap between a decryption request and its
// callback; the state-hash commitment recorded at request time preserves
// consistency across that gap.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
)

// Address identifies a caller. It is the hex-encoded form of the caller's
// Ed25519 public key.
type Address string

// BatchID identifies a batch. IDs are assigned by a monotonically increasing
// counter starting at 1 and are never reused.
type BatchID uint64

// Batch is one bounded collection window of encrypted contributions.
type Batch struct {
	ID              BatchID        `json:"id"`
	Active          bool           `json:"active"`
	TotalScore      fhe.Ciphertext `json:"total_score"`
	SubmissionCount uint64         `json:"submission_count"`
}

// DecryptionContext tracks one asynchronous decryption request. Once
// Processed is set the context is terminal and immutable.
type DecryptionContext struct {
	BatchID   BatchID           `json:"batch_id"`
	StateHash crypto.Commitment `json:"state_hash"`
	Processed bool              `json:"processed"`
}

// Config carries the initial governance state of a ledger.
type Config struct {
	// Owner is the privileged identity. The owner starts as a provider.
	Owner Address

	// Cooldown is the initial rate-limit window applied to submissions and
	// decryption requests.
	Cooldown time.Duration
}

// Ledger is the batch/decryption state machine.
//
// A ledger runs through repeated batch lifecycles:
//  1. The owner opens the current batch slot
//  2. Providers submit encrypted scores, accumulated homomorphically
//  3. The owner closes the batch, freezing its total; the counter advances
//  4. The owner requests decryption of the frozen total
//  5. The oracle's callback finalizes the plaintext result exactly once
type Ledger struct {
	// id is this ledger instance's identity, bound into every state-hash
	// commitment so callbacks cannot be replayed across instances.
	id     string
	engine fhe.Engine
	sink   EventSink
	log    *slog.Logger
	now    func() time.Time

	mu sync.Mutex

	// Governance state
	owner     Address
	providers map[Address]bool
	paused    bool

	// Rate limiting
	cooldown       time.Duration
	lastSubmission map[Address]time.Time
	lastDecryption map[Address]time.Time

	// Batch ledger
	currentBatchID BatchID
	batches        map[BatchID]*Batch

	// Decryption coordinator
	contexts map[fhe.RequestID]*DecryptionContext
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithClock replaces the time source. Only used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSink sets the event sink receiving transition notifications.
func WithSink(sink EventSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithID overrides the generated ledger identity. Only used in tests that
// need deterministic commitments.
func WithID(id string) Option {
	return func(l *Ledger) { l.id = id }
}

// New creates a ledger owned by cfg.Owner. The owner is enrolled as a
// provider, and the current batch counter starts at 1 with the slot inactive.
func New(engine fhe.Engine, cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		id:             uuid.NewString(),
		engine:         engine,
		sink:           SinkFunc(func(Event) {}),
		log:            slog.Default(),
		now:            time.Now,
		owner:          cfg.Owner,
		providers:      map[Address]bool{cfg.Owner: true},
		cooldown:       cfg.Cooldown,
		lastSubmission: make(map[Address]time.Time),
		lastDecryption: make(map[Address]time.Time),
		currentBatchID: 1,
		batches:        make(map[BatchID]*Batch),
		contexts:       make(map[fhe.RequestID]*DecryptionContext),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID returns the ledger instance identity bound into commitments.
func (l *Ledger) ID() string {
	return l.id
}

// TransferOwnership replaces the owner identity. Deliberately permissive: no
// validation of the new owner, matching the governance surface it models.
func (l *Ledger) TransferOwnership(caller, newOwner Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}

	previous := l.owner
	l.owner = newOwner
	l.emit(OwnershipTransferred{Previous: previous, New: newOwner})
	return nil
}

// AddProvider authorizes an identity to submit folding data. Adding an
// existing provider is a silent no-op.
func (l *Ledger) AddProvider(caller, provider Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}

	if l.providers[provider] {
		return nil
	}
	l.providers[provider] = true
	l.emit(ProviderAdded{Provider: provider})
	return nil
}

// RemoveProvider revokes submission authorization. Removing a non-provider
// is a silent no-op. Removing the owner is allowed; ownership does not imply
// continued provider membership.
func (l *Ledger) RemoveProvider(caller, provider Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}

	if !l.providers[provider] {
		return nil
	}
	delete(l.providers, provider)
	l.emit(ProviderRemoved{Provider: provider})
	return nil
}

// SetPaused sets the global pause flag. While paused, every mutating
// operation except governance is rejected.
func (l *Ledger) SetPaused(caller Address, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}

	l.paused = paused
	l.emit(PauseToggled{Paused: paused})
	return nil
}

// SetCooldown replaces the rate-limit window for both submissions and
// decryption requests.
func (l *Ledger) SetCooldown(caller Address, cooldown time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}

	old := l.cooldown
	l.cooldown = cooldown
	l.emit(CooldownSet{Old: old, New: cooldown})
	return nil
}

// OpenBatch activates the current batch slot with a zeroed total and count.
func (l *Ledger) OpenBatch(caller Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if l.paused {
		return ErrPaused
	}

	if b, ok := l.batches[l.currentBatchID]; ok && b.Active {
		return ErrBatchAlreadyActive
	}

	l.batches[l.currentBatchID] = &Batch{
		ID:     l.currentBatchID,
		Active: true,
	}
	l.emit(BatchOpened{BatchID: l.currentBatchID})
	l.log.Info("batch opened", "batchID", l.currentBatchID)
	return nil
}

// CloseBatch freezes the current batch and advances the batch counter.
// Only the current batch may be closed; past batch IDs fail with
// ErrInvalidBatchID even though their slots remain readable.
func (l *Ledger) CloseBatch(caller Address, id BatchID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if l.paused {
		return ErrPaused
	}
	if id != l.currentBatchID {
		return ErrInvalidBatchID
	}

	b, ok := l.batches[id]
	if !ok || !b.Active {
		return ErrBatchNotActive
	}

	b.Active = false
	l.emit(BatchClosed{BatchID: id, TotalScore: b.TotalScore, SubmissionCount: b.SubmissionCount})
	l.currentBatchID++
	l.log.Info("batch closed", "batchID", id, "submissions", b.SubmissionCount)
	return nil
}

// SubmitFoldingData homomorphically adds an encrypted score to the current
// batch total. The caller's submission timestamp is recorded only after all
// other checks pass, so a failed submission never consumes the cooldown.
func (l *Ledger) SubmitFoldingData(caller Address, score fhe.Ciphertext) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.providers[caller] {
		return ErrNotProvider
	}
	if l.paused {
		return ErrPaused
	}

	now := l.now()
	if last, ok := l.lastSubmission[caller]; ok && now.Before(last.Add(l.cooldown)) {
		return ErrCooldownActive
	}

	if !l.engine.IsInitialized(score) {
		return ErrCiphertextNotInitialized
	}

	b, ok := l.batches[l.currentBatchID]
	if !ok || !b.Active {
		return ErrBatchNotActive
	}

	total, err := l.engine.Add(b.TotalScore, score)
	if err != nil {
		return err
	}

	b.TotalScore = total
	b.SubmissionCount++
	l.lastSubmission[caller] = now
	l.emit(FoldingDataSubmitted{BatchID: b.ID, Provider: caller, Score: score})
	return nil
}

// emit delivers an event to the sink. Called with the ledger lock held so
// observers see events in exactly the order transitions were applied.
func (l *Ledger) emit(e Event) {
	l.sink.Emit(e)
}

// Owner returns the current owner identity.
func (l *Ledger) Owner() Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// IsProvider reports whether the identity may submit folding data.
func (l *Ledger) IsProvider(addr Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.providers[addr]
}

// Paused reports the global pause flag.
func (l *Ledger) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Cooldown returns the current rate-limit window.
func (l *Ledger) Cooldown() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cooldown
}

// CurrentBatchID returns the id of the current batch slot.
func (l *Ledger) CurrentBatchID() BatchID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentBatchID
}

// CurrentBatch returns a copy of the current batch slot. The slot may not
// have been opened yet, in which case the zero batch with the current id is
// returned.
func (l *Ledger) CurrentBatch() Batch {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.batches[l.currentBatchID]; ok {
		return *b
	}
	return Batch{ID: l.currentBatchID}
}

// Batch returns a copy of the batch with the given id. Closed batches remain
// readable indefinitely.
func (l *Ledger) Batch(id BatchID) (Batch, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches[id]
	if !ok {
		return Batch{}, false
	}
	return *b, true
}
