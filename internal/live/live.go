// Package live keeps subscribed snapshots fresh. One polling state machine
// runs per distinct (subject, options) pair: each tick it refreshes when
// there is no snapshot yet, when the staleness ceiling is hit, or when a
// lightweight activity fingerprint over the tracked wallets changed.
package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"solana-token-atlas/internal/domain"
	"solana-token-atlas/internal/engine"
	"solana-token-atlas/internal/observability"
	"solana-token-atlas/internal/solana"
)

// Update is one delivery to a subscriber: a fresh snapshot or an
// out-of-band refresh error. Errors never clear a previously delivered
// snapshot.
type Update struct {
	Snapshot *domain.Snapshot
	Err      error
}

// SnapshotBuilder produces snapshots on demand. *engine.Engine satisfies it.
type SnapshotBuilder interface {
	BuildSnapshot(ctx context.Context, mint string, opts engine.SnapshotOptions) (*domain.Snapshot, error)
}

// Config tunes the polling state machines.
type Config struct {
	// TickInterval is the poll period.
	TickInterval time.Duration
	// ForceInterval is the staleness ceiling: a refresh runs at least this
	// often regardless of detected activity.
	ForceInterval time.Duration
	// Buffer is the per-subscriber channel capacity. Deliveries to a full
	// subscriber are dropped rather than blocking the state machine.
	Buffer int
	// Metrics is the optional Prometheus instrumentation.
	Metrics *observability.Metrics
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 15 * time.Second
	}
	if c.ForceInterval <= 0 {
		c.ForceInterval = 2 * time.Minute
	}
	if c.Buffer <= 0 {
		c.Buffer = 4
	}
	return c
}

// Registry owns the live states. It is an injected object, one per process,
// so tests can run isolated instances.
type Registry struct {
	builder SnapshotBuilder
	client  solana.Client
	log     *zap.Logger
	cfg     Config
	now     func() time.Time

	mu     sync.Mutex
	states map[string]*state
}

type subscriber struct {
	ch chan Update
}

type state struct {
	key     string
	subject string
	opts    engine.SnapshotOptions
	cancel  context.CancelFunc

	mu             sync.Mutex
	subscribers    map[int]*subscriber
	nextID         int
	snapshot       *domain.Snapshot
	fingerprint    uint64
	hasFingerprint bool
	lastRefresh    time.Time
	inProgress     bool
	dirty          bool
	stopped        bool
}

// NewRegistry creates a Registry.
func NewRegistry(builder SnapshotBuilder, client solana.Client, log *zap.Logger, cfg Config) *Registry {
	return &Registry{
		builder: builder,
		client:  client,
		log:     log,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		states:  make(map[string]*state),
	}
}

// Subscribe attaches to the live state for (subject, opts), creating it on
// first use. The returned channel receives snapshot updates and refresh
// errors until cancel is called. A state that already holds a snapshot
// replays it immediately.
func (r *Registry) Subscribe(subject string, opts engine.SnapshotOptions) (<-chan Update, func()) {
	opts = opts.WithDefaults()
	opts.ForceRefresh = true // live refreshes always recompute
	key := opts.CacheKey(subject)

	sub := &subscriber{ch: make(chan Update, r.cfg.Buffer)}

	var st *state
	var id int
	for {
		r.mu.Lock()
		cur, ok := r.states[key]
		if !ok {
			ctx, cancel := context.WithCancel(context.Background())
			cur = &state{
				key:         key,
				subject:     subject,
				opts:        opts,
				cancel:      cancel,
				subscribers: make(map[int]*subscriber),
			}
			r.states[key] = cur
			r.gaugeStates(len(r.states))
			go r.run(ctx, cur)
		}
		r.mu.Unlock()

		cur.mu.Lock()
		if cur.stopped {
			// Lost a race with the last unsubscribe; the map entry is
			// gone, so the next round creates a fresh state.
			cur.mu.Unlock()
			continue
		}
		id = cur.nextID
		cur.nextID++
		cur.subscribers[id] = sub
		if cur.snapshot != nil {
			sub.ch <- Update{Snapshot: cur.snapshot}
		}
		cur.mu.Unlock()
		st = cur
		break
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() { r.unsubscribe(st, id) })
	}
	return sub.ch, cancel
}

// MarkActivity flags every state tracking subject so its next tick
// refreshes without a fingerprint fetch. Wired to the pubsub log stream as
// an activity hint.
func (r *Registry) MarkActivity(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.states {
		if st.subject != subject {
			continue
		}
		st.mu.Lock()
		st.dirty = true
		st.mu.Unlock()
	}
}

// Len reports how many live states exist.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *Registry) unsubscribe(st *state, id int) {
	st.mu.Lock()
	delete(st.subscribers, id)
	empty := len(st.subscribers) == 0
	st.mu.Unlock()

	if !empty {
		return
	}

	r.mu.Lock()
	// Re-check under the registry lock: a new subscriber may have raced in.
	st.mu.Lock()
	if len(st.subscribers) == 0 {
		st.stopped = true
		st.cancel()
		delete(r.states, st.key)
		r.gaugeStates(len(r.states))
	}
	st.mu.Unlock()
	r.mu.Unlock()
}

func (r *Registry) run(ctx context.Context, st *state) {
	r.tick(ctx, st)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, st)
		}
	}
}

func (r *Registry) tick(ctx context.Context, st *state) {
	st.mu.Lock()
	if st.inProgress {
		st.mu.Unlock()
		return
	}

	var trigger string
	switch {
	case st.snapshot == nil:
		trigger = "initial"
	case st.dirty:
		trigger = "activity"
	case r.now().Sub(st.lastRefresh) >= r.cfg.ForceInterval:
		trigger = "interval"
	}
	needs := trigger != ""

	var wallets []string
	if !needs {
		wallets = trackedWallets(st.snapshot, st.opts.EdgeWallets)
	}
	if needs {
		st.inProgress = true
	}
	st.mu.Unlock()

	if !needs {
		fp := r.fingerprint(ctx, wallets)

		st.mu.Lock()
		if st.inProgress {
			st.mu.Unlock()
			return
		}
		if st.hasFingerprint && fp == st.fingerprint {
			st.mu.Unlock()
			if m := r.cfg.Metrics; m != nil {
				m.LiveTicksSkipped.Inc()
			}
			return
		}
		trigger = "fingerprint"
		st.inProgress = true
		st.mu.Unlock()
	}

	r.refresh(ctx, st, trigger)
}

func (r *Registry) refresh(ctx context.Context, st *state, trigger string) {
	snap, err := r.builder.BuildSnapshot(ctx, st.subject, st.opts)

	var fp uint64
	if err == nil {
		fp = r.fingerprint(ctx, trackedWallets(snap, st.opts.EdgeWallets))
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.inProgress = false

	if err != nil {
		r.log.Warn("live refresh failed",
			zap.String("subject", st.subject),
			zap.String("trigger", trigger),
			zap.Error(err))
		r.countRefresh(trigger, "error")
		st.notify(Update{Err: err})
		return
	}

	st.snapshot = snap
	st.fingerprint = fp
	st.hasFingerprint = true
	st.lastRefresh = r.now()
	st.dirty = false
	r.countRefresh(trigger, "ok")
	if m := r.cfg.Metrics; m != nil {
		m.LastSuccessfulRefresh.Set(float64(st.lastRefresh.Unix()))
	}
	st.notify(Update{Snapshot: snap})
}

func (r *Registry) countRefresh(trigger, status string) {
	if m := r.cfg.Metrics; m != nil {
		m.LiveRefreshes.WithLabelValues(trigger, status).Inc()
	}
}

func (r *Registry) gaugeStates(n int) {
	if m := r.cfg.Metrics; m != nil {
		m.LiveStates.Set(float64(n))
	}
}

// notify delivers to every subscriber without blocking. Callers hold st.mu.
func (st *state) notify(u Update) {
	for _, sub := range st.subscribers {
		select {
		case sub.ch <- u:
		default:
		}
	}
}

// fingerprint digests the most-recent signature per tracked wallet. A
// failed fetch contributes a fixed "error" token so a transient RPC failure
// neither masks real changes nor flips the digest on every tick.
func (r *Registry) fingerprint(ctx context.Context, wallets []string) uint64 {
	tokens := make([]string, 0, len(wallets))
	for _, wallet := range wallets {
		sigs, err := r.client.GetSignatures(ctx, wallet, 1)
		switch {
		case err != nil:
			tokens = append(tokens, "error")
		case len(sigs) == 0:
			tokens = append(tokens, "none")
		default:
			tokens = append(tokens, sigs[0].Signature)
		}
	}
	return xxhash.Sum64String(strings.Join(tokens, "|"))
}

func trackedWallets(snap *domain.Snapshot, limit int) []string {
	wallets := make([]string, 0, limit)
	for _, node := range snap.Nodes {
		if len(wallets) == limit {
			break
		}
		wallets = append(wallets, node.Address)
	}
	return wallets
}
