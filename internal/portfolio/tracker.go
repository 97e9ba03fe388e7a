package portfolio

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"hodler/internal/database"
	"hodler/internal/models"
	"hodler/internal/repository"
)

// QuoteSource is the one repository operation the tracker needs.
type QuoteSource interface {
	Quotes(ctx context.Context, ids []string) (repository.Envelope[map[string]models.PriceQuote], error)
}

// Tracker keeps a live portfolio valuation. It consumes the ledger's
// holdings stream and recomputes on every emission, so mutations push new
// states out instead of anyone polling. The computation itself is pure; the
// only I/O per cycle is the batched quote lookup.
type Tracker struct {
	ledger *database.Ledger
	quotes QuoteSource
	log    *logrus.Logger

	refresh chan struct{}

	mu   sync.Mutex
	last State
	subs map[chan State]struct{}
}

func NewTracker(ledger *database.Ledger, quotes QuoteSource, log *logrus.Logger) *Tracker {
	return &Tracker{
		ledger:  ledger,
		quotes:  quotes,
		log:     log,
		refresh: make(chan struct{}, 1),
		last:    State{Kind: StateLoading},
		subs:    make(map[chan State]struct{}),
	}
}

// Run consumes ledger emissions until ctx is cancelled. Each emission (and
// each explicit Refresh) re-enters Loading and then lands on Empty, Success
// or Error.
func (t *Tracker) Run(ctx context.Context) {
	emissions := t.ledger.Observe(ctx)
	var holdings []models.Holding

	for {
		select {
		case <-ctx.Done():
			return
		case hs, ok := <-emissions:
			if !ok {
				return
			}
			holdings = hs
		case <-t.refresh:
		}

		t.publish(State{Kind: StateLoading})
		t.publish(t.compute(ctx, holdings))
	}
}

// Refresh triggers one recomputation with the current holdings. It never
// blocks; a refresh already pending covers this one.
func (t *Tracker) Refresh() {
	select {
	case t.refresh <- struct{}{}:
	default:
	}
}

// Current returns the most recently published state.
func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Subscribe delivers the current state immediately and every published state
// after it. The channel closes when ctx is cancelled; a slow consumer sees
// latest-wins rather than an unbounded backlog.
func (t *Tracker) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	t.mu.Lock()
	t.subs[ch] = struct{}{}
	ch <- t.last
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, ch)
		close(ch)
		t.mu.Unlock()
	}()

	return ch
}

func (t *Tracker) compute(ctx context.Context, holdings []models.Holding) State {
	if len(holdings) == 0 {
		return State{Kind: StateEmpty}
	}

	env, err := t.quotes.Quotes(ctx, DistinctCoinIDs(holdings))
	if err != nil {
		t.log.Warnf("quote lookup failed with no cache to fall back on: %v", err)
		return State{Kind: StateError, Err: err.Error()}
	}

	vals := ValuateAll(holdings, env.Data)
	summary := Summarize(vals)
	return State{
		Kind:          StateSuccess,
		Summary:       &summary,
		Groups:        GroupByCoin(vals),
		FromCache:     env.FromCache,
		LastUpdatedMs: env.LastUpdatedMs,
	}
}

func (t *Tracker) publish(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = s
	for ch := range t.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
