package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/logger"
	"github.com/campusmarket/storefront/internal/storage"
)

var (
	ErrNotSignedIn    = errors.New("cart: no active session")
	ErrSessionChanged = errors.New("cart: session changed during sync")
	errMissingProduct = &domain.ValidationError{Field: "productId", Message: "product id is required"}
)

// Remote is the server-side cart record of the signed-in user.
type Remote interface {
	GetCart(ctx context.Context) ([]domain.CartLine, error)
	MergeCart(ctx context.Context, local []domain.CartLine) ([]domain.CartLine, error)
	SaveCart(ctx context.Context, lines []domain.CartLine) error
	ClearCart(ctx context.Context) error
}

type mutation func(lines []domain.CartLine) ([]domain.CartLine, bool)

// State owns the active cart. Every mutation is written to local storage
// before it returns; once a session has been reconciled with the server the
// mutation is also pushed to the server in the background.
type State struct {
	store  storage.Store
	remote Remote
	log    *zap.Logger
	sfg    singleflight.Group
	writer *writer

	mu          sync.Mutex
	lines       []domain.CartLine
	userID      string
	owner       string
	synced      bool
	reconciling bool
	replay      []mutation
}

type Option func(*State)

func WithLogger(l *zap.Logger) Option {
	return func(s *State) { s.log = logger.OrNop(l) }
}

func New(store storage.Store, remote Remote, opts ...Option) *State {
	s := &State{
		store:  store,
		remote: remote,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newWriter(s.send, s.allowed, s.log)
	return s
}

// Init loads the cart persisted by a previous run. An unreadable snapshot
// is dropped and the cart starts empty.
func (s *State) Init(ctx context.Context) {
	var lines []domain.CartLine
	err := storage.GetJSON(ctx, s.store, storage.KeyCart, &lines)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.log.Warn("stored cart unreadable, starting empty", zap.Error(err))
		lines = nil
	}

	var owner string
	if err := storage.GetJSON(ctx, s.store, storage.KeyCartOwner, &owner); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("stored cart owner unreadable", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = domain.NormalizeLines(lines)
	s.owner = owner
}

// AddToCart adds one unit of p, incrementing the existing line if the
// product is already in the cart.
func (s *State) AddToCart(ctx context.Context, p domain.Product) error {
	if p.ID == "" {
		return errMissingProduct
	}
	return s.mutate(ctx, false, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].ProductID == p.ID {
				lines[i].Quantity++
				return lines, true
			}
		}
		return append(lines, domain.NewCartLine(p)), true
	})
}

func (s *State) RemoveFromCart(ctx context.Context, productID string) error {
	return s.mutate(ctx, false, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != productID {
				out = append(out, l)
			}
		}
		return out, len(out) != len(lines)
	})
}

// UpdateQuantity sets the quantity of an existing line. Quantities below 1
// and unknown products are ignored; removal goes through RemoveFromCart.
func (s *State) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return nil
	}
	return s.mutate(ctx, false, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].ProductID == productID {
				if lines[i].Quantity == qty {
					return lines, false
				}
				lines[i].Quantity = qty
				return lines, true
			}
		}
		return lines, false
	})
}

func (s *State) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, true, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		return nil, true
	})
}

func (s *State) mutate(ctx context.Context, clearRemote bool, fn mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(domain.CloneLines(s.lines))
	if !changed {
		return nil
	}
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.lines = next

	if s.reconciling {
		s.replay = append(s.replay, fn)
	}
	if s.synced {
		s.writer.submit(saveJob{userID: s.userID, lines: domain.CloneLines(next), clear: clearRemote})
	}
	return nil
}

func (s *State) persistLocked(ctx context.Context, lines []domain.CartLine) error {
	var err error
	if len(lines) == 0 {
		err = s.store.Delete(ctx, storage.KeyCart)
	} else {
		err = storage.SetJSON(ctx, s.store, storage.KeyCart, lines)
	}
	if err != nil {
		return fmt.Errorf("cart: persist locally: %w", err)
	}
	return nil
}

func (s *State) Items() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneLines(s.lines)
}

// Total is the sum of quantity x price-at-add over all lines.
func (s *State) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartTotal(s.lines)
}

// Count is the sum of quantities over all lines.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CartCount(s.lines)
}

func (s *State) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// Synced reports whether the cart has been reconciled with the server cart
// of the current session.
func (s *State) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// SessionStarted reconciles the local cart with the user's server cart.
// Failures are logged; the cart keeps working locally. When another account
// was signed in and synced, its cart is handed off first and the new user
// starts from their own server cart.
func (s *State) SessionStarted(ctx context.Context, id domain.Identity) {
	s.mu.Lock()
	prev := s.userID
	handoff := s.synced && prev != "" && prev != id.ID
	s.mu.Unlock()
	if handoff {
		s.handOff(ctx, prev)
	}

	s.mu.Lock()
	s.userID = id.ID
	s.synced = false
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		logger.WithTrace(ctx, s.log).Warn("cart sync failed, continuing with local cart",
			zap.String("user_id", id.ID), zap.Error(err))
	}
}

// handOff finishes pushing the previous account's cart to its server
// record and empties the local cart, so those lines are not merged into the
// next account.
func (s *State) handOff(ctx context.Context, prev string) {
	log := logger.WithTrace(ctx, s.log).With(zap.String("previous_user_id", prev))
	if err := s.writer.flush(ctx); err != nil {
		log.Warn("pending cart saves not flushed before account switch", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.synced = false
	if err := s.persistLocked(ctx, nil); err != nil {
		log.Warn("previous account cart not removed locally", zap.Error(err))
	}
	s.lines = nil
	s.owner = ""
	if err := s.store.Delete(ctx, storage.KeyCartOwner); err != nil {
		log.Warn("cart owner not removed from storage", zap.Error(err))
	}
	log.Info("cart handed off to previous account")
}

// SessionEnded drops the synced marker. The lines stay in place and count
// as an anonymous cart again.
func (s *State) SessionEnded(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.synced = false
	s.owner = ""
	if err := s.store.Delete(ctx, storage.KeyCartOwner); err != nil {
		s.log.Warn("cart owner not removed from storage", zap.Error(err))
	}
}

// Sync merges a non-empty local cart into the server cart, or loads the
// server cart when the local one is empty, and adopts the result. A local
// cart already synced for the same user by an earlier run (a restored
// session) is kept as is and saved, not merged a second time.
func (s *State) Sync(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		return ErrNotSignedIn
	}

	_, err, _ := s.sfg.Do("sync:"+userID, func() (any, error) {
		return nil, s.reconcile(ctx, userID)
	})
	return err
}

func (s *State) reconcile(ctx context.Context, userID string) error {
	log := logger.WithTrace(ctx, s.log).With(zap.String("user_id", userID))

	s.mu.Lock()
	local := domain.CloneLines(s.lines)
	resume := len(local) > 0 && s.owner == userID
	s.reconciling = true
	s.replay = nil
	s.mu.Unlock()

	var (
		remote []domain.CartLine
		err    error
		action = "load"
	)
	switch {
	case resume:
		action = "resume"
		remote = local
	case len(local) > 0:
		action = "merge"
		remote, err = s.remote.MergeCart(ctx, local)
	default:
		remote, err = s.remote.GetCart(ctx)
		if errors.Is(err, api.ErrNotFound) {
			remote, err = nil, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	replay := s.replay
	s.reconciling = false
	s.replay = nil

	if err != nil {
		return fmt.Errorf("cart: %s: %w", action, err)
	}
	if s.userID != userID {
		return ErrSessionChanged
	}

	next := domain.NormalizeLines(remote)
	for _, fn := range replay {
		next, _ = fn(next)
	}
	if err := s.persistLocked(ctx, next); err != nil {
		log.Warn("synced cart not persisted locally", zap.Error(err))
	}
	s.lines = next
	s.synced = true
	if s.owner != userID {
		if err := storage.SetJSON(ctx, s.store, storage.KeyCartOwner, userID); err != nil {
			log.Warn("cart owner not persisted locally", zap.Error(err))
		}
		s.owner = userID
	}
	if resume || len(replay) > 0 {
		s.writer.submit(saveJob{userID: userID, lines: domain.CloneLines(next)})
	}
	log.Info("cart synced", zap.String("action", action), zap.Int("lines", len(next)))
	return nil
}

func (s *State) allowed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced && s.userID == userID
}

func (s *State) send(ctx context.Context, job saveJob) error {
	if job.clear {
		return s.remote.ClearCart(ctx)
	}
	return s.remote.SaveCart(ctx, job.lines)
}

// Flush waits for pending server saves to finish.
func (s *State) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close flushes pending saves and stops pushing further mutations to the
// server.
func (s *State) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}
