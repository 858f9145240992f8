// Package wishlist mirrors the server wishlist and answers "is this product
// a favorite" from memory.
package wishlist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/opqueue"
	"github.com/utafrali/storefront/internal/remote"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	collection = "wishlist"
	opRefresh  = "refresh"
)

// ErrToggleInProgress is returned by Toggle while a toggle of the same
// product is still in flight.
var ErrToggleInProgress = apperrors.Conflict("this product is already being updated")

// Remote is the part of the API client the wishlist calls.
type Remote interface {
	GetWishlist(ctx context.Context, token string) (remote.WishlistResult, error)
	AddToWishlist(ctx context.Context, token, productID string) (remote.WishlistResult, error)
	RemoveFromWishlist(ctx context.Context, token, productID string) (remote.WishlistResult, error)
}

// Session is the part of the session store the wishlist needs.
type Session interface {
	Token() string
	HandleUnauthorized(ctx context.Context, token string) bool
}

var errNoChange = errors.New("no change")

// Synchronizer owns the wishlist.
type Synchronizer struct {
	remote  Remote
	session Session
	cache   *cache.Cache
	topic   *notify.Topic[domain.Wishlist]
	queue   opqueue.Queue
	logger  *slog.Logger

	mu       sync.Mutex
	state    domain.Wishlist
	members  map[string]struct{}
	inflight map[string]struct{}
	loaded   bool
	version  uint64
	epoch    uint64
}

// NewSynchronizer creates an empty, unloaded wishlist.
func NewSynchronizer(r Remote, s Session, c *cache.Cache, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		remote:   r,
		session:  s,
		cache:    c,
		topic:    notify.NewTopic[domain.Wishlist](collection, logger),
		logger:   logger,
		state:    domain.Wishlist{Entries: []domain.WishlistEntry{}},
		members:  make(map[string]struct{}),
		inflight: make(map[string]struct{}),
	}
}

// Current returns a copy of the wishlist.
func (s *Synchronizer) Current() domain.Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// IsFavorited reports from memory whether productID is in the wishlist.
func (s *Synchronizer) IsFavorited(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[productID]
	return ok
}

// Subscribe registers fn for every published wishlist.
func (s *Synchronizer) Subscribe(fn func(domain.Wishlist)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

// Load fetches the wishlist unless it was already fetched this session.
func (s *Synchronizer) Load(ctx context.Context) (domain.Wishlist, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return s.Current(), nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches the wishlist from the server.
func (s *Synchronizer) Refresh(ctx context.Context) (domain.Wishlist, error) {
	return s.run(ctx, opRefresh, func(ctx context.Context, token string) (remote.WishlistResult, error) {
		return s.remote.GetWishlist(ctx, token)
	})
}

// Add favorites productID. Adding a favorite again changes nothing.
func (s *Synchronizer) Add(ctx context.Context, productID string) (domain.Wishlist, error) {
	if productID == "" {
		return s.Current(), apperrors.InvalidInput("product id is required")
	}
	return s.run(ctx, "add", func(ctx context.Context, token string) (remote.WishlistResult, error) {
		if s.IsFavorited(productID) {
			return remote.WishlistResult{}, errNoChange
		}
		return s.remote.AddToWishlist(ctx, token, productID)
	})
}

// Remove unfavorites productID. Removing a product that is not a favorite
// changes nothing.
func (s *Synchronizer) Remove(ctx context.Context, productID string) (domain.Wishlist, error) {
	if productID == "" {
		return s.Current(), apperrors.InvalidInput("product id is required")
	}
	return s.run(ctx, "remove", func(ctx context.Context, token string) (remote.WishlistResult, error) {
		if !s.IsFavorited(productID) {
			return remote.WishlistResult{}, errNoChange
		}
		return s.remote.RemoveFromWishlist(ctx, token, productID)
	})
}

// Toggle flips productID's favorite state and reports the new one. A toggle
// issued while another toggle of the same product is in flight is refused
// with ErrToggleInProgress and sends nothing.
func (s *Synchronizer) Toggle(ctx context.Context, productID string) (bool, domain.Wishlist, error) {
	if productID == "" {
		return false, s.Current(), apperrors.InvalidInput("product id is required")
	}
	if s.session.Token() == "" {
		return false, s.Current(), apperrors.Unauthenticated("log in to save favorites")
	}

	s.mu.Lock()
	if _, busy := s.inflight[productID]; busy {
		s.mu.Unlock()
		return s.IsFavorited(productID), s.Current(), ErrToggleInProgress
	}
	s.inflight[productID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, productID)
		s.mu.Unlock()
	}()

	if _, err := s.Load(ctx); err != nil {
		return s.IsFavorited(productID), s.Current(), err
	}
	favorited := s.IsFavorited(productID)

	var (
		w   domain.Wishlist
		err error
	)
	if favorited {
		w, err = s.Remove(ctx, productID)
	} else {
		w, err = s.Add(ctx, productID)
	}
	return w.Contains(productID), w, err
}

// Reset drops the wishlist after the session ended.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.epoch++
	s.version++
	s.state = domain.Wishlist{Entries: []domain.WishlistEntry{}, Version: s.version}
	s.members = make(map[string]struct{})
	s.loaded = false
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.topic.Publish(snapshot)
}

// Restore renders the cached favorites before the first fetch answers.
func (s *Synchronizer) Restore(ctx context.Context) bool {
	var entries []domain.WishlistEntry
	if !s.cache.Read(ctx, cache.KeyWishlist, &entries) {
		return false
	}

	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return false
	}
	snapshot := s.install(entries)
	s.mu.Unlock()

	s.topic.Publish(snapshot)
	return true
}

func (s *Synchronizer) run(ctx context.Context, op string, call func(context.Context, string) (remote.WishlistResult, error)) (w domain.Wishlist, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(collection, op, start, err) }()

	if s.session.Token() == "" {
		return s.Current(), apperrors.Unauthenticated("log in to save favorites")
	}

	if op == opRefresh {
		if qerr := s.queue.DoContext(ctx, func() { w, err = s.settle(ctx, op, call) }); qerr != nil {
			return s.Current(), qerr
		}
	} else {
		ctx = context.WithoutCancel(ctx)
		s.queue.Do(func() {
			w, err = s.settle(ctx, op, call)
		})
	}
	if errors.Is(err, errNoChange) {
		return w, nil
	}
	return w, err
}

func (s *Synchronizer) settle(ctx context.Context, op string, call func(context.Context, string) (remote.WishlistResult, error)) (domain.Wishlist, error) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	token := s.session.Token()
	if token == "" {
		return s.Current(), apperrors.Unauthenticated("log in to save favorites")
	}

	res, err := call(ctx, token)
	if errors.Is(err, errNoChange) {
		return s.Current(), err
	}
	if err == nil && res.Partial {
		var complete bool
		res.Entries, complete = s.fillDetails(res.Entries)
		if !complete {
			res, err = s.remote.GetWishlist(ctx, token)
		}
	}
	if err != nil {
		return s.Current(), s.failed(ctx, op, token, err)
	}

	return s.apply(ctx, op, epoch, token, res.Entries), nil
}

// fillDetails copies display data for entries already known locally and
// reports whether every entry ended up with details.
func (s *Synchronizer) fillDetails(entries []domain.WishlistEntry) ([]domain.WishlistEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]domain.WishlistEntry, len(s.state.Entries))
	for _, e := range s.state.Entries {
		if e.HasDetails() {
			known[e.ProductID] = e
		}
	}

	complete := true
	out := make([]domain.WishlistEntry, len(entries))
	for i, e := range entries {
		if full, ok := known[e.ProductID]; ok && !e.HasDetails() {
			e = full
		}
		if !e.HasDetails() {
			complete = false
		}
		out[i] = e
	}
	return out, complete
}

func (s *Synchronizer) apply(ctx context.Context, op string, epoch uint64, token string, entries []domain.WishlistEntry) domain.Wishlist {
	s.mu.Lock()
	if !s.owns(epoch, token) {
		s.mu.Unlock()
		return s.discard(ctx, op)
	}
	snapshot := s.install(entries)
	s.loaded = true
	s.mu.Unlock()

	s.cache.Write(ctx, cache.KeyWishlist, snapshot.Entries)
	s.mu.Lock()
	owned := s.owns(epoch, token)
	s.mu.Unlock()
	if !owned {
		// A logout during the write may have cleared the cache first.
		s.cache.Clear(ctx, cache.KeyWishlist)
		return s.discard(ctx, op)
	}

	s.logger.InfoContext(ctx, "wishlist updated",
		slog.String("op", op),
		slog.Int("entries", len(snapshot.Entries)),
	)
	s.topic.Publish(snapshot)
	return snapshot
}

// owns reports whether a result fetched under epoch and token still belongs
// to the live session. The caller holds s.mu.
func (s *Synchronizer) owns(epoch uint64, token string) bool {
	return epoch == s.epoch && s.session.Token() == token
}

func (s *Synchronizer) discard(ctx context.Context, op string) domain.Wishlist {
	metrics.StaleResults.WithLabelValues(collection).Inc()
	s.logger.InfoContext(ctx, "discarding wishlist result from an ended session", slog.String("op", op))
	return s.Current()
}

// install replaces the state, deduplicating by product. The caller holds s.mu.
func (s *Synchronizer) install(entries []domain.WishlistEntry) domain.Wishlist {
	members := make(map[string]struct{}, len(entries))
	deduped := make([]domain.WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := members[e.ProductID]; dup || e.ProductID == "" {
			continue
		}
		members[e.ProductID] = struct{}{}
		deduped = append(deduped, e)
	}

	s.version++
	s.members = members
	s.state = domain.Wishlist{Entries: deduped, Version: s.version}
	return s.state.Clone()
}

func (s *Synchronizer) failed(ctx context.Context, op, token string, err error) error {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		if s.session.HandleUnauthorized(ctx, token) {
			s.logger.InfoContext(ctx, "wishlist call rejected the credential", slog.String("op", op))
		}
		return apperrors.Unauthenticated("your session has expired, please log in again")
	}
	s.logger.ErrorContext(ctx, "wishlist operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return err
}
