// Package cart mirrors the server cart and keeps every observer of it in step.
package cart

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
	collection = "cart"
	opRefresh  = "refresh"
)

// Remote is the part of the API client the cart calls.
type Remote interface {
	GetCart(ctx context.Context, token string) (remote.CartResult, error)
	AddToCart(ctx context.Context, token, productID string) (remote.CartResult, error)
	UpdateCartItem(ctx context.Context, token, productID string, count int) (remote.CartResult, error)
	RemoveCartItem(ctx context.Context, token, productID string) (remote.CartResult, error)
	ClearCart(ctx context.Context, token string) error
}

// Session is the part of the session store the cart needs.
type Session interface {
	Token() string
	HandleUnauthorized(ctx context.Context, token string) bool
}

// errNoChange tells run the operation had nothing to send.
var errNoChange = errors.New("no change")

// Synchronizer owns the cart. Operations run one at a time in the order they
// were issued, and each success replaces the whole cart with the server's.
type Synchronizer struct {
	remote  Remote
	session Session
	cache   *cache.Cache
	topic   *notify.Topic[domain.Cart]
	queue   opqueue.Queue
	logger  *slog.Logger

	mu      sync.Mutex
	state   domain.Cart
	loaded  bool
	version uint64
	epoch   uint64
}

// NewSynchronizer creates an empty, unloaded cart.
func NewSynchronizer(r Remote, s Session, c *cache.Cache, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		remote:  r,
		session: s,
		cache:   c,
		topic:   notify.NewTopic[domain.Cart](collection, logger),
		logger:  logger,
		state:   domain.Cart{Items: []domain.CartLine{}},
	}
}

// Current returns a copy of the cart.
func (s *Synchronizer) Current() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for every published cart.
func (s *Synchronizer) Subscribe(fn func(domain.Cart)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

// Load fetches the cart unless it was already fetched this session.
func (s *Synchronizer) Load(ctx context.Context) (domain.Cart, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return s.Current(), nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches the cart from the server.
func (s *Synchronizer) Refresh(ctx context.Context) (domain.Cart, error) {
	return s.run(ctx, opRefresh, func(ctx context.Context, token string) (remote.CartResult, error) {
		return s.remote.GetCart(ctx, token)
	})
}

// AddItem adds one unit of productID.
func (s *Synchronizer) AddItem(ctx context.Context, productID string) (domain.Cart, error) {
	if productID == "" {
		return s.Current(), apperrors.InvalidInput("product id is required")
	}
	return s.run(ctx, "add", func(ctx context.Context, token string) (remote.CartResult, error) {
		return s.remote.AddToCart(ctx, token, productID)
	})
}

// SetQuantity sets the quantity of productID. Quantities below one are
// rejected; use RemoveItem instead.
func (s *Synchronizer) SetQuantity(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	if productID == "" {
		return s.Current(), apperrors.InvalidInput("product id is required")
	}
	if quantity < 1 {
		return s.Current(), apperrors.InvalidInput("quantity must be at least 1")
	}
	return s.run(ctx, "set_quantity", func(ctx context.Context, token string) (remote.CartResult, error) {
		return s.remote.UpdateCartItem(ctx, token, productID, quantity)
	})
}

// RemoveItem deletes the line holding productID. Removing a product the
// loaded cart does not hold succeeds without calling the server.
func (s *Synchronizer) RemoveItem(ctx context.Context, productID string) (domain.Cart, error) {
	if productID == "" {
		return s.Current(), apperrors.InvalidInput("product id is required")
	}
	if _, err := s.Load(ctx); err != nil {
		return s.Current(), err
	}
	return s.run(ctx, "remove", func(ctx context.Context, token string) (remote.CartResult, error) {
		if _, ok := s.Current().Line(productID); !ok {
			return remote.CartResult{}, errNoChange
		}
		return s.remote.RemoveCartItem(ctx, token, productID)
	})
}

// Clear empties the cart.
func (s *Synchronizer) Clear(ctx context.Context) (domain.Cart, error) {
	return s.run(ctx, "clear", func(ctx context.Context, token string) (remote.CartResult, error) {
		if err := s.remote.ClearCart(ctx, token); err != nil {
			return remote.CartResult{}, err
		}
		return remote.CartResult{Cart: domain.Cart{Items: []domain.CartLine{}}}, nil
	})
}

// Reset drops the cart after the session ended. Results of calls still in
// flight are discarded when they arrive.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.epoch++
	s.version++
	s.state = domain.Cart{Items: []domain.CartLine{}, Version: s.version}
	s.loaded = false
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.topic.Publish(snapshot)
}

// Restore renders the cached cart while the first fetch is under way.
func (s *Synchronizer) Restore(ctx context.Context) bool {
	var cached domain.Cart
	if !s.cache.Read(ctx, cache.KeyCart, &cached) {
		return false
	}

	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return false
	}
	s.version++
	s.state = normalize(cached)
	s.state.Version = s.version
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.topic.Publish(snapshot)
	return true
}

// run executes op in the cart's queue. A mutation is detached from the
// caller's cancellation so it always settles once issued. A refresh gives up
// its turn when the caller goes away first.
func (s *Synchronizer) run(ctx context.Context, op string, call func(context.Context, string) (remote.CartResult, error)) (cart domain.Cart, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(collection, op, start, err) }()

	if s.session.Token() == "" {
		return s.Current(), apperrors.Unauthenticated("log in to use the cart")
	}

	if op == opRefresh {
		if qerr := s.queue.DoContext(ctx, func() { cart, err = s.settle(ctx, op, call) }); qerr != nil {
			return s.Current(), qerr
		}
	} else {
		ctx = context.WithoutCancel(ctx)
		s.queue.Do(func() {
			cart, err = s.settle(ctx, op, call)
		})
	}
	if errors.Is(err, errNoChange) {
		return cart, nil
	}
	return cart, err
}

// settle runs inside the queue.
func (s *Synchronizer) settle(ctx context.Context, op string, call func(context.Context, string) (remote.CartResult, error)) (domain.Cart, error) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	token := s.session.Token()
	if token == "" {
		return s.Current(), apperrors.Unauthenticated("log in to use the cart")
	}

	res, err := call(ctx, token)
	if errors.Is(err, errNoChange) {
		s.logger.DebugContext(ctx, "cart unchanged", slog.String("op", op))
		return s.Current(), err
	}
	if err == nil && res.Partial {
		res, err = s.remote.GetCart(ctx, token)
	}
	if err != nil {
		return s.Current(), s.failed(ctx, op, token, err)
	}

	return s.apply(ctx, op, epoch, token, res.Cart), nil
}

// apply installs the server's cart unless the session changed meanwhile.
func (s *Synchronizer) apply(ctx context.Context, op string, epoch uint64, token string, next domain.Cart) domain.Cart {
	s.mu.Lock()
	if !s.owns(epoch, token) {
		s.mu.Unlock()
		return s.discard(ctx, op)
	}
	s.version++
	s.state = normalize(next)
	s.state.Version = s.version
	s.loaded = true
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.cache.Write(ctx, cache.KeyCart, snapshot)
	s.mu.Lock()
	owned := s.owns(epoch, token)
	s.mu.Unlock()
	if !owned {
		// The session ended while the entry was written and its teardown may
		// have cleared the cache before the write landed.
		s.cache.Clear(ctx, cache.KeyCart)
		return s.discard(ctx, op)
	}

	s.logger.InfoContext(ctx, "cart updated",
		slog.String("op", op),
		slog.Int("lines", snapshot.NumItems()),
		slog.Float64("total_price", snapshot.TotalPrice),
	)
	s.topic.Publish(snapshot)
	return snapshot
}

// owns reports whether a result fetched under epoch and token still belongs
// to the live session. The caller holds s.mu.
func (s *Synchronizer) owns(epoch uint64, token string) bool {
	return epoch == s.epoch && s.session.Token() == token
}

func (s *Synchronizer) discard(ctx context.Context, op string) domain.Cart {
	metrics.StaleResults.WithLabelValues(collection).Inc()
	s.logger.InfoContext(ctx, "discarding cart result from an ended session", slog.String("op", op))
	return s.Current()
}

func (s *Synchronizer) failed(ctx context.Context, op, token string, err error) error {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		if s.session.HandleUnauthorized(ctx, token) {
			s.logger.InfoContext(ctx, "cart call rejected the credential", slog.String("op", op))
		}
		return apperrors.Unauthenticated("your session has expired, please log in again")
	}
	s.logger.ErrorContext(ctx, "cart operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return err
}

// normalize enforces the cart invariants on a server payload: one line per
// product and no line below quantity one.
func normalize(c domain.Cart) domain.Cart {
	out := c
	out.Items = make([]domain.CartLine, 0, len(c.Items))
	index := make(map[string]int, len(c.Items))
	for _, l := range c.Items {
		if l.Quantity < 1 || l.ProductID == "" {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out.Items[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out.Items)
		out.Items = append(out.Items, l)
	}
	return out
}
