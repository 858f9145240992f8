package wishlist_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/cache/memory"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/remote/mock"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/wishlist"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

type fixture struct {
	srv   *mock.Server
	cache *cache.Cache
	sess  *session.Store
	wl    *wishlist.Synchronizer
	user  domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.NewStore())
}

func newFixtureOn(t *testing.T, backend cache.Backend) *fixture {
	t.Helper()
	srv := mock.NewServer()
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv}
	f.cache = cache.New(backend, memory.NewHub(), logger.Nop())
	client := srv.Client()
	f.sess = session.NewStore(client, f.cache, logger.Nop())
	f.wl = wishlist.NewSynchronizer(client, f.sess, f.cache, logger.Nop())
	f.user = srv.SeedUser("Mona Adel", "mona@example.com", "Secret123")
	f.sess.Subscribe(func(s domain.Session) {
		if s.State == domain.StateAnonymous {
			f.wl.Reset()
		}
	})

	_, err := f.sess.Login(context.Background(), domain.Credentials{Email: "mona@example.com", Password: "Secret123"})
	require.NoError(t, err)
	return f
}

func TestToggle_AddsThenRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.srv.Products()[0]

	on, w, err := f.wl.Toggle(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, f.wl.IsFavorited(product.ID))
	require.Len(t, w.Entries, 1)
	assert.Equal(t, product.Title, w.Entries[0].Title, "id-only answers get details")
	assert.Equal(t, []string{product.ID}, f.srv.Wishlist(f.user.ID))

	on, w, err = f.wl.Toggle(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, f.wl.IsFavorited(product.ID))
	assert.Empty(t, w.Entries)
	assert.Empty(t, f.srv.Wishlist(f.user.ID))
}

func TestToggle_SecondToggleWhileInFlightIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.srv.Products()[2]
	_, err := f.wl.Load(ctx)
	require.NoError(t, err)

	arrived := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.srv.SetHook(func(method, route string) {
		if method == http.MethodPost && route == "/wishlist" {
			once.Do(func() {
				close(arrived)
				<-release
			})
		}
	})

	done := make(chan error, 1)
	go func() {
		_, _, err := f.wl.Toggle(ctx, product.ID)
		done <- err
	}()
	<-arrived

	_, _, err = f.wl.Toggle(ctx, product.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, wishlist.ErrToggleInProgress)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.srv.Calls(http.MethodPost, "/wishlist"))
	assert.Equal(t, 0, f.srv.Calls(http.MethodDelete, "/wishlist/{productId}"))
	assert.True(t, f.wl.IsFavorited(product.ID))
}

func TestToggle_DifferentProductsDoNotBlockEachOther(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	products := f.srv.Products()

	var wg sync.WaitGroup
	for _, p := range products[:3] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.wl.Toggle(ctx, p.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, p := range products[:3] {
		assert.True(t, f.wl.IsFavorited(p.ID))
	}
	assert.Len(t, f.wl.Current().Entries, 3)
}

func TestRemove_KeepsDetailsWithoutRefetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	products := f.srv.Products()
	_, err := f.wl.Add(ctx, products[0].ID)
	require.NoError(t, err)
	_, err = f.wl.Add(ctx, products[1].ID)
	require.NoError(t, err)
	gets := f.srv.Calls(http.MethodGet, "/wishlist")

	w, err := f.wl.Remove(ctx, products[0].ID)
	require.NoError(t, err)
	require.Len(t, w.Entries, 1)
	assert.Equal(t, products[1].Title, w.Entries[0].Title)
	assert.Equal(t, gets, f.srv.Calls(http.MethodGet, "/wishlist"))
}

func TestWishlistIsCachedAsArray(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.srv.Products()[0]
	_, err := f.wl.Add(ctx, product.ID)
	require.NoError(t, err)

	var entries []domain.WishlistEntry
	require.True(t, f.cache.Read(ctx, cache.KeyWishlist, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, product.ID, entries[0].ProductID)
}

func TestRestore_FavoritesRenderBeforeFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache.Write(ctx, cache.KeyWishlist, []domain.WishlistEntry{{ProductID: "p1"}, {ProductID: "p2"}})
	calls := f.srv.TotalCalls()

	require.True(t, f.wl.Restore(ctx))
	assert.True(t, f.wl.IsFavorited("p1"))
	assert.True(t, f.wl.IsFavorited("p2"))
	assert.Equal(t, calls, f.srv.TotalCalls())
}

func TestUnauthorized_ClearsFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.srv.Products()[0]
	_, err := f.wl.Add(ctx, product.ID)
	require.NoError(t, err)

	f.srv.Revoke(f.sess.Token())
	_, _, err = f.wl.Toggle(ctx, f.srv.Products()[1].ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))

	assert.False(t, f.sess.Current().Authenticated())
	assert.False(t, f.wl.IsFavorited(product.ID))
	assert.Empty(t, f.wl.Current().Entries)
}

func TestToggle_RequiresSession(t *testing.T) {
	f := newFixture(t)
	f.sess.Logout(context.Background())
	calls := f.srv.TotalCalls()

	_, _, err := f.wl.Toggle(context.Background(), f.srv.Products()[0].ID)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
	assert.Equal(t, calls, f.srv.TotalCalls())
}

// interruptingStore runs a callback just before a value is stored.
type interruptingStore struct {
	*memory.Store

	mu    sync.Mutex
	onSet func(key string)
}

func (s *interruptingStore) beforeSet(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSet = fn
}

func (s *interruptingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fn := s.onSet
	s.mu.Unlock()
	if fn != nil {
		fn(key)
	}
	return s.Store.Set(ctx, key, value)
}

func TestLogoutDuringCacheWrite_LeavesNoCachedFavorites(t *testing.T) {
	backend := &interruptingStore{Store: memory.NewStore()}
	f := newFixtureOn(t, backend)
	ctx := context.Background()
	product := f.srv.Products()[0]

	var once sync.Once
	backend.beforeSet(func(key string) {
		if key == cache.KeyWishlist {
			once.Do(func() { f.sess.ForceLogout(ctx) })
		}
	})

	_, err := f.wl.Add(ctx, product.ID)
	require.NoError(t, err)

	assert.False(t, f.sess.Current().Authenticated())
	assert.False(t, f.wl.IsFavorited(product.ID))
	var entries []domain.WishlistEntry
	assert.False(t, f.cache.Read(ctx, cache.KeyWishlist, &entries), "favorites written as the session ended must not survive it")
}
