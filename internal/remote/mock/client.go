package mock

import (
	"time"

	"github.com/utafrali/storefront/internal/remote"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

// Client returns a remote client wired to s through the production HTTP
// stack, without retries so failures injected with FailNext surface once.
func (s *Server) Client() *remote.Client {
	hc := httpclient.New(httpclient.Config{
		Timeout:         5 * time.Second,
		MaxConnsPerHost: 16,
	})
	cb := httpclient.NewCircuitBreakerClient(hc, httpclient.CircuitBreakerConfig{
		Name:         "storefront-mock-" + newID()[:8],
		MaxRequests:  1,
		Timeout:      time.Second,
		FailureRatio: 1,
		MinRequests:  1000,
	}, logger.Nop())
	return remote.New(s.BaseURL(), cb, logger.Nop())
}
