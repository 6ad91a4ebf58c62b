package gateway

import (
	"context"
	"net/http"

	"github.com/shopfront/ledger/internal/auth"
)

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays the request against the ledger service. The
// caller identity and payment headers carry the authorization and
// funds, so they must survive the hop.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if caller := r.Header.Get(auth.CallerHeader); caller != "" {
		req.Header.Set(auth.CallerHeader, caller)
	}
	if payment := r.Header.Get(auth.PaymentHeader); payment != "" {
		req.Header.Set(auth.PaymentHeader, payment)
	}

	return p.client.Do(req)
}
