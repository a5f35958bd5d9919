package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Default client limits for RPCFeed.
const (
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 10
	DefaultTripFailures      = 3
	DefaultBreakerTimeout    = 30 * time.Second
)

// RPCFeed reads price rounds from a JSON-RPC 1.0 endpoint exposing
// oracle_latestRound. Requests are rate limited, and a run of consecutive
// failures opens a circuit breaker that fails fast until it times out.
type RPCFeed struct {
	url     string
	user    string
	pass    string
	client  *http.Client
	nextID  atomic.Int64
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Compile-time interface check.
var _ Feed = (*RPCFeed)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRPCFeed creates a feed client. Zero limits in cfg take the defaults.
func NewRPCFeed(cfg FeedConfig) *RPCFeed {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	trip := cfg.TripFailures
	if trip == 0 {
		trip = DefaultTripFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	st := gobreaker.Settings{Name: "oracle-feed:" + cfg.URL}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= trip }
	st.Timeout = timeout

	return &RPCFeed{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// LatestRound implements Feed.
func (f *RPCFeed) LatestRound(ctx context.Context, ref string) (RoundData, error) {
	var rd RoundData
	if err := f.Call(ctx, "oracle_latestRound", []any{ref}, &rd); err != nil {
		return RoundData{}, err
	}
	return rd, nil
}

// State reports the circuit breaker state.
func (f *RPCFeed) State() gobreaker.State { return f.breaker.State() }

// Call invokes a JSON-RPC method and decodes its result into result.
// RPC-level errors are returned with the server's message and count as
// breaker failures like transport errors do.
func (f *RPCFeed) Call(ctx context.Context, method string, params []any, result any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("oracle: rate limit: %w", err)
	}
	_, err := f.breaker.Execute(func() (any, error) {
		return nil, f.call(ctx, method, params, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	return err
}

func (f *RPCFeed) call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      f.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.user != "" {
		req.SetBasicAuth(f.user, f.pass)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Code == rpcCodeUnknownFeed {
			return fmt.Errorf("%w: %s", ErrUnknownFeed, rpcResp.Error.Message)
		}
		return fmt.Errorf("oracle: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%w: empty result", ErrInvalidResponse)
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
	}
	return nil
}

// rpcCodeUnknownFeed is the error code a feed server returns for a
// reference it does not serve.
const rpcCodeUnknownFeed = -32602
