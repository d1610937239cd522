package exchange

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/semaphore"

	"github.com/suwandre/depthwatch/internal/metrics"
	"github.com/suwandre/depthwatch/internal/models"
)

// Request is one outbound call. Params are never modified.
type Request struct {
	Method string
	Path   string
	// Endpoint labels metrics; defaults to Path. Set it when Path embeds a symbol.
	Endpoint string
	Params   map[string]string
	// Private requests fail with ErrCredentialsMissing when the client has no
	// credentials. Public requests are still signed when credentials exist.
	Private bool
}

// errCallerDone wraps transport errors caused by the caller's own context
// ending. They say nothing about the exchange's health.
var errCallerDone = errors.New("caller context done")

type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error (HTTP %d)", e.status)
}

// dispatcher is the single chokepoint for a client's outbound requests.
type dispatcher struct {
	profile     Profile
	creds       *models.Credentials
	baseURL     string
	timeout     time.Duration
	proxyAddr   string
	minInterval time.Duration

	sem *semaphore.Weighted

	// Guards only the wait-and-record step. Requests past it overlap freely.
	mu          sync.Mutex
	lastRequest time.Time

	sessionMu sync.Mutex
	session   *resty.Client
	sessions  int

	cb *gobreaker.CircuitBreaker
}

func newDispatcher(cfg clientConfig, creds *models.Credentials) *dispatcher {
	d := &dispatcher{
		profile:     cfg.profile,
		creds:       creds,
		baseURL:     cfg.baseURL,
		timeout:     cfg.timeout,
		proxyAddr:   cfg.proxyAddr,
		minInterval: cfg.minInterval,
		sem:         semaphore.NewWeighted(cfg.maxConcurrent),
	}

	if cfg.breaker {
		name := cfg.profile.Name + "-api"
		d.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errCallerDone)
			},
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Stringer("from", from).
					Stringer("to", to).
					Msg("circuit breaker state changed")
			},
		})
	}

	return d
}

// open creates the transport session if there is none.
func (d *dispatcher) open() *resty.Client {
	d.sessionMu.Lock()
	defer d.sessionMu.Unlock()

	if d.session == nil {
		d.session = d.newSession()
		d.sessions++
		log.Debug().Str("exchange", d.profile.Name).Int("session", d.sessions).Msg("transport session opened")
	}
	return d.session
}

// close drops the session. The next request opens a fresh one.
func (d *dispatcher) close() {
	d.sessionMu.Lock()
	defer d.sessionMu.Unlock()

	if d.session != nil {
		d.session.GetClient().CloseIdleConnections()
		d.session = nil
		log.Debug().Str("exchange", d.profile.Name).Msg("transport session closed")
	}
}

func (d *dispatcher) newSession() *resty.Client {
	rc := resty.New().
		SetBaseURL(d.baseURL).
		SetTimeout(d.timeout)

	if d.proxyAddr == "" {
		return rc
	}

	proxyURL := &url.URL{Scheme: "socks5h", Host: d.proxyAddr}
	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		log.Error().Err(err).Str("proxy", d.proxyAddr).Msg("failed to create SOCKS5 dialer, using direct connection")
		return rc
	}

	return rc.SetTransport(&http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	})
}

// throttle blocks until minInterval has passed since the last recorded
// request start, then records a new start.
func (d *dispatcher) throttle(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	if wait := d.minInterval - start.Sub(d.lastRequest); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	d.lastRequest = time.Now()

	metrics.RateLimitWait.WithLabelValues(d.profile.Name).Observe(time.Since(start).Seconds())
	return nil
}

func (d *dispatcher) do(ctx context.Context, req Request) ([]byte, error) {
	name := d.profile.Name

	if req.Private && d.creds == nil {
		return nil, newError(name, KindCredentials, "authenticated request without credentials", ErrCredentialsMissing)
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, newError(name, KindNetwork, "concurrency gate", err)
	}
	defer d.sem.Release(1)

	if err := d.throttle(ctx); err != nil {
		return nil, newError(name, KindNetwork, "rate limit wait", err)
	}

	rc := d.open()

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Path
	}
	requestID := uuid.NewString()
	started := time.Now()

	metrics.RequestsInFlight.WithLabelValues(name).Inc()
	defer metrics.RequestsInFlight.WithLabelValues(name).Dec()

	r, target, err := d.build(ctx, rc, req)
	if err != nil {
		return nil, err
	}

	resp, err := d.send(ctx, r, req.Method, target)

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	metrics.ExchangeRequestsTotal.WithLabelValues(name, endpoint, status).Inc()
	metrics.ExchangeRequestDuration.WithLabelValues(name, endpoint).Observe(time.Since(started).Seconds())

	log.Debug().
		Str("exchange", name).
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Str("status", status).
		Dur("took", time.Since(started)).
		Msg("exchange request")

	if err != nil {
		return nil, err
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		apiErr := newError(name, KindAPI, fmt.Sprintf("API Error: %d", resp.StatusCode()), nil)
		apiErr.StatusCode = resp.StatusCode()
		return nil, apiErr
	}

	if d.profile.CheckBody != nil {
		if err := d.profile.CheckBody(body); err != nil {
			if errors.Is(err, errMalformedBody) {
				return nil, newError(name, KindUnexpected, "failed to decode response", err)
			}
			return nil, newError(name, KindAPI, "API Error: "+err.Error(), nil)
		}
	}

	return body, nil
}

// build captures one timestamp, signs a copy of the params with it and
// returns the request ready to execute plus its target URL.
func (d *dispatcher) build(ctx context.Context, rc *resty.Client, req Request) (*resty.Request, string, error) {
	p := d.profile
	params := maps.Clone(req.Params)
	if params == nil {
		params = make(map[string]string)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if p.TimestampParam != "" {
		params[p.TimestampParam] = timestamp
	}

	headers := make(map[string]string)
	var signature string
	if d.creds != nil {
		sig, err := Sign(p.Scheme, d.creds, params, timestamp)
		if err != nil {
			return nil, "", newError(p.Name, KindCredentials, "signing failed", err)
		}
		signature = sig

		headers[p.Headers.Key] = d.creds.APIKey
		if p.Headers.Sign != "" && p.SignatureParam == "" {
			headers[p.Headers.Sign] = sig
		}
		if p.Headers.Timestamp != "" {
			headers[p.Headers.Timestamp] = timestamp
		}
		if p.Headers.Passphrase != "" && d.creds.Passphrase != "" {
			headers[p.Headers.Passphrase] = d.creds.Passphrase
		}
	}

	r := rc.R().SetContext(ctx).SetHeaders(headers)
	target := req.Path

	if req.Method == http.MethodGet {
		query := encodeSorted(params)
		if signature != "" && p.SignatureParam != "" {
			if query != "" {
				query += "&"
			}
			query += url.QueryEscape(p.SignatureParam) + "=" + signature
		}
		if query != "" {
			target += "?" + query
		}
		return r, target, nil
	}

	if signature != "" && p.SignatureParam != "" {
		params[p.SignatureParam] = signature
	}
	r.SetHeader("Content-Type", "application/json").SetBody(params)
	return r, target, nil
}

func (d *dispatcher) send(ctx context.Context, r *resty.Request, method, target string) (*resty.Response, error) {
	name := d.profile.Name

	execute := func() (*resty.Response, error) {
		resp, err := r.Execute(method, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerDone, err)
			}
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, &serverError{status: resp.StatusCode()}
		}
		return resp, nil
	}

	var (
		resp *resty.Response
		err  error
	)
	if d.cb == nil {
		resp, err = execute()
	} else {
		var out interface{}
		out, err = d.cb.Execute(func() (interface{}, error) {
			return execute()
		})
		resp, _ = out.(*resty.Response)
	}

	var srvErr *serverError
	switch {
	case err == nil:
		return resp, nil
	case errors.As(err, &srvErr) && resp != nil:
		// Surfaces through the status check in do.
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, newError(name, KindNetwork, "circuit breaker open", err)
	case errors.Is(err, errCallerDone):
		return nil, newError(name, KindNetwork, "request cancelled", ctx.Err())
	default:
		return nil, newError(name, KindNetwork, "Network error", err)
	}
}
