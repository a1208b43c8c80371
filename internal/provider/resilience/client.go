package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the upstream while its
// breaker is open or saturated in half-open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// HTTPDoer is the request surface shared by Client and *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for an upstream client.
type Config struct {
	// Name identifies the upstream in the registry and in logs.
	Name string

	// Timeout bounds each HTTP attempt. Zero leaves attempts unbounded;
	// the request context still applies.
	Timeout time.Duration

	// Retries is the number of additional attempts after a transport
	// failure or 5xx. Zero means exactly one attempt.
	Retries uint64

	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Breaker overrides DefaultBreakerConfig(Name) when set.
	Breaker *BreakerConfig

	// Registry, when set, receives the client and its call outcomes.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultConfig returns defaults for an idempotent upstream.
func DefaultConfig(name string) Config {
	return Config{
		Name:           name,
		Timeout:        10 * time.Second,
		Retries:        2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Logger:         zerolog.Nop(),
	}
}

// Client is an HTTP client guarded by a circuit breaker.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        Config
}

// NewClient creates a Client and registers it when cfg.Registry is set.
func NewClient(cfg Config) *Client {
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 2 * time.Second
	}

	bcfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		bcfg = *cfg.Breaker
		if bcfg.Name == "" {
			bcfg.Name = cfg.Name
		}
	}
	logger := cfg.Logger.With().Str("upstream", cfg.Name).Logger()
	notify := bcfg.OnStateChange
	bcfg.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().
			Str("from", StateName(from)).
			Str("to", StateName(to)).
			Msg("circuit breaker state changed")
		if notify != nil {
			notify(name, from, to)
		}
	}
	cfg.Logger = logger

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(bcfg),
		cfg:        cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Do sends req through the breaker. Transport failures and 5xx responses
// count as breaker failures and are retried up to cfg.Retries times. When
// retries run out on a 5xx, the last response is returned with a nil error
// so the caller can read the upstream's error body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.Retries > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.cfg.InitialBackoff
		bo.MaxInterval = c.cfg.MaxBackoff
		bo.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(bo, c.cfg.Retries)
	}
	policy = backoff.WithContext(policy, ctx)

	var (
		lastResp *http.Response
		attempt  int
	)
	keep := func(resp *http.Response) {
		if lastResp != nil && lastResp != resp {
			_ = lastResp.Body.Close()
		}
		lastResp = resp
	}

	operation := func() error {
		attempt++
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			out := req.Clone(ctx)
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				out.Body = body
			}
			r, err := c.httpClient.Do(out)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				keep(resp)
			}
			c.cfg.Logger.Debug().Err(err).Int("attempt", attempt).Msg("upstream attempt failed")
			return err
		}

		keep(resp)
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil && lastResp == nil {
		c.record(err)
		return nil, err
	}
	if lastResp.StatusCode >= 500 {
		c.record(&ServerError{StatusCode: lastResp.StatusCode})
	} else {
		c.record(nil)
	}
	return lastResp, nil
}

func (c *Client) record(err error) {
	if c.cfg.Registry == nil {
		return
	}
	if err != nil {
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
		return
	}
	c.cfg.Registry.RecordSuccess(c.cfg.Name)
}

// State returns the current breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker's counters for the current generation.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError is an upstream 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
