// Package source talks to the upstream league stats provider.
// All calls are rate limited, guarded by a circuit breaker and return *UpstreamError on failure.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hoopstats/propcast/internal/models"
)

const (
	DefaultBaseURL = "https://stats.nba.com/stats"

	gameLogEndpoint = "playergamelog"
	rosterEndpoint  = "commonallplayers"

	// halfOpenPoll is how often a caller rejected during the half-open probe checks again
	halfOpenPoll = 25 * time.Millisecond
)

var upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "propcast_upstream_requests_total",
	Help: "Upstream provider requests by endpoint and outcome",
}, []string{"endpoint", "outcome"})

// Config configures the upstream client
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RatePerSecond   float64
	Burst           int
	RosterTTL       time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	UserAgent       string
}

// DefaultConfig returns conservative settings for the public provider.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         60 * time.Second,
		RatePerSecond:   2,
		Burst:           1,
		RosterTTL:       6 * time.Hour,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
		UserAgent:       "Mozilla/5.0 (compatible; propcast/1.0)",
	}
}

// Client fetches game logs and rosters.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	roster     *cache.Cache
	logger     *zap.SugaredLogger

	// openUntil is when the open breaker next lets a probe through, in unix nanoseconds
	openUntil atomic.Int64
}

// New creates a new upstream client
func New(cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.RosterTTL <= 0 {
		cfg.RosterTTL = def.RosterTTL
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		roster:     cache.New(cfg.RosterTTL, cfg.RosterTTL*2),
		logger:     logger.Sugar(),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "upstream",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Permanent errors say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || KindOf(err) == KindPermanent
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.openUntil.Store(time.Now().Add(cfg.BreakerTimeout).UnixNano())
			}
			c.logger.Warnw("Upstream circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// breakerRemaining is how long the open breaker keeps rejecting calls.
func (c *Client) breakerRemaining() time.Duration {
	d := time.Until(time.Unix(0, c.openUntil.Load()))
	if d < 0 {
		return 0
	}
	return d
}

// resultTable is the provider's tabular payload
type resultTable struct {
	Name    string              `json:"name"`
	Headers []string            `json:"headers"`
	RowSet  [][]models.FlexCell `json:"rowSet"`
}

type resultEnvelope struct {
	ResultSets []resultTable `json:"resultSets"`
}

// rows maps every row of the table onto its headers.
func (t resultTable) rows() []models.RawRow {
	out := make([]models.RawRow, 0, len(t.RowSet))
	for _, cells := range t.RowSet {
		r := make(models.RawRow, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(cells) {
				r[strings.ToUpper(h)] = cells[i]
			}
		}
		out = append(out, r)
	}
	return out
}

// FetchSeasonLog fetches raw per-game rows for one athlete and season.
func (c *Client) FetchSeasonLog(ctx context.Context, athleteID int64, season string) ([]models.RawRow, error) {
	params := url.Values{}
	params.Set("PlayerID", strconv.FormatInt(athleteID, 10))
	params.Set("Season", season)
	params.Set("SeasonType", "Regular Season")

	table, err := c.getTable(ctx, gameLogEndpoint, params)
	if err != nil {
		return nil, err
	}
	return table.rows(), nil
}

// ActiveAthletes lists the players on a current roster. Results are cached per season.
func (c *Client) ActiveAthletes(ctx context.Context, season string) ([]models.Athlete, error) {
	if cached, ok := c.roster.Get(season); ok {
		return cached.([]models.Athlete), nil
	}

	params := url.Values{}
	params.Set("LeagueID", "00")
	params.Set("Season", season)
	params.Set("IsOnlyCurrentSeason", "1")

	table, err := c.getTable(ctx, rosterEndpoint, params)
	if err != nil {
		return nil, err
	}

	var athletes []models.Athlete
	for _, r := range table.rows() {
		id, ok := r["PERSON_ID"].Float()
		if !ok {
			continue
		}
		if status, ok := r["ROSTERSTATUS"].Float(); ok && status == 0 {
			continue
		}
		name := r["DISPLAY_FIRST_LAST"].String()
		if name == "" {
			continue
		}
		athletes = append(athletes, models.Athlete{
			ID:   int64(id),
			Name: name,
			Team: r["TEAM_ABBREVIATION"].String(),
		})
	}

	c.roster.Set(season, athletes, cache.DefaultExpiration)
	c.logger.Infow("Loaded active roster", "season", season, "athletes", len(athletes))
	return athletes, nil
}

// FindAthlete resolves a full name case-insensitively against the active roster.
func (c *Client) FindAthlete(ctx context.Context, season, name string) (models.Athlete, error) {
	athletes, err := c.ActiveAthletes(ctx, season)
	if err != nil {
		return models.Athlete{}, err
	}
	for _, a := range athletes {
		if strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a, nil
		}
	}
	return models.Athlete{}, fmt.Errorf("%w: athlete %q not on an active roster", models.ErrNotFound, name)
}

func (c *Client) getTable(ctx context.Context, endpoint string, params url.Values) (resultTable, error) {
	body, err := c.execute(ctx, endpoint, params)
	if err != nil {
		return resultTable{}, err
	}

	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		upstreamRequests.WithLabelValues(endpoint, "decode_error").Inc()
		return resultTable{}, &UpstreamError{Kind: KindPermanent, Endpoint: endpoint, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(env.ResultSets) == 0 {
		upstreamRequests.WithLabelValues(endpoint, "decode_error").Inc()
		return resultTable{}, &UpstreamError{Kind: KindPermanent, Endpoint: endpoint, Err: errors.New("response has no result sets")}
	}

	upstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return env.ResultSets[0], nil
}

// execute runs one fetch through the breaker. While the half-open probe is in
// flight other callers wait for its verdict instead of failing. An open breaker
// fails fast with RetryAfter set to the time left until it half-opens.
func (c *Client) execute(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	for {
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(ctx, endpoint, params)
		})
		switch {
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			timer := time.NewTimer(halfOpenPoll)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &UpstreamError{Kind: KindUnavailable, Endpoint: endpoint, Err: ctx.Err()}
			case <-timer.C:
			}
		case errors.Is(err, gobreaker.ErrOpenState):
			upstreamRequests.WithLabelValues(endpoint, "breaker_open").Inc()
			return nil, &UpstreamError{Kind: KindUnavailable, RetryAfter: c.breakerRemaining(), Endpoint: endpoint, Err: err}
		default:
			return body, err
		}
	}
}

// fetch makes one rate-limited GET and classifies the outcome
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Endpoint: endpoint, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.cfg.BaseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: KindPermanent, Endpoint: endpoint, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://www.nba.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, &UpstreamError{Kind: KindUnavailable, Endpoint: endpoint, Err: fmt.Errorf("making request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, &UpstreamError{Kind: KindUnavailable, StatusCode: resp.StatusCode, Endpoint: endpoint, Err: fmt.Errorf("reading body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		upstreamRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, &UpstreamError{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Endpoint:   endpoint,
			Err:        errors.New("rate limited"),
		}
	case resp.StatusCode >= 500:
		upstreamRequests.WithLabelValues(endpoint, "server_error").Inc()
		return nil, &UpstreamError{Kind: KindUnavailable, StatusCode: resp.StatusCode, Endpoint: endpoint, Err: fmt.Errorf("server error: %s", truncate(body, 200))}
	default:
		upstreamRequests.WithLabelValues(endpoint, "client_error").Inc()
		return nil, &UpstreamError{Kind: KindPermanent, StatusCode: resp.StatusCode, Endpoint: endpoint, Err: fmt.Errorf("unexpected status: %s", truncate(body, 200))}
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
