// Package cloudeval queries a hosted position-evaluation service keyed by
// FEN. A position the service has never seen is a normal miss, not an
// error; callers fall through to the local engine.
package cloudeval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/chesscoach/chesscoach-go/internal/chessmove"
	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/logging"
	"github.com/chesscoach/chesscoach-go/internal/observability"
	"github.com/chesscoach/chesscoach-go/internal/uci"
)

// Package-level logger specific to the cloud evaluation service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "cloudeval.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "cloudeval", serviceLevelVar)
	if err != nil {
		log.Printf("FATAL: Failed to initialize cloudeval file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "cloudeval")
		closeLogger = func() error { return nil }
	}
}

// The rate gate is shared by every client in the process so that parallel
// game analyses cannot burst the service between them.
var (
	sharedGateOnce sync.Once
	sharedGate     *rate.Limiter
)

func sharedLimiter(perSecond float64) *rate.Limiter {
	sharedGateOnce.Do(func() {
		if perSecond <= 0 {
			perSecond = 1
		}
		sharedGate = rate.NewLimiter(rate.Limit(perSecond), 1)
	})
	return sharedGate
}

// Client looks up positions on the evaluation service with rate limiting,
// response caching and automatic pause on rate-limit responses.
type Client struct {
	config     conf.CloudSettings
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	metrics    *observability.Metrics

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewClient creates a cloud evaluation client sharing the process-wide
// rate gate. metrics may be nil.
func NewClient(config conf.CloudSettings, metrics *observability.Metrics) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.Newf("cloud evaluation endpoint is required").
			Category(errors.CategoryConfiguration).
			Component("cloudeval").
			Build()
	}
	if config.Timeout == 0 {
		config.Timeout = conf.DefaultCloudTimeout
	}
	if config.ResponseTTL == 0 {
		config.ResponseTTL = conf.DefaultCloudResponseTTL
	}
	if config.RateLimitPause == 0 {
		config.RateLimitPause = conf.DefaultCloudRateLimitPause
	}
	return newClientWithLimiter(config, metrics, sharedLimiter(config.RatePerSecond)), nil
}

func newClientWithLimiter(config conf.CloudSettings, metrics *observability.Metrics, limiter *rate.Limiter) *Client {
	client := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache.New(config.ResponseTTL, config.ResponseTTL*2),
		limiter:    limiter,
		metrics:    metrics,
	}
	logger.Info("cloud evaluation client initialized",
		"endpoint", config.Endpoint,
		"timeout", config.Timeout,
		"rate_per_second", config.RatePerSecond,
		"response_ttl", config.ResponseTTL)
	return client
}

// Close releases client resources.
func (c *Client) Close() {
	logger.Info("Closing cloud evaluation client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing cloudeval logger: %v", err)
		}
	}
}

// response is the service's JSON shape: one entry per principal
// variation, centipawns from white's point of view.
type response struct {
	FEN    string `json:"fen"`
	Depth  int    `json:"depth"`
	KNodes int    `json:"knodes"`
	PVs    []struct {
		Moves string `json:"moves"`
		CP    *int   `json:"cp,omitempty"`
		Mate  *int   `json:"mate,omitempty"`
	} `json:"pvs"`
}

// Lookup fetches an evaluation for fen, requesting multiPV variations.
// found is false when the service has no answer for the position, when
// the client is paused after a rate-limit response, or when cloud lookups
// are disabled. The returned evaluation is from the side to move's
// perspective, matching local engine output.
func (c *Client) Lookup(ctx context.Context, fen string, multiPV int) (eval *uci.Evaluation, found bool, err error) {
	if !c.config.Enabled {
		return nil, false, nil
	}
	if multiPV < 1 {
		multiPV = 1
	}
	key := fmt.Sprintf("%s|%d", chessmove.NormalizeFEN(fen), multiPV)
	if cached, ok := c.cache.Get(key); ok {
		if hit, ok := cached.(*uci.Evaluation); ok {
			logger.Debug("cloud response cache hit", "fen_length", len(fen))
			return hit, true, nil
		}
	}

	if c.paused() {
		logger.Debug("cloud lookups paused after rate limit response")
		return nil, false, nil
	}

	// Shared rate gate: one ticket per request across the whole process.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, errors.New(err).
			Category(errors.CategoryCancellation).
			Component("cloudeval").
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s?fen=%s&multiPv=%d", c.config.Endpoint, url.QueryEscape(fen), multiPV)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, false, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("endpoint", c.config.Endpoint).
			Component("cloudeval").
			Build()
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("cloud evaluation request failed", "error", err)
		return nil, false, errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("endpoint", c.config.Endpoint).
			Component("cloudeval").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Unknown position. The expected case, not an error.
		logger.Debug("position not in cloud database",
			"fen_length", len(fen),
			"duration_ms", time.Since(start).Milliseconds())
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		c.pause()
		c.metrics.RecordCloudBackoff()
		logger.Warn("cloud service rate limited, pausing lookups",
			"pause", c.config.RateLimitPause)
		return nil, false, nil
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, errors.Newf("cloud evaluation error (status %d): %s", resp.StatusCode, string(body)).
			Category(statusCategory(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Component("cloudeval").
			Build()
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, errors.Newf("failed to parse cloud response: %w", err).
			Category(errors.CategoryFileParsing).
			Component("cloudeval").
			Build()
	}

	eval, err = c.toEvaluation(fen, &payload)
	if err != nil {
		return nil, false, err
	}

	c.cache.Set(key, eval, cache.DefaultExpiration)
	logger.Debug("cloud evaluation hit",
		"depth", eval.Depth,
		"duration_ms", time.Since(start).Milliseconds())
	return eval, true, nil
}

// toEvaluation converts the white-oriented service response into the
// side-to-move perspective used everywhere else.
func (c *Client) toEvaluation(fen string, payload *response) (*uci.Evaluation, error) {
	if len(payload.PVs) == 0 {
		return nil, errors.Newf("cloud response has no variations").
			Category(errors.CategoryFileParsing).
			Component("cloudeval").
			Build()
	}
	pos, err := chessmove.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	stm := pos.Turn()

	eval := &uci.Evaluation{Depth: payload.Depth}
	for i, pv := range payload.PVs {
		moves := strings.Fields(pv.Moves)
		variation := uci.Variation{Moves: moves}
		switch {
		case pv.Mate != nil:
			variation.HasMate = true
			variation.MateIn = chessmove.PerspectiveMate(*pv.Mate, stm)
		case pv.CP != nil:
			variation.ScoreCP = chessmove.PerspectiveCentipawns(*pv.CP, stm)
		default:
			continue
		}
		if i == 0 {
			eval.ScoreCP = variation.ScoreCP
			eval.MateIn = variation.MateIn
			eval.HasMate = variation.HasMate
			eval.PV = moves
			if len(moves) > 0 {
				eval.BestMove = moves[0]
			}
		}
		eval.Lines = append(eval.Lines, variation)
	}
	return eval, nil
}

func (c *Client) paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.pausedUntil)
}

func (c *Client) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pausedUntil = time.Now().Add(c.config.RateLimitPause)
}

func statusCategory(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryConfiguration
	case http.StatusTooManyRequests:
		return errors.CategoryLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryNetwork
	}
}
