// Package uci wraps a UCI-speaking chess engine process. The process is
// started once per session and reused across evaluate calls; per-move
// restarts are far too expensive. Shutdown is deterministic on every exit
// path, including communication failures.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chesscoach/chesscoach-go/internal/conf"
	"github.com/chesscoach/chesscoach-go/internal/errors"
	"github.com/chesscoach/chesscoach-go/internal/observability"
)

const handshakeTimeout = 10 * time.Second

// Engine is a single engine session. All methods are safe for concurrent
// use; commands are serialized because a UCI engine answers one search at
// a time. Independent games should each own their own Engine.
type Engine struct {
	settings conf.EngineSettings
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdinPipe  io.WriteCloser
	stdin      *bufio.Writer
	lines      chan string
	readerStop chan struct{}
	running    bool
	closed     bool
}

// NewEngine starts an engine process and performs the UCI handshake,
// retrying per the configured start policy.
func NewEngine(settings conf.EngineSettings, logger *slog.Logger, metrics *observability.Metrics) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		settings: settings,
		logger:   logger.With("session", uuid.NewString()[:8]),
		metrics:  metrics,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startWithRetryLocked(); err != nil {
		return nil, err
	}
	return e, nil
}

// startWithRetryLocked attempts process start plus handshake, with brief
// backoff between attempts. Caller holds e.mu.
func (e *Engine) startWithRetryLocked() error {
	retries := e.settings.StartRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = e.startLocked()
		if lastErr == nil {
			e.logger.Info("engine session ready",
				"engine", e.settings.Path,
				"attempt", attempt)
			return nil
		}

		e.stopProcessLocked()
		e.logger.Warn("engine start failed",
			"attempt", attempt,
			"max_attempts", retries,
			"error", lastErr)

		if attempt < retries && e.settings.RetryBackoff > 0 {
			time.Sleep(e.settings.RetryBackoff)
		}
	}

	return errors.Newf("engine failed to start after %d attempts: %w", retries, lastErr).
		Component("uci").
		Category(errors.CategoryEngineStart).
		Context("engine_path_set", e.settings.Path != "").
		Build()
}

// startLocked launches the process and completes the UCI handshake.
func (e *Engine) startLocked() error {
	cmd := exec.Command(e.settings.Path)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting engine process: %w", err)
	}

	e.cmd = cmd
	e.stdinPipe = stdinPipe
	e.stdin = bufio.NewWriter(stdinPipe)

	lines := make(chan string, 64)
	stop := make(chan struct{})
	e.lines = lines
	e.readerStop = stop

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	if err := e.send("uci"); err != nil {
		return err
	}
	if err := e.waitFor("uciok", handshakeTimeout); err != nil {
		return err
	}

	if e.settings.Hash > 0 {
		if err := e.send(fmt.Sprintf("setoption name Hash value %d", e.settings.Hash)); err != nil {
			return err
		}
	}
	if e.settings.Threads > 0 {
		if err := e.send(fmt.Sprintf("setoption name Threads value %d", e.settings.Threads)); err != nil {
			return err
		}
	}
	if e.settings.MultiPV > 1 {
		if err := e.send(fmt.Sprintf("setoption name MultiPV value %d", e.settings.MultiPV)); err != nil {
			return err
		}
	}

	if err := e.send("isready"); err != nil {
		return err
	}
	if err := e.waitFor("readyok", handshakeTimeout); err != nil {
		return err
	}

	e.running = true
	return nil
}

// send writes one command line to the engine.
func (e *Engine) send(cmd string) error {
	if e.stdin == nil {
		return errors.Newf("engine process not started").
			Component("uci").
			Category(errors.CategoryEngineIO).
			Build()
	}
	if _, err := e.stdin.WriteString(cmd + "\n"); err != nil {
		return errors.Newf("writing %q to engine: %w", firstToken(cmd), err).
			Component("uci").
			Category(errors.CategoryEngineIO).
			Build()
	}
	if err := e.stdin.Flush(); err != nil {
		return errors.Newf("flushing %q to engine: %w", firstToken(cmd), err).
			Component("uci").
			Category(errors.CategoryEngineIO).
			Build()
	}
	return nil
}

// waitFor consumes engine output until a line contains the token.
func (e *Engine) waitFor(token string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return errors.Newf("engine closed its output while waiting for %q", token).
					Component("uci").
					Category(errors.CategoryEngineIO).
					Build()
			}
			if strings.Contains(line, token) {
				return nil
			}
		case <-timer.C:
			return errors.Newf("timed out waiting for %q from engine", token).
				Component("uci").
				Category(errors.CategoryTimeout).
				Build()
		}
	}
}

// Evaluate analyzes one position to the requested depth. Communication
// failures restart the process and retry per the start policy; exhaustion
// returns a typed error rather than a fabricated score.
func (e *Engine) Evaluate(ctx context.Context, fen string, depth int) (*Evaluation, error) {
	if depth < 1 {
		return nil, errors.Newf("depth must be positive, got %d", depth).
			Component("uci").
			Category(errors.CategoryValidation).
			Build()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.Newf("engine session already closed").
			Component("uci").
			Category(errors.CategoryEngineIO).
			Build()
	}

	retries := e.settings.StartRetries
	if retries < 1 {
		retries = 1
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if !e.running {
			e.metrics.RecordEngineRestart()
			if err := e.startWithRetryLocked(); err != nil {
				return nil, err
			}
		}

		ev, err := e.evaluateOnce(ctx, fen, depth)
		if err == nil {
			e.metrics.ObserveEvalDuration(time.Since(start).Seconds())
			return ev, nil
		}
		lastErr = err

		// A cancelled caller is not an engine fault; don't burn restarts.
		if ctx.Err() != nil {
			return nil, err
		}

		e.logger.Warn("engine evaluation failed, restarting process",
			"attempt", attempt,
			"max_attempts", retries,
			"depth", depth,
			"error", err)
		e.stopProcessLocked()

		if attempt < retries && e.settings.RetryBackoff > 0 {
			time.Sleep(e.settings.RetryBackoff)
		}
	}

	return nil, errors.Newf("engine evaluation failed after %d attempts: %w", retries, lastErr).
		Component("uci").
		Category(errors.CategoryEngineIO).
		Context("depth", depth).
		Timing("evaluate", time.Since(start)).
		Build()
}

// evaluateOnce runs a single search on the live process. Caller holds e.mu.
func (e *Engine) evaluateOnce(ctx context.Context, fen string, depth int) (*Evaluation, error) {
	if e.settings.MoveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.MoveTimeout)
		defer cancel()
	}

	if err := e.send("position fen " + fen); err != nil {
		return nil, err
	}
	if err := e.send(fmt.Sprintf("go depth %d", depth)); err != nil {
		return nil, err
	}

	updates := make(map[int]infoUpdate)
	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return nil, errors.Newf("engine process died during search").
					Component("uci").
					Category(errors.CategoryEngineIO).
					Build()
			}
			if upd, scored := parseInfoLine(line); scored {
				if existing, has := updates[upd.multiPV]; !has || upd.depth >= existing.depth {
					updates[upd.multiPV] = upd
				}
				continue
			}
			if mv, isBest := parseBestMove(line); isBest {
				return buildEvaluation(updates, mv), nil
			}
		case <-ctx.Done():
			return e.stopSearch(updates, ctx.Err())
		}
	}
}

// stopSearch asks the engine to stop and salvages whatever depth was
// reached. Only a search with no scored line at all becomes an error.
func (e *Engine) stopSearch(updates map[int]infoUpdate, cause error) (*Evaluation, error) {
	_ = e.send("stop")

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return nil, errors.Newf("engine process died while stopping search: %w", cause).
					Component("uci").
					Category(errors.CategoryEngineIO).
					Build()
			}
			if upd, scored := parseInfoLine(line); scored {
				if existing, has := updates[upd.multiPV]; !has || upd.depth >= existing.depth {
					updates[upd.multiPV] = upd
				}
				continue
			}
			if mv, isBest := parseBestMove(line); isBest {
				if len(updates) == 0 {
					return nil, errors.Newf("search interrupted before any score: %w", cause).
						Component("uci").
						Category(errors.CategoryCancellation).
						Build()
				}
				return buildEvaluation(updates, mv), nil
			}
		case <-timer.C:
			// Engine didn't answer the stop; force a restart on next call.
			e.running = false
			return nil, errors.Newf("engine did not answer stop: %w", cause).
				Component("uci").
				Category(errors.CategoryTimeout).
				Build()
		}
	}
}

// Close shuts the engine down. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.stopProcessLocked()
	e.logger.Info("engine session closed")
	return nil
}

// stopProcessLocked terminates the process, preferring a graceful quit.
// Caller holds e.mu.
func (e *Engine) stopProcessLocked() {
	if e.cmd == nil {
		return
	}

	_ = e.send("quit")
	if e.stdinPipe != nil {
		_ = e.stdinPipe.Close()
	}
	if e.readerStop != nil {
		close(e.readerStop)
		e.readerStop = nil
	}

	waited := make(chan struct{})
	cmd := e.cmd
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-waited
	}

	e.cmd = nil
	e.stdinPipe = nil
	e.stdin = nil
	e.running = false
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
