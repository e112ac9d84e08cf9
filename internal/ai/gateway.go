package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// defaultCooldown is how long the primary provider is skipped after a
// failure, so a systemically-down primary does not charge every turn its
// full timeout.
const defaultCooldown = time.Minute

// Gateway sends completion requests to a primary provider and falls back to
// a secondary provider on any failure. There is no retry beyond the single
// primary-to-secondary fallback.
type Gateway struct {
	primary       Provider
	secondary     Provider
	primaryOpts   ChatOptions
	secondaryOpts ChatOptions
	persona       *Persona
	timeout       time.Duration
	cooldown      time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	downUntil time.Time
}

// NewGateway creates a completion gateway. timeout bounds each provider
// call; a call exceeding it counts as that provider's failure.
func NewGateway(
	primary Provider,
	primaryOpts ChatOptions,
	secondary Provider,
	secondaryOpts ChatOptions,
	persona *Persona,
	timeout time.Duration,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		primary:       primary,
		secondary:     secondary,
		primaryOpts:   primaryOpts,
		secondaryOpts: secondaryOpts,
		persona:       persona,
		timeout:       timeout,
		cooldown:      defaultCooldown,
		logger:        logger,
	}
}

// Complete prepends the persona system message and obtains a reply,
// primary first, secondary on failure. If both fail the returned error
// carries both causes.
func (g *Gateway) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	full := make([]ChatMessage, 0, len(messages)+1)
	full = append(full, g.persona.SystemMessage())
	full = append(full, messages...)

	var primaryErr error
	if g.primaryHealthy() {
		text, err := g.call(ctx, g.primary, full, g.primaryOpts)
		if err == nil {
			return text, nil
		}
		primaryErr = err
		// A failure caused by the caller cancelling is not the provider's
		// fault; only provider-side failures engage the cooldown.
		if ctx.Err() == nil {
			g.markPrimaryDown()
		}
		g.logger.Warn("primary provider failed, trying fallback",
			"provider", g.primary.Name(),
			"error", err,
		)
	} else {
		primaryErr = fmt.Errorf("%s skipped: recent failure, in cooldown", g.primary.Name())
		g.logger.Debug("skipping primary provider during cooldown", "provider", g.primary.Name())
	}

	text, err := g.call(ctx, g.secondary, full, g.secondaryOpts)
	if err == nil {
		return text, nil
	}

	return "", fmt.Errorf("both providers failed: %v; %s: %w", primaryErr, g.secondary.Name(), err)
}

// Models returns the model IDs offered across both providers. An error is
// returned only when neither provider can be listed.
func (g *Gateway) Models(ctx context.Context) ([]string, error) {
	var ids []string
	var lastErr error
	for _, p := range []Provider{g.primary, g.secondary} {
		models, err := p.ListModels(ctx)
		if err != nil {
			lastErr = err
			g.logger.Warn("failed to list models", "provider", p.Name(), "error", err)
			continue
		}
		ids = append(ids, models...)
	}
	if len(ids) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return ids, nil
}

func (g *Gateway) call(ctx context.Context, p Provider, messages []ChatMessage, opts ChatOptions) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return p.Chat(cctx, messages, opts)
}

func (g *Gateway) primaryHealthy() bool {
	if g.cooldown <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().After(g.downUntil)
}

func (g *Gateway) markPrimaryDown() {
	if g.cooldown <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downUntil = time.Now().Add(g.cooldown)
}
