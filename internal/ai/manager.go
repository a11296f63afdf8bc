package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

type ManagerConfig struct {
	DefaultProvider string
	// Timeout bounds a single provider attempt.
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Manager dispatches generation to named providers and owns the retry,
// timeout and temperature fallback policy.
type Manager struct {
	generators map[string]IGenerator
	cfg        ManagerConfig
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewManager(generators map[string]IGenerator, cfg ManagerConfig) *Manager {
	return &Manager{generators: generators, cfg: cfg, sleep: sleepContext}
}

func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.generators))
	for name := range m.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) resolve(provider string) (string, IGenerator, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "" {
		name = m.cfg.DefaultProvider
	}
	gen := m.generators[name]
	if gen == nil {
		return "", nil, fmt.Errorf("%w: unknown provider %q", appErr.ErrInvalid, provider)
	}
	return name, gen, nil
}

// Generate returns the provider's answer or an error matching
// ErrGenerationTimeout, ErrGenerationFailure or ErrInvalid.
func (m *Manager) Generate(ctx context.Context, provider string, req GenerateRequest) (string, error) {
	name, gen, err := m.resolve(provider)
	if err != nil {
		return "", err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("provider", name))
	droppedTemperature := false
	retries := 0
	for {
		text, err := m.attempt(ctx, gen, req)
		if err == nil {
			if text == "" {
				return "", fmt.Errorf("%w: %s returned an empty answer", appErr.ErrGenerationFailure, name)
			}
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", appErr.ErrGenerationTimeout, ctx.Err())
		}
		if errors.Is(err, ErrTemperatureUnsupported) && req.Temperature != nil && !droppedTemperature {
			logger.Warn("provider rejected temperature, retrying without it", zap.Float32("temperature", *req.Temperature), zap.Error(err))
			req.Temperature = nil
			droppedTemperature = true
			continue
		}
		timedOut := errors.Is(err, context.DeadlineExceeded)
		if !timedOut && !errors.Is(err, ErrTransient) {
			return "", fmt.Errorf("%w: %w", appErr.ErrGenerationFailure, err)
		}
		if retries >= m.cfg.MaxRetries {
			if timedOut {
				return "", fmt.Errorf("%w: %s after %d attempts: %w", appErr.ErrGenerationTimeout, name, retries+1, err)
			}
			return "", fmt.Errorf("%w: %s after %d attempts: %w", appErr.ErrGenerationFailure, name, retries+1, err)
		}
		backoff := m.cfg.Backoff << retries
		retries++
		logger.Warn("generation attempt failed, retrying",
			zap.Int("retry", retries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := m.sleep(ctx, backoff); err != nil {
			return "", fmt.Errorf("%w: %w", appErr.ErrGenerationTimeout, err)
		}
	}
}

func (m *Manager) attempt(ctx context.Context, gen IGenerator, req GenerateRequest) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	resp, err := gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
