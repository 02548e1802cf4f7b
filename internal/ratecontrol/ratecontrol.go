package ratecontrol

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of the rate limit configuration.
type fileConfig struct {
	RateLimits struct {
		DefaultRPM     int            `yaml:"default_rpm"`
		ModelOverrides map[string]int `yaml:"model_overrides"`
	} `yaml:"rate_limits"`
}

// Limits hands out per-model rate limiters for outbound embedding calls.
// A zero RPM disables limiting for that model.
type Limits struct {
	mu         sync.Mutex
	defaultRPM int
	overrides  map[string]int
	limiters   map[string]*rate.Limiter
}

// Load reads limits from a YAML file. A missing path yields unlimited
// limits rather than an error, so the limiter is safe to wire
// unconditionally.
func Load(path string) (*Limits, error) {
	l := &Limits{
		overrides: map[string]int{},
		limiters:  map[string]*rate.Limiter{},
	}
	if path == "" {
		return l, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read rate limit config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rate limit config %s: %w", path, err)
	}
	l.defaultRPM = cfg.RateLimits.DefaultRPM
	for model, rpm := range cfg.RateLimits.ModelOverrides {
		l.overrides[normalize(model)] = rpm
	}
	return l, nil
}

func normalize(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

// RPMFor returns the configured requests-per-minute for a model; zero means
// unlimited.
func (l *Limits) RPMFor(model string) int {
	if l == nil {
		return 0
	}
	if rpm, ok := l.overrides[normalize(model)]; ok {
		return rpm
	}
	return l.defaultRPM
}

func (l *Limits) limiterFor(model string) *rate.Limiter {
	rpm := l.RPMFor(model)
	if rpm <= 0 {
		return nil
	}
	key := normalize(model)

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	l.limiters[key] = lim
	return lim
}

// Wait blocks until the model's limiter admits one request or the context
// is done. Unlimited models return immediately.
func (l *Limits) Wait(ctx context.Context, model string) error {
	if l == nil {
		return nil
	}
	lim := l.limiterFor(model)
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
