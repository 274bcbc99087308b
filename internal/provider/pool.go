package provider

import (
	"errors"
	"sync"
	"time"
)

// Default window after which key/model failure records expire. Quota windows
// on the provider side reset over time, so failures should not be sticky.
const DefaultFailureResetWindow = 60 * time.Second

// PoolConfig holds the credential pool configuration.
type PoolConfig struct {
	// Keys is the ordered list of API keys to rotate through.
	Keys []string

	// Models is the ordered list of model identifiers, in fallback order.
	Models []string

	// FailureResetWindow is how long failure records are kept before the
	// pool clears them. Zero means DefaultFailureResetWindow.
	FailureResetWindow time.Duration
}

// Pool manages the rotating set of provider API keys and model identifiers.
// It tracks failures per key and per (key, model) pair and expires failure
// records after a rolling window. All methods are safe for concurrent use;
// the pool is shared by every job in the process.
type Pool struct {
	mu sync.Mutex

	keys   []string
	models []string
	window time.Duration

	keyCursor   int
	modelCursor int
	activeKey   string

	failedKeys   map[string]struct{}
	failedModels map[string]map[string]struct{}
	keyResetAt   time.Time
	modelResetAt time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewPool creates a credential pool over the given keys and models.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if len(cfg.Keys) == 0 {
		return nil, errors.New("credential pool requires at least one API key")
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("credential pool requires at least one model")
	}

	window := cfg.FailureResetWindow
	if window <= 0 {
		window = DefaultFailureResetWindow
	}

	now := time.Now
	return &Pool{
		keys:         cfg.Keys,
		models:       cfg.Models,
		window:       window,
		activeKey:    cfg.Keys[0],
		failedKeys:   make(map[string]struct{}),
		failedModels: make(map[string]map[string]struct{}),
		keyResetAt:   now(),
		modelResetAt: now(),
		now:          now,
	}, nil
}

// NextKey returns the next usable API key, round-robin over the subset not
// currently marked failed, and makes it the active key. Returns
// ErrQuotaExhausted when every key is failed.
func (p *Pool) NextKey() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeReset()

	for i := 0; i < len(p.keys); i++ {
		key := p.keys[p.keyCursor]
		p.keyCursor = (p.keyCursor + 1) % len(p.keys)
		if _, failed := p.failedKeys[key]; !failed {
			p.activeKey = key
			return key, nil
		}
	}

	return "", ErrQuotaExhausted
}

// NextModel returns the next usable model for the active key, round-robin
// over the subset not currently marked failed for that key. If every model
// is failed the record is force-reset and the first model returned, so a
// caller always gets a model.
func (p *Pool) NextModel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeReset()

	failed := p.failedModels[p.activeKey]
	for i := 0; i < len(p.models); i++ {
		model := p.models[p.modelCursor]
		p.modelCursor = (p.modelCursor + 1) % len(p.models)
		if _, bad := failed[model]; !bad {
			return model
		}
	}

	// All models failed for this key: forced reset.
	delete(p.failedModels, p.activeKey)
	p.modelCursor = 1 % len(p.models)
	return p.models[0]
}

// MarkKeyFailed records the key as failed until the failure window resets.
func (p *Pool) MarkKeyFailed(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeReset()

	p.failedKeys[key] = struct{}{}
}

// MarkModelFailed records the model as failed for the active key. It returns
// true when this leaves no usable model for that key, signaling the caller
// to rotate to the next key; the model cursor is reset in that case.
func (p *Pool) MarkModelFailed(model string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeReset()

	failed := p.failedModels[p.activeKey]
	if failed == nil {
		failed = make(map[string]struct{})
		p.failedModels[p.activeKey] = failed
	}
	failed[model] = struct{}{}

	if len(failed) >= len(p.models) {
		p.modelCursor = 0
		return true
	}
	return false
}

// maybeReset clears failure records whose window has elapsed.
// Callers must hold p.mu.
func (p *Pool) maybeReset() {
	now := p.now()
	if now.Sub(p.keyResetAt) >= p.window {
		p.failedKeys = make(map[string]struct{})
		p.keyResetAt = now
	}
	if now.Sub(p.modelResetAt) >= p.window {
		p.failedModels = make(map[string]map[string]struct{})
		p.modelResetAt = now
	}
}
