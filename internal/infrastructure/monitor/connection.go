package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool and *sql.DB (via PingContext adapters).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check probes one dependency. A failing required check takes the service offline.
type Check struct {
	Name     string
	Required bool
	Timeout  time.Duration
	Probe    func(ctx context.Context) error
}

// PingCheck wraps a Pinger.
func PingCheck(name string, required bool, p Pinger) Check {
	return Check{Name: name, Required: required, Timeout: 3 * time.Second, Probe: p.Ping}
}

// RedisCheck pings a Redis client.
func RedisCheck(name string, required bool, client redislib.UniversalClient) Check {
	return Check{
		Name:     name,
		Required: required,
		Timeout:  2 * time.Second,
		Probe: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// Monitor periodically probes the registered checks and caches the result
// for the health endpoint and the outbox drain.
type Monitor struct {
	checks     []Check
	outboxSize func() int

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	logger   *zap.Logger
}

// New builds a monitor. outboxSize may be nil.
func New(checks []Check, outboxSize func() int, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:     checks,
		outboxSize: outboxSize,
		interval:   interval,
		stopCh:     make(chan struct{}),
		logger:     logger,
		status:     Status{Online: true, Components: map[string]ComponentStatus{}},
	}
}

// Start runs one probe synchronously, then keeps probing in the background.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

// GetStatus returns a copy of the last probe result.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Components = make(map[string]ComponentStatus, len(m.status.Components))
	for k, v := range m.status.Components {
		out.Components[k] = v
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every check now.
func (m *Monitor) Refresh(ctx context.Context) {
	status := Status{
		Online:     true,
		Components: make(map[string]ComponentStatus, len(m.checks)),
		LastCheck:  time.Now(),
	}
	for _, c := range m.checks {
		cs := ComponentStatus{Healthy: true, Required: c.Required}
		if err := m.probe(ctx, c); err != nil {
			cs.Healthy = false
			cs.Error = err.Error()
			m.logger.Warn("dependency check failed", zap.String("component", c.Name), zap.Error(err))
			if c.Required {
				status.Online = false
			}
		}
		status.Components[c.Name] = cs
	}
	if m.outboxSize != nil {
		status.OutboxSize = m.outboxSize()
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) probe(ctx context.Context, c Check) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Probe(ctx)
}
