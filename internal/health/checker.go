package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	RedisCheckInterval time.Duration
	DBCheckInterval    time.Duration
	CheckTimeout       time.Duration
	ID                 string
}

type Component string

const (
	ComponentRedis Component = "redis"
	ComponentDB    Component = "db"
)

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

type RedisPinger interface {
	Ping(ctx context.Context) error
}

type DBPinger interface {
	IsUpAndRunning(ctx context.Context) error
}

type Checker struct {
	config *Config
	redis  RedisPinger
	db     DBPinger
	log    *slog.Logger
	mu     sync.RWMutex
	checks HealthChecks
}

func NewChecker(redis RedisPinger, db DBPinger, config *Config) *Checker {
	return &Checker{
		config: config,
		redis:  redis,
		db:     db,
		log:    slog.With("pod", config.ID, "component", "health"),
		checks: HealthChecks{
			// if this code gets executed, we assume that there was an initial
			// check
			ComponentDB:    CheckResult{Timestamp: time.Now(), Result: true},
			ComponentRedis: CheckResult{Timestamp: time.Now(), Result: true},
		},
	}
}

func (c *Checker) Run(ctx context.Context) {
	c.log.Debug("Starting the health checker...")

	redisTicker := time.NewTicker(c.config.RedisCheckInterval)
	defer redisTicker.Stop()
	dbTicker := time.NewTicker(c.config.DBCheckInterval)
	defer dbTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping health checker ...")
			return
		case <-redisTicker.C:
			c.checkRedis(ctx)
		case <-dbTicker.C:
			c.checkDB(ctx)
		}
	}
}

func (c *Checker) checkRedis(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	c.record(ComponentRedis, c.redis.Ping(checkCtx))
}

func (c *Checker) checkDB(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	c.record(ComponentDB, c.db.IsUpAndRunning(checkCtx))
}

func (c *Checker) record(component Component, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[component] = CheckResult{
		Timestamp: time.Now(),
		Result:    err == nil,
	}
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))

	for component, check := range c.checks {
		checks[component] = check
		if !check.Result {
			healthy = false
			c.log.Error("Component health check failed", "component", component)
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}
