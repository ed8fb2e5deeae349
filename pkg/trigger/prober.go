// Package trigger decides when the device syncs: on a timer, when the remote
// API becomes reachable again, and on request.
package trigger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/internal/metrics"
)

// Pinger checks whether the remote API is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober tracks connectivity by pinging the remote API periodically.
type Prober struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	online      bool
	transitions chan bool
}

// NewProber creates a prober pinging every interval. The prober starts offline.
func NewProber(pinger Pinger, interval time.Duration, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := interval / 2
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &Prober{
		pinger:      pinger,
		interval:    interval,
		timeout:     timeout,
		logger:      logger.Named("prober"),
		transitions: make(chan bool, 1),
	}
}

// Online reports the result of the last check.
func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Transitions delivers the new state on every online/offline change. Only the
// latest unread state is kept.
func (p *Prober) Transitions() <-chan bool {
	return p.transitions
}

// Check pings once and records the result.
func (p *Prober) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(pingCtx)
	cancel()
	online := err == nil

	p.mu.Lock()
	defer p.mu.Unlock()
	if online == p.online {
		return online
	}
	p.online = online

	if online {
		metrics.Online.Set(1)
		p.logger.Info("Remote API reachable")
	} else {
		metrics.Online.Set(0)
		p.logger.Warn("Remote API unreachable", zap.Error(err))
	}

	select {
	case p.transitions <- online:
	default:
		// replace the unread state
		select {
		case <-p.transitions:
		default:
		}
		p.transitions <- online
	}
	return online
}

// Run checks right away and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
