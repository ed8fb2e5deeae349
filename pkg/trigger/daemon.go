package trigger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/internal/metrics"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
)

// Trigger sources.
const (
	SourcePeriodic  = "periodic"
	SourceReconnect = "reconnect"
	SourceManual    = "manual"
)

// Syncer is the part of the orchestrator driven by the daemon.
type Syncer interface {
	SyncAll(ctx context.Context) *orchestrator.Result
	AutoSyncEnabled(ctx context.Context) (bool, error)
}

// Daemon runs full syncs periodically, when connectivity comes back, and on
// debounced manual requests. Syncs run one at a time on the daemon goroutine.
type Daemon struct {
	syncer Syncer
	prober *Prober
	cfg    *config.TriggerConfig
	logger *zap.Logger

	manual chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDaemon creates a new daemon. prober may be nil, in which case the remote
// API is assumed reachable.
func NewDaemon(syncer Syncer, prober *Prober, cfg *config.TriggerConfig, logger *zap.Logger) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{
		syncer: syncer,
		prober: prober,
		cfg:    cfg,
		logger: logger.Named("trigger"),
		manual: make(chan struct{}, 1),
	}
}

// Trigger requests a sync. Requests within the debounce window collapse into one.
func (d *Daemon) Trigger() {
	select {
	case d.manual <- struct{}{}:
	default:
	}
}

// Start starts the prober and the trigger loop.
func (d *Daemon) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.logger.Info("Starting sync trigger",
		zap.Duration("interval", d.cfg.Interval),
		zap.Duration("probe_interval", d.cfg.ProbeInterval),
		zap.Duration("debounce", d.cfg.Debounce))

	if d.prober != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.prober.Run(ctx)
		}()
	}

	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop stops the daemon and waits for a running sync to return.
func (d *Daemon) Stop() {
	d.logger.Info("Stopping sync trigger")
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("Sync trigger stopped")
}

func (d *Daemon) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	var transitions <-chan bool
	if d.prober != nil {
		transitions = d.prober.Transitions()
	}

	var debounce *time.Timer
	var debounced <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case <-ticker.C:
			if d.online() && d.autoSync(ctx) {
				d.run(ctx, SourcePeriodic)
			}

		case online := <-transitions:
			if online && d.autoSync(ctx) {
				d.run(ctx, SourceReconnect)
			}

		case <-d.manual:
			if debounce == nil {
				debounce = time.NewTimer(d.cfg.Debounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(d.cfg.Debounce)
			}
			debounced = debounce.C

		case <-debounced:
			debounced = nil
			d.run(ctx, SourceManual)
		}
	}
}

func (d *Daemon) online() bool {
	return d.prober == nil || d.prober.Online()
}

func (d *Daemon) autoSync(ctx context.Context) bool {
	enabled, err := d.syncer.AutoSyncEnabled(ctx)
	if err != nil {
		d.logger.Error("Failed to read auto sync flag", zap.Error(err))
		return false
	}
	return enabled
}

func (d *Daemon) run(ctx context.Context, source string) {
	metrics.TriggersTotal.WithLabelValues(source).Inc()
	d.logger.Debug("Sync triggered", zap.String("source", source))

	res := d.syncer.SyncAll(ctx)
	if res.Reason != "" {
		d.logger.Info("Sync not started", zap.String("source", source), zap.String("reason", res.Reason))
	}
}
