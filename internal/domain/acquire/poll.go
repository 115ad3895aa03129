package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/monview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monview/internal/shared/id"
	"github.com/GriffinCanCode/monview/internal/shared/types"
	"go.uber.org/zap"
)

// Fetcher requests still images from the backend
type Fetcher interface {
	ScreenImage(ctx context.Context, address string, screen int, token string) ([]byte, error)
	LegacyImage(ctx context.Context, address string, token string) ([]byte, error)
}

// PollConfig configures interval-driven acquisition
type PollConfig struct {
	Interval    time.Duration
	PrimaryOnly bool
	// LegacySingle uses /monitors/{address}?{token} for single-screen monitors
	LegacySingle bool
}

// Poll requests a fresh still image per screen on a fixed cadence
type Poll struct {
	cfg     PollConfig
	fetcher Fetcher
	log     *zap.Logger
	metrics *monitoring.Metrics
	token   func() string
}

// NewPoll creates the polling strategy
func NewPoll(cfg PollConfig, fetcher Fetcher, log *zap.Logger) *Poll {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poll{
		cfg:     cfg,
		fetcher: fetcher,
		log:     log,
		token:   func() string { return id.Default().Generate().String() },
	}
}

// WithMetrics adds metrics tracking to the strategy
func (p *Poll) WithMetrics(metrics *monitoring.Metrics) *Poll {
	p.metrics = metrics
	return p
}

// Mode implements Strategy
func (p *Poll) Mode() string { return ModePoll }

// Screens implements Strategy
func (p *Poll) Screens(monitor types.MonitorDescriptor) []int {
	return Screens(monitor, p.cfg.PrimaryOnly)
}

// Acquire implements Strategy
func (p *Poll) Acquire(ctx context.Context, monitor types.MonitorDescriptor, sink Sink) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := newAcquisition(ctx)
	log := p.log.With(
		zap.String("acquisition", a.id.String()),
		zap.String("address", monitor.Address))

	screens := p.Screens(monitor)
	legacy := p.cfg.LegacySingle && len(screens) == 1
	for _, screen := range screens {
		a.goScreen(screen, sink, func(ctx context.Context, screen int) {
			p.runScreen(ctx, log.With(zap.Int("screen", screen)), monitor.Address, screen, legacy, sink)
		})
	}

	log.Info("Poll acquisition started",
		zap.Int("screens", len(screens)),
		zap.Duration("interval", p.cfg.Interval))
	return func() {
		a.release()
		log.Info("Poll acquisition released")
	}, nil
}

func (p *Poll) runScreen(ctx context.Context, log *zap.Logger, address string, screen int, legacy bool, sink Sink) {
	state := types.ConnConnecting
	p.setState(sink, screen, state, nil)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		data, err := p.fetch(ctx, address, screen, legacy)
		if ctx.Err() != nil {
			return
		}
		p.metrics.RecordPoll(err)

		if err != nil {
			// Skip this cycle; the ticker keeps going.
			log.Debug("Still image request failed", zap.Error(err))
			if state != types.ConnErrored {
				state = types.ConnErrored
				p.setState(sink, screen, state, fmt.Errorf("%w: %v", ErrConnection, err))
			}
		} else {
			if state != types.ConnOpen {
				state = types.ConnOpen
				p.setState(sink, screen, state, nil)
			}
			p.metrics.RecordFrameReceived(len(data))
			sink.Frame(screen, data)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poll) fetch(ctx context.Context, address string, screen int, legacy bool) ([]byte, error) {
	token := p.token()
	if legacy {
		return p.fetcher.LegacyImage(ctx, address, token)
	}
	return p.fetcher.ScreenImage(ctx, address, screen, token)
}

func (p *Poll) setState(sink Sink, screen int, state types.ConnState, err error) {
	p.metrics.RecordConnState(ModePoll, string(state))
	sink.State(screen, state, err)
}
