package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/aucusaga/gokms/libs"
)

var (
	tockBufferSize = 10
)

// Pinger is the part of SignerClient the ticker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingTicker pings the signer on a fixed interval and reports failures.
type PingTicker struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	tockChan chan error // for notifying about failed pings

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	log      libs.Logger
}

// NewPingTicker returns a PingTicker and starts its routine.
func NewPingTicker(p Pinger, interval, timeout time.Duration, logger libs.Logger) *PingTicker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pt := &PingTicker{
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		tockChan: make(chan error, tockBufferSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      libs.NewLogger(logger),
	}
	go pt.pingRoutine()
	return pt
}

// Chan returns a channel on which failed pings are sent.
func (t *PingTicker) Chan() <-chan error {
	return t.tockChan
}

func (t *PingTicker) Stop() {
	t.stopOnce.Do(func() { close(t.quit) })
	<-t.done
}

func (t *PingTicker) pingRoutine() {
	defer close(t.done)
	t.log.Info("starting ping routine, interval: %s", t.interval)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			err := t.pinger.Ping(ctx)
			cancel()
			if err == nil {
				t.log.Debug("ping ok @ pingRoutine")
				continue
			}
			t.log.Warn("ping failed @ pingRoutine, err: %v", err)
			// drop the report rather than stall when nobody reads
			select {
			case t.tockChan <- err:
			default:
			}
		case <-t.quit:
			return
		}
	}
}
