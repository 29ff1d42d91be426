package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapdesk/gateway-sync/internal/service"
)

// ServerTester tests every active gateway server.
type ServerTester interface {
	TestAll(ctx context.Context) ([]service.ServerTestResult, error)
}

// ServerProbeJob refreshes the health columns of all active servers on a
// fixed interval.
type ServerProbeJob struct {
	tester   ServerTester
	interval time.Duration
	timeout  time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewServerProbeJob(tester ServerTester, interval, timeout time.Duration) *ServerProbeJob {
	return &ServerProbeJob{
		tester:   tester,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *ServerProbeJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("server probe job started")
}

// Stop ends the loop and waits for a running probe to return.
func (j *ServerProbeJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("server probe job stopped")
}

func (j *ServerProbeJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.probe()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.probe()
		}
	}
}

func (j *ServerProbeJob) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.tester.TestAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to probe servers")
		return
	}

	online := 0
	for _, r := range results {
		if r.Success {
			online++
		}
	}
	log.Info().Int("servers", len(results)).Int("online", online).Msg("probed servers")
}
