// Package metrics contains the prometheus infrastructure.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/aucusaga/gokms/libs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PullService serves /metrics for the Prometheus pull method.
type PullService struct {
	pullEndpoint string
	log          libs.Logger
}

func NewPullService(pullEndpoint string, logger libs.Logger) *PullService {
	return &PullService{
		pullEndpoint: pullEndpoint,
		log:          libs.NewLogger(logger),
	}
}

// Run blocks until ctx is done or the server fails.
func (s *PullService) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:           s.pullEndpoint,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("metrics server listening @ PullService.Run, addr: %s", s.pullEndpoint)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
