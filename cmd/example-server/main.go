package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ekefan/admit/pkg/backend"
	"github.com/ekefan/admit/pkg/clock"
	"github.com/ekefan/admit/pkg/promrecorder"
	"github.com/ekefan/admit/pkg/throttle"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	reg := prometheus.NewRegistry()
	recorder := promrecorder.New(reg)

	// Counting backend for the adaptive throttle: Redis when REDIS_ADDR is
	// set, in-process memory otherwise.
	var counters backend.CounterBackend
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		rb, err := backend.NewRedisBackend(client,
			backend.WithPrefix("demo:"),
			backend.WithTimeout(100*time.Millisecond),
		)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", addr).Msg("redis backend unavailable")
		}
		counters = rb
		logger.Info().Str("addr", addr).Msg("using redis backend")
	} else {
		counters = backend.NewMemoryBackend(clock.NewRealClock())
		logger.Info().Msg("using memory backend")
	}

	// Per-IP burst control: 10 requests, refilling 5 every 2 seconds.
	tb, err := throttle.NewTokenBucket(throttle.TokenBucketConfig{
		Capacity:       10,
		RefillAmount:   5,
		RefillInterval: 2 * time.Second,
	}, throttle.WithRecorder(recorder))
	if err != nil {
		logger.Fatal().Err(err).Msg("token bucket config")
	}
	perIP := throttle.NewPerIPThrottle(tb)

	// Global adaptive ceiling, steered by whatever load signal the operator
	// reports against /load.
	adaptive, err := throttle.NewAdaptiveThrottle(throttle.AdaptiveConfig{
		MinRate:       50,
		MaxRate:       1000,
		InitialRate:   500,
		Window:        time.Minute,
		LowThreshold:  0.3,
		HighThreshold: 0.7,
	}, counters,
		throttle.WithRecorder(recorder),
		throttle.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("adaptive config")
	}

	http.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		dec, err := perIP.AllowRequest(ctx, clientIP(r))
		if err != nil {
			// Fail open: allow traffic when the throttle itself errors.
			logger.Error().Err(err).Msg("per-ip throttle")
		} else if !dec.Allow {
			deny(w, dec)
			return
		}

		dec, err = adaptive.AllowRequest(ctx, "global")
		if err != nil {
			logger.Error().Err(err).Msg("adaptive throttle")
		} else if !dec.Allow {
			deny(w, dec)
			return
		}

		w.Write([]byte("Pong!\n"))
	})

	// Operators report load here; a real deployment would feed this from a
	// metrics pipeline instead.
	http.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		var m throttle.LoadMetrics
		if _, err := fmt.Sscanf(r.URL.Query().Get("stress"), "%f", &m.Pressure); err != nil {
			http.Error(w, "stress query parameter required", http.StatusBadRequest)
			return
		}
		adaptive.UpdateMetrics(m)
		rate, window := adaptive.CurrentRate()
		fmt.Fprintf(w, "rate: %d per %s\n", rate, window)
	})

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Info().Str("addr", ":8080").Msg("server listening")
	if err := http.ListenAndServe(":8080", nil); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func deny(w http.ResponseWriter, dec throttle.Decision) {
	w.Header().Set("Retry-After", fmt.Sprintf("%.2f", dec.RetryAfter.Seconds()))
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte("Rate limit exceeded\n"))
}
