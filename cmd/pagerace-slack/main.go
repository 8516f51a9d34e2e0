package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kznrluk/pagerace/internal/batch"
	"github.com/kznrluk/pagerace/internal/fetcher"
	"github.com/kznrluk/pagerace/internal/slackhandler"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("pagerace-slack stopped")
	}
}

// run serves the bot until the HTTP server fails. The fetcher is closed
// before it returns.
func run(log zerolog.Logger) error {
	var timeout time.Duration
	if v := os.Getenv("PAGERACE_FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PAGERACE_FETCH_TIMEOUT: %w", err)
		}
		timeout = d
	}

	httpConfig := fetcher.DefaultConfig()
	// Mention text decides what gets fetched.
	httpConfig.BlockPrivateNetworks = true
	f, closer, err := fetcher.New(fetcher.Options{
		Renderer: os.Getenv("PAGERACE_RENDERER"),
		TextOnly: os.Getenv("PAGERACE_TEXT_ONLY") == "true",
		Metrics:  true,
		Timeout:  timeout,
		HTTP:     httpConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	defer closer.Close()

	slackHandler, err := slackhandler.NewSlackHandler(batch.NewRunner(f), log)
	if err != nil {
		return fmt.Errorf("failed to create Slack handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", slackHandler.HandleEvent)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("port", port).Msg("Starting pagerace Slack bot server")
	return server.ListenAndServe()
}
