package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kznrluk/pagerace/internal/batch"
	"github.com/kznrluk/pagerace/internal/fetcher"
	"github.com/kznrluk/pagerace/internal/report"
	"github.com/kznrluk/pagerace/internal/sites"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(log.WithContext(ctx), os.Args[1:], os.Stdout)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("pagerace failed")
	}
}

// run parses args, downloads the pages and writes one report per mode to
// stdout. Resources are released before it returns.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("pagerace", flag.ContinueOnError)
	mode := flags.String("mode", "both", "Download mode: sync, async or both")
	timeout := flags.Duration("timeout", 30*time.Second, "Timeout for a single page download")
	renderer := flags.String("renderer", "http", "Page fetcher: http or chrome")
	textOnly := flags.Bool("text", false, "Count visible text instead of raw HTML")
	debug := flags.Bool("debug", false, "Enable debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}

	log := zerolog.Ctx(ctx).Level(zerolog.InfoLevel)
	if *debug {
		log = log.Level(zerolog.DebugLevel)
	}
	ctx = log.WithContext(ctx)

	var modes []batch.Mode
	if *mode == "both" {
		modes = []batch.Mode{batch.Sequential, batch.Concurrent}
	} else {
		m, err := batch.ParseMode(*mode)
		if err != nil {
			return fmt.Errorf("invalid -mode: %w", err)
		}
		modes = []batch.Mode{m}
	}

	urls := flags.Args()
	if len(urls) == 0 {
		urls = sites.Default()
	}

	f, closer, err := fetcher.New(fetcher.Options{
		Renderer: *renderer,
		TextOnly: *textOnly,
		Timeout:  *timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	defer closer.Close()

	runner := batch.NewRunner(f)
	for _, m := range modes {
		log.Info().Stringer("mode", m).Int("urls", len(urls)).Msg("Starting downloads")
		b := runner.Run(ctx, m, urls, func(index int, r batch.Result) {
			log.Debug().Int("index", index).Str("url", r.URL).Dur("took", r.Duration).Msg("Result ready")
		})
		if _, err := fmt.Fprintf(stdout, "== %s ==\n", m); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := report.Write(stdout, b); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
