package batch

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Result is the outcome of fetching a single URL. Exactly one of Body and
// Err is meaningful: Err is nil on success.
type Result struct {
	URL      string
	Body     string
	Err      error
	Duration time.Duration
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Length is the number of characters in the downloaded body.
func (r Result) Length() int {
	return utf8.RuneCountInString(r.Body)
}

// Mode selects how a Runner schedules fetches.
type Mode int

const (
	// Sequential fetches one URL at a time, in order.
	Sequential Mode = iota
	// Concurrent fetches every URL at once and joins on completion.
	Concurrent
)

func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Concurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names used by the CLI and the Slack bot.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sync", "sequential":
		return Sequential, nil
	case "async", "concurrent", "parallel":
		return Concurrent, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Batch is the full outcome of a run.
type Batch struct {
	Mode    Mode
	Results []Result
	Elapsed time.Duration
}

// Failed returns the number of results that carry an error.
func (b *Batch) Failed() int {
	n := 0
	for _, r := range b.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}
