package slackhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/kznrluk/pagerace/internal/batch"
	"github.com/kznrluk/pagerace/internal/fetcher"
	"github.com/kznrluk/pagerace/internal/report"
	"github.com/kznrluk/pagerace/internal/sites"
)

const usage = "Mention me with `sync`, `async` or `both`, optionally followed by URLs to download instead of the default sites."

var urlRegex = regexp.MustCompile(`https?://[^\s<>"|]+|www\.[^\s<>"|]+`)

// Poster is the part of the Slack client used to reply to mentions.
type Poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackHandler holds dependencies for handling Slack events
type SlackHandler struct {
	SlackClient   Poster
	SigningSecret string
	Runner        *batch.Runner
	// BatchTimeout bounds a single mention's downloads.
	BatchTimeout time.Duration
	Log          zerolog.Logger
}

// NewSlackHandler creates a SlackHandler from the SLACK_BOT_TOKEN and
// SLACK_SIGNING_SECRET environment variables.
func NewSlackHandler(runner *batch.Runner, log zerolog.Logger) (*SlackHandler, error) {
	botToken := os.Getenv("SLACK_BOT_TOKEN")
	signingSecret := os.Getenv("SLACK_SIGNING_SECRET")
	if botToken == "" || signingSecret == "" {
		return nil, errors.New("SLACK_BOT_TOKEN and SLACK_SIGNING_SECRET environment variables must be set")
	}

	return &SlackHandler{
		SlackClient:   slack.New(botToken),
		SigningSecret: signingSecret,
		Runner:        runner,
		BatchTimeout:  2 * time.Minute,
		Log:           log,
	}, nil
}

// HandleEvent handles incoming HTTP requests from Slack
func (h *SlackHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	log := h.Log
	verifier, err := slack.NewSecretsVerifier(r.Header, h.SigningSecret)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create secrets verifier")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Err(err).Msg("Failed to read request body")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	if _, err := verifier.Write(body); err != nil {
		log.Err(err).Msg("Failed to write body to verifier")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := verifier.Ensure(); err != nil {
		log.Warn().Err(err).Msg("Request signature verification failed")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		log.Err(err).Msg("Failed to parse event")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			log.Err(err).Msg("Failed to unmarshal challenge")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		log.Info().Msg("Handled URL verification challenge")
		return
	case slackevents.CallbackEvent:
		switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
		case *slackevents.AppMentionEvent:
			log.Info().Str("user", ev.User).Str("channel", ev.Channel).Msg("Received app mention")
			// Acknowledge right away, Slack retries slow responses.
			w.WriteHeader(http.StatusOK)
			go h.handleAppMention(ev)
			return
		default:
			log.Debug().Str("type", fmt.Sprintf("%T", ev)).Msg("Ignoring callback event")
		}
	}

	w.WriteHeader(http.StatusOK)
}

// handleAppMention runs the batch requested by a mention and replies with
// one report per mode in the mention's thread.
func (h *SlackHandler) handleAppMention(event *slackevents.AppMentionEvent) {
	log := h.Log.With().Str("channel", event.Channel).Str("user", event.User).Logger()

	threadTS := event.TimeStamp
	if event.ThreadTimeStamp != "" {
		threadTS = event.ThreadTimeStamp
	}

	modes, requested := parseCommand(event.Text)
	if len(modes) == 0 {
		h.post(log, event.Channel, threadTS, usage)
		return
	}

	urls := sites.Default()
	if len(requested) > 0 {
		var refused []string
		urls = make([]string, 0, len(requested))
		for _, u := range requested {
			if err := checkURL(u); err != nil {
				log.Warn().Err(err).Str("url", u).Msg("Refusing to fetch URL from mention")
				refused = append(refused, fmt.Sprintf("%s (%v)", u, err))
				continue
			}
			urls = append(urls, u)
		}
		if len(refused) > 0 {
			h.post(log, event.Channel, threadTS, "Refusing to fetch: "+strings.Join(refused, ", "))
		}
		if len(urls) == 0 {
			return
		}
	}

	ctx := log.WithContext(context.Background())
	if h.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.BatchTimeout)
		defer cancel()
	}

	for _, mode := range modes {
		b := h.Runner.Run(ctx, mode, urls, nil)
		h.post(log, event.Channel, threadTS, fmt.Sprintf("*%s*\n```\n%s```", mode, report.String(b)))
	}
}

func (h *SlackHandler) post(log zerolog.Logger, channel, threadTS, text string) {
	_, _, err := h.SlackClient.PostMessage(
		channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		log.Err(err).Msg("Failed to post message to Slack")
	}
}

// parseCommand extracts the requested modes and any URLs from a mention.
// "both" runs the sequential batch first, then the concurrent one.
func parseCommand(text string) ([]batch.Mode, []string) {
	var modes []batch.Mode
	for _, word := range strings.Fields(text) {
		if strings.EqualFold(word, "both") {
			modes = []batch.Mode{batch.Sequential, batch.Concurrent}
			break
		}
		if mode, err := batch.ParseMode(word); err == nil {
			modes = []batch.Mode{mode}
			break
		}
	}
	urls := urlRegex.FindAllString(text, -1)
	for i, u := range urls {
		if strings.HasPrefix(u, "www.") {
			urls[i] = "https://" + u
		}
	}
	return modes, urls
}

// checkURL rejects URLs that point at the bot's own host or private
// network by name or literal address. Host names resolving to private
// addresses are refused by the HTTP fetcher at dial time.
func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return errors.New("missing host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fetcher.ErrBlockedAddress
	}
	if ip := net.ParseIP(host); ip != nil && fetcher.IsPrivateIP(ip) {
		return fetcher.ErrBlockedAddress
	}
	return nil
}
