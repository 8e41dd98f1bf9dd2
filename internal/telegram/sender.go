package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"relwatch/pkg/logx"
	"relwatch/pkg/mdv2"
)

const (
	defaultSendTimeout = 20 * time.Second

	// chunkInterval spaces consecutive Bot API calls so multi-chunk
	// messages don't trip flood control.
	chunkInterval = 500 * time.Millisecond

	maxAttempts = 3
)

type Options struct {
	Token  string
	ChatID int64

	// SendTimeout bounds a single Bot API call.
	SendTimeout time.Duration

	// APIURL overrides the Bot API endpoint.
	APIURL string

	// Offline skips the startup getMe probe. Used by tests.
	Offline bool
}

// Sender delivers rendered chunks to one chat. Not safe for concurrent
// use; runs send sequentially.
type Sender struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger

	limiter *rate.Limiter

	retryBase     time.Duration
	retryMaxDelay time.Duration
	floodWaitCap  time.Duration
}

func New(opts Options, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     opts.APIURL,
		Token:   opts.Token,
		Offline: opts.Offline,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{
		bot:           b,
		chatID:        opts.ChatID,
		log:           log,
		limiter:       rate.NewLimiter(rate.Every(chunkInterval), 1),
		retryBase:     time.Second,
		retryMaxDelay: 10 * time.Second,
		floodWaitCap:  30 * time.Second,
	}, nil
}

// PartialError reports a delivery where some chunks could not be sent.
// Failed holds the zero-based indices of the undelivered chunks.
type PartialError struct {
	Failed []int
	Total  int
	Last   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("delivered %d of %d chunks: %v", e.Total-len(e.Failed), e.Total, e.Last)
}

func (e *PartialError) Unwrap() error { return e.Last }

// SendRelease delivers chunks in order. A chunk that fails permanently
// does not stop delivery of the remaining chunks; the result is a
// *PartialError naming the failed indices.
func (s *Sender) SendRelease(ctx context.Context, chunks []string) error {
	var (
		failed  []int
		lastErr error
	)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("delivery interrupted after %d of %d chunks: %w", i, len(chunks), err)
		}
		if err := s.sendChunk(ctx, chunk); err != nil {
			failed = append(failed, i)
			lastErr = err
			s.log.Error("chunk delivery failed",
				logx.Int("chunk", i+1),
				logx.Int("chunks", len(chunks)),
				logx.Err(err),
			)
			continue
		}
		if len(chunks) > 1 {
			s.log.Debug("chunk delivered", logx.Int("chunk", i+1), logx.Int("chunks", len(chunks)))
		}
	}
	if len(failed) > 0 {
		return &PartialError{Failed: failed, Total: len(chunks), Last: lastErr}
	}
	return nil
}

// SendAlert delivers an operator-facing error notice. Best-effort:
// failures are logged, never returned.
func (s *Sender) SendAlert(ctx context.Context, msg string) {
	var b strings.Builder
	b.WriteString("⚠️ ")
	b.WriteString(string(mdv2.B("GitHub monitor error")))
	b.WriteString("\n\n")
	b.WriteString(string(mdv2.Code(msg)))
	b.WriteString("\n\nTime: ")
	b.WriteString(string(mdv2.Esc(time.Now().Format("2006-01-02 15:04:05"))))

	for _, chunk := range mdv2.Split(b.String(), mdv2.DefaultLimit) {
		if err := s.sendChunk(ctx, chunk); err != nil {
			s.log.Error("alert delivery failed", logx.Err(err))
			return
		}
	}
}

// sendChunk sends one chunk with bounded retries. Flood waits honor the
// server-provided delay (capped); an entity parse rejection downgrades
// the chunk to plain text once instead of retrying the same markup.
func (s *Sender) sendChunk(ctx context.Context, text string) error {
	to := &tele.Chat{ID: s.chatID}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := s.bot.Send(to, text, markdownOpts())
		if err == nil {
			return nil
		}
		lastErr = err

		var fe tele.FloodError
		if errors.As(err, &fe) {
			wait := time.Duration(fe.RetryAfter) * time.Second
			if wait <= 0 || wait > s.floodWaitCap {
				wait = s.floodWaitCap
			}
			s.log.Warn("flood control engaged",
				logx.Int("retry_after_s", fe.RetryAfter),
				logx.Duration("wait", wait),
				logx.Int("attempt", attempt),
			)
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if isEntityParseErr(err) {
			plain := mdv2.Plain(mdv2.V(text))
			if _, perr := s.bot.Send(to, plain, plainOpts()); perr != nil {
				return fmt.Errorf("markup rejected and plain fallback failed: %w", perr)
			}
			s.log.Warn("markup rejected, delivered plain fallback", logx.Err(err))
			return nil
		}

		if isPermanent(err) {
			return err
		}

		s.log.Debug("chunk send failed",
			logx.Int("attempt", attempt),
			logx.Int("max", maxAttempts),
			logx.Err(err),
		)
		if attempt >= maxAttempts {
			break
		}
		if err := s.sleep(ctx, s.retryDelay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func markdownOpts() *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeMarkdownV2,
		DisableWebPagePreview: true,
	}
}

func plainOpts() *tele.SendOptions {
	return &tele.SendOptions{DisableWebPagePreview: true}
}

// isEntityParseErr matches Bot API entity parse rejections. The
// description carries the offending character, so telebot has no exact
// error constant for it and wraps it as a plain error; match the text.
func isEntityParseErr(err error) bool {
	var te *tele.Error
	if errors.As(err, &te) {
		return te.Code == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(te.Description), "can't parse entities")
	}
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

// isPermanent reports client-side rejections a retry cannot fix.
func isPermanent(err error) bool {
	var te *tele.Error
	return errors.As(err, &te) &&
		te.Code >= 400 && te.Code < 500 &&
		te.Code != http.StatusTooManyRequests
}

func (s *Sender) retryDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1), capped.
	d := s.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.retryMaxDelay {
			d = s.retryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	j := 0.7 + rng.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > s.retryMaxDelay {
		d = s.retryMaxDelay
	}
	return d
}

func (s *Sender) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
