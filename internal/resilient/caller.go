// Package resilient wraps API operations with deduplication, retry with
// backoff, session clearing on auth rejection and error surfacing.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hay-kot/dtfchat/internal/dtfapi"
)

// DefaultRetries is the number of retries after the first attempt.
const DefaultRetries = 2

// DefaultBaseDelay is the delay before the first retry. It doubles on every retry.
const DefaultBaseDelay = time.Second

// DefaultCallTimeout bounds one shared execution, retries included.
const DefaultCallTimeout = 2 * time.Minute

// Level is the severity of a Notification.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a dismissable user-facing message.
type Notification struct {
	Level    Level
	Title    string
	Message  string
	Duration time.Duration
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// SessionClearer drops the current session. Called when the server rejects the token.
type SessionClearer interface {
	Logout(ctx context.Context) error
}

// Ticket tracks one in-flight operation.
type Ticket struct {
	Key       string
	Attempt   int
	LastError *dtfapi.ErrorInfo
	StartedAt time.Time
}

// CallError is returned when an operation did not succeed.
type CallError struct {
	Key      string
	Attempts int
	Info     dtfapi.ErrorInfo
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Info.Message)
}

// Unwrap exposes the underlying ErrorInfo to errors.As.
func (e *CallError) Unwrap() error { return &e.Info }

// Kind returns the error classification.
func (e *CallError) Kind() dtfapi.Kind { return e.Info.Kind() }

// KindOf returns the classification of err, or KindNone if err is not a CallError.
func KindOf(err error) dtfapi.Kind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind()
	}
	return dtfapi.KindNone
}

// Options configures a Caller.
type Options struct {
	Retries              int
	BaseDelay            time.Duration
	CallTimeout          time.Duration
	NotificationDuration time.Duration
	Notifier             Notifier
	Session              SessionClearer
}

// Caller applies the retry and error policy to API operations. The zero value
// is not usable; construct with New.
type Caller struct {
	opts  Options
	log   zerolog.Logger
	group singleflight.Group

	mu       sync.Mutex
	tickets  map[string]*Ticket
	errs     map[string]string
	loading  int
	label    string
	onChange []func(active bool, label string)
}

// New creates a Caller.
func New(opts Options, log zerolog.Logger) *Caller {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.NotificationDuration <= 0 {
		opts.NotificationDuration = 5 * time.Second
	}

	return &Caller{
		opts:    opts,
		log:     log,
		tickets: make(map[string]*Ticket),
		errs:    make(map[string]string),
	}
}

// SetNotifier replaces the notifier. Used when the UI is created after the Caller.
func (c *Caller) SetNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Notifier = n
}

type callOptions struct {
	retries int
	notify  bool
	loading bool
	label   string
}

// Option adjusts a single call.
type Option func(*callOptions)

// WithRetries overrides the number of retries for transient failures.
func WithRetries(n int) Option {
	return func(o *callOptions) { o.retries = max(n, 0) }
}

// WithNotify controls whether a final failure produces a notification.
func WithNotify(notify bool) Option {
	return func(o *callOptions) { o.notify = notify }
}

// WithLoadingIndicator marks the call as holding the global loading indicator.
func WithLoadingIndicator(label string) Option {
	return func(o *callOptions) {
		o.loading = true
		o.label = label
	}
}

// Call runs fn under key. Concurrent calls with the same key share one
// execution and its outcome; options of the joining calls are ignored.
// The shared execution keeps the first caller's values but not its
// cancellation, and is bounded by Options.CallTimeout. A caller whose ctx ends
// returns the context error without stopping the execution for the others.
// A nil error means fn succeeded; otherwise the error is a *CallError or a
// context error.
func Call[T any](ctx context.Context, c *Caller, key string, fn func(ctx context.Context) dtfapi.Result[T], opts ...Option) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	o := callOptions{retries: c.opts.Retries, notify: true}
	for _, opt := range opts {
		opt(&o)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
		defer cancel()
		return execute(shared, c, key, fn, o)
	})

	select {
	case <-ctx.Done():
		c.log.Debug().Str("key", key).Msg("caller left in-flight request")
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.log.Debug().Str("key", key).Msg("joined in-flight request")
		}
		if res.Err != nil {
			return zero, res.Err
		}
		out, _ := res.Val.(T)
		return out, nil
	}
}

func execute[T any](ctx context.Context, c *Caller, key string, fn func(ctx context.Context) dtfapi.Result[T], o callOptions) (T, error) {
	ticket := c.track(key)
	defer c.untrack(key)

	if o.loading {
		c.beginLoading(o.label)
		defer c.endLoading()
	}

	var (
		result T
		last   *dtfapi.ErrorInfo
	)

	op := func() error {
		attempt := c.nextAttempt(ticket)
		r := fn(ctx)
		if r.Success {
			result = r.Result
			return nil
		}

		last = r.Error
		if last == nil {
			last = &dtfapi.ErrorInfo{Code: dtfapi.CodeMalformedResponse, Message: "unknown error"}
		}
		c.recordAttempt(ticket, last)

		if last.Kind() == dtfapi.KindTransient {
			c.log.Debug().Str("key", key).Int("attempt", attempt).Int("code", last.Code).Msg("transient failure")
			return last
		}
		return backoff.Permanent(last)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(o.retries)), ctx))
	if err == nil {
		c.ClearError(key)
		return result, nil
	}

	if last == nil {
		// context ended before the first attempt completed
		return result, err
	}

	ce := &CallError{Key: key, Attempts: ticket.Attempt, Info: *last}
	c.fail(ctx, ce, o)
	return result, ce
}

func (c *Caller) fail(ctx context.Context, ce *CallError, o callOptions) {
	c.mu.Lock()
	c.errs[ce.Key] = ce.Info.Message
	notifier := c.opts.Notifier
	c.mu.Unlock()

	c.log.Warn().
		Str("key", ce.Key).
		Int("attempts", ce.Attempts).
		Int("code", ce.Info.Code).
		Str("kind", ce.Kind().String()).
		Msg(ce.Info.Message)

	switch ce.Kind() {
	case dtfapi.KindAuthRejected:
		if c.opts.Session != nil {
			if err := c.opts.Session.Logout(ctx); err != nil {
				c.log.Error().Err(err).Msg("failed to clear session")
			}
		}
		return
	case dtfapi.KindNotAuthenticated:
		return
	}

	if o.notify && notifier != nil {
		notifier.Notify(Notification{
			Level:    LevelError,
			Title:    "Request failed",
			Message:  ce.Info.Message,
			Duration: c.opts.NotificationDuration,
		})
	}
}

// newBackOff yields base, 2*base, 4*base, ... without jitter.
func (c *Caller) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.BaseDelay << 10
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Caller) track(key string) *Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Ticket{Key: key, StartedAt: time.Now()}
	c.tickets[key] = t
	return t
}

func (c *Caller) untrack(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tickets, key)
}

func (c *Caller) nextAttempt(t *Ticket) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Attempt++
	return t.Attempt
}

func (c *Caller) recordAttempt(t *Ticket, info *dtfapi.ErrorInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.LastError = info
}

func (c *Caller) beginLoading(label string) {
	c.mu.Lock()
	c.loading++
	c.label = label
	first := c.loading == 1
	listeners := slices.Clone(c.onChange)
	c.mu.Unlock()

	if first {
		for _, fn := range listeners {
			fn(true, label)
		}
	}
}

func (c *Caller) endLoading() {
	c.mu.Lock()
	c.loading--
	last := c.loading == 0
	if last {
		c.label = ""
	}
	listeners := slices.Clone(c.onChange)
	c.mu.Unlock()

	if last {
		for _, fn := range listeners {
			fn(false, "")
		}
	}
}

// OnGlobalLoading registers fn to be called when the global loading indicator turns on or off.
func (c *Caller) OnGlobalLoading(fn func(active bool, label string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// GlobalLoading reports whether a loading-indicator call is outstanding and its label.
func (c *Caller) GlobalLoading() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0, c.label
}

// IsLoading reports whether any call is in flight.
func (c *Caller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickets) > 0
}

// IsRequestLoading reports whether a call with key is in flight.
func (c *Caller) IsRequestLoading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tickets[key]
	return ok
}

// Tickets returns a snapshot of the in-flight calls.
func (c *Caller) Tickets() []Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Ticket, 0, len(c.tickets))
	for _, t := range c.tickets {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Ticket) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// Errors returns the last error message recorded per key.
func (c *Caller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errs)
}

// Error returns the error recorded for key.
func (c *Caller) Error(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.errs[key]
	return msg, ok
}

// HasErrors reports whether any key has a recorded error.
func (c *Caller) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs) > 0
}

// ClearError forgets the error recorded for key.
func (c *Caller) ClearError(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.errs, key)
}

// ClearErrors forgets all recorded errors.
func (c *Caller) ClearErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.errs)
}
