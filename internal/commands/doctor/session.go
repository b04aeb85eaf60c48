package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

// expiryWarning is how close to expiry a session is reported as a warning.
const expiryWarning = time.Hour

// SessionState is the live view of the current session.
type SessionState interface {
	Initialize(ctx context.Context) error
	Current() (session.Session, bool)
	LastError() error
}

// SessionCheck inspects the stored session record and waits briefly for a token.
type SessionCheck struct {
	store session.Store
	state SessionState
	wait  time.Duration
	fix   bool
	now   func() time.Time
}

// NewSessionCheck creates a new session check. If fix is true, an unreadable
// session file is removed.
func NewSessionCheck(store session.Store, state SessionState, wait time.Duration, fix bool) *SessionCheck {
	return &SessionCheck{
		store: store,
		state: state,
		wait:  wait,
		fix:   fix,
		now:   time.Now,
	}
}

func (c *SessionCheck) Name() string {
	return "Session"
}

func (c *SessionCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	result.Items = append(result.Items, c.checkStored(ctx))

	waitCtx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()

	err := c.state.Initialize(waitCtx)
	cur, ok := c.state.Current()

	switch {
	case err != nil && !errors.Is(err, session.ErrNotAuthenticated) && !errors.Is(err, context.DeadlineExceeded):
		result.Items = append(result.Items, CheckItem{Label: "Token", Status: StatusFail, Detail: err.Error()})
	case !ok || !cur.IsAuthenticated(c.now()):
		result.Items = append(result.Items, CheckItem{
			Label:  "Token",
			Status: StatusFail,
			Detail: fmt.Sprintf("no token received within %s", c.wait),
			Hint:   "install the userscript from 'dtfchat bridge script' and open the site while logged in",
		})
	default:
		result.Items = append(result.Items, c.tokenItem(cur))
	}

	if lastErr := c.state.LastError(); lastErr != nil {
		result.Items = append(result.Items, CheckItem{Label: "Last error", Status: StatusWarn, Detail: lastErr.Error()})
	}

	return result
}

func (c *SessionCheck) checkStored(ctx context.Context) CheckItem {
	rec, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return CheckItem{Label: "Stored session", Status: StatusWarn, Detail: "none stored"}
	case err != nil:
		if c.fix {
			if delErr := c.store.Delete(ctx); delErr != nil {
				return CheckItem{Label: "Stored session", Status: StatusFail, Detail: "remove: " + delErr.Error()}
			}
			return CheckItem{Label: "Stored session", Status: StatusPass, Detail: "removed unreadable session file", Fixable: true, Fixed: true}
		}
		return CheckItem{Label: "Stored session", Status: StatusFail, Detail: err.Error(), Hint: "run 'dtfchat doctor --fix' to remove it", Fixable: true}
	}

	if rec.AccessToken == "" {
		return CheckItem{Label: "Stored session", Status: StatusWarn, Detail: "stored record has no token"}
	}
	return CheckItem{
		Label:  "Stored session",
		Status: StatusPass,
		Detail: "last active " + time.UnixMilli(rec.LastActivity).Format(time.DateTime),
	}
}

func (c *SessionCheck) tokenItem(s session.Session) CheckItem {
	who := "unknown user"
	if s.User != nil {
		who = fmt.Sprintf("%s (%s)", s.User.DisplayName, s.User.ID)
	}

	left := s.TimeUntilExpiry(c.now())
	if s.ExpiresAt != nil && left < expiryWarning {
		return CheckItem{
			Label:  "Token",
			Status: StatusWarn,
			Detail: fmt.Sprintf("%s, expires in %s", who, left.Round(time.Minute)),
			Hint:   "reload the site to broadcast a fresh session",
		}
	}

	detail := who
	if s.ExpiresAt != nil {
		detail += ", expires " + s.ExpiresAt.Format(time.DateTime)
	}
	return CheckItem{Label: "Token", Status: StatusPass, Detail: detail}
}
