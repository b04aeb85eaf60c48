package doctor

import (
	"context"
	"time"

	"github.com/hay-kot/dtfchat/internal/dtfapi"
	"github.com/hay-kot/dtfchat/internal/resilient"
)

// HealthChecker performs one authenticated round trip.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// APICheck verifies the messenger API is reachable with the current token.
type APICheck struct {
	api           HealthChecker
	baseURL       string
	authenticated func() bool
}

// NewAPICheck creates a new API reachability check.
func NewAPICheck(api HealthChecker, baseURL string, authenticated func() bool) *APICheck {
	return &APICheck{api: api, baseURL: baseURL, authenticated: authenticated}
}

func (c *APICheck) Name() string {
	return "API"
}

func (c *APICheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if !c.authenticated() {
		result.Items = append(result.Items, CheckItem{
			Label:  c.baseURL,
			Status: StatusWarn,
			Detail: "skipped, not authenticated",
			Hint:   "fix the Session check first",
		})
		return result
	}

	latency, err := c.api.HealthCheck(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.baseURL,
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   apiHint(err),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  c.baseURL,
		Status: StatusPass,
		Detail: "reachable in " + latency.Round(time.Millisecond).String(),
	})
	return result
}

func apiHint(err error) string {
	switch resilient.KindOf(err) {
	case dtfapi.KindAuthRejected:
		return "the server rejected the token; log in again on the site"
	case dtfapi.KindTransient:
		return "check network access to api.base_url"
	default:
		return ""
	}
}
