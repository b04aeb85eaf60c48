package doctor

import (
	"context"
	"net"

	"github.com/hay-kot/dtfchat/internal/core/config"
)

// BridgeCheck verifies the WebSocket bridge address can be bound. It must run
// before anything starts the bridge.
type BridgeCheck struct {
	cfg config.WebSocketConfig
}

// NewBridgeCheck creates a new bridge check.
func NewBridgeCheck(cfg config.WebSocketConfig) *BridgeCheck {
	return &BridgeCheck{cfg: cfg}
}

func (c *BridgeCheck) Name() string {
	return "Session Bridge"
}

func (c *BridgeCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if !c.cfg.Enabled {
		result.Items = append(result.Items, CheckItem{
			Label:  "WebSocket bridge",
			Status: StatusWarn,
			Detail: "disabled",
			Hint:   "enable broadcast.websocket unless redis or nats relays the session",
		})
		return result
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.cfg.Listen)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.cfg.Listen,
			Status: StatusFail,
			Detail: err.Error(),
			Hint:   "stop the other dtfchat or change broadcast.websocket.listen",
		})
		return result
	}
	_ = ln.Close()

	result.Items = append(result.Items, CheckItem{
		Label:  c.cfg.Listen,
		Status: StatusPass,
		Detail: "available at " + c.cfg.URL(),
	})
	return result
}
