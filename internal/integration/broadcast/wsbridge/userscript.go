package wsbridge

import (
	_ "embed"
	"strings"

	"github.com/hay-kot/dtfchat/internal/core/session"
	"github.com/hay-kot/dtfchat/pkg/tmpl"
)

//go:embed userscript.js.tmpl
var userscriptTemplate string

// ScriptOptions describe the userscript installed in the host page.
type ScriptOptions struct {
	// URL is the ws:// address of the bridge.
	URL string
	// SiteURL is the host site the script runs on.
	SiteURL string
	Version string
}

// Userscript renders the script that relays the page's session broadcasts to
// the bridge at opts.URL.
func Userscript(opts ScriptOptions) (string, error) {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	data := struct {
		ScriptOptions
		Channel string
	}{
		ScriptOptions: opts,
		Channel:       session.BroadcastChannel,
	}
	data.SiteURL = strings.TrimSuffix(opts.SiteURL, "/")

	return tmpl.Render(userscriptTemplate, data)
}
