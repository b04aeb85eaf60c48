package wsbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserscript(t *testing.T) {
	script, err := Userscript(ScriptOptions{
		URL:     "ws://127.0.0.1:7717/events",
		SiteURL: "https://dtf.ru/",
		Version: "1.2.3",
	})
	require.NoError(t, err)

	assert.Contains(t, script, "// @match       https://dtf.ru/*")
	assert.Contains(t, script, "// @version     1.2.3")
	assert.Contains(t, script, `const BRIDGE_URL = "ws://127.0.0.1:7717/events";`)
	assert.Contains(t, script, `const CHANNEL = "osnova-events";`)
}

func TestUserscript_DefaultVersion(t *testing.T) {
	script, err := Userscript(ScriptOptions{URL: "ws://localhost/events", SiteURL: "https://dtf.ru"})
	require.NoError(t, err)
	assert.Contains(t, script, "// @version     dev")
}
