// internal/browser/channel.go
package browser

import "strings"

// EngineKind is the browser engine family to launch.
type EngineKind string

const (
	Chromium EngineKind = "chromium"
	Firefox  EngineKind = "firefox"
	WebKit   EngineKind = "webkit"
)

// Selection is the engine and optional branded channel resolved from a configured name.
type Selection struct {
	Engine  EngineKind
	Channel string
	// Fallback is set when the name was not recognized and Chromium was chosen instead.
	Fallback bool
}

// ResolveChannel maps a configured browser name to an engine selection.
// Branded builds (chrome, msedge) run on the Chromium engine with a channel.
// Unknown names fall back to Chromium.
func ResolveChannel(name string) Selection {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chromium", "":
		return Selection{Engine: Chromium}
	case "firefox":
		return Selection{Engine: Firefox}
	case "webkit":
		return Selection{Engine: WebKit}
	case "chrome":
		return Selection{Engine: Chromium, Channel: "chrome"}
	case "msedge":
		return Selection{Engine: Chromium, Channel: "msedge"}
	default:
		return Selection{Engine: Chromium, Fallback: true}
	}
}
