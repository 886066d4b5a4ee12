// Package static embeds the browser chat page. The page is a pure client
// of the REST API: all conversation state lives server-side, keyed by the
// session id the page holds in memory.
package static

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed assets/*.html assets/*.css assets/*.js
var assetsFS embed.FS

// Handler serves the embedded chat page at / and its assets by name.
func Handler() http.Handler {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		// Unreachable with a compile-time embed; fail fast if it ever trips.
		panic(fmt.Sprintf("static: failed to create sub-filesystem: %v", err))
	}
	return http.FileServer(http.FS(sub))
}
