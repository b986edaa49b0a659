package api

import (
	"fmt"
	"html"
	"net/http"
)

const configErrorPage = `<!DOCTYPE html>
<html>
<head><title>Quill - Configuration Error</title></head>
<body style="font-family: sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; background: #1e1e1e; color: #eee;">
<div style="max-width: 32rem; text-align: center;">
<h1>Configuration error</h1>
<p>%s</p>
<p style="color: #999;">Fix the server configuration and restart. No requests will be served until then.</p>
</div>
</body>
</html>`

// ConfigurationErrorHandler renders a standalone full-screen error
// surface for every path. It is installed instead of the normal routes
// when startup configuration validation fails; no backend calls are
// made in this state.
func ConfigurationErrorHandler(err error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, configErrorPage, html.EscapeString(err.Error()))
	}
}
