package gateway

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var interstitialTmpl = template.Must(template.New("interstitial").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Opening conversation…</title>
</head>
<body>
<p>You seem to be inside an app's built-in browser, which may not open this
conversation correctly.</p>
<p><a href="{{.Target}}" target="_blank" rel="noopener">Open in your browser</a></p>
<script>
// Genuine browsers follow along automatically; broken webviews keep the
// manual link above.
setTimeout(function () { window.location.href = {{.Target}}; }, 400);
</script>
</body>
</html>`))

var helpTmpl = template.Must(template.New("help").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Conversation link</title>
</head>
<body>
<h1>We couldn't open that conversation</h1>
<p>The link may have expired or been copied incompletely. Open your dashboard
and search for the conversation directly.</p>
{{if .Dashboard}}<p><a href="{{.Dashboard}}">Go to dashboard</a></p>{{end}}
</body>
</html>`))

// serveInterstitial answers 200 with a manual open-in-browser page instead
// of trusting the webview to honor a 30x.
func (g *Gateway) serveInterstitial(w http.ResponseWriter, target string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := interstitialTmpl.Execute(w, map[string]string{"Target": target}); err != nil {
		log.Debug().Err(err).Msg("render interstitial")
	}
}

// serveHelp is the terminal page for links nothing could be made of. Always
// 200: a dead link is a user-facing dead end, not a server fault.
func (g *Gateway) serveHelp(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	dashboard := ""
	if g.cfg.TargetHost != "" {
		dashboard = g.absolute(g.cfg.DashboardPath)
	}
	if err := helpTmpl.Execute(w, map[string]string{"Dashboard": dashboard}); err != nil {
		log.Debug().Err(err).Msg("render help page")
	}
}
