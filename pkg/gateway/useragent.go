package gateway

import "strings"

// Embedded-webview markers seen in the wild. Matching any of these means a
// 30x redirect may silently die inside the app, so the gateway serves an
// interstitial instead.
var inAppSignatures = []string{
	"fban/",          // Facebook app
	"fbav/",          // Facebook app
	"fb_iab",         // Facebook in-app browser
	"instagram",      // Instagram
	"line/",          // LINE
	"micromessenger", // WeChat
	"twitter",        // Twitter / X
	"linkedinapp",    // LinkedIn
	"snapchat",       // Snapchat
	"musical_ly",     // TikTok (legacy)
	"bytedance",      // TikTok
	"tiktok",         // TikTok
	"pinterest",      // Pinterest
	"gsa/",           // Google app iOS
}

// isInAppBrowser reports whether ua belongs to a known embedded webview, by
// curated signature or the Android WebView heuristic.
func isInAppBrowser(ua string) bool {
	if ua == "" {
		return false
	}
	lower := strings.ToLower(ua)
	for _, sig := range inAppSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	// Android WebView: the "wv" token, or the legacy "Version/x.y Chrome"
	// combination that standalone Chrome never sends.
	if strings.Contains(lower, "android") {
		if strings.Contains(lower, "; wv)") || strings.Contains(lower, "; wv;") {
			return true
		}
		if strings.Contains(lower, "version/") && strings.Contains(lower, "chrome/") {
			return true
		}
	}
	return false
}
