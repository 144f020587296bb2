package http

import (
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"pmpv/internal/core"
)

// securityMetrics counts rejected and flagged requests for /metrics.
type securityMetrics struct {
	rateLimitHits      int64
	oversizedBodies    int64
	suspiciousRequests int64
}

// Reasons a request is flagged. They end up in the "reason" log field.
const (
	flagMethod      = "unusual_method"
	flagURLLength   = "url_too_long"
	flagProxyChain  = "forwarded_chain"
	flagAgent       = "scanner_agent"
	flagTraversal   = "path_traversal"
	flagUnknownRoot = "unknown_route"
	flagPathParam   = "bad_path_param"
	flagQuery       = "unexpected_query"
	flagContentType = "content_type_mismatch"
)

const (
	maxAPIURLLength  = 512
	maxForwardedHops = 5
)

// apiRoots are the first path segments served by the API.
var apiRoots = map[string]bool{
	"":              true,
	"healthz":       true,
	"readyz":        true,
	"metrics":       true,
	"calendar":      true,
	"template.xlsx": true,
	"sessions":      true,
}

// queryKeys are the only query parameters any route reads.
var queryKeys = map[string]bool{"start_month": true, "leap": true}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb",
	"masscan", "zgrab", "nuclei", "wpscan",
}

const xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var trustedProxies = []*net.IPNet{
	mustCIDR("127.0.0.0/8"),
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

func isTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !isTrustedProxy(ip) {
		return peer
	}

	candidates := []string{r.Header.Get("X-Real-IP")}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append([]string{first}, candidates...)
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if net.ParseIP(c) != nil {
			return c
		}
	}
	return peer
}

// inspectRequest checks a request against the shape of the session API and
// returns why it looks hostile, or "" for a clean request. Flagged requests
// are counted but still served; the handlers reject malformed input on
// their own.
func inspectRequest(r *http.Request, metrics *securityMetrics) string {
	reason := requestFlag(r)
	if reason != "" && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return reason
}

func requestFlag(r *http.Request) string {
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return flagMethod
	}
	if len(r.URL.RequestURI()) > maxAPIURLLength {
		return flagURLLength
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxForwardedHops {
		return flagProxyChain
	}
	agent := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return flagAgent
		}
	}

	path := r.URL.Path
	if strings.Contains(path, "..") || strings.Contains(path, "\\") {
		return flagTraversal
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if !apiRoots[segments[0]] || (segments[0] != "sessions" && len(segments) > 1) {
		return flagUnknownRoot
	}
	if segments[0] == "sessions" && !validSessionPath(segments[1:]) {
		return flagPathParam
	}
	for key := range r.URL.Query() {
		if !queryKeys[key] {
			return flagQuery
		}
	}
	if !contentTypeFits(r, segments) {
		return flagContentType
	}
	return ""
}

// validSessionPath checks the {id}, {slot} and {row} positions of a path
// below /sessions. Route matching is left to the mux.
func validSessionPath(rest []string) bool {
	if len(rest) == 0 {
		return true
	}
	if !positiveInt(rest[0]) {
		return false
	}
	if len(rest) >= 3 && rest[1] == "months" {
		slot, err := strconv.Atoi(rest[2])
		if err != nil || core.ValidateSlot(slot) != nil {
			return false
		}
		if len(rest) >= 5 && rest[3] == "rows" && !positiveInt(rest[4]) {
			return false
		}
	}
	return true
}

func positiveInt(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n > 0
}

// contentTypeFits compares a declared body type with what the route reads:
// a workbook for imports, JSON elsewhere. Requests without a declared type
// pass.
func contentTypeFits(r *http.Request, segments []string) bool {
	declared := r.Header.Get("Content-Type")
	if declared == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	if segments[len(segments)-1] == "import" {
		return mediaType == xlsxMediaType || mediaType == "application/octet-stream"
	}
	return mediaType == "application/json"
}
