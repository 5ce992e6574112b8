package common

import (
	"net"
	"net/url"
	"strings"
)

// IsTestURL reports whether rawURL points at a local or private test target
// (localhost, loopback, link-local, or RFC 1918 addresses). The remote
// browser provider cannot reach these, so production deployments reject
// them at submission time.
func IsTestURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "host.docker.internal" {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
