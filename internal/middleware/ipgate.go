package middleware

import (
	"fmt"      // Error formatting
	"net"      // Address parsing
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// ContextClientIP holds the address resolved by ClientIPMiddleware
const ContextClientIP = "client_ip"

// ProxyTrust decides whose forwarding headers are believed
type ProxyTrust struct {
	nets []*net.IPNet
}

// NewProxyTrust parses proxy addresses given as plain IPs or CIDR ranges
func NewProxyTrust(proxies []string) (*ProxyTrust, error) {
	p := &ProxyTrust{}
	for _, raw := range proxies {
		raw = normalizeIP(raw)
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", raw)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			raw = fmt.Sprintf("%s/%d", raw, bits)
		}
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		p.nets = append(p.nets, ipNet)
	}
	return p, nil
}

func (p *ProxyTrust) trusts(host string) bool {
	ip := net.ParseIP(host)
	if p == nil || ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address. Forwarding headers are read only when the
// connection comes from a trusted proxy: first X-Forwarded-For entry, then X-Real-IP.
// Otherwise the connection's remote address is the answer.
func (p *ProxyTrust) ClientIP(r *http.Request) string {
	remote := remoteHost(r)
	if !p.trusts(remote) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return normalizeIP(ip)
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return normalizeIP(ip)
	}
	return remote
}

// ClientIPMiddleware resolves the caller address once for every later handler
func ClientIPMiddleware(p *ProxyTrust) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextClientIP, p.ClientIP(c.Request)) // Store caller address in context
		c.Next()
	}
}

// ClientIP returns the address stored by ClientIPMiddleware, falling back to the
// connection's remote address when the middleware did not run
func ClientIP(c *gin.Context) string {
	if ip := c.GetString(ContextClientIP); ip != "" {
		return ip
	}
	return remoteHost(c.Request)
}

// IPAllowlistMiddleware rejects callers whose address is not listed
func IPAllowlistMiddleware(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		set[normalizeIP(ip)] = struct{}{}
	}
	return func(c *gin.Context) {
		ip := ClientIP(c) // Resolved caller address
		if _, ok := set[ip]; !ok {
			logrus.WithFields(logrus.Fields{
				"client_ip": ip,
				"path":      c.Request.URL.Path,
			}).Warn("Blocked request from address outside allow-list")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next() // Proceed to the next handler
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr // No port present
	}
	return normalizeIP(host)
}

// normalizeIP strips the IPv4-mapped IPv6 prefix so ::ffff:10.0.0.1 matches 10.0.0.1
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	return strings.TrimPrefix(ip, "::ffff:")
}
