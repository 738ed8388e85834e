package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly only lets loopback clients and whitelisted IPs/CIDRs through.
type LocalhostOnly struct {
	logger   logrus.FieldLogger
	allowed  []net.IP
	networks []*net.IPNet
}

// NewLocalhostOnly parses allowedIPs. Invalid entries are logged and skipped.
func NewLocalhostOnly(logger logrus.FieldLogger, allowedIPs []string) *LocalhostOnly {
	l := &LocalhostOnly{logger: logger.WithField("component", "ip_allowlist")}
	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				l.logger.WithError(err).WithField("allowed", entry).Warn("Invalid CIDR in allowedIPs")
				continue
			}
			l.networks = append(l.networks, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			l.logger.WithField("allowed", entry).Warn("Invalid IP in allowedIPs")
			continue
		}
		l.allowed = append(l.allowed, ip)
	}
	return l
}

// Restrict rejects requests from non-whitelisted clients with 403.
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !l.isAllowedIP(clientIP) {
			l.logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"path":      c.Request.URL.Path,
				"method":    c.Request.Method,
			}).Warn("Reject non-whitelisted access")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "IP_NOT_ALLOWED",
				"message": "This API is only accessible from allowed IP addresses",
			})
			return
		}
		c.Next()
	}
}

func isLocalhost(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip == "localhost"
	}
	return parsed.IsLoopback()
}

func (l *LocalhostOnly) isAllowedIP(ip string) bool {
	if isLocalhost(ip) {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, allowed := range l.allowed {
		if allowed.Equal(parsed) {
			return true
		}
	}
	for _, ipNet := range l.networks {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}
