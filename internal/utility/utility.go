package utility

import (
	"net"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetRealIP returns the client address resolved by the echo IPExtractor.
// Forwarding headers count only when the peer is a trusted proxy.
func GetRealIP(c echo.Context) string {
	return c.RealIP()
}

// TrustedIPExtractor reads X-Forwarded-For through loopback, private and
// the given proxy ranges, and falls back to the peer address otherwise.
func TrustedIPExtractor(proxies []*net.IPNet) echo.IPExtractor {
	opts := make([]echo.TrustOption, 0, len(proxies))
	for _, p := range proxies {
		opts = append(opts, echo.TrustIPRange(p))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// Logger returns the request-scoped logger set by the logging middleware, or
// the global logger.
func Logger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok && l != nil {
		return l
	}
	return &log.Logger
}

// RequestID returns the id assigned by the logging middleware.
func RequestID(c echo.Context) string {
	id, _ := c.Get("request_id").(string)
	return id
}
