package server

import (
	"math"
	"net/http"
	"time"

	"healthlens/internal/utility"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/time/rate"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = utility.TrustedIPExtractor(s.cfg.TrustedProxies)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(s.LoggerMiddleware)

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")

	api.GET("/adaptive-view", s.adaptiveViewHandler)
	api.DELETE("/cache/:user_id", s.invalidateCacheHandler)
	api.GET("/ws/:user_id", s.refreshSocketHandler)

	// Persona routes
	api.POST("/persona/calculate", s.calculatePersonaHandler)
	api.GET("/persona/list", s.listPersonasHandler)
	api.GET("/persona/info/:persona_id", s.personaInfoHandler)
	api.GET("/persona/templates/:persona_id", s.personaTemplateHandler)

	// Content generation routes
	api.POST("/ai/generate", s.generateContentHandler, s.aiRateLimiter())
	api.GET("/ai/prompt/:persona_id", s.generationPromptHandler)

	// Record routes
	api.GET("/data/profile/:user_id", s.userProfileHandler)
	api.GET("/data/lab-results/:user_id", s.labResultsHandler)
	api.GET("/data/lab-results/:user_id/abnormal", s.abnormalResultsHandler)
	api.GET("/data/history/:user_id", s.userHistoryHandler)

	// Analytics routes
	api.GET("/analytics/system", s.systemAnalyticsHandler)
	api.GET("/analytics/personas", s.personaAnalyticsHandler)
	api.POST("/analytics/engagement", s.contentEngagementHandler)

	return e
}

// aiRateLimiter throttles content generation per client IP.
func (s *Server) aiRateLimiter() echo.MiddlewareFunc {
	rps := s.cfg.AIRateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     int(math.Ceil(rps)),
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return utility.GetRealIP(c), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			utility.Logger(c).Warn().Str("ip", identifier).Msg("AI generation rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests. Please try again later."})
		},
	})
}

func (s *Server) healthHandler(c echo.Context) error {
	ctx := c.Request().Context()
	status := "healthy"

	resp := map[string]any{
		"service":       "healthlens",
		"cache_backend": s.cacheBackend,
	}
	if s.db != nil {
		dbHealth := s.db.Health()
		if dbHealth["status"] != "up" {
			status = "degraded"
		}
		resp["database"] = dbHealth
	}
	if s.redis != nil {
		redisHealth := s.redis.Health(ctx)
		if redisHealth["status"] != "up" {
			status = "degraded"
		}
		resp["redis"] = redisHealth
	}

	system := map[string]any{}
	if v, err := mem.VirtualMemory(); err == nil {
		system["memory_used_percent"] = v.UsedPercent
	}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		system["cpu_percent"] = cpuPercent[0]
	}
	resp["system"] = system
	resp["status"] = status

	return c.JSON(http.StatusOK, resp)
}

// LoggerMiddleware tags the request with an id and stores a request-scoped
// logger under "logger".
func (s *Server) LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := s.log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}
