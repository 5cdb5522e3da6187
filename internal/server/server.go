/*
Package server implements the application's network transport layer.
It wires the HTTP router to the adaptive view pipeline and the read-only
data, persona and analytics endpoints, and configures network timeouts.
*/
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"healthlens/internal/config"
	"healthlens/internal/content"
	"healthlens/internal/database"
	"healthlens/internal/orchestrator"
	"healthlens/internal/records"
	"healthlens/internal/telemetry"
	"healthlens/internal/utility"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DataSource is the record store behind the /data endpoints.
// *records.MemorySource satisfies it.
type DataSource interface {
	records.Source
	AbnormalFindings(ctx context.Context, userID string) ([]records.LabFinding, error)
}

// HealthChecker reports the state of an optional backing store.
// *cache.RedisStore satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// Deps are the collaborators of the HTTP layer. DB and Redis are optional.
type Deps struct {
	Config       config.Config
	Pipeline     *orchestrator.Pipeline
	Source       DataSource
	Content      *content.Service
	Audit        *telemetry.Audit
	Behavior     *telemetry.Behavior
	Hub          *utility.Hub
	Gatherer     prometheus.Gatherer
	DB           database.Service
	Redis        HealthChecker
	CacheBackend string
	Log          zerolog.Logger
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	cfg      config.Config
	pipeline *orchestrator.Pipeline
	source   DataSource
	content  *content.Service
	audit    *telemetry.Audit
	behavior *telemetry.Behavior
	hub      *utility.Hub
	gatherer prometheus.Gatherer

	// db and redis are nil when the cache backend does not use them.
	db    database.Service
	redis HealthChecker

	cacheBackend string
	log          zerolog.Logger
}

// New builds a Server from d. A nil Gatherer serves the default registry.
func New(d Deps) *Server {
	s := &Server{
		port:         d.Config.Port,
		cfg:          d.Config,
		pipeline:     d.Pipeline,
		source:       d.Source,
		content:      d.Content,
		audit:        d.Audit,
		behavior:     d.Behavior,
		hub:          d.Hub,
		gatherer:     d.Gatherer,
		db:           d.DB,
		redis:        d.Redis,
		cacheBackend: d.CacheBackend,
		log:          d.Log,
	}
	if s.port == 0 {
		s.port = 8080
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.hub == nil {
		s.hub = utility.NewHub()
	}
	return s
}

// NewServer returns a configured *http.Server. The write timeout leaves room
// for the full external generation budget.
func NewServer(d Deps) *http.Server {
	app := New(d)

	writeTimeout := 30 * time.Second
	if budget := d.Config.GeminiTimeout + 10*time.Second; budget > writeTimeout {
		writeTimeout = budget
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", app.port),
		Handler:      app.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
	}
}
