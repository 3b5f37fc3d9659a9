package fakeapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/IBA-HOK/CoCoIRU/internal/observability"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

const Prefix = "/api/v1"

type Options struct {
	JWTSecret string
	TokenTTL  time.Duration

	// GovUsers maps gov usernames to plaintext passwords.
	GovUsers map[string]string

	AllowOrigins []string
	Log          *logger.Logger
	// Metrics, when set, is updated per request and served on /metrics.
	Metrics *observability.Metrics

	// Fail is consulted for every request before it is handled; n is the
	// 1-based count of calls seen so far for method+path. Returning true
	// answers with a 500.
	Fail func(method, path string, n int) bool

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	Now func() time.Time
}

// RecordedRequest is one request as the server received it.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          []byte
}

// Server is an in-memory implementation of the CoCoIRU REST API.
type Server struct {
	opts   Options
	log    *logger.Logger
	engine *gin.Engine
	db     *store

	govHashes map[string][]byte

	recMu    sync.Mutex
	recorded []RecordedRequest
	calls    map[string]int
}

func New(opts Options) (*Server, error) {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "cocoiru-dev-secret"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 3 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		opts:      opts,
		log:       log.With("component", "fakeapi"),
		db:        newStore(),
		govHashes: map[string][]byte{},
		calls:     map[string]int{},
	}
	for user, pw := range opts.GovUsers {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), opts.BcryptCost)
		if err != nil {
			return nil, err
		}
		s.govHashes[user] = h
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("cocoiru-fakeapi"))
	r.Use(s.corsMiddleware())
	r.Use(s.requestLogger())
	r.Use(s.recordRequest())
	r.Use(s.injectFailures())

	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	api := r.Group(Prefix)
	{
		// Public: the first community must be creatable before any token exists.
		api.POST("/token", s.issueToken)
		api.POST("/communities/", s.createCommunity)
	}

	protected := api.Group("/")
	protected.Use(s.requireToken())
	{
		protected.PUT("/communities/:id", s.updateCommunity)
		protected.POST("/items/", s.createItem)
		protected.POST("/request_content/", s.createRequestContent)
		protected.POST("/support_requests/", s.createSupportRequest)
		protected.POST("/members/", s.createMember)
		protected.POST("/special_notes/", s.createSpecialNote)
		protected.POST("/shelter_info/", s.createShelterInfo)
	}

	gov := api.Group("/")
	gov.Use(s.requireToken(), s.requireGov())
	{
		gov.GET("/communities/", s.listCommunities)
	}
	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	origins := s.opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		s.opts.Metrics.ObserveHTTP(c.Request.Method, c.FullPath(), status, time.Since(start))
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rid := c.GetHeader("X-Request-ID"); rid != "" {
			fields = append(fields, "request_id", rid)
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields = append(fields, "trace_id", sc.TraceID().String())
		}
		switch {
		case status >= 500:
			s.log.Error("HTTP request", fields...)
		case status >= 400:
			s.log.Warn("HTTP request", fields...)
		default:
			s.log.Info("HTTP request", fields...)
		}
	}
}

func (s *Server) recordRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.recMu.Lock()
		s.recorded = append(s.recorded, RecordedRequest{
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			Authorization: c.GetHeader("Authorization"),
			Body:          body,
		})
		s.recMu.Unlock()
		c.Next()
	}
}

func (s *Server) injectFailures() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Fail == nil {
			c.Next()
			return
		}
		method, path := c.Request.Method, c.Request.URL.Path
		s.recMu.Lock()
		s.calls[method+" "+path]++
		n := s.calls[method+" "+path]
		s.recMu.Unlock()

		if s.opts.Fail(method, path, n) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "injected failure"})
			return
		}
		c.Next()
	}
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []RecordedRequest {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	return append([]RecordedRequest(nil), s.recorded...)
}

func (s *Server) Items() []ItemRow { return values(&s.db.mu, s.db.items) }

func (s *Server) Communities() []CommunityRow { return s.db.communityList() }

func (s *Server) Members() []MemberRow { return values(&s.db.mu, s.db.members) }

func (s *Server) SpecialNotes() []SpecialNoteRow { return values(&s.db.mu, s.db.specialNotes) }

func (s *Server) RequestContents() []RequestContentRow { return values(&s.db.mu, s.db.requestContents) }

func (s *Server) SupportRequests() []SupportRequestRow { return values(&s.db.mu, s.db.supportRequests) }

func (s *Server) Shelters() []ShelterInfoRow { return values(&s.db.mu, s.db.shelters) }
