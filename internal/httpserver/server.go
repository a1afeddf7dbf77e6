package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// TokenHeader carries the admin token when no Authorization header is sent.
const TokenHeader = "X-Auditlog-Token"

// Options configures a Server.
type Options struct {
	// AuthToken, when set, is required on every query request and grants
	// full read access. When empty, callers read everything except
	// RestrictedLoggers.
	AuthToken         string
	RestrictedLoggers []string
	ReadTimeout       time.Duration
	Logger            *slog.Logger
}

// Server provides the read-only HTTP API over the event log.
type Server struct {
	addr      string
	store     logquery.EventSource
	engine    *logquery.Engine
	opts      Options
	log       *slog.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, store logquery.EventSource, engine *logquery.Engine, opts Options) *Server {
	if addr == "" {
		addr = "127.0.0.1:8722"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		store:     store,
		engine:    engine,
		opts:      opts,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler builds the gin router serving the API.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/events", s.handleEvents)
	r.GET("/api/events/:id", s.handleEvent)
	r.GET("/api/has-updates", s.handleHasUpdates)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: s.opts.ReadTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", "err", err)
		}
	}()
	s.log.Info("http server listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// access resolves the caller's read permission from the request token.
// A configured token that is missing or wrong yields no access at all.
func (s *Server) access(c *gin.Context) logquery.Access {
	if s.opts.AuthToken == "" {
		return logquery.Access{AllLoggers: true, DeniedLoggers: s.opts.RestrictedLoggers}
	}
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		token = c.GetHeader(TokenHeader)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) == 1 {
		return logquery.FullAccess()
	}
	return logquery.Access{}
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.CountEvents(c.Request.Context(), storage.Query{})
	if err != nil {
		s.log.Error("health check failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).String(),
		"event_count": count,
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	params := logquery.ParamsFromValues(c.Request.URL.Query())
	res, err := s.engine.Query(c.Request.Context(), params, s.access(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("X-WP-Total", strconv.FormatInt(res.TotalRowCount, 10))
	c.Header("X-WP-TotalPages", strconv.Itoa(res.PagesCount))
	if res.SnapshotMaxID > 0 {
		c.Header("X-Max-Id-First-Page", strconv.FormatInt(res.SnapshotMaxID, 10))
	}
	if links := pageLinks(c.Request, res); links != "" {
		c.Header("Link", links)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(c, &logquery.Error{Kind: logquery.KindValidation, Param: "id", Detail: "must be a positive integer"})
		return
	}

	row, err := s.engine.Get(c.Request.Context(), id, s.access(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleHasUpdates(c *gin.Context) {
	params := logquery.ParamsFromValues(c.Request.URL.Query())
	n, err := s.engine.CountNewer(c.Request.Context(), params, s.access(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_events_count": n})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k logquery.Kind) int {
	switch k {
	case logquery.KindValidation:
		return http.StatusBadRequest
	case logquery.KindNotFound:
		return http.StatusNotFound
	case logquery.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	var qe *logquery.Error
	if !errors.As(err, &qe) {
		qe = &logquery.Error{Kind: logquery.KindStorage, Err: err}
	}

	status := statusFor(qe.Kind)
	body := gin.H{"code": string(qe.Kind), "message": qe.Error()}
	if status >= http.StatusInternalServerError {
		s.log.Error("query failed", "path", c.Request.URL.Path, "err", err)
		body["message"] = "internal storage error"
	}
	if qe.Param != "" {
		body["param"] = qe.Param
	}
	c.JSON(status, body)
}

// pageLinks renders RFC 8288 prev/next links for paged listings. Links
// after the first page carry the snapshot bound.
func pageLinks(r *http.Request, res *logquery.QueryResult) string {
	if res.Mode != logquery.ModeOffset.String() && res.Mode != logquery.ModeSnapshot.String() {
		return ""
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	link := func(page int, rel string) string {
		q := r.URL.Query()
		q.Del("offset")
		q.Set("page", strconv.Itoa(page))
		if res.SnapshotMaxID > 0 {
			q.Set("max_id_first_page", strconv.FormatInt(res.SnapshotMaxID, 10))
		}
		u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
		return "<" + u.String() + `>; rel="` + rel + `"`
	}

	var links []string
	if res.PageCurrent > 1 {
		prev := res.PageCurrent - 1
		if res.PagesCount > 0 && prev > res.PagesCount {
			prev = res.PagesCount
		}
		links = append(links, link(prev, "prev"))
	}
	if res.PageCurrent < res.PagesCount {
		links = append(links, link(res.PageCurrent+1, "next"))
	}
	return strings.Join(links, ", ")
}
