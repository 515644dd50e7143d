// Package server exposes the position engine's five read operations over
// HTTP/JSON. Responses are all-or-nothing, matching the engine's error
// policy: no partial aggregates ever leave this surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/observability"
	"ShuttleLens/internal/position"
	"ShuttleLens/internal/registry"
	"ShuttleLens/internal/vault"
)

// MaxBatchQueries bounds one batch request. The engine itself has no
// limit; this guards the HTTP surface against unbounded fan-out.
const MaxBatchQueries = 1024

type Server struct {
	agg     *position.Aggregator
	reg     registry.Registry
	log     zerolog.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker

	engine     *gin.Engine
	httpServer *http.Server
}

func New(agg *position.Aggregator, reg registry.Registry, log zerolog.Logger, metrics *observability.Metrics, health *observability.HealthChecker) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		agg:     agg,
		reg:     reg,
		log:     log,
		metrics: metrics,
		health:  health,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())

	v1 := s.engine.Group("/v1")
	v1.GET("/markets/:id/snapshot", s.instrument("market_snapshot", s.handleMarketSnapshot))
	v1.GET("/markets/:id/borrowers/:account", s.instrument("borrower_position", s.handleBorrowerPosition))
	v1.GET("/markets/:id/lenders/:account", s.instrument("lender_position", s.handleLenderPosition))
	v1.GET("/accounts/:account/borrower-totals", s.instrument("borrower_totals", s.handleBorrowerTotals))
	v1.GET("/accounts/:account/lender-totals", s.instrument("lender_totals", s.handleLenderTotals))
	v1.POST("/positions/batch", s.instrument("batch_positions", s.handleBatchPositions))

	if health != nil {
		s.engine.GET("/healthz", gin.WrapF(health.LivenessHandler))
		s.engine.GET("/readyz", gin.WrapF(health.ReadinessHandler))
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)

		start := time.Now()
		c.Next()

		s.log.Debug().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) instrument(op string, fn func(*gin.Context, string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.metrics.QueryRequests.WithLabelValues(op).Inc()
		fn(c, op)
		s.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) handleMarketSnapshot(c *gin.Context, op string) {
	marketID, ok := s.marketParam(c, op)
	if !ok {
		return
	}
	cs, ds, err := s.agg.MarketSnapshot(c.Request.Context(), s.reg, marketID)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collateral": cs, "debt": ds})
}

func (s *Server) handleBorrowerPosition(c *gin.Context, op string) {
	marketID, ok := s.marketParam(c, op)
	if !ok {
		return
	}
	account, ok := s.accountParam(c, op)
	if !ok {
		return
	}
	pos, err := s.agg.BorrowerPosition(c.Request.Context(), s.reg, marketID, account)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) handleLenderPosition(c *gin.Context, op string) {
	marketID, ok := s.marketParam(c, op)
	if !ok {
		return
	}
	account, ok := s.accountParam(c, op)
	if !ok {
		return
	}
	pos, err := s.agg.LenderPosition(c.Request.Context(), s.reg, marketID, account)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) handleBorrowerTotals(c *gin.Context, op string) {
	account, ok := s.accountParam(c, op)
	if !ok {
		return
	}
	totals, err := s.agg.BorrowerPositionAllMarkets(c.Request.Context(), s.reg, account)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "totals": totals})
}

func (s *Server) handleLenderTotals(c *gin.Context, op string) {
	account, ok := s.accountParam(c, op)
	if !ok {
		return
	}
	totals, err := s.agg.LenderPositionAllMarkets(c.Request.Context(), s.reg, account)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "totals": totals})
}

type batchRequest struct {
	Queries []position.Query `json:"queries"`
}

func (s *Server) handleBatchPositions(c *gin.Context, op string) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, op, "malformed batch body: "+err.Error())
		return
	}
	if len(req.Queries) > MaxBatchQueries {
		s.badRequest(c, op, "batch exceeds "+strconv.Itoa(MaxBatchQueries)+" queries")
		return
	}
	for i := range req.Queries {
		if req.Queries[i].Account == "" {
			s.badRequest(c, op, "query "+strconv.Itoa(i)+": missing account")
			return
		}
		req.Queries[i].Account = vault.NewAddress(req.Queries[i].Account.String())
	}
	s.metrics.BatchSize.Observe(float64(len(req.Queries)))

	results, err := s.agg.BatchPositions(c.Request.Context(), s.reg, req.Queries)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) marketParam(c *gin.Context, op string) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.badRequest(c, op, "market id must be a uint32")
		return 0, false
	}
	return uint32(id), true
}

func (s *Server) accountParam(c *gin.Context, op string) (vault.Address, bool) {
	account := vault.NewAddress(c.Param("account"))
	if account == "" {
		s.badRequest(c, op, "missing account")
		return "", false
	}
	return account, true
}

func (s *Server) badRequest(c *gin.Context, op, msg string) {
	s.metrics.QueryErrors.WithLabelValues(op, "bad_request").Inc()
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) writeError(c *gin.Context, op string, err error) {
	var upstream *position.UpstreamReadError

	status := http.StatusInternalServerError
	reason := "internal"
	switch {
	case errors.Is(err, registry.ErrMarketNotFound):
		status = http.StatusNotFound
		reason = "market_not_found"
	case errors.Is(err, fixed.ErrOverflow):
		reason = "overflow"
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
		reason = "upstream_read"
	}

	s.metrics.QueryErrors.WithLabelValues(op, reason).Inc()
	s.log.Error().Err(err).Str("operation", op).Str("reason", reason).Msg("query failed")
	c.JSON(status, gin.H{"error": err.Error()})
}
