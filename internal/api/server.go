// Package api exposes the dashboard HTTP API: run history, property
// snapshots, statistics and admin-triggered analysis runs.
package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/auction-analyzer/internal/auth"
	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/db"
	"github.com/david/auction-analyzer/internal/models"
	"github.com/david/auction-analyzer/internal/pipeline"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	Config      *config.Config

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	RunID     string             `json:"run_id,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, cfg *config.Config) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Echo:        e,
		Config:      cfg,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/statistics", s.handleGetRunStatistics)
	api.GET("/properties", s.handleListProperties)
	api.GET("/properties/:id", s.handleGetProperty)
	api.GET("/stats", s.handleGetStats)

	// Admin routes (trigger analysis runs)
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/analyze", s.handleTriggerAnalysis)
	admin.GET("/admin/job/:id", s.handleJobStatus)

	// Auth routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected routes (watchlist)
	saved := api.Group("/saved")
	saved.Use(auth.Middleware)
	saved.POST("/:run/:id", s.handleSaveProperty)
	saved.DELETE("/:run/:id", s.handleUnsaveProperty)
	saved.GET("", s.handleGetSavedProperties)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 10
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	runs, err := s.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run ID"})
	}
	run, err := s.Store.GetRun(c.Request().Context(), runID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetRunStatistics(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run ID"})
	}
	stats, err := s.Store.RunStatistics(c.Request().Context(), runID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, stats)
}

// resolveRunID returns the run_id query param, or the latest completed run
// when absent.
func (s *Server) resolveRunID(c echo.Context) (uuid.UUID, error) {
	if raw := c.QueryParam("run_id"); raw != "" {
		return uuid.Parse(raw)
	}
	runID, err := s.Store.LatestRunID(c.Request().Context())
	if err != nil {
		return uuid.Nil, err
	}
	if runID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("no completed runs yet")
	}
	return runID, nil
}

func (s *Server) handleListProperties(c echo.Context) error {
	runID, err := s.resolveRunID(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	params := db.ListParams{
		State:  c.QueryParam("state"),
		Region: c.QueryParam("region"),
		SortBy: c.QueryParam("sort"),
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_margin"), 64); err == nil && v > 0 {
		params.MinMargin = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_price"), 64); err == nil && v > 0 {
		params.MaxPrice = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_score"), 64); err == nil && v > 0 {
		params.MinScore = v
	}
	if raw := c.QueryParam("recommended"); raw != "" {
		val := raw == "true"
		params.Recommended = &val
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}

	result, err := s.Store.ListProperties(c.Request().Context(), runID, params)
	if err != nil {
		c.Logger().Errorf("Failed to list properties: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetProperty(c echo.Context) error {
	runID, err := s.resolveRunID(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	prop, err := s.Store.GetProperty(c.Request().Context(), runID, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, prop)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// handleTriggerAnalysis starts an analysis run in the background and returns
// 202 with a job id to poll.
func (s *Server) handleTriggerAnalysis(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "An analysis run is already in progress",
			"job_id": job.ID,
		})
	}

	opts := pipeline.Options{MaxZips: 12}
	for _, src := range splitCSV(c.QueryParam("sources")) {
		switch src {
		case "mock":
			opts.Mock = true
		case "redfin":
			opts.Redfin = true
		case "sheriff":
			opts.Sheriff = true
		case "auction_com":
			opts.AuctionCom = true
		case "real":
			opts.RealAPI = true
		default:
			s.jobMu.Unlock()
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown source %q", src)})
		}
	}
	if err := opts.Validate(); err != nil {
		s.jobMu.Unlock()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if raw := c.QueryParam("enrich"); raw != "" {
		opts.Enrich = raw == "true"
	}
	if v, err := strconv.Atoi(c.QueryParam("max_zips")); err == nil && v > 0 && v <= 100 {
		opts.MaxZips = v
	}

	// Detach from the HTTP lifecycle; scraping runs can take many minutes.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		runID, result, err := s.runAnalysis(jobCtx, opts)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if runID != uuid.Nil {
			job.RunID = runID.String()
		}
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[analyze-job %s] failed: %v", jobID, err)
			return
		}
		job.Status = "completed"
		job.Result = map[string]interface{}{
			"total_properties":  result.TotalProperties,
			"recommended_deals": result.RecommendedDeals,
			"avg_profit_margin": result.AvgProfitMargin,
		}
		log.Printf("[analyze-job %s] completed: %d properties", jobID, result.TotalProperties)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Analysis run started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

// runAnalysis executes the pipeline and persists the outcome as a run.
func (s *Server) runAnalysis(ctx context.Context, opts pipeline.Options) (uuid.UUID, models.AnalysisResult, error) {
	runID, err := s.Store.BeginRun(ctx)
	if err != nil {
		return uuid.Nil, models.AnalysisResult{}, err
	}

	outcome, err := pipeline.New(s.Config).Run(ctx, opts)
	if err != nil {
		if failErr := s.Store.FailRun(ctx, runID, err); failErr != nil {
			log.Printf("failed to mark run %s failed: %v", runID, failErr)
		}
		return runID, models.AnalysisResult{}, err
	}

	diag := db.RunDiagnostics{
		InvalidRecords:   outcome.Aggregate.InvalidRecords,
		DuplicatesMerged: outcome.Aggregate.DuplicatesMerged,
	}
	for _, kind := range outcome.Aggregate.FailedSources {
		diag.FailedSources = append(diag.FailedSources, string(kind))
	}

	if err := s.Store.CompleteRun(ctx, runID, outcome.Analysis, diag); err != nil {
		return runID, outcome.Analysis, err
	}
	return runID, outcome.Analysis, nil
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.RunID != "" {
		resp["run_id"] = job.RunID
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	return c.JSON(http.StatusOK, resp)
}

// Protected handlers

func (s *Server) handleSaveProperty(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	runID, err := uuid.Parse(c.Param("run"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run ID"})
	}

	if err := s.AuthService.SaveProperty(ctx, userID, runID, c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save property"})
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsaveProperty(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	runID, err := uuid.Parse(c.Param("run"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run ID"})
	}

	if err := s.AuthService.UnsaveProperty(ctx, userID, runID, c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unsave property"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedProperties(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	props, err := s.AuthService.GetSavedProperties(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved properties"})
	}

	if props == nil {
		props = []models.Property{}
	}

	return c.JSON(http.StatusOK, props)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty
// strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
