package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/config"
	"qrattend/internal/export"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/metrics"
	"qrattend/internal/model"
	"qrattend/internal/qr"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	var (
		st  store.Store
		db  *store.DB
		err error
	)
	if cfg.StoreBackend == "memory" {
		st = store.NewMemory()
		log.Println("using in-memory store")
	} else {
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pg := store.NewPostgres(db.Client)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		st = pg
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:checkins")
	}

	svc := attendance.NewService(st)
	stats := attendance.NewStats(st)

	if cfg.SeedDemo {
		if err := seedDemo(ctx, st); err != nil {
			log.Printf("demo seed failed: %v", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := cfg.QueueBackend == "memory" || redisClient.Healthy(c.Request.Context())
		dbHealthy := cfg.StoreBackend == "memory" || db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", func(c *gin.Context) {
		var req struct {
			Email        string `json:"email" binding:"required,email"`
			Password     string `json:"password" binding:"required,min=6"`
			Name         string `json:"name" binding:"required"`
			Role         string `json:"role" binding:"required"`
			EnrollmentNo string `json:"enrollment_no"`
			Semester     string `json:"semester"`
			Branch       string `json:"branch"`
			Course       string `json:"course"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role := model.Role(req.Role)
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or student"})
			return
		}

		existing, err := st.GetAccountByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}
		now := time.Now().UTC()
		account := model.Account{
			ID:           uuid.NewString(),
			Email:        req.Email,
			PasswordHash: hash,
			Name:         req.Name,
			Role:         role,
			EnrollmentNo: req.EnrollmentNo,
			Semester:     req.Semester,
			Branch:       req.Branch,
			Course:       req.Course,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := st.UpsertAccount(c.Request.Context(), account); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}

		token, exp, err := auth.Issue(account.ID, string(account.Role), cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"account":      account,
			"access_token": token,
			"expires_at":   exp.Unix(),
		})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account, err := st.GetAccountByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		if account == nil || !auth.CheckPassword(account.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, exp, err := auth.Issue(account.ID, string(account.Role), cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"account":      account,
			"access_token": token,
			"expires_at":   exp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.Required(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		checkIn, err := svc.Redeem(c.Request.Context(), req.Token, claims.Subject)
		if err != nil {
			metrics.Redemptions.WithLabelValues(redeemOutcome(err)).Inc()
			status, msg := redeemError(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		metrics.Redemptions.WithLabelValues("accepted").Inc()

		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeCheckIn, Body: []byte(checkIn.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}

		c.JSON(http.StatusCreated, gin.H{"check_in": checkIn})
	})

	authGroup.GET("/me/attendance", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		records, err := stats.Records(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		mine := make([]attendance.Record, 0)
		for _, rec := range records {
			if rec.AccountID == claims.Subject {
				mine = append(mine, rec)
			}
		}
		c.JSON(http.StatusOK, gin.H{"records": mine})
	})

	authGroup.GET("/me/stats", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		denominator := 0
		if v := c.Query("denominator"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				denominator = parsed
			}
		}
		accountStats, err := stats.ForAccount(c.Request.Context(), claims.Subject, denominator)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		c.JSON(http.StatusOK, accountStats)
	})

	adminGroup := authGroup.Group("", auth.RequireRole(string(model.RoleAdmin)))

	adminGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)

		sess, err := svc.CreateSession(c.Request.Context(), req.Name, claims.Subject)
		if err != nil {
			if errors.Is(err, attendance.ErrValidation) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		metrics.SessionsCreated.Inc()

		dataURL, err := qr.DataURL(sess.Token, 300)
		if err != nil {
			log.Printf("qr render failed for session %s: %v", sess.ID, err)
		}
		c.JSON(http.StatusCreated, gin.H{"session": sess, "qr_code": dataURL})
	})

	adminGroup.GET("/sessions", func(c *gin.Context) {
		sessions, err := svc.ListSessions(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	adminGroup.PATCH("/sessions/:id/active", func(c *gin.Context) {
		var req struct {
			Active *bool `json:"active" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sess, err := svc.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
		if err != nil {
			if errors.Is(err, attendance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess})
	})

	adminGroup.GET("/sessions/:id/qr", func(c *gin.Context) {
		sess, err := svc.GetSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, attendance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		size := 400
		if v := c.Query("size"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 2048 {
				size = parsed
			}
		}
		png, err := qr.PNG(sess.Token, size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="qr-`+sess.ID+`.png"`)
		c.Data(http.StatusOK, "image/png", png)
	})

	adminGroup.GET("/stats", func(c *gin.Context) {
		summary, err := stats.Summary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	adminGroup.GET("/attendance", func(c *gin.Context) {
		records, err := stats.Records(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	adminGroup.GET("/export", func(c *gin.Context) {
		records, err := stats.Records(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system unavailable"})
			return
		}
		var buf bytes.Buffer
		if err := export.Write(&buf, records); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// redeemError maps the service taxonomy onto HTTP statuses so the client can
// tell "already marked" from "invalid code" from "system unavailable".
func redeemError(err error) (int, string) {
	switch {
	case errors.Is(err, attendance.ErrInvalidToken):
		return http.StatusNotFound, "invalid or unknown code"
	case errors.Is(err, attendance.ErrInactiveSession):
		return http.StatusGone, "session is no longer active"
	case errors.Is(err, attendance.ErrDuplicateCheckIn):
		return http.StatusConflict, "attendance already marked for this session"
	case errors.Is(err, attendance.ErrValidation):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusServiceUnavailable, "system unavailable"
	}
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, attendance.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, attendance.ErrInactiveSession):
		return "inactive_session"
	case errors.Is(err, attendance.ErrDuplicateCheckIn):
		return "duplicate"
	case errors.Is(err, attendance.ErrValidation):
		return "validation"
	default:
		return "storage"
	}
}

// seedDemo creates the demo admin and two students when the store is empty.
func seedDemo(ctx context.Context, st store.Store) error {
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		return nil
	}

	type seed struct {
		email, password, name, enrollment, semester, branch, course string
		role                                                        model.Role
	}
	seeds := []seed{
		{email: "admin@attendance.com", password: "admin123", name: "Admin User", role: model.RoleAdmin},
		{email: "john@student.com", password: "student123", name: "John Doe", role: model.RoleStudent,
			enrollment: "EN001", semester: "3", branch: "Computer", course: "BE"},
		{email: "jane@student.com", password: "student123", name: "Jane Smith", role: model.RoleStudent,
			enrollment: "EN002", semester: "3", branch: "Computer", course: "BE"},
	}
	now := time.Now().UTC()
	for _, s := range seeds {
		hash, err := auth.HashPassword(s.password)
		if err != nil {
			return err
		}
		account := model.Account{
			ID:           uuid.NewString(),
			Email:        s.email,
			PasswordHash: hash,
			Name:         s.name,
			Role:         s.role,
			EnrollmentNo: s.enrollment,
			Semester:     s.semester,
			Branch:       s.branch,
			Course:       s.course,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := st.UpsertAccount(ctx, account); err != nil {
			return err
		}
	}
	log.Println("seeded demo accounts")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
