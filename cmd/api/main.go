package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roster/internal/auth"
	"roster/internal/config"
	"roster/internal/handler"
	"roster/internal/httpmiddleware"
	"roster/internal/metrics"
	"roster/internal/queue"
	"roster/internal/roster"
	"roster/internal/store"
	"roster/internal/student"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	// Local mode keeps records in the configured KV store; remote mode needs none.
	var kv store.KV
	if cfg.SheetsEndpoint == "" {
		var err error
		kv, err = store.Open(ctx, store.Config{
			Backend:     cfg.StoreBackend,
			Dir:         cfg.StoreDir,
			SQLitePath:  cfg.SQLitePath,
			DatabaseURL: cfg.DatabaseURL,
			RedisAddr:   cfg.RedisAddr,
		})
		if err != nil {
			return err
		}
		defer kv.Close()
		log.Printf("local mode: %s store", cfg.StoreBackend)
	} else {
		log.Printf("remote mode: %s", cfg.SheetsEndpoint)
	}

	adapter, err := student.New(student.Options{
		Endpoint:      cfg.SheetsEndpoint,
		Token:         cfg.SheetsToken,
		Timeout:       cfg.RemoteTimeout,
		Store:         kv,
		Latency:       cfg.LocalLatency,
		DeleteLatency: cfg.LocalDeleteLatency,
	})
	if err != nil {
		return err
	}

	collectors := metrics.NewCollectors(prometheus.DefaultRegisterer)
	ctrl := roster.NewController(collectors.Instrument(adapter))

	var redisClient *store.Redis
	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	} else {
		q = queue.NewInMemory(64)
		go drain(ctx, q)
	}

	var issuer *auth.Issuer
	if cfg.AuthEnabled() {
		issuer = &auth.Issuer{
			Name:       cfg.JWTIssuer,
			Key:        []byte(cfg.JWTSigningKey),
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,

			ClientSecret: []byte(cfg.ClientSecret),
		}
		if cfg.ClientSecret == "" {
			log.Println("WARNING: CLIENT_SECRET not set: /tokens will reject every request")
		}
	} else {
		log.Println("JWT_SIGNING_KEY not set: /students is unauthenticated")
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok", "mode": ctrl.Mode()}
		status := http.StatusOK
		if redisClient != nil {
			healthy := redisClient.Healthy(c.Request.Context())
			body["redis"] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, body)
	})

	handler.New(ctrl, q, issuer).Register(r)

	// Graceful shutdown
	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// drain logs change events when the queue is in-process and no worker can
// reach it.
func drain(ctx context.Context, q queue.Queue) {
	msgs, err := q.Consume(ctx)
	if err != nil {
		log.Printf("change feed: %v", err)
		return
	}
	for msg := range msgs {
		log.Printf("change feed: %s %s", msg.Type, msg.Body)
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
