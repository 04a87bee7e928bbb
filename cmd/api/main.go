// cmd/api/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"commission-engine/internal/auth"
	"commission-engine/internal/config"
	"commission-engine/internal/handler"
	"commission-engine/internal/middleware"
	"commission-engine/internal/storage/postgres"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := config.MustLoad()

	pool, err := pgxpool.New(context.Background(), cfg.DBConn)
	if err != nil {
		slog.Error("Failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("DB ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	store := postgres.NewStorage(pool)

	// JWT
	tokenService := auth.NewTokenService(cfg)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/v1/login", func(c *gin.Context) {
		var req struct {
			ActorID int64  `json:"actor_id" binding:"required,min=1"`
			Role    string `json:"role" binding:"required,oneof=admin supplier"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id and role required"})
			return
		}
		token, err := tokenService.GenerateToken(req.ActorID, req.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	commissionHandler := handler.NewCommissionHandler(store)
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		v1.GET("/rates/resolve", commissionHandler.ResolveRate)
		v1.POST("/sales/settle", commissionHandler.SettleSale)
		v1.POST("/rules", commissionHandler.UpsertRule)
		v1.GET("/rules", commissionHandler.ListRules)
		v1.DELETE("/rules/:id", commissionHandler.DeleteRule)
		v1.GET("/suppliers/:id/summary", commissionHandler.SupplierSummary)
	}

	slog.Info("Server started", "port", cfg.ServerPort)
	if err := router.Run(cfg.ServerPort); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}
