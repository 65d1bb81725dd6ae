// Package main API Server 入口
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"accounts-admin/internal/apiserver/auth"
	"accounts-admin/internal/apiserver/server"
	"accounts-admin/internal/config"
	"accounts-admin/internal/shared/retryx"
	"accounts-admin/internal/shared/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 yaml）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 关键配置缺失时快速失败，不允许带默认密钥进生产
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	metrics := server.NewMetrics("accounts_admin")

	// 初始化 MongoDB：有界线性退避重试，耗尽后进程必须退出，
	// 绝不在没有数据库的情况下继续运行
	var store *mongostore.Store
	err := retryx.Do(context.Background(), cfg.Mongo.MaxRetries, retryx.Linear(cfg.Mongo.RetryDelayBase),
		func(ctx context.Context) error {
			metrics.StoreConnectAttempts.Inc()
			var err error
			store, err = mongostore.NewStore(cfg.Mongo.Options)
			return err
		})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB")

	// 管理员引导（可选）
	if err := auth.EnsureAdminAccount(store, cfg.Auth, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin account: %v", err)
	}

	svc := auth.NewService(store, cfg.Auth)
	handler := auth.NewHandler(svc, metrics)
	authenticator := auth.NewAuthenticator(store, cfg.Auth)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", server.MetricsHandler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      metrics.HTTPMiddleware(authenticator.Middleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭：信号只注册一次，处理器逆序执行（先 HTTP 后存储）
	lc := server.NewLifecycle()
	lc.OnShutdown(func() {
		if err := store.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
	})
	lc.OnShutdown(func() {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	})

	go func() {
		log.Printf("API Server listening on :%s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// 进程只有在关闭流程完成后才允许退出
	lc.Wait()
	log.Println("Server stopped")
}
