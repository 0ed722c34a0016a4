// Command server runs the splitledger HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/config"
	"github.com/splitledger/splitledger/internal/handler"
	"github.com/splitledger/splitledger/internal/notify"
	"github.com/splitledger/splitledger/internal/router"
	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/storage/sqlite"
	"github.com/splitledger/splitledger/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level))
	gin.SetMode(cfg.Server.Mode)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	tokens := auth.NewJWTManager(cfg.JWT.Secret, cfg.TokenDuration())
	authenticator := auth.NewPasswordAuthenticator(store, cfg.Security.BcryptCost)
	notifier := notify.NewStoreNotifier(store)

	groups := service.NewGroupService(store, notifier)
	h := &handler.Handler{
		Auth:          service.NewAuthService(authenticator, tokens, store),
		Groups:        groups,
		Expenses:      service.NewExpenseService(store, groups, notifier),
		Settlements:   service.NewSettlementService(store, groups, notifier),
		Reports:       service.NewReportService(store, groups),
		Notifications: service.NewNotificationService(store),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		// h2c lets gRPC-style HTTP/2 clients and local proxies talk to the
		// server without TLS termination in front of it.
		Handler:           h2c.NewHandler(router.New(h, tokens), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
