package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram-login/internal/application/handshake"
	"github.com/go-telegram-login/internal/application/identity"
	"github.com/go-telegram-login/internal/config"
	"github.com/go-telegram-login/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-telegram-login/internal/infrastructure/jwt"
	"github.com/go-telegram-login/internal/infrastructure/sns"
	tginfra "github.com/go-telegram-login/internal/infrastructure/telegram"
	transporthttp "github.com/go-telegram-login/internal/transport/http"
	tgbot "github.com/go-telegram-login/internal/transport/telegram"
	"github.com/go-telegram-login/internal/transport/ws"
	"github.com/joho/godotenv"
)

const sweepInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	loginRepo := dynamo.NewLoginRepo(dynamoClient, cfg.DynamoTables.Logins)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)

	// The handshake cannot mint credentials without signing keys.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider not available: %v", err)
	}

	// SNS login-event publisher (optional).
	var events sns.EventPublisher
	if cfg.SNSTopicARN != "" {
		if p, err := sns.NewPublisher(cfg); err == nil {
			events = p
		} else {
			log.Printf("WARN: SNS publisher not available: %v", err)
		}
	}

	verifier := tginfra.NewVerifier(cfg.TelegramBotToken)
	gateway := ws.NewGateway(cfg.AllowedOrigins)

	handshakeSvc := handshake.NewService(handshake.Deps{
		Logins:     loginRepo,
		Identity:   identity.NewService(userRepo),
		Signer:     jwtProvider,
		Verifier:   verifier,
		Pusher:     gateway,
		Events:     events,
		TokenTTL:   cfg.LoginTokenTTL,
		MaxAuthAge: cfg.LoginMaxAuthAge,
	})

	// Bot-side collector is optional; the widget flow works without it.
	if cfg.TelegramBotToken != "" {
		botAPI := tginfra.NewClient(cfg.TelegramAPIBaseURL, cfg.TelegramBotToken)
		bot := tgbot.NewBot(botAPI, handshakeSvc, verifier)
		go bot.Run(ctx)
	} else {
		log.Println("WARN: TELEGRAM_BOT_TOKEN not set, bot collector disabled")
	}

	// Advisory sweep of lapsed login rows. Reads re-check deadlines
	// themselves, so this only keeps the table tidy.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := loginRepo.SweepExpired(ctx); err != nil {
					log.Printf("WARN: login sweep failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	deps := &transporthttp.Deps{
		UserRepo:    userRepo,
		Handshake:   handshakeSvc,
		PushGateway: gateway,
		JWTProvider: jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
