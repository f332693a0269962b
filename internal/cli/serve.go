package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atmsim/terminal/internal/config"
	"github.com/atmsim/terminal/internal/domain"
	"github.com/atmsim/terminal/internal/messaging"
	"github.com/atmsim/terminal/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal REST API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			opts := []domain.SessionOption{
				domain.WithNotifier(func(message string) {
					log.Printf("terminal %s: %s", cfg.Terminal.TerminalID, message)
				}),
			}

			if cfg.Events.Enabled {
				publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQ)
				if err != nil {
					return fmt.Errorf("failed to create RabbitMQ publisher: %w", err)
				}
				defer publisher.Close()
				log.Printf("Publishing terminal events to exchange %s", cfg.RabbitMQ.Exchange)
				opts = append(opts, domain.WithEventPublisher(publisher))
			}

			session := domain.NewSession(domain.SessionConfig{
				TerminalID:     cfg.Terminal.TerminalID,
				PIN:            cfg.Terminal.PIN,
				InitialBalance: cfg.Terminal.InitialBalance,
				EntryLimit:     cfg.Terminal.EntryLimit,
			}, opts...)

			httpServer := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
				Handler: server.NewServer(session).Handler(),
			}

			go func() {
				log.Printf("Terminal API starting on %s (terminal %s)", httpServer.Addr, cfg.Terminal.TerminalID)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()

			// Wait for interrupt signal to gracefully shutdown the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("shutting down terminal API...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			log.Println("terminal API stopped")
			return nil
		},
	}
}
