package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atmsim/terminal/internal/config"
	"github.com/atmsim/terminal/internal/db"
	"github.com/atmsim/terminal/internal/messaging"
	"github.com/atmsim/terminal/internal/repository"
	"github.com/atmsim/terminal/internal/server"
	"github.com/atmsim/terminal/internal/service"
)

func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Run the analytics consumer and query API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log.Printf("Configuration loaded: ClickHouse=%s/%s, RabbitMQ=%s, HTTP=:%d",
				cfg.ClickHouse.Addr(), cfg.ClickHouse.Database, cfg.RabbitMQ.Exchange, cfg.HTTP.AnalyticsPort)

			clickhouseClient, err := db.NewClickHouseClient(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("failed to initialize ClickHouse client: %w", err)
			}
			defer clickhouseClient.Close()
			log.Println("Successfully connected to ClickHouse")

			repo := repository.NewOperationRepository(clickhouseClient)
			if err := repo.EnsureSchema(context.Background()); err != nil {
				return fmt.Errorf("failed to create operations table: %w", err)
			}
			log.Println("Repository initialized")

			analyticsService := service.NewAnalyticsService(repo)

			httpServer := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.HTTP.AnalyticsPort),
				Handler: server.NewAnalyticsServer(analyticsService).Handler(),
			}

			// Create context for coordinating shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				log.Printf("Analytics API listening on %s", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("HTTP server error: %v", err)
					cancel() // Signal shutdown on error
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := startRabbitMQConsumer(ctx, cfg, repo); err != nil {
					log.Printf("RabbitMQ consumer error: %v", err)
					cancel() // Signal shutdown on error
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigChan:
				log.Printf("Received signal: %v, initiating shutdown...", sig)
			case <-ctx.Done():
				log.Println("Context cancelled, initiating shutdown...")
			}

			// Cancel context to stop the consumer
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}

			log.Println("Waiting for services to shutdown...")
			wg.Wait()

			log.Println("Analytics service stopped gracefully")
			return nil
		},
	}
}

// startRabbitMQConsumer runs the consumer until the context is cancelled.
func startRabbitMQConsumer(ctx context.Context, cfg *config.Config, repo *repository.OperationRepository) error {
	consumer, err := messaging.NewRabbitMQConsumer(cfg.RabbitMQ, repo)
	if err != nil {
		return fmt.Errorf("failed to create RabbitMQ consumer: %w", err)
	}
	defer consumer.Close()

	log.Println("RabbitMQ consumer starting...")

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("RabbitMQ consumer error: %w", err)
	}

	log.Println("RabbitMQ consumer stopped")
	return nil
}
