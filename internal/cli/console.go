package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmsim/terminal/internal/config"
	"github.com/atmsim/terminal/internal/console"
	"github.com/atmsim/terminal/internal/domain"
	"github.com/atmsim/terminal/internal/messaging"
)

func consoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the interactive ATM console",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			opts := []domain.SessionOption{
				domain.WithNotifier(func(message string) {
					fmt.Fprintln(os.Stdout, message)
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

			return console.New(session, os.Stdin, os.Stdout).Run()
		},
	}
}
