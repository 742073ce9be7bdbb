package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shapekiln/kiln/internal/agent"
	"github.com/shapekiln/kiln/internal/config"
	"github.com/shapekiln/kiln/internal/printer"
)

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the print agent next to the printer",
		Long:  "The agent polls the kiln server for paid jobs and drives the printer controller, one job at a time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent()
		},
	}
}

func runAgent() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	service := agent.NewClient(cfg.Agent.ServerURL, cfg.Printer.ConnectionTimeout)
	controller := printer.NewClient(&cfg.Printer)

	poller := agent.NewPoller(service, controller, &agent.StubStrategy{}, cfg.Agent.PollInterval, cfg.Agent.UploadPrefix)
	poller.Start()

	log.Printf("kiln agent polling %s every %s, printer at %s",
		cfg.Agent.ServerURL, cfg.Agent.PollInterval, cfg.Printer.Address)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("stopping agent...")
	poller.Stop()

	return nil
}
