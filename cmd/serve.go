package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lunabot-ai/lunabot/internal/multibot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run all configured bots",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := multibot.NewManager(cfg, makeProvider(cfg), makeMemoryStore(cfg))
	if err := manager.Setup(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %s, shutting down", sig)
		cancel()
		manager.StopAll()
	}()

	log.Printf("serving %d bot(s)", len(cfg.Bots))
	manager.StartAll(ctx)
	return nil
}
