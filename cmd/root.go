package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hypernovachain_go/config"
	"hypernovachain_go/utils"
)

var rootCmd = &cobra.Command{
	Use:          "hypernova",
	Short:        "HyperNova ledger node",
	Long:         "Runs a HyperNova ledger node with Proof of AI or DPoS consensus.",
	SilenceUsage: true,
	RunE:         runNode,
}

func init() {
	config.RegisterFlags(rootCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	utils.InitLogger(cfg.Verbose, false)
	defer utils.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := NewNode(cfg)
	if err != nil {
		utils.LogError("Failed to start node: %v", err)
		return err
	}
	defer node.Close()

	if err := node.Run(ctx); err != nil {
		utils.LogError("Node stopped with error: %v", err)
		return err
	}
	utils.LogInfo("Node stopped")
	return nil
}
