package cli

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kiln",
		Short: "Prompt-to-print fabrication service",
		Long:  "Kiln turns natural-language shape requests into printable meshes and drives paid print jobs through a remote printer.",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "kiln.yaml", "path to yaml config file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAgentCmd())

	return cmd
}

// Execute runs the CLI after loading a .env file from the working
// directory or any of its parents, if one exists.
func Execute() error {
	loadDotEnv()
	return NewRootCmd().Execute()
}

func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
