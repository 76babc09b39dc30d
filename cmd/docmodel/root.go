package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogotex/docmodel/internal/declare"
	"github.com/gogotex/docmodel/pkg/odm"
)

var (
	// Global flags
	modelsPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docmodel",
	Short: "Declarative document classes over MongoDB, Redis or memory",
	Long: `docmodel builds document classes from a YAML declarations file and
serves them as a JSON API.

  docmodel serve                      # start the HTTP API
  docmodel schema                     # print resolved schemas and options
  docmodel validate Post post.json    # validate a document`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelsPath, "models", "m", "", "declarations file (default $MODELS_PATH or models.yaml)")
}

func envModelsPath() string {
	return os.Getenv("MODELS_PATH")
}

// loadModels builds the declared classes from the --models flag, falling
// back to fallback.
func loadModels(fallback string) ([]*odm.Class, error) {
	path := modelsPath
	if path == "" {
		path = fallback
	}
	if path == "" {
		path = "models.yaml"
	}
	return declare.LoadFile(path)
}
