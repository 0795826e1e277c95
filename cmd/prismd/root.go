package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "prismd",
	Short: "prismd indexes and serves search over a single project",
	Long: `prismd is a per-project code-search daemon. It walks a project
tree, builds an in-memory inverted index, persists it as a JSON
snapshot, watches the tree for changes, and serves search, file, and
tool-call requests over a loopback HTTP API.`,
}

// Execute adds all child commands to the root command and runs it. It
// is called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (read at startup; daemon settings still come only from env vars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig loads an optional config file; real daemon configuration
// is still sourced from PRISM_* environment variables by internal/config.
func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "prismd: failed to read config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
	if verbose {
		fmt.Fprintln(os.Stderr, "prismd: using config file", viper.ConfigFileUsed())
	}
}
