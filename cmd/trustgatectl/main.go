// Command trustgatectl is the operator CLI for the admin API (C11):
// a thin HTTP client wrapped in cobra commands, configured the way
// storj's uplink CLI layers cobra commands over a viper-bound config
// file and flag set.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	adminAddr string
	rootCmd   = &cobra.Command{
		Use:   "trustgatectl",
		Short: "Operate a trustgate admin API",
	}
)

func main() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "http://localhost:8080/admin/v1", "admin API base URL")
	viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))

	rootCmd.AddCommand(
		newServicesCmd(),
		newApiKeysCmd(),
		newSigningKeysCmd(),
		newTranslationCmd(),
		newRevocationCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRUSTGATECTL")
	viper.AutomaticEnv()
	if viper.GetString("addr") != "" {
		adminAddr = viper.GetString("addr")
	}
}

func baseURL() string {
	if v := viper.GetString("addr"); v != "" {
		return v
	}
	return adminAddr
}
