package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the health of the refresh service",
	RunE: func(_ *cobra.Command, _ []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(viper.GetString("SERVER_URL") + "/health")
		if err != nil {
			return fmt.Errorf("reaching refresh service: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("service unhealthy: %s", resp.Status)
		}
		fmt.Println("Service is healthy")
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(statusCmd)
}
