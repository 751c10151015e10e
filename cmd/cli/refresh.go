package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

var refreshTenantID string

// refreshCmd replays a full refresh for one account by posting a synthetic
// account-change event. The service debounces and locks it like any other
// event, so this is safe to run against a live system.
var refreshCmd = &cobra.Command{
	Use:   "refresh <account-id>",
	Short: "Force a full analytics refresh for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		accountID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id %q: %w", args[0], err)
		}
		tenantID, err := uuid.Parse(refreshTenantID)
		if err != nil {
			return fmt.Errorf("invalid tenant id %q: %w", refreshTenantID, err)
		}

		event := core.BusEvent{
			EventType:  core.AccountChange,
			ObjectType: core.ObjectAccount,
			ObjectID:   accountID,
			AccountID:  accountID,
			TenantID:   tenantID,
		}
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}

		client := &http.Client{Timeout: 10 * time.Second}
		url := viper.GetString("SERVER_URL") + "/api/v1/events"
		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("posting refresh event: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("service rejected refresh event: %s", resp.Status)
		}
		fmt.Printf("Refresh scheduled for account %s\n", accountID)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	refreshCmd.Flags().StringVarP(&refreshTenantID, "tenant", "t", "", "Tenant id the account belongs to (required)")
	_ = refreshCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(refreshCmd)
}
