package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

var (
	apiBase  string
	apiToken string

	createPickup  string
	createDropoff string
	createPrice   int64
	createAt      string
	createID      string
	createAssign  string
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Manage the call pool through the REST API",
}

var callsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Enter a new call into the pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs := model.CallAttributes{
			PickupAddress:  createPickup,
			DropoffAddress: createDropoff,
			PriceCents:     createPrice,
		}
		if createAt != "" {
			at, err := time.Parse(time.RFC3339, createAt)
			if err != nil {
				return fmt.Errorf("parse --at: %w", err)
			}
			attrs.ScheduledAt = at
		}
		body, _ := json.Marshal(map[string]any{
			"id":          createID,
			"assigned_to": createAssign,
			"attributes":  attrs,
		})
		return apiDo(cmd, http.MethodPost, "/api/calls", bytes.NewReader(body))
	},
}

var callsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List currently open calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiDo(cmd, http.MethodGet, "/api/calls/open", nil)
	},
}

var callsCancelCmd = &cobra.Command{
	Use:   "cancel <ride-id>",
	Short: "Withdraw a call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiDo(cmd, http.MethodPost, "/api/calls/"+args[0]+"/cancel", nil)
	},
}

var callsReleaseCmd = &cobra.Command{
	Use:   "release <ride-id>",
	Short: "Return an assigned call to the open pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return apiDo(cmd, http.MethodPost, "/api/calls/"+args[0]+"/release", nil)
	},
}

var claimsLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Query the claim audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/claims/log"
		sep := "?"
		for _, f := range []struct{ key, val string }{
			{"ride_id", logRideID},
			{"driver_id", logDriverID},
			{"start", logStart},
			{"end", logEnd},
		} {
			if f.val != "" {
				path += sep + f.key + "=" + f.val
				sep = "&"
			}
		}
		return apiDo(cmd, http.MethodGet, path, nil)
	},
}

var (
	logRideID   string
	logDriverID string
	logStart    string
	logEnd      string
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Inspect claim decisions",
}

func init() {
	for _, c := range []*cobra.Command{callsCmd, claimsCmd} {
		c.PersistentFlags().StringVar(&apiBase, "api", "http://localhost:8080", "dispatcher API base URL")
		c.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token")
	}

	callsCreateCmd.Flags().StringVar(&createPickup, "pickup", "", "pickup address")
	callsCreateCmd.Flags().StringVar(&createDropoff, "dropoff", "", "dropoff address")
	callsCreateCmd.Flags().Int64Var(&createPrice, "price", 0, "price in cents")
	callsCreateCmd.Flags().StringVar(&createAt, "at", "", "scheduled time (RFC3339)")
	callsCreateCmd.Flags().StringVar(&createID, "id", "", "explicit ride id")
	callsCreateCmd.Flags().StringVar(&createAssign, "assign", "", "pre-assign to driver id")

	claimsLogCmd.Flags().StringVar(&logRideID, "ride", "", "filter by ride id")
	claimsLogCmd.Flags().StringVar(&logDriverID, "driver", "", "filter by driver id")
	claimsLogCmd.Flags().StringVar(&logStart, "start", "", "start time (RFC3339)")
	claimsLogCmd.Flags().StringVar(&logEnd, "end", "", "end time (RFC3339)")

	callsCmd.AddCommand(callsCreateCmd, callsLsCmd, callsCancelCmd, callsReleaseCmd)
	claimsCmd.AddCommand(claimsLogCmd)
	rootCmd.AddCommand(callsCmd, claimsCmd)
}

func apiDo(cmd *cobra.Command, method, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, apiBase+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(data))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		cmd.Println("ok")
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(pretty.String())
	return nil
}
