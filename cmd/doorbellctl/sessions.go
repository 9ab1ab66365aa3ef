package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status SESSION_ID",
		Short: "Show a session's pipeline status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/session/%s/status", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(statusCmd)

	detailCmd := &cobra.Command{
		Use:   "detail SESSION_ID",
		Short: "Show the full session record, stage reports and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/session/%s/detail", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(detailCmd)

	var limit int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent sessions with their transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/api/logs?limit=" + strconv.Itoa(limit))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	logsCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum sessions to return")
	rootCmd.AddCommand(logsCmd)

	var message, token string
	replyCmd := &cobra.Command{
		Use:   "reply SESSION_ID",
		Short: "Speak an owner reply into a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			payload := map[string]interface{}{"session_id": args[0], "message": message}
			data, err := doPostJSON(apiFlag+"/api/owner-reply", tok, payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	replyCmd.Flags().StringVarP(&message, "message", "m", "", "Reply text (required)")
	replyCmd.Flags().StringVarP(&token, "token", "t", "", "Owner auth token (default: saved login)")
	_ = replyCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(replyCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/api/health")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(healthCmd)
}
