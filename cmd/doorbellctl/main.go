package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiFlag string
	rootCmd = &cobra.Command{
		Use:   "doorbellctl",
		Short: "CLI client for the doorbell service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Doorbell service base URL")

	// ring subcommand
	var device, session, image, audio string
	ringCmd := &cobra.Command{
		Use:   "ring",
		Short: "Send a doorbell ring with optional snapshot and audio clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"device_id": device,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}
			if session != "" {
				payload["session_id"] = session
			}
			if image != "" {
				b, err := encodeFile(image)
				if err != nil {
					return err
				}
				payload["image_base64"] = b
			}
			if audio != "" {
				b, err := encodeFile(audio)
				if err != nil {
					return err
				}
				payload["audio_base64"] = b
			}
			data, err := doPostJSON(apiFlag+"/api/ring", "", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	ringCmd.Flags().StringVarP(&device, "device", "d", "", "Device ID (required)")
	ringCmd.Flags().StringVarP(&session, "session", "s", "", "Reuse an existing session instead of opening a new one")
	ringCmd.Flags().StringVarP(&image, "image", "i", "", "Path to a JPEG snapshot")
	ringCmd.Flags().StringVarP(&audio, "audio", "w", "", "Path to a WAV clip")
	_ = ringCmd.MarkFlagRequired("device")
	rootCmd.AddCommand(ringCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
