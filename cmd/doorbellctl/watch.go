package main

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func init() {
	watchCmd := &cobra.Command{
		Use:   "watch [CHANNEL]",
		Short: "Stream live events from the owner feed or one session channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := "owner"
			if len(args) == 1 {
				channel = args[0]
			}
			return runWatch(apiFlag, channel, os.Stdout)
		},
	}
	rootCmd.AddCommand(watchCmd)
}

// runWatch prints every event on the channel as one JSON line until the
// server closes the connection.
func runWatch(apiURL, channel string, out io.Writer) error {
	wsURL, err := websocketURL(apiURL, "/api/ws/"+channel)
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: http %d", wsURL, resp.StatusCode)
		}
		return err
	}
	defer func() { _ = conn.Close() }()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_, _ = fmt.Fprintln(out, string(msg))
	}
}

func websocketURL(apiURL, path string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}
