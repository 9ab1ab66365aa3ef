package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwarpal-ai/dwarpal/internal/localstate"
)

func init() {
	var regUser, regPass, regName string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an owner account and save its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"username": regUser, "password": regPass, "name": regName}
			data, err := doPostJSON(apiFlag+"/api/auth/register", "", payload)
			if err != nil {
				return err
			}
			return saveLogin(data)
		},
	}
	registerCmd.Flags().StringVarP(&regUser, "username", "u", "", "Owner username (required)")
	registerCmd.Flags().StringVarP(&regPass, "password", "p", "", "Password (required)")
	registerCmd.Flags().StringVar(&regName, "name", "", "Display name")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(registerCmd)

	var loginUser, loginPass string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an owner and save the token for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"username": loginUser, "password": loginPass}
			data, err := doPostJSON(apiFlag+"/api/auth/login", "", payload)
			if err != nil {
				return err
			}
			return saveLogin(data)
		},
	}
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "Owner username (required)")
	loginCmd.Flags().StringVarP(&loginPass, "password", "p", "", "Password (required)")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(loginCmd)

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Invalidate and forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := resolveToken("")
			if err != nil {
				return err
			}
			if _, err := doPostJSON(apiFlag+"/api/auth/logout", tok, nil); err != nil {
				return err
			}
			if err := localstate.ClearToken(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "Logged out.")
			return nil
		},
	}
	rootCmd.AddCommand(logoutCmd)

	var token string
	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the owner behind the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			data, err := doGetAuth(apiFlag+"/api/auth/me", tok)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	whoamiCmd.Flags().StringVarP(&token, "token", "t", "", "Owner auth token (default: saved login)")
	rootCmd.AddCommand(whoamiCmd)
}

// saveLogin stores the token from an auth response and reports who is logged
// in without echoing the token itself.
func saveLogin(data []byte) error {
	var resp struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return errors.New("auth response carried no token")
	}
	if err := localstate.SaveToken(resp.Token); err != nil {
		return err
	}
	path, _ := localstate.TokenPath()
	_, _ = fmt.Fprintf(os.Stdout, "Logged in as %s. Token saved to %s\n", resp.User.Username, path)
	return nil
}

// resolveToken prefers the explicit flag and falls back to the token saved
// by login.
func resolveToken(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	tok, err := localstate.LoadToken()
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", errors.New("not logged in: run doorbellctl login or pass --token")
	}
	return tok, nil
}
