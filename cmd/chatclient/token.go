package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newTokenCmd(cfg *Config) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET or --secret is required")
			}
			token, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer).Issue(chat.Identity(args[0]), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&cfg.JWTSecret, "secret", cfg.JWTSecret, "HMAC secret shared with the server")
	cmd.Flags().StringVar(&cfg.JWTIssuer, "issuer", cfg.JWTIssuer, "issuer claim")
	return cmd
}

func newCandidatesCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "Print the endpoints a connection pass tries, in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			candidates, err := client.BuildCandidates(cfg.ServerURL)
			if err != nil {
				return err
			}
			for i, c := range candidates {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.Gray.Sprintf("%d.", i+1), c)
			}
			return nil
		},
	}
}
