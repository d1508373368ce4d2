package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jwttoken "tfc/internal/jwt_token"
)

type sessionSummary struct {
	UserID     string    `json:"userId"`
	Role       string    `json:"role"`
	TelegramID string    `json:"telegramId"`
	Username   string    `json:"username,omitempty"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func summarize(c *jwttoken.SessionClaims) sessionSummary {
	s := sessionSummary{
		UserID:     c.Subject,
		Role:       c.Role,
		TelegramID: c.Telegram.ID,
		Username:   c.Telegram.Username,
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.UTC()
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.UTC()
	}
	return s
}

func writeSummary(w io.Writer, s sessionSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	_, err := fmt.Fprintf(w, `User:        %s
Role:        %s
Telegram ID: %s
Username:    %s
Issued:      %s
Expires:     %s
`, s.UserID, s.Role, s.TelegramID, s.Username,
		s.IssuedAt.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339))
	return err
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Work with tfc_session tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Verify a session token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.sessionSecretOrEnv()
			if secret == "" {
				return errors.New("session secret required: pass --session-secret or set SESSION_SECRET")
			}
			svc, err := jwttoken.NewService(secret)
			if err != nil {
				return err
			}
			claims, err := svc.VerifySession(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), summarize(claims), opts.json)
		},
	})
	return cmd
}
