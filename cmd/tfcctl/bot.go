package main

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"tfc/internal/telegram"
)

type botCheck struct {
	endpoint string
	client   tgbotapi.HTTPClient
}

// run calls getMe with the sanitized token and returns the bot username.
func (b botCheck) run(token string) (string, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(telegram.SanitizeBotToken(token), b.endpoint, b.client)
	if err != nil {
		return "", fmt.Errorf("telegram rejected bot token: %w", err)
	}
	return bot.Self.UserName, nil
}

func newBotCmd(opts *rootOptions) *cobra.Command {
	check := botCheck{
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Bot token diagnostics",
	}
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Confirm the bot token is accepted by the Telegram Bot API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := opts.botTokenOrEnv()
			if token == "" {
				return errMissingBotToken
			}
			username, err := check.run(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authorized as @%s\n", username)
			return nil
		},
	}
	checkCmd.Flags().StringVar(&check.endpoint, "api-endpoint", tgbotapi.APIEndpoint, "Bot API endpoint format")
	cmd.AddCommand(checkCmd)
	return cmd
}
