package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080"

type rootOptions struct {
	botToken string
	secret   string
	json     bool
}

// botTokenOrEnv returns the flag value, falling back to TELEGRAM_BOT_TOKEN.
func (o *rootOptions) botTokenOrEnv() string {
	if o.botToken != "" {
		return o.botToken
	}
	return os.Getenv("TELEGRAM_BOT_TOKEN")
}

// sessionSecretOrEnv returns the flag value, falling back to SESSION_SECRET.
func (o *rootOptions) sessionSecretOrEnv() string {
	if o.secret != "" {
		return o.secret
	}
	return os.Getenv("SESSION_SECRET")
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "tfcctl",
		Short: "Operator tooling for the tfc Telegram login service",
		Long: `tfcctl signs Login Widget and Mini-App payloads for local testing,
decodes tfc_session tokens, and checks that a bot token is accepted by Telegram.

Environment Variables:
  TELEGRAM_BOT_TOKEN  Bot token used for signing and bot checks
  SESSION_SECRET      Secret used to verify session tokens`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.botToken, "bot-token", "", "Telegram bot token (overrides TELEGRAM_BOT_TOKEN)")
	root.PersistentFlags().StringVar(&opts.secret, "session-secret", "", "Session secret (overrides SESSION_SECRET)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output JSON instead of human-readable text")

	root.AddCommand(
		newWidgetURLCmd(opts),
		newInitDataCmd(opts),
		newSessionCmd(opts),
		newBotCmd(opts),
	)
	return root
}
