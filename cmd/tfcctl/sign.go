package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tfc/internal/telegram"
)

var errMissingBotToken = errors.New("bot token required: pass --bot-token or set TELEGRAM_BOT_TOKEN")

type identityFlags struct {
	id        int64
	username  string
	firstName string
	lastName  string
	photoURL  string
	authDate  int64
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.id, "id", 0, "Telegram user id")
	cmd.Flags().StringVar(&f.username, "username", "", "Telegram username")
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&f.photoURL, "photo-url", "", "Profile photo URL")
	cmd.Flags().Int64Var(&f.authDate, "auth-date", 0, "auth_date as unix seconds (default now)")
	_ = cmd.MarkFlagRequired("id")
}

func (f *identityFlags) authDateOr(now time.Time) string {
	if f.authDate > 0 {
		return strconv.FormatInt(f.authDate, 10)
	}
	return strconv.FormatInt(now.Unix(), 10)
}

// widgetPayload builds the signed Login Widget field set.
func widgetPayload(f identityFlags, botToken string, now time.Time) telegram.Payload {
	p := telegram.Payload{
		"id":        strconv.FormatInt(f.id, 10),
		"auth_date": f.authDateOr(now),
	}
	setIfPresent(p, "username", f.username)
	setIfPresent(p, "first_name", f.firstName)
	setIfPresent(p, "last_name", f.lastName)
	setIfPresent(p, "photo_url", f.photoURL)
	p["hash"] = telegram.SignWidget(p, botToken)
	return p
}

// widgetURL renders the callback URL the Login Widget would redirect to.
func widgetURL(baseURL string, p telegram.Payload) string {
	q := make(url.Values, len(p))
	for k, v := range p {
		q.Set(k, v)
	}
	return strings.TrimRight(baseURL, "/") + "/api/tg/login?" + q.Encode()
}

// initData builds a signed Mini-App initData string.
func initData(f identityFlags, queryID, botToken string, now time.Time) (string, error) {
	user := map[string]any{"id": f.id}
	if f.username != "" {
		user["username"] = f.username
	}
	if f.firstName != "" {
		user["first_name"] = f.firstName
	}
	if f.lastName != "" {
		user["last_name"] = f.lastName
	}
	if f.photoURL != "" {
		user["photo_url"] = f.photoURL
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	p := telegram.Payload{
		"user":      string(raw),
		"auth_date": f.authDateOr(now),
	}
	setIfPresent(p, "query_id", queryID)
	return telegram.SignInitData(p, botToken), nil
}

func setIfPresent(p telegram.Payload, key, value string) {
	if value != "" {
		p[key] = value
	}
}

func newWidgetURLCmd(opts *rootOptions) *cobra.Command {
	var (
		f       identityFlags
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "widget-url",
		Short: "Print a signed Login Widget callback URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := opts.botTokenOrEnv()
			if token == "" {
				return errMissingBotToken
			}
			fmt.Fprintln(cmd.OutOrStdout(), widgetURL(baseURL, widgetPayload(f, token, time.Now())))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&baseURL, "base-url", defaultBaseURL, "Base URL of the tfc server")
	return cmd
}

func newInitDataCmd(opts *rootOptions) *cobra.Command {
	var (
		f       identityFlags
		queryID string
	)
	cmd := &cobra.Command{
		Use:   "init-data",
		Short: "Print a signed Mini-App initData string",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := opts.botTokenOrEnv()
			if token == "" {
				return errMissingBotToken
			}
			data, err := initData(f, queryID, token, time.Now())
			if err != nil {
				return err
			}
			if opts.json {
				out, _ := json.Marshal(map[string]string{"initData": data})
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), data)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&queryID, "query-id", "", "Optional query_id")
	return cmd
}
