package telegram

import (
	"net/url"
)

// SignWidget returns the hash Telegram would attach to a Login Widget payload.
// Used by tooling and tests.
func SignWidget(fields Payload, botToken string) string {
	return computeHash(widgetSecret(SanitizeBotToken(botToken)), DataCheckString(fields))
}

// SignInitData encodes fields as a Mini-App initData string with a valid hash.
// Fields Telegram does not sign are still encoded but left out of the hash.
func SignInitData(fields Payload, botToken string) string {
	hash := computeHash(webAppSecret(SanitizeBotToken(botToken)), DataCheckString(restrictToInitDataKeys(fields)))

	q := make(url.Values, len(fields)+1)
	for k, v := range fields {
		if k == fieldHash {
			continue
		}
		q.Set(k, v)
	}
	q.Set(fieldHash, hash)
	return q.Encode()
}
