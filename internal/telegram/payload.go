package telegram

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// Payload is the untrusted field set delivered by Telegram, including "hash".
type Payload map[string]string

// Identity is the verified subset of a payload.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	PhotoURL  string
	AuthDate  time.Time
}

// FullName joins first and last name, falling back to the username and then to "tg_<id>".
func (i Identity) FullName() string {
	if name := strings.TrimSpace(i.FirstName + " " + i.LastName); name != "" {
		return name
	}
	if i.Username != "" {
		return i.Username
	}
	return "tg_" + formatID(i.ID)
}

const (
	fieldHash     = "hash"
	fieldAuthDate = "auth_date"
	fieldID       = "id"
	fieldUser     = "user"
)

// WidgetKeys are the fields the Login Widget signs. Transport layers use them
// to drop unrelated query parameters before verification.
var WidgetKeys = []string{"id", "first_name", "last_name", "username", "photo_url", "auth_date", "hash"}

// initDataKeys are the fields Telegram may sign in Mini-App initData.
var initDataKeys = map[string]struct{}{
	"id": {}, "first_name": {}, "last_name": {}, "username": {}, "photo_url": {},
	"auth_date": {}, "user": {}, "query_id": {}, "receiver": {}, "chat": {},
	"chat_type": {}, "chat_instance": {}, "start_param": {}, "can_send_after": {},
	"signature": {},
}

// PayloadFromQuery keeps only the Login Widget fields of a query string.
func PayloadFromQuery(q url.Values) Payload {
	p := make(Payload, len(WidgetKeys))
	for _, k := range WidgetKeys {
		if _, ok := q[k]; ok {
			p[k] = q.Get(k)
		}
	}
	return p
}

// ParseInitData decodes a Mini-App initData query string.
func ParseInitData(initData string) (Payload, error) {
	q, err := url.ParseQuery(strings.TrimSpace(initData))
	if err != nil {
		return nil, err
	}
	p := make(Payload, len(q))
	for k := range q {
		p[k] = q.Get(k)
	}
	return p, nil
}

// DataCheckString renders every field except hash as sorted key=value lines.
func DataCheckString(p Payload) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == fieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k])
	}
	return b.String()
}

func restrictToInitDataKeys(p Payload) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if _, ok := initDataKeys[k]; ok {
			out[k] = v
		}
	}
	return out
}
