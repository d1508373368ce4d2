package telegram

import (
	"context"
	"time"

	"tfc/pkg/requestcontext"
)

func requestcontextWithTime(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
