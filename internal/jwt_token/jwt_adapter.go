package jwttoken

import (
	"context"

	authmw "tfc/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims flattens session claims for the route guard.
func ToMiddlewareClaims(claims *SessionClaims) *authmw.SessionClaims {
	return &authmw.SessionClaims{
		UserID:     claims.Subject,
		Role:       claims.Role,
		TelegramID: claims.Telegram.ID,
		Username:   claims.Telegram.Username,
		FirstName:  claims.Telegram.FirstName,
		LastName:   claims.Telegram.LastName,
		PhotoURL:   claims.Telegram.PhotoURL,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
}

// ServiceAdapter exposes Service as an authmw.SessionValidator.
type ServiceAdapter struct {
	service *Service
}

func NewServiceAdapter(service *Service) *ServiceAdapter {
	return &ServiceAdapter{service: service}
}

func (a *ServiceAdapter) ValidateSession(ctx context.Context, token string) (*authmw.SessionClaims, error) {
	claims, err := a.service.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
