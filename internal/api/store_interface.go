package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/silencie/silencie/internal/services"
	"github.com/silencie/silencie/internal/utils"
)

// Store is everything the API needs from persistence.
type Store interface {
	services.TemplateStore
	services.SubmissionStore
	services.ProgramStore
	services.AnalyticsStore
	services.AuthStore
	Ping(ctx context.Context) error
}

// Services bundles the domain services the handlers call.
type Services struct {
	Templates   *services.TemplateService
	Submissions *services.SubmissionService
	Programs    *services.ProgramService
	Analytics   *services.AnalyticsService
	Exports     *services.ExportService
	Auth        *services.AuthService
}

// NewServices wires every service to the same store.
func NewServices(store Store, signer services.TokenSigner, tokenTTL time.Duration, logger *slog.Logger) Services {
	return Services{
		Templates:   services.NewTemplateService(store, logger),
		Submissions: services.NewSubmissionService(store, utils.T, logger),
		Programs:    services.NewProgramService(store),
		Analytics:   services.NewAnalyticsService(store),
		Exports:     services.NewExportService(store),
		Auth:        services.NewAuthService(store, signer, tokenTTL),
	}
}
