package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/unclebandit/newsflow/internal/config"
)

// New builds the sender named by cfg.Provider.
func New(ctx context.Context, cfg config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case config.ProviderResend:
		if cfg.Resend.APIKey == "" {
			log.Println("⚠️ RESEND_API_KEY is not set, every send will fail")
		}
		return NewResendClient(cfg.Resend.APIKey, cfg.FromEmail, cfg.Resend.BaseURL, cfg.Resend.Timeout()), nil
	case config.ProviderSES:
		return NewSESSender(ctx, cfg.FromEmail, cfg.SES.Region, cfg.SES.AccessKey, cfg.SES.SecretKey)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
