package app

import (
	"go.uber.org/zap"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
)

// ServiceOptions converts MessagesConfig into MessageService options. Zero values keep the
// service defaults.
func (c MessagesConfig) ServiceOptions(log *zap.Logger, notifier services.Notifier) []services.MessageOption {
	opts := []services.MessageOption{
		services.WithMessageSingleUseDefault(c.SingleUseDefault),
		services.WithShareBaseURL(c.ShareBaseURL),
		services.WithMessageLogger(log),
	}
	if c.LinkTTL > 0 {
		opts = append(opts, services.WithMessageLinkTTL(c.LinkTTL))
	}
	if c.MaxContentLength > 0 {
		opts = append(opts, services.WithMaxContentLength(c.MaxContentLength))
	}
	if notifier != nil {
		opts = append(opts, services.WithMessageNotifier(notifier))
	}
	return opts
}

// ServiceOptions converts ProximityConfig into ProximityService options.
func (c ProximityConfig) ServiceOptions(log *zap.Logger, notifier services.Notifier) []services.ProximityOption {
	opts := []services.ProximityOption{
		services.WithSessionTTL(c.SessionTTL),
		services.WithMaxSessionTTL(c.MaxSessionTTL),
		services.WithProximityLogger(log),
	}
	if notifier != nil {
		opts = append(opts, services.WithProximityNotifier(notifier))
	}
	return opts
}
