package services

import (
	"time"

	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"go.uber.org/zap"
)

// Options carries the ambient dependencies shared by every service.
type Options struct {
	Messages i18n.Messages
	Metrics  ports.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Messages.Lang() == "" {
		o.Messages = i18n.New(i18n.Japanese)
	}
	if o.Metrics == nil {
		o.Metrics = ports.NopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
