// Package notify pushes completed classification results to shoutrrr services.
package notify

import (
	"context"
	"io"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

const (
	titleComplete = "Image classified"
	titleFailed   = "Image classification failed"
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once

	// service URLs carry tokens in their userinfo
	urlCredentials = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^@/\s]+@`)
)

// GetLogger returns the notify package logger
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("notify")
	})
	return serviceLogger
}

// Sender delivers a message to every configured service.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// StateSource is the subset of the dispatcher the notifier observes.
type StateSource interface {
	Subscribe() (<-chan classifier.State, func())
}

// Notifier sends one message per completed generation.
type Notifier struct {
	sender Sender
}

// New builds a notifier for the configured shoutrrr URLs.
func New(settings *conf.NotifySettings) (*Notifier, error) {
	if len(settings.URLs) == 0 {
		return nil, errors.Newf("no notification service URLs configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(settings.URLs...)
	if err != nil {
		return nil, errors.Newf("invalid notification service URL: %s", sanitize(err.Error())).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(settings.URLs)).
			Build()
	}
	if settings.Timeout > 0 {
		sender.Timeout = settings.Timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return NewWithSender(sender), nil
}

// NewWithSender wraps an existing sender.
func NewWithSender(s Sender) *Notifier {
	return &Notifier{sender: s}
}

// Run sends completed results until ctx is cancelled or the subscription closes.
func (n *Notifier) Run(ctx context.Context, source StateSource) {
	updates, cancel := source.Subscribe()
	defer cancel()

	var lastSent uint64
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if !s.Complete() || s.Generation == lastSent {
				continue
			}
			lastSent = s.Generation
			start := time.Now()
			if err := n.Notify(s); err != nil {
				GetLogger().Warn("failed to send classification notification",
					logger.String("request_id", s.RequestID),
					logger.Error(err))
				continue
			}
			GetLogger().Debug("classification notification sent",
				logger.String("request_id", s.RequestID),
				logger.Duration("duration", time.Since(start)))
		}
	}
}

// Notify sends the rendered result lines of s.
func (n *Notifier) Notify(s classifier.State) error {
	title, body := Message(s)
	params := stypes.Params{}
	params.SetTitle(title)

	for _, err := range n.sender.Send(body, &params) {
		if err != nil {
			return errors.Newf("%s", sanitize(err.Error())).
				Component("notify").
				Category(errors.CategoryNotification).
				Context("request_id", s.RequestID).
				Build()
		}
	}
	return nil
}

// Message renders the notification title and body for a completed state.
func Message(s classifier.State) (title, body string) {
	title = titleComplete
	if s.HasFailures() {
		title = titleFailed
	}
	return title, strings.Join(classifier.RenderResults(s, len(s.Models) > 1), "\n")
}

func sanitize(msg string) string {
	return urlCredentials.ReplaceAllString(msg, "${1}[REDACTED]@")
}
