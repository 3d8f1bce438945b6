// Package alert delivers operator alerts for conditions that need a human,
// such as an entry order left live without its protective stop.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Alert is one operator notification.
type Alert struct {
	Title   string
	Message string
	Fields  map[string]string
}

// Text renders the alert as plain text, fields sorted by key.
func (a Alert) Text() string {
	var b strings.Builder
	b.WriteString("ALERT: ")
	b.WriteString(a.Title)
	if a.Message != "" {
		b.WriteString("\n")
		b.WriteString(a.Message)
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, a.Fields[k])
	}
	return b.String()
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the log at error level.
type LogNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the alert
func (n *LogNotifier) Notify(_ context.Context, a Alert) error {
	fields := logrus.Fields{"alert": true}
	for k, v := range a.Fields {
		fields[k] = v
	}
	n.logger.WithFields(fields).Errorf("ALERT: %s: %s", a.Title, a.Message)
	return nil
}

// Multi fans an alert out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []Notifier

// Notify sends to all notifiers
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
