// Package notify sends escalation notices through shoutrrr service URLs
// (slack://, telegram://, smtp://, generic:// webhooks, ...).
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/types"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

const escalationTitle = "Compliance escalation"

// ErrNoURLs is returned by New when no notification URLs are configured.
var ErrNoURLs = errors.New("notify: no urls configured")

type sender interface {
	Send(message string, params *types.Params) []error
}

// Notifier delivers escalation events to every configured service.
type Notifier struct {
	sender sender
}

// New validates urls and builds a Notifier for them.
func New(urls []string) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("creating notification sender: %w", err)
	}
	return &Notifier{sender: router}, nil
}

// HandleComplianceEvent implements compliance.EventHandler. Only
// EventEscalated produces a notification.
func (n *Notifier) HandleComplianceEvent(_ context.Context, ev compliance.Event) error {
	if ev.Type != compliance.EventEscalated {
		return nil
	}

	params := types.Params{"title": escalationTitle}
	errs := n.sender.Send(escalationMessage(ev), &params)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("sending escalation for device %d: %w", ev.DeviceID, err)
	}
	return nil
}

func escalationMessage(ev compliance.Event) string {
	msg := fmt.Sprintf("Device %d has failed %d consecutive compliance checks (policy %d", ev.DeviceID, ev.Attempts, ev.PolicyID)
	if ev.RecordID > 0 {
		msg += fmt.Sprintf(", record %d", ev.RecordID)
	}
	msg += ")."
	if ev.RunID != "" {
		msg += "\nRun: " + ev.RunID
	}
	return msg
}
