package alerts

import (
	"context"
	"errors"
	"fmt"
)

// MultiSender fans a notification out to several channels. Every channel is
// tried; the returned error joins each channel's failure.
type MultiSender struct {
	senders []AlertSender
}

func NewMultiSender(senders ...AlertSender) AlertSender {
	filtered := make([]AlertSender, 0, len(senders))
	for _, sender := range senders {
		if sender == nil {
			continue
		}
		filtered = append(filtered, sender)
	}
	return MultiSender{senders: filtered}
}

func (m MultiSender) Send(ctx context.Context, n AlertNotification) error {
	var errs []error
	for _, sender := range m.senders {
		if err := sender.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", sender, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("alert %s notification failed: %w", n.EventID, err)
	}
	return nil
}
