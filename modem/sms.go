package modem

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/bg95/at"
	"i4.energy/across/bg95/command"
)

// SendSMS sends a text message to the specified recipient and returns the
// message reference assigned by the network.
//
// The message is sent in text mode (not PDU mode). The recipient should be
// in international format (e.g., "+1234567890").
//
// This method blocks until the message is accepted by the network or an error
// occurs. Network delivery (to the final recipient) happens asynchronously.
func (m *Modem) SendSMS(ctx context.Context, recipient, message string) (int, error) {
	if message == "" {
		return 0, fmt.Errorf("send SMS: %w: empty message", at.ErrInvalidArgument)
	}
	// Ctrl-Z ends the body and ESC aborts it.
	if strings.ContainsAny(message, "\x1a\x1b") {
		return 0, fmt.Errorf("send SMS: %w: message contains a control terminator", at.ErrInvalidArgument)
	}

	var res command.CMGSResult
	params := command.CMGSParams{Recipient: recipient}
	if err := m.SendWithPrompt(ctx, command.CMGS, params, []byte(message+at.CtrlZ), &res); err != nil {
		return 0, fmt.Errorf("send SMS: %w", err)
	}
	m.log.Info("SMS sent", "recipient", recipient, "reference", res.Reference)
	return res.Reference, nil
}
