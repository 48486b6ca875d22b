// Package notify delivers outbound WhatsApp messages.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends one text message to a recipient.
type Notifier interface {
	Send(ctx context.Context, to, body string) error
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("twilio credentials not configured")

// Disabled is the Notifier used when no credentials are set.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string) error { return ErrNotConfigured }

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends through the Twilio Messages API.
type Twilio struct {
	api  messageCreator
	from string
}

var (
	_ Notifier = (*Twilio)(nil)
	_ Notifier = Disabled{}
)

// NewTwilio builds a sender. from is the WhatsApp sender, e.g.
// "whatsapp:+14155238886"; the prefix is added when missing.
func NewTwilio(accountSID, authToken, from string) (*Twilio, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Twilio{api: client.Api, from: whatsapp(from)}, nil
}

func whatsapp(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "whatsapp:") {
		return addr
	}
	return "whatsapp:" + addr
}

func (t *Twilio) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsapp(to))
	params.SetFrom(t.from)
	params.SetBody(body)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	slog.InfoContext(ctx, "Message sent", "to", whatsapp(to), "sid", sid)
	return nil
}

// Recorder keeps sent messages in memory. Used by tests and dry runs.
type Recorder struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

type Message struct {
	To, Body string
}

func (r *Recorder) Send(_ context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, Message{To: to, Body: body})
	return nil
}
