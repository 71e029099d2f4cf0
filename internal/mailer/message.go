package mailer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Attachment is one PDF to attach.
type Attachment struct {
	Content io.Reader
	Name    string
}

// Message is a plain-text mail with PDF attachments.
type Message struct {
	Date        time.Time
	From        string
	Subject     string
	Body        string
	To          []string
	Attachments []Attachment
}

// BuildMessage writes msg as multipart/mixed: one UTF-8 quoted-printable
// text part followed by one base64 application/pdf part per attachment.
// It returns the generated Message-ID.
func BuildMessage(w io.Writer, msg Message) (string, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return "", fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
		to = append(to, parsed)
	}
	if len(to) == 0 {
		return "", fmt.Errorf("message has no recipients")
	}

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	messageID := newMessageID(from.Address)

	var h mail.Header
	h.Set("MIME-Version", "1.0")
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return "", fmt.Errorf("failed to start message: %w", err)
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	th.Set("Content-Transfer-Encoding", "quoted-printable")
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return "", fmt.Errorf("failed to create text part: %w", err)
	}
	if _, err := io.WriteString(tw, msg.Body); err != nil {
		return "", fmt.Errorf("failed to write text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to close text part: %w", err)
	}

	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType("application/pdf", map[string]string{"name": a.Name})
		ah.SetFilename(a.Name)
		ah.Set("Content-Transfer-Encoding", "base64")

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return "", fmt.Errorf("failed to create attachment %s: %w", a.Name, err)
		}
		if _, err := io.Copy(aw, a.Content); err != nil {
			return "", fmt.Errorf("failed to write attachment %s: %w", a.Name, err)
		}
		if err := aw.Close(); err != nil {
			return "", fmt.Errorf("failed to close attachment %s: %w", a.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish message: %w", err)
	}
	return messageID, nil
}

func newMessageID(sender string) string {
	domain := "localhost"
	if i := strings.LastIndex(sender, "@"); i >= 0 && i < len(sender)-1 {
		domain = sender[i+1:]
	}
	return uuid.NewString() + "@" + domain
}
