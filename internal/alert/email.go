package alert

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// EmailConfig configures the SMTP notifier.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails incidents with the frame attached as JPEG.
type EmailNotifier struct {
	config EmailConfig
	auth   smtp.Auth
	send   SendFunc
}

type EmailOption func(*EmailNotifier)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) EmailOption {
	return func(n *EmailNotifier) {
		n.send = fn
	}
}

func NewEmailNotifier(cfg EmailConfig, opts ...EmailOption) *EmailNotifier {
	n := &EmailNotifier{
		config: cfg,
		send:   smtp.SendMail,
	}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ParseRecipients splits a comma-separated address list.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (n *EmailNotifier) Notify(ctx context.Context, incident domain.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(n.config.To) == 0 {
		return fmt.Errorf("email notifier has no recipients")
	}

	msg, err := n.buildMessage(incident)
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}

	addr := n.config.Host + ":" + strconv.Itoa(n.config.Port)
	if err := n.send(addr, n.auth, n.config.From, n.config.To, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) buildMessage(incident domain.Incident) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(text, Body(incident)); err != nil {
		return nil, err
	}

	if len(incident.Image) > 0 {
		filename := fmt.Sprintf("%s_%s.jpg", incident.Identity, incident.Type)
		att, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/jpeg"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(att, incident.Image); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.config.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(incident)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

// writeBase64Lines wraps base64 output at 76 characters per RFC 2045.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(w, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
