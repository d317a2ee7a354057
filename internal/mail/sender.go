package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/config"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

// Sender delivers one message. body is markdown; senders that support it
// attach an HTML rendering next to the plain text.
type Sender interface {
	Send(to, subject, body string) error
}

// NewSender returns an SMTP sender, or a sender that only logs when SMTP is
// not configured.
func NewSender(cfg config.MailConfig) Sender {
	if !cfg.Enabled() {
		return &logSender{}
	}
	return &smtpSender{cfg: cfg, md: goldmark.New(), send: smtp.SendMail}
}

type smtpSender struct {
	cfg  config.MailConfig
	md   goldmark.Markdown
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *smtpSender) Send(to, subject, body string) error {
	from := strings.TrimSpace(s.cfg.From)
	if s.cfg.Host == "" || s.cfg.Port == 0 || from == "" {
		return appErr.ErrInvalid
	}
	msg, err := s.buildMessage(from, to, subject, body)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return s.send(addr, auth, from, []string{to}, msg)
}

func (s *smtpSender) buildMessage(from, to, subject, body string) ([]byte, error) {
	var html bytes.Buffer
	if err := s.md.Convert([]byte(body), &html); err != nil {
		return nil, fmt.Errorf("render mail body: %w", err)
	}

	var parts bytes.Buffer
	writer := multipart.NewWriter(&parts)
	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{contentType: "text/plain; charset=UTF-8", content: []byte(body)},
		{contentType: "text/html; charset=UTF-8", content: html.Bytes()},
	} {
		w, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=" + writer.Boundary() + "\r\n")
	msg.WriteString("\r\n")
	msg.Write(parts.Bytes())
	return msg.Bytes(), nil
}

type logSender struct{}

func (logSender) Send(to, subject, body string) error {
	logutil.GetLogger(context.Background()).Info("smtp disabled, mail logged instead of sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
