package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/metrics"
)

const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

const (
	verifyPath = "/api/v1/user/verify/"
	resetPath  = "/api/v1/user/reset-password/"
)

// markdownEscaper neutralises the characters that open links, autolinks,
// emphasis, code spans and entities. Block syntax only applies at the start
// of a line, and names are folded onto the greeting line.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
	"<", `\<`,
	">", `\>`,
	"&", `\&`,
	"!", `\!`,
)

// markdownText renders user-supplied text as literal markdown on one line.
func markdownText(s string) string {
	return markdownEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

// Dispatcher turns auth events into mails. Delivery is best effort: a
// failure is logged and reported as false, never returned.
type Dispatcher struct {
	sender   Sender
	baseURL  string
	recorder metrics.Recorder
}

func NewDispatcher(sender Sender, baseURL string, recorder metrics.Recorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Dispatcher{sender: sender, baseURL: strings.TrimRight(baseURL, "/"), recorder: recorder}
}

func (d *Dispatcher) VerificationURL(token string) string {
	return d.baseURL + verifyPath + token
}

func (d *Dispatcher) ResetURL(token string) string {
	return d.baseURL + resetPath + token
}

func (d *Dispatcher) SendVerification(ctx context.Context, to, name, token string, ttl time.Duration) bool {
	link := d.VerificationURL(token)
	body := fmt.Sprintf(`Hi %s,

Thank you for registering! Please verify your email to complete your registration.

<%s>

This verification link will expire in %s.
If you did not create an account, please ignore this email.
`, markdownText(name), link, humanDuration(ttl))
	return d.dispatch(ctx, KindVerification, to, "Please verify your email", body)
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, to, name, token string, ttl time.Duration) bool {
	link := d.ResetURL(token)
	body := fmt.Sprintf(`Hi %s,

You are receiving this email because a password reset was requested for your account.
Send a PUT request with your new password to:

<%s>

This link will expire in %s.
If you did not request this, please ignore this email.
`, markdownText(name), link, humanDuration(ttl))
	return d.dispatch(ctx, KindPasswordReset, to, "Reset Password", body)
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, to, subject, body string) bool {
	if err := d.sender.Send(to, subject, body); err != nil {
		logutil.GetLogger(ctx).Error("send mail failed",
			zap.String("kind", kind),
			zap.String("to", to),
			zap.Error(err),
		)
		d.recorder.RecordMail(kind, false)
		return false
	}
	d.recorder.RecordMail(kind, true)
	return true
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
