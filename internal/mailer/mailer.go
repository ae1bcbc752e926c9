// Package mailer sends plain-text confirmation mail over SMTP.  The
// notification path stays deliberately thin: compose a short text message
// and hand it to the server.  No templating; bodies come from the queue
// consumer.
package mailer

import (
    "fmt"
    "net/smtp"
    "strings"
)

// Mailer holds SMTP connection settings.  Construct it with New; a nil
// *Mailer is a valid "mail disabled" value and callers must check
// Enabled() (or tolerate nil) before sending.
type Mailer struct {
    host string
    port string
    user string
    pass string
    from string
}

// New returns a Mailer, or nil when no SMTP host is configured so the
// service runs without outbound mail.
func New(host, port, user, pass, from string) *Mailer {
    if host == "" {
        return nil
    }
    return &Mailer{host: host, port: port, user: user, pass: pass, from: from}
}

// Enabled reports whether the mailer can send.
func (m *Mailer) Enabled() bool { return m != nil }

// Send delivers a single plain-text message.  Errors are returned for the
// caller to log; mail failure must never affect booking state.
func (m *Mailer) Send(to, subject, body string) error {
    if m == nil {
        return nil
    }
    var auth smtp.Auth
    if m.user != "" {
        auth = smtp.PlainAuth("", m.user, m.pass, m.host)
    }
    var sb strings.Builder
    fmt.Fprintf(&sb, "From: %s\r\n", m.from)
    fmt.Fprintf(&sb, "To: %s\r\n", to)
    fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
    sb.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
    sb.WriteString(body)
    return smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, []byte(sb.String()))
}
