package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/nodi/console-identity/internal/core/ports"
)

const (
	invitationSubject = "[Nodi Cloud] You're invited to join %s"
	resetSubject      = "[Nodi Cloud] Reset your password"
)

type messageData struct {
	Link      string
	Tenant    string
	ExpiresAt time.Time
	Lifetime  string
}

var (
	invitationHTML = htmltemplate.Must(htmltemplate.New("invitation").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Join {{.Tenant}} on Nodi Cloud</h2>
  <p>You have been invited to the {{.Tenant}} console. Click the button below to create your account.</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #00FFDD; color: black; text-decoration: none; border-radius: 8px; font-weight: 500;">Accept invitation</a>
  <p style="margin-top: 24px; color: #666;">This invitation expires on {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}.</p>
</div>`))

	invitationText = texttemplate.Must(texttemplate.New("invitation").Parse(`Join {{.Tenant}} on Nodi Cloud

Open the link below to create your account:
{{.Link}}

This invitation expires on {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}.`))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Reset your password</h2>
  <p>Click the button below to choose a new password.</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #00FFDD; color: black; text-decoration: none; border-radius: 8px; font-weight: 500;">Reset password</a>
  <p style="margin-top: 24px; color: #666;">This link expires in {{.Lifetime}}.</p>
  <p style="color: #666;">If you did not request this, you can ignore this email.</p>
</div>`))

	resetText = texttemplate.Must(texttemplate.New("reset").Parse(`Reset your password

Open the link below to choose a new password:
{{.Link}}

This link expires in {{.Lifetime}}.`))
)

func render(html *htmltemplate.Template, text *texttemplate.Template, data messageData) (string, string, error) {
	var h, t bytes.Buffer
	if err := html.Execute(&h, data); err != nil {
		return "", "", err
	}
	if err := text.Execute(&t, data); err != nil {
		return "", "", err
	}
	return h.String(), t.String(), nil
}

func invitationMessage(to, subject string, data messageData) (ports.Message, error) {
	html, text, err := render(invitationHTML, invitationText, data)
	if err != nil {
		return ports.Message{}, err
	}
	return ports.Message{Kind: ports.KindInvitation, To: to, Subject: subject, HTML: html, Text: text}, nil
}

func resetMessage(to string, data messageData) (ports.Message, error) {
	html, text, err := render(resetHTML, resetText, data)
	if err != nil {
		return ports.Message{}, err
	}
	return ports.Message{Kind: ports.KindPasswordReset, To: to, Subject: resetSubject, HTML: html, Text: text}, nil
}

func humanDuration(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d == day:
		return "1 day"
	case d > 0 && d%day == 0:
		return fmt.Sprintf("%d days", int64(d/day))
	case d == time.Hour:
		return "1 hour"
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int64(d/time.Hour))
	}
	return d.String()
}
