package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	"text/template"
	"time"
)

var (
	challengeText = template.Must(template.New("challenge").Parse(
		"Your verification code is {{.Code}}.\n\nIt expires in {{.TTL}}. If you did not try to sign in, change your password.\n",
	))
	challengeHTML = htmltemplate.Must(htmltemplate.New("challenge").Parse(
		`<p>Your verification code is <strong>{{.Code}}</strong>.</p>` +
			`<p>It expires in {{.TTL}}. If you did not try to sign in, change your password.</p>`,
	))
	resetText = template.Must(template.New("reset").Parse(
		"Use the link below to choose a new password:\n\n{{.Link}}\n\nThe link expires in {{.TTL}} and works once.\n",
	))
	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
		`<p>Use the link below to choose a new password:</p>` +
			`<p><a href="{{.Link}}">Reset password</a></p>` +
			`<p>The link expires in {{.TTL}} and works once.</p>`,
	))
)

// ChallengeMessage renders the two-factor code email.
func ChallengeMessage(to, code string, ttl time.Duration) (Message, error) {
	data := struct {
		Code string
		TTL  string
	}{code, humanDuration(ttl)}

	var text, html bytes.Buffer
	if err := challengeText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := challengeHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your verification code", TextBody: text.String(), HTMLBody: html.String()}, nil
}

// PasswordResetMessage renders the reset link email.
func PasswordResetMessage(to, link string, ttl time.Duration) (Message, error) {
	data := struct {
		Link string
		TTL  string
	}{link, humanDuration(ttl)}

	var text, html bytes.Buffer
	if err := resetText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Reset your password", TextBody: text.String(), HTMLBody: html.String()}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return strconv.FormatInt(int64(d/time.Hour), 10) + " hours"
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return strconv.FormatInt(int64(d/time.Minute), 10) + " minutes"
	default:
		return d.String()
	}
}
