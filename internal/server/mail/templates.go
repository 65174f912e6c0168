package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

const (
	createAccountSubject = "Création de compte : Un Livre Pour Tous"
	resetPasswordSubject = "Réinitialisation du mot de passe : Un Livre Pour Tous"
)

var linkTemplate = template.Must(template.New("link").Parse(
	`<p>{{.Intro}}</p>
<p><a href="{{.Link}}">{{.Label}}</a></p>
<p>Ce lien expire dans {{.Expiry}}.</p>`))

type linkData struct {
	Intro  string
	Link   string
	Label  string
	Expiry string
}

// Message is a rendered e-mail.
type Message struct {
	Subject string
	HTML    string
}

// CreateAccount renders the mail that lets a new user choose a password.
// validity is the lifetime of token, quoted in the mail.
func CreateAccount(frontendURL, token string, validity time.Duration) (Message, error) {
	return render(createAccountSubject, linkData{
		Intro:  "Cliquez sur le lien pour définir votre mot de passe :",
		Link:   link(frontendURL, "/create-account", token),
		Label:  "Créer votre compte",
		Expiry: frenchDuration(validity),
	})
}

// ResetPassword renders the mail that lets a user choose a new password.
func ResetPassword(frontendURL, token string, validity time.Duration) (Message, error) {
	return render(resetPasswordSubject, linkData{
		Intro:  "Cliquez sur le lien pour choisir un nouveau mot de passe :",
		Link:   link(frontendURL, "/reset-password", token),
		Label:  "Réinitialiser le mot de passe",
		Expiry: frenchDuration(validity),
	})
}

// frenchDuration spells d in the largest whole unit among days, hours and
// minutes, e.g. "1 heure", "2 jours", "90 minutes".
func frenchDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d < time.Minute {
		d = time.Minute
	}
	day := 24 * time.Hour
	switch {
	case d%day == 0:
		return plural(int(d/day), "jour")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "heure")
	}
	return plural(int(d/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

func link(frontendURL, path, token string) string {
	return strings.TrimRight(frontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func render(subject string, d linkData) (Message, error) {
	var b bytes.Buffer
	if err := linkTemplate.Execute(&b, d); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: b.String()}, nil
}
