// Package mailx abstracts outbound transactional email. The identity core
// only depends on EmailSender; delivery failures are reported to the caller,
// which logs them and never rolls back the state change that triggered the
// message.
package mailx

import (
	"context"
	"fmt"
)

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
}

// EmailSender delivers a single message.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationEmail builds the address-confirmation message. The link embeds
// the opaque workflow token.
func VerificationEmail(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Bevestig je e-mailadres",
		TextBody: "Welkom bij Proefrit!\n\n" +
			"Bevestig je e-mailadres via de onderstaande link. De link is 24 uur geldig.\n\n" +
			link + "\n\n" +
			"Heb je geen account aangemaakt? Dan kun je deze e-mail negeren.\n",
	}
}

// PasswordResetEmail builds the reset message. The link is valid for one hour.
func PasswordResetEmail(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Wachtwoord opnieuw instellen",
		TextBody: "Er is een wachtwoordreset aangevraagd voor dit e-mailadres.\n\n" +
			"Stel via de onderstaande link een nieuw wachtwoord in. De link is 1 uur geldig.\n\n" +
			link + "\n\n" +
			"Heb je dit niet aangevraagd? Dan kun je deze e-mail negeren; je wachtwoord blijft ongewijzigd.\n",
	}
}

// FeedbackEmail builds the post-drive feedback invitation.
func FeedbackEmail(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Hoe was je proefrit?",
		TextBody: "Bedankt voor je proefrit!\n\n" +
			"We horen graag wat je ervan vond. Deel je ervaring via de onderstaande link.\n\n" +
			link + "\n",
	}
}

// SendError wraps provider-specific delivery failures.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mailx: send to %s failed: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
