package web

import "embed"

// MailTemplates embeds the notification email bodies.
//
//go:embed templates/mail/*.html
var MailTemplates embed.FS
