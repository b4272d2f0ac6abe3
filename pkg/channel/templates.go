package channel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// Render takes a templ.Component and renders it to a string.
func Render(ctx context.Context, tpl templ.Component) (string, error) {
	var sb strings.Builder
	if err := tpl.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// EmailLayout wraps body in the shared email chrome.
func EmailLayout(product, title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1.0">`+
			`<title>%s</title></head>`, templ.EscapeString(title))
		ew.print(`<body style="margin:0;padding:0;background-color:#f4f4f7;font-family:Helvetica,Arial,sans-serif;">`)
		ew.print(`<table role="presentation" width="100%" cellpadding="0" cellspacing="0"><tr><td align="center" style="padding:24px;">`)
		ew.print(`<table role="presentation" width="570" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:4px;">`)
		ew.printf(`<tr><td style="padding:24px 32px 0;font-size:14px;color:#6b6e76;">%s</td></tr>`, templ.EscapeString(product))
		ew.print(`<tr><td style="padding:16px 32px 32px;">`)
		if ew.err != nil {
			return ew.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		ew.print(`</td></tr></table>`)
		ew.printf(`<p style="font-size:12px;color:#a8aaaf;">You received this message from %s.</p>`, templ.EscapeString(product))
		ew.print(`</td></tr></table></body></html>`)
		return ew.err
	})
}

// NotificationBody renders the notification content with an optional call
// to action.
func NotificationBody(name string, c delivery.Content) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<h1 style="font-size:20px;color:#333333;margin:0 0 16px;">%s</h1>`, templ.EscapeString(c.Title))
		if name != "" {
			ew.printf(`<p style="font-size:16px;color:#51545e;">Hi %s,</p>`, templ.EscapeString(name))
		}
		for _, para := range paragraphs(c.Body) {
			ew.printf(`<p style="font-size:16px;line-height:1.6;color:#51545e;">%s</p>`, templ.EscapeString(para))
		}
		if c.ActionURL != "" {
			ew.printf(`<p style="margin:24px 0;"><a href="%s" style="display:inline-block;padding:10px 18px;`+
				`background-color:#3869d4;color:#ffffff;text-decoration:none;border-radius:3px;">%s</a></p>`,
				templ.EscapeString(string(templ.URL(c.ActionURL))),
				templ.EscapeString(actionLabel(c)))
		}
		return ew.err
	})
}

// PlainText renders the text/plain alternative of an email.
func PlainText(name string, c delivery.Content) string {
	var sb strings.Builder
	sb.WriteString(c.Title)
	sb.WriteString("\n\n")
	if name != "" {
		fmt.Fprintf(&sb, "Hi %s,\n\n", name)
	}
	for _, para := range paragraphs(c.Body) {
		sb.WriteString(para)
		sb.WriteString("\n\n")
	}
	if c.ActionURL != "" {
		fmt.Fprintf(&sb, "%s: %s\n", actionLabel(c), c.ActionURL)
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func actionLabel(c delivery.Content) string {
	if c.ActionLabel != "" {
		return c.ActionLabel
	}
	return "View details"
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) print(s string) {
	if ew.err == nil {
		_, ew.err = io.WriteString(ew.w, s)
	}
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, args...)
	}
}
