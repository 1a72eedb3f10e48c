package mail

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/gmail/v1"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// MessageFromGmail converts a full-format Gmail message. The body is the first
// text/plain part; when there is none the first text/html part is reduced to text.
// When the chosen part cannot be decoded the message is still returned, with an
// empty body, alongside the decode error.
func MessageFromGmail(m *gmail.Message) (domain.RawMessage, error) {
	msg := domain.RawMessage{ID: m.Id}
	if m.Payload == nil {
		return msg, nil
	}

	for _, h := range m.Payload.Headers {
		switch {
		case strings.EqualFold(h.Name, "Subject") && msg.Subject == "":
			msg.Subject = h.Value
		case strings.EqualFold(h.Name, "Date") && msg.Date == "":
			msg.Date = h.Value
		}
	}

	if data := findPart(m.Payload, "text/plain"); data != "" {
		body, err := decodeBody(data)
		if err != nil {
			return msg, fmt.Errorf("text/plain part: %w", err)
		}
		msg.Body = body
		return msg, nil
	}
	if data := findPart(m.Payload, "text/html"); data != "" {
		body, err := decodeBody(data)
		if err != nil {
			return msg, fmt.Errorf("text/html part: %w", err)
		}
		msg.Body = HTMLToText(body)
	}
	return msg, nil
}

// findPart walks the MIME tree depth-first and returns the encoded body of
// the first part with the given type. A single-part message counts as its own part.
func findPart(p *gmail.MessagePart, mimeType string) string {
	if p == nil {
		return ""
	}
	if strings.HasPrefix(p.MimeType, mimeType) && p.Body != nil && p.Body.Data != "" {
		return p.Body.Data
	}
	for _, child := range p.Parts {
		if data := findPart(child, mimeType); data != "" {
			return data
		}
	}
	return ""
}

// decodeBody decodes Gmail's URL-safe base64, with or without padding
func decodeBody(data string) (string, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), nil
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	return string(b), nil
}

// HTMLToText strips markup and non-visible elements and keeps one line per
// non-empty text line.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
