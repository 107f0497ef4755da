package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ErrUndecodable is returned when not even the header block of a message
// could be read, so no field of the result is usable
var ErrUndecodable = errors.New("message could not be decoded")

// ParsedMessage holds the decoded fields of a raw RFC 5322 message
type ParsedMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// ParseMessage decodes headers and the first non-attachment text/plain part
// to UTF-8. Decoding problems are collected into the returned error while
// every field that could be decoded is still filled in, so callers may use
// the partial result.
func ParseMessage(raw []byte) (*ParsedMessage, error) {
	parsed := &ParsedMessage{Headers: make(map[string][]string)}
	var errs []error

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return parsed, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if err != nil {
		errs = append(errs, err)
	}
	defer mr.Close()

	fields := mr.Header.Fields()
	for fields.Next() {
		parsed.Headers[fields.Key()] = append(parsed.Headers[fields.Key()], fields.Value())
	}

	parsed.From = decodedText(&mr.Header, "From", &errs)
	parsed.Subject = decodedText(&mr.Header, "Subject", &errs)
	if addrs, err := mr.Header.AddressList("To"); err == nil {
		for _, a := range addrs {
			parsed.To = append(parsed.To, a.Address)
		}
	}

	body, err := firstPlainText(mr)
	if err != nil {
		errs = append(errs, err)
	}
	parsed.Body = strings.TrimSpace(body)

	return parsed, errors.Join(errs...)
}

// decodedText returns the MIME-decoded header value, or the raw value when
// decoding fails.
func decodedText(h *mail.Header, key string, errs *[]error) string {
	v, err := h.Text(key)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("failed to decode %s header: %w", key, err))
		return h.Get(key)
	}
	return v
}

// firstPlainText walks the message parts and returns the first inline
// text/plain part. Non-multipart messages are a single part.
func firstPlainText(mr *mail.Reader) (string, error) {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return "", nil
		}
		if err != nil && !(message.IsUnknownCharset(err) && p != nil) {
			return "", fmt.Errorf("failed to read message part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments are skipped
			continue
		}
		ct, _, ctErr := h.ContentType()
		if ctErr != nil {
			ct = "text/plain"
		}
		if ct != "text/plain" {
			continue
		}

		b, readErr := io.ReadAll(p.Body)
		if readErr != nil {
			return string(b), fmt.Errorf("failed to decode text/plain part: %w", readErr)
		}
		return string(b), err
	}
}
