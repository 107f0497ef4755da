package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessagePlain(t *testing.T) {
	raw := "From: Mom <mom@example.com>\r\n" +
		"To: me@example.com, other@example.com\r\n" +
		"Subject: Dinner Sunday?\r\n" +
		"\r\n" +
		"  Can you come over?  \r\n"

	parsed, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Mom <mom@example.com>", parsed.From)
	assert.Equal(t, []string{"me@example.com", "other@example.com"}, parsed.To)
	assert.Equal(t, "Dinner Sunday?", parsed.Subject)
	assert.Equal(t, "Can you come over?", parsed.Body)
	assert.Equal(t, []string{"Dinner Sunday?"}, parsed.Headers["Subject"])
}

func TestParseMessageEncodedHeaderAndBody(t *testing.T) {
	raw := "From: shop@example.com\r\n" +
		"Subject: =?UTF-8?B?w4l0w6kgc29sZGVz?=\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Caf=E9 gratuit\r\n"

	parsed, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Été soldes", parsed.Subject)
	assert.Equal(t, "Café gratuit", parsed.Body)
}

func TestParseMessageMultipartSkipsAttachmentsAndHTML(t *testing.T) {
	raw := strings.Join([]string{
		"From: bank@example.com",
		"Subject: Statement",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: text/plain; name="statement.txt"`,
		`Content-Disposition: attachment; filename="statement.txt"`,
		"",
		"attachment text",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html body</p>",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body",
		"--inner--",
		"--outer--",
		"",
	}, "\r\n")

	parsed, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Statement", parsed.Subject)
	assert.Equal(t, "plain body", parsed.Body)
}

func TestParseMessageWithoutTextPart(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: Only html\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>hi</p>\r\n"

	parsed, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Only html", parsed.Subject)
	assert.Equal(t, "", parsed.Body)
}

func TestParseMessageUnknownCharsetKeepsPartialContent(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: Strange\r\n" +
		"Content-Type: text/plain; charset=x-unknown-charset\r\n" +
		"\r\n" +
		"body text\r\n"

	parsed, err := ParseMessage([]byte(raw))
	require.NotNil(t, parsed)
	assert.Error(t, err)
	assert.Equal(t, "Strange", parsed.Subject)
	assert.Equal(t, "a@example.com", parsed.From)
}

func TestParseMessageMalformedHeaderIsUndecodable(t *testing.T) {
	raw := "From: mom@example.com\r\n" +
		"this header line has no colon\r\n" +
		"Subject: Dinner Sunday?\r\n" +
		"\r\n" +
		"Can you come over?\r\n"

	_, err := ParseMessage([]byte(raw))
	assert.ErrorIs(t, err, ErrUndecodable)
}
