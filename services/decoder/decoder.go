package decoder

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/ianaindex"
)

var addressPattern = regexp.MustCompile(`[\w.\-]+@[\w.\-]+`)

// Header carries the MIME-decoded header fields of a message.
type Header struct {
	Subject string
	From    string
	To      string
	Date    string
}

// Body carries the decoded content of a message.
type Body struct {
	TextBody        string
	HTMLBody        string
	AttachmentNames []string
}

// Email is a fully decoded message ready for rendering.
type Email struct {
	Header
	Body
}

var wordDecoder = mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.MIME.Encoding(charset)
		if err != nil || enc == nil {
			return nil, errors.Errorf("unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// DecodeMimeString decodes a header value made of RFC 2047 encoded words,
// falling back to the raw value when decoding fails.
func DecodeMimeString(encoded string) string {
	decoded, err := wordDecoder.DecodeHeader(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}

// DecodeAddressHeader decodes an address header of the form
// "display-name <addr>". Only the display-name half is MIME-encoded,
// the address itself is passed through as-is.
func DecodeAddressHeader(encoded string) string {
	parts := strings.Split(encoded, " <")
	if len(parts) == 2 {
		name := DecodeMimeString(parts[0])
		address := strings.TrimRight(parts[1], ">")
		return name + " <" + address + ">"
	}
	return DecodeMimeString(encoded)
}

// ExtractAddress pulls the bare address out of a decoded From header.
// Returns an empty string when no address-shaped token is present.
func ExtractAddress(from string) string {
	return addressPattern.FindString(from)
}

// DecodeHeader decodes the raw header block of a message into its
// renderable fields.
func DecodeHeader(raw map[string]string) Header {
	return Header{
		Subject: DecodeMimeString(raw["Subject"]),
		From:    DecodeAddressHeader(raw["From"]),
		To:      DecodeAddressHeader(raw["To"]),
		Date:    DecodeMimeString(raw["Date"]),
	}
}

// DecodeBody parses a full RFC 5322 message and extracts the first
// text/plain part, the first text/html part and the attachment
// filenames. When no plain part exists but an html part does, the text
// is derived from the html with tags stripped.
func DecodeBody(raw []byte) (Body, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Body{}, errors.Wrap(err, "parse mime envelope")
	}

	body := Body{
		TextBody: envelope.Text,
		HTMLBody: envelope.HTML,
	}
	for _, attachment := range envelope.Attachments {
		if attachment.FileName != "" {
			body.AttachmentNames = append(body.AttachmentNames, attachment.FileName)
		}
	}

	if body.TextBody == "" && body.HTMLBody != "" {
		text, err := stripTags(body.HTMLBody)
		if err != nil {
			return Body{}, err
		}
		body.TextBody = text
	}
	return body, nil
}

func stripTags(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.Wrap(err, "parse html body")
	}
	return doc.Text(), nil
}

var emailTemplate = template.Must(template.New("email").Parse(`<html>
<head>
    <style>
        body {
            font-family: Arial, sans-serif;
            padding: 20px;
        }
        .email-header {
            background-color: #f2f2f2;
            padding: 10px;
            margin-bottom: 20px;
        }
        .email-body {
            margin-bottom: 20px;
        }
        .email-attachments {
            margin-top: 20px;
        }
    </style>
</head>
<body>
    <div class="email-header">
        <p><b>Subject:</b> {{.Subject}}</p>
        <p><b>From:</b> {{.From}}</p>
        <p><b>To:</b> {{.To}}</p>
        <p><b>Date:</b> {{.Date}}</p>
    </div>
    <div class="email-body">
        {{.HTML}}
    </div>
    <div class="email-attachments">
        <b>Attachments:</b>
        <ul>
            {{- range .AttachmentNames}}
            <li>{{.}}</li>
            {{- end}}
        </ul>
    </div>
</body>
</html>`))

// RenderHTML lays the decoded email out as a standalone HTML document
// with a header block, the original html body inlined and the attachment
// names listed at the bottom.
func RenderHTML(email Email) (string, error) {
	htmlBody := email.HTMLBody
	if htmlBody == "" {
		htmlBody = textToHTML(email.TextBody)
	}

	data := struct {
		Subject         string
		From            string
		To              string
		Date            string
		HTML            template.HTML
		AttachmentNames []string
	}{
		Subject:         email.Subject,
		From:            email.From,
		To:              email.To,
		Date:            email.Date,
		HTML:            template.HTML(htmlBody),
		AttachmentNames: email.AttachmentNames,
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "render email template")
	}
	return buf.String(), nil
}

func textToHTML(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "<p>%s</p>\n", template.HTMLEscapeString(line))
	}
	return b.String()
}
