package transport

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/campaigner/internal/email"
)

// BuildMessage renders msg as RFC 5322 data with a multipart/alternative
// body when both HTML and text are present
func BuildMessage(msg *Message, messageID string, date time.Time) []byte {
	var buf bytes.Buffer

	from := (&mail.Address{Name: msg.FromName, Address: msg.From}).String()
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", messageID, messageDomain(msg.From))
	buf.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTML != "" && msg.Text != "":
		boundary := uuid.New().String()
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)
		writePart(&buf, boundary, "text/plain", msg.Text)
		writePart(&buf, boundary, "text/html", msg.HTML)
		fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	case msg.HTML != "":
		writeBody(&buf, "text/html", msg.HTML)
	default:
		writeBody(&buf, "text/plain", msg.Text)
	}

	return buf.Bytes()
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	writeBody(buf, contentType, body)
	buf.WriteString("\r\n")
}

func writeBody(buf *bytes.Buffer, contentType, body string) {
	fmt.Fprintf(buf, "Content-Type: %s; charset=utf-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	qp := quotedprintable.NewWriter(buf)
	qp.Write([]byte(body))
	qp.Close()
}

func messageDomain(from string) string {
	if d := email.ExtractDomain(from); d != "" {
		return d
	}
	return "localhost"
}
