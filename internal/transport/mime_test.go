package transport

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestBuildMessageAlternative(t *testing.T) {
	data := BuildMessage(&Message{
		From:     "sales@example.com",
		FromName: "Sales",
		To:       "jane@acme.com",
		Subject:  "Grüße",
		HTML:     "<p>hi</p>",
		Text:     "hi",
	}, "id-1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	msg, err := mail.ReadMessage(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil || subject != "Grüße" {
		t.Errorf("Subject = %q (%v)", subject, err)
	}
	if got := msg.Header.Get("Message-ID"); got != "<id-1@example.com>" {
		t.Errorf("Message-ID = %q", got)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("Content-Type = %q (%v)", mediaType, err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart() error = %v", err)
		}
		types = append(types, strings.Split(p.Header.Get("Content-Type"), ";")[0])
	}
	if strings.Join(types, ",") != "text/plain,text/html" {
		t.Errorf("parts = %v", types)
	}
}

func TestBuildMessageSinglePart(t *testing.T) {
	data := string(BuildMessage(&Message{From: "a@example.com", To: "b@acme.com", Subject: "s", Text: "plain"}, "x", time.Now()))
	if !strings.Contains(data, "Content-Type: text/plain; charset=utf-8") {
		t.Errorf("missing text content type:\n%s", data)
	}
	if strings.Contains(data, "multipart") {
		t.Error("single part message is multipart")
	}
}
