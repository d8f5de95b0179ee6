// Package mailparse reads raw RFC 822 messages into model.InboundEmail
// values using go-message.
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/showbot/internal/model"
)

// Parse reads raw into an InboundEmail. Transfer encodings are decoded and
// declared charsets converted to UTF-8; parts with an unknown charset keep
// their raw bytes. Only a message whose header cannot be read is an error.
func Parse(raw []byte) (model.InboundEmail, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !tolerable(err) {
		return model.InboundEmail{}, fmt.Errorf("reading message: %w", err)
	}

	h := mail.Header{Header: entity.Header}

	email := model.InboundEmail{
		Header:      mimeHeader(entity.Header),
		Sender:      sender(h),
		Subject:     subject(h),
		To:          addresses(h, "To"),
		Cc:          addresses(h, "Cc"),
		DeliveredTo: strings.TrimSpace(h.Get("Delivered-To")),
	}
	if id, err := h.MessageID(); err == nil {
		email.MessageID = id
	}

	if mr := entity.MultipartReader(); mr != nil {
		email.IsMultipart = true
		email.Parts = readParts(mr)
		return email, nil
	}

	email.Body = readBody(entity.Body)
	return email, nil
}

// readParts collects the parts of a multipart body, descending into
// nested multiparts. A broken part ends the scan; what was read is kept.
func readParts(mr message.MultipartReader) []model.Part {
	var parts []model.Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && (p == nil || !tolerable(err)) {
			break
		}

		part := model.Part{
			ContentType:        p.Header.Get("Content-Type"),
			ContentDisposition: p.Header.Get("Content-Disposition"),
		}
		if part.ContentType == "" {
			part.ContentType = "text/plain"
		}

		if nested := p.MultipartReader(); nested != nil {
			part.Parts = readParts(nested)
		} else {
			part.Body = readBody(p.Body)
		}

		parts = append(parts, part)
	}
	return parts
}

func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// readBody returns whatever could be read, even after a decoding error.
func readBody(r io.Reader) string {
	body, _ := io.ReadAll(r)
	return string(body)
}

func sender(h mail.Header) string {
	for _, key := range []string{"From", "Sender", "Return-Path"} {
		if list, err := h.AddressList(key); err == nil && len(list) > 0 {
			return list[0].Address
		}
		if v := strings.TrimSpace(h.Get(key)); v != "" {
			return strings.Trim(v, "<>")
		}
	}
	return ""
}

func subject(h mail.Header) string {
	if s, err := h.Subject(); err == nil {
		return s
	}
	return h.Get("Subject")
}

// addresses parses an address list header, falling back to the raw value
// so that a malformed list is still visible downstream.
func addresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		if raw := strings.TrimSpace(h.Get(key)); raw != "" {
			return []string{raw}
		}
		return nil
	}

	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out
}

func mimeHeader(h message.Header) textproto.MIMEHeader {
	out := textproto.MIMEHeader{}
	fields := h.Fields()
	for fields.Next() {
		out.Add(fields.Key(), fields.Value())
	}
	return out
}
