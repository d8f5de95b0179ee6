package model

import "net/textproto"

// Part is a single MIME part of an inbound message. Multipart containers
// keep their children in Parts.
type Part struct {
	ContentType        string `json:"content_type"`
	ContentDisposition string `json:"content_disposition,omitempty"`
	Body               string `json:"body"`
	Parts              []Part `json:"parts,omitempty"`
}

// InboundEmail is an inbound message as delivered by the mailbox poller
// or the /in webhook. It is not modified after construction.
type InboundEmail struct {
	// MessageID is the Message-Id header without angle brackets.
	MessageID string `json:"message_id,omitempty"`

	Sender  string `json:"sender"`
	Subject string `json:"subject"`

	// To and Cc hold the parsed address lists. DeliveredTo is the raw
	// Delivered-To header value.
	To          []string `json:"to,omitempty"`
	Cc          []string `json:"cc,omitempty"`
	DeliveredTo string   `json:"delivered_to,omitempty"`

	Header textproto.MIMEHeader `json:"-"`

	IsMultipart bool   `json:"is_multipart"`
	Body        string `json:"body,omitempty"`
	Parts       []Part `json:"parts,omitempty"`
}

// HeaderValue returns the first value of the named header, or "".
func (e InboundEmail) HeaderValue(name string) string {
	if e.Header == nil {
		return ""
	}
	return e.Header.Get(name)
}
