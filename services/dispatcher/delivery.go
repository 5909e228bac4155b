package dispatcher

import (
	"context"
	"unicode/utf8"
)

const (
	// DefaultDeliveryLimit is the largest response, in characters, sent inline
	DefaultDeliveryLimit = 4096

	// DefaultFileName names the attachment used for oversized responses
	DefaultFileName = "ai_response.txt"
)

// Channel is the chat surface a response is delivered to
type Channel interface {
	SendText(ctx context.Context, text string) error
	SendFile(ctx context.Context, data []byte, filename string) error
}

// Form is how a response reaches the channel
type Form string

const (
	FormInline Form = "inline"
	FormFile   Form = "file"
)

// Attachment is a named file payload
type Attachment struct {
	Name string
	Data []byte
}

// Delivery is a response shaped for the channel
type Delivery struct {
	Form Form
	Text string
	File *Attachment
}

// Shape applies the size policy: text longer than limit characters becomes
// a file attachment holding its UTF-8 bytes, anything else stays inline.
func Shape(text string, limit int, filename string) Delivery {
	if limit <= 0 {
		limit = DefaultDeliveryLimit
	}
	if filename == "" {
		filename = DefaultFileName
	}

	if utf8.RuneCountInString(text) > limit {
		return Delivery{
			Form: FormFile,
			File: &Attachment{Name: filename, Data: []byte(text)},
		}
	}
	return Delivery{Form: FormInline, Text: text}
}

// Send hands the delivery to ch
func (d Delivery) Send(ctx context.Context, ch Channel) error {
	if d.Form == FormFile && d.File != nil {
		return ch.SendFile(ctx, d.File.Data, d.File.Name)
	}
	return ch.SendText(ctx, d.Text)
}

// Size returns the payload length in bytes
func (d Delivery) Size() int {
	if d.File != nil {
		return len(d.File.Data)
	}
	return len(d.Text)
}
