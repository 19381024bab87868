package ingest

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

// maxAttachmentBytes bounds a single decoded attachment.
const maxAttachmentBytes = 64 << 20

// Email is an inbound message reduced to its sender and PDF attachments.
type Email struct {
	From      string
	Subject   string
	MessageID string
	Documents []Document
}

// ParseEmail reads an RFC 5322 message and collects every PDF attachment. The sender
// is the bare address of the From header.
func ParseEmail(r io.Reader) (Email, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return Email{}, fmt.Errorf("read message: %w", err)
	}

	var out Email
	dec := new(mime.WordDecoder)
	if subj, err := dec.DecodeHeader(msg.Header.Get("Subject")); err == nil {
		out.Subject = subj
	}
	out.MessageID = strings.Trim(msg.Header.Get("Message-Id"), "<> ")
	if from := msg.Header.Get("From"); from != "" {
		addr, err := mail.ParseAddress(from)
		if err != nil {
			return Email{}, fmt.Errorf("parse From %q: %w", from, err)
		}
		out.From = strings.ToLower(addr.Address)
	}

	err = walkPart(msg.Header, msg.Body, func(name string, body []byte) {
		out.Documents = append(out.Documents, NewDocument(body, name, out.From, constants.SourceEmail))
	})
	if err != nil {
		return Email{}, err
	}
	if len(out.Documents) == 0 {
		return out, ErrNoAttachment
	}
	return out, nil
}

// header is satisfied by both mail.Header and textproto.MIMEHeader.
type header interface {
	Get(key string) string
}

func walkPart(h header, body io.Reader, emit func(name string, body []byte)) error {
	ct := h.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		// unparseable parts are skipped, not fatal
		return nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read multipart: %w", err)
			}
			if err := walkPart(p.Header, p, emit); err != nil {
				return err
			}
		}
	}

	name := attachmentName(h, params)
	if !constants.IsPDFContentType(mediaType) && !(mediaType == "application/octet-stream" && AllowedExt(filepath.Ext(name))) {
		return nil
	}

	var rd io.Reader = io.LimitReader(body, maxAttachmentBytes+1)
	if strings.EqualFold(strings.TrimSpace(h.Get("Content-Transfer-Encoding")), "base64") {
		rd = base64.NewDecoder(base64.StdEncoding, rd)
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("decode attachment %q: %w", name, err)
	}
	if len(b) > maxAttachmentBytes {
		return fmt.Errorf("%w: attachment %q exceeds %d bytes", ErrUnsupportedFile, name, maxAttachmentBytes)
	}
	if len(b) == 0 {
		return nil
	}
	if name == "" {
		name = "attachment.pdf"
	}
	emit(name, b)
	return nil
}

func attachmentName(h header, ctParams map[string]string) string {
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return ctParams["name"]
}
