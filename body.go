package frakt

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// BodyKind tags the Body union variant.
type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyBytes
	BodyForm
	BodyJSON
	BodyMultipart
)

// FormField is one ordered key/value pair of a Form body.
type FormField struct {
	Key   string
	Value string
}

// MultipartPart is one part of a Multipart body. Filename is optional; when
// set, the part is emitted with a filename attribute on its
// Content-Disposition header.
type MultipartPart struct {
	Name        string
	Filename    string
	ContentType string
	Content     []byte
}

// Body is a tagged union over the request body variants from section 3 of
// SPEC_FULL.md. The zero value is BodyEmpty.
type Body struct {
	Kind        BodyKind
	BytesData   []byte
	BytesType   string
	FormFields  []FormField
	JSONValue   any
	Parts       []MultipartPart
}

// EmptyBody returns a body with no content.
func EmptyBody() Body { return Body{Kind: BodyEmpty} }

// BytesBody wraps a raw byte payload with an explicit content type.
func BytesBody(content []byte, contentType string) Body {
	return Body{Kind: BodyBytes, BytesData: content, BytesType: contentType}
}

// FormBody builds an application/x-www-form-urlencoded body from ordered
// key/value pairs.
func FormBody(fields ...FormField) Body {
	return Body{Kind: BodyForm, FormFields: fields}
}

// JSONBody wraps a Go value to be serialized as application/json.
func JSONBody(v any) Body {
	return Body{Kind: BodyJSON, JSONValue: v}
}

// MultipartBody builds a multipart/form-data body from ordered parts.
func MultipartBody(parts ...MultipartPart) Body {
	return Body{Kind: BodyMultipart, Parts: parts}
}

// DefaultContentType returns the Content-Type the body variant implies,
// per section 6 ("Content-Type is inferred from the body variant unless
// explicitly set in headers"). It returns "" for BodyEmpty and for
// BodyMultipart callers must use the boundary returned by Encode, since the
// boundary is generated fresh per call.
func (b Body) DefaultContentType() string {
	switch b.Kind {
	case BodyBytes:
		if b.BytesType != "" {
			return b.BytesType
		}
		return "application/octet-stream"
	case BodyForm:
		return "application/x-www-form-urlencoded"
	case BodyJSON:
		return "application/json"
	default:
		return ""
	}
}

// Encode materializes the body to its wire bytes and returns the
// Content-Type that should be used absent an explicit header override,
// following the encodings in section 6 of SPEC_FULL.md.
func (b Body) Encode() (data []byte, contentType string, err error) {
	switch b.Kind {
	case BodyEmpty:
		return nil, "", nil

	case BodyBytes:
		return b.BytesData, b.DefaultContentType(), nil

	case BodyForm:
		return []byte(encodeForm(b.FormFields)), b.DefaultContentType(), nil

	case BodyJSON:
		buf, jerr := json.Marshal(b.JSONValue)
		if jerr != nil {
			return nil, "", DecodingError("json", "failed to marshal JSON body", jerr)
		}
		return buf, b.DefaultContentType(), nil

	case BodyMultipart:
		boundary, berr := newMultipartBoundary()
		if berr != nil {
			return nil, "", wrapError(ErrInternal, "failed to generate multipart boundary", berr)
		}
		buf, merr := encodeMultipart(b.Parts, boundary)
		if merr != nil {
			return nil, "", merr
		}
		return buf, fmt.Sprintf("multipart/form-data; boundary=%s", boundary), nil

	default:
		return nil, "", newError(ErrInternal, "unknown body kind")
	}
}

// encodeForm joins fields as "k1=v1&k2=v2" with percent-encoding per the
// RFC 3986 unreserved set (net/url.QueryEscape is the stdlib equivalent the
// example pack's own form encoders fall back to; its '+' for a space is
// rewritten to "%20", since QueryEscape emits a literal '+' as "%2B").
func encodeForm(fields []FormField) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(strings.ReplaceAll(url.QueryEscape(f.Key), "+", "%20"))
		sb.WriteByte('=')
		sb.WriteString(strings.ReplaceAll(url.QueryEscape(f.Value), "+", "%20"))
	}
	return sb.String()
}

// newMultipartBoundary generates a high-entropy boundary string, per the
// "high-entropy random or timestamp-derived" guidance in section 4.2.
func newMultipartBoundary() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "fraktgo-" + hex.EncodeToString(raw), nil
}

// encodeMultipart emits the wire format from section 6: a \r\n--boundary\r\n
// delimiter, Content-Disposition (with optional filename), optional
// Content-Type, a blank line, the content, repeated per part, terminated by
// \r\n--boundary--\r\n.
func encodeMultipart(parts []MultipartPart, boundary string) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.WriteString("--")
		buf.WriteString(boundary)
		buf.WriteString("\r\n")

		buf.WriteString(`Content-Disposition: form-data; name="`)
		buf.WriteString(p.Name)
		buf.WriteByte('"')
		if p.Filename != "" {
			buf.WriteString(`; filename="`)
			buf.WriteString(p.Filename)
			buf.WriteByte('"')
		}
		buf.WriteString("\r\n")

		if p.ContentType != "" {
			buf.WriteString("Content-Type: ")
			buf.WriteString(p.ContentType)
			buf.WriteString("\r\n")
		}
		buf.WriteString("\r\n")
		buf.Write(p.Content)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--")
	buf.WriteString(boundary)
	buf.WriteString("--\r\n")
	return buf.Bytes(), nil
}
