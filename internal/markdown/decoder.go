package markdown

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"mdnotes/internal/common"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the single character encoding a deployment accepts.
type Encoding string

const (
	UTF8    Encoding = "utf-8"
	UTF16LE Encoding = "utf-16le"
	UTF16BE Encoding = "utf-16be"
)

var (
	bomLE = []byte{0xFF, 0xFE}
	bomBE = []byte{0xFE, 0xFF}
)

// ParseEncoding resolves a configured encoding name.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(name))) {
	case "", UTF8, "utf8":
		return UTF8, nil
	case UTF16LE:
		return UTF16LE, nil
	case UTF16BE:
		return UTF16BE, nil
	}
	return "", fmt.Errorf("unsupported encoding %q (supported: utf-8, utf-16le, utf-16be)", name)
}

// Decoder converts uploaded bytes into text using one fixed encoding.
// It never guesses: bytes that do not fit the configured encoding are rejected.
type Decoder struct {
	enc Encoding
}

func NewDecoder(enc Encoding) *Decoder {
	return &Decoder{enc: enc}
}

func (d *Decoder) Encoding() Encoding {
	return d.enc
}

// Decode returns the text held in data. A byte-order mark matching the
// configured encoding is dropped. Failures wrap common.ErrDecode.
func (d *Decoder) Decode(data []byte) (string, error) {
	switch d.enc {
	case UTF16LE:
		return decodeUTF16(data, binary.LittleEndian, bomLE, bomBE, unicode.LittleEndian)
	case UTF16BE:
		return decodeUTF16(data, binary.BigEndian, bomBE, bomLE, unicode.BigEndian)
	default:
		return decodeUTF8(data)
	}
}

func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: invalid utf-8 sequence", common.ErrDecode)
	}
	return transformString(unicode.UTF8BOM, data)
}

func decodeUTF16(data []byte, order binary.ByteOrder, bom, reversed []byte, endian unicode.Endianness) (string, error) {
	if len(data)%2 != 0 {
		return "", fmt.Errorf("%w: truncated utf-16 sequence (%d bytes)", common.ErrDecode, len(data))
	}
	if bytes.HasPrefix(data, reversed) {
		return "", fmt.Errorf("%w: byte order mark does not match the configured encoding", common.ErrDecode)
	}
	data = bytes.TrimPrefix(data, bom)

	if i := unpairedSurrogate(data, order); i >= 0 {
		return "", fmt.Errorf("%w: unpaired utf-16 surrogate at byte %d", common.ErrDecode, i)
	}
	return transformString(unicode.UTF16(endian, unicode.IgnoreBOM), data)
}

// unpairedSurrogate returns the byte index of the first lone surrogate, or -1.
func unpairedSurrogate(data []byte, order binary.ByteOrder) int {
	for i := 0; i < len(data); i += 2 {
		u := order.Uint16(data[i:])
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+2 >= len(data) {
				return i
			}
			next := order.Uint16(data[i+2:])
			if next < 0xDC00 || next > 0xDFFF {
				return i
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return i
		}
	}
	return -1
}

func transformString(enc encoding.Encoding, data []byte) (string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecode, err)
	}
	return string(out), nil
}
