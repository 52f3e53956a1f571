package jsdump

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// SyntaxError describes malformed input and the byte offset it was found at.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jsdump: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error {
	return apperrors.ErrInvalidIndex
}

// Decode reads a whole payload from r. The Search.setIndex( wrapper and a
// trailing semicolon are optional, so strict JSON is accepted as well.
func Decode(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal parses a payload held in memory.
func Unmarshal(data []byte) (any, error) {
	body, base := unwrap(data)
	d := &decoder{data: body, base: base}
	d.skipSpace()
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	d.skipSpace()
	if d.pos < len(d.data) {
		return nil, d.errorf("unexpected trailing data %q", d.peekSnippet())
	}
	return v, nil
}

func unwrap(data []byte) ([]byte, int) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	start := len(data) - len(trimmed)
	if !bytes.HasPrefix(trimmed, []byte(Prefix)) {
		return data, 0
	}
	start += len(Prefix)
	body := bytes.TrimRight(data[start:], " \t\r\n;")
	body = bytes.TrimSuffix(body, []byte(Suffix))
	return body, start
}

type decoder struct {
	data []byte
	pos  int
	base int
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: d.base + d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) peekSnippet() string {
	end := d.pos + 16
	if end > len(d.data) {
		end = len(d.data)
	}
	return string(d.data[d.pos:end])
}

func (d *decoder) skipSpace() {
	for d.pos < len(d.data) {
		switch d.data[d.pos] {
		case ' ', '\t', '\r', '\n':
			d.pos++
		default:
			return
		}
	}
}

func (d *decoder) value() (any, error) {
	if d.pos >= len(d.data) {
		return nil, d.errorf("unexpected end of input")
	}
	switch c := d.data[d.pos]; {
	case c == '{':
		return d.object()
	case c == '[':
		return d.array()
	case c == '"' || c == '\'':
		return d.str()
	case c == '-' || (c >= '0' && c <= '9'):
		return d.number()
	case isIdentStart(c):
		ident := d.ident()
		switch ident {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return nil, d.errorf("unexpected identifier %q", ident)
	default:
		return nil, d.errorf("unexpected character %q", c)
	}
}

func (d *decoder) object() (map[string]any, error) {
	d.pos++
	obj := make(map[string]any)
	d.skipSpace()
	if d.pos < len(d.data) && d.data[d.pos] == '}' {
		d.pos++
		return obj, nil
	}
	for {
		d.skipSpace()
		key, err := d.key()
		if err != nil {
			return nil, err
		}
		d.skipSpace()
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		d.skipSpace()
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		obj[key] = v
		d.skipSpace()
		if d.pos >= len(d.data) {
			return nil, d.errorf("unterminated object")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
		case '}':
			d.pos++
			return obj, nil
		default:
			return nil, d.errorf("expected ',' or '}' in object, found %q", d.data[d.pos])
		}
	}
}

func (d *decoder) key() (string, error) {
	if d.pos >= len(d.data) {
		return "", d.errorf("unexpected end of input in object key")
	}
	c := d.data[d.pos]
	switch {
	case c == '"' || c == '\'':
		return d.str()
	case isIdentStart(c):
		return d.ident(), nil
	case c >= '0' && c <= '9':
		start := d.pos
		for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
			d.pos++
		}
		return string(d.data[start:d.pos]), nil
	default:
		return "", d.errorf("invalid object key starting with %q", c)
	}
}

func (d *decoder) array() ([]any, error) {
	d.pos++
	arr := make([]any, 0, 4)
	d.skipSpace()
	if d.pos < len(d.data) && d.data[d.pos] == ']' {
		d.pos++
		return arr, nil
	}
	for {
		d.skipSpace()
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
		d.skipSpace()
		if d.pos >= len(d.data) {
			return nil, d.errorf("unterminated array")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			return arr, nil
		default:
			return nil, d.errorf("expected ',' or ']' in array, found %q", d.data[d.pos])
		}
	}
}

func (d *decoder) expect(c byte) error {
	if d.pos >= len(d.data) || d.data[d.pos] != c {
		if d.pos >= len(d.data) {
			return d.errorf("expected %q, found end of input", c)
		}
		return d.errorf("expected %q, found %q", c, d.data[d.pos])
	}
	d.pos++
	return nil
}

func (d *decoder) ident() string {
	start := d.pos
	for d.pos < len(d.data) && (isIdentStart(d.data[d.pos]) || (d.data[d.pos] >= '0' && d.data[d.pos] <= '9')) {
		d.pos++
	}
	return string(d.data[start:d.pos])
}

func (d *decoder) number() (any, error) {
	start := d.pos
	isFloat := false
	if d.data[d.pos] == '-' {
		d.pos++
	}
	for d.pos < len(d.data) && d.isNumberByte(d.data[d.pos]) {
		if c := d.data[d.pos]; c == '.' || c == 'e' || c == 'E' {
			isFloat = true
		}
		d.pos++
	}
	lit := string(d.data[start:d.pos])
	if !isFloat {
		if n, err := strconv.Atoi(lit); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		d.pos = start
		return nil, d.errorf("invalid number %q", lit)
	}
	return f, nil
}

func (d *decoder) isNumberByte(c byte) bool {
	switch {
	case c >= '0' && c <= '9', c == '.', c == 'e', c == 'E':
		return true
	case c == '+' || c == '-':
		prev := d.data[d.pos-1]
		return prev == 'e' || prev == 'E'
	}
	return false
}

func (d *decoder) str() (string, error) {
	quote := d.data[d.pos]
	d.pos++
	var sb strings.Builder
	for {
		if d.pos >= len(d.data) {
			return "", d.errorf("unterminated string")
		}
		c := d.data[d.pos]
		switch {
		case c == quote:
			d.pos++
			return sb.String(), nil
		case c == '\\':
			d.pos++
			if d.pos >= len(d.data) {
				return "", d.errorf("unterminated escape")
			}
			esc := d.data[d.pos]
			d.pos++
			switch esc {
			case '"', '\'', '\\', '/':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'u':
				r, err := d.hex4()
				if err != nil {
					return "", err
				}
				if utf16.IsSurrogate(r) && d.pos+1 < len(d.data) && d.data[d.pos] == '\\' && d.data[d.pos+1] == 'u' {
					d.pos += 2
					r2, err := d.hex4()
					if err != nil {
						return "", err
					}
					r = utf16.DecodeRune(r, r2)
				}
				sb.WriteRune(r)
			default:
				return "", d.errorf("invalid escape '\\%c'", esc)
			}
		default:
			r, size := utf8.DecodeRune(d.data[d.pos:])
			sb.WriteRune(r)
			d.pos += size
		}
	}
}

func (d *decoder) hex4() (rune, error) {
	if d.pos+4 > len(d.data) {
		return 0, d.errorf("truncated unicode escape")
	}
	n, err := strconv.ParseUint(string(d.data[d.pos:d.pos+4]), 16, 32)
	if err != nil {
		return 0, d.errorf("invalid unicode escape %q", d.data[d.pos:d.pos+4])
	}
	d.pos += 4
	return rune(n), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
