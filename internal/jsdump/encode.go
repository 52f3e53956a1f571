// Package jsdump reads and writes the compact JavaScript object-literal
// dialect used by documentation generators for search index payloads.
//
// Values are the generic tree produced by Decode: nil, bool, int, float64,
// string, []any and map[string]any. Object keys are emitted bare when they
// are plain identifiers and quoted otherwise; entries are always sorted so
// the output is byte-for-byte reproducible.
package jsdump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Prefix and Suffix wrap the payload so the widget can load it as a script.
const (
	Prefix = "Search.setIndex("
	Suffix = ")"
)

var reservedWords = map[string]struct{}{
	"abstract": {}, "else": {}, "instanceof": {}, "switch": {},
	"boolean": {}, "enum": {}, "int": {}, "synchronized": {},
	"break": {}, "export": {}, "interface": {}, "this": {},
	"byte": {}, "extends": {}, "long": {}, "throw": {},
	"case": {}, "false": {}, "native": {}, "throws": {},
	"catch": {}, "final": {}, "new": {}, "transient": {},
	"char": {}, "finally": {}, "null": {}, "true": {},
	"class": {}, "float": {}, "package": {}, "try": {},
	"const": {}, "for": {}, "private": {}, "typeof": {},
	"continue": {}, "function": {}, "protected": {}, "var": {},
	"debugger": {}, "goto": {}, "public": {}, "void": {},
	"default": {}, "if": {}, "return": {}, "volatile": {},
	"delete": {}, "implements": {}, "short": {}, "while": {},
	"do": {}, "import": {}, "static": {}, "with": {},
	"double": {}, "in": {}, "super": {},
}

// Encode writes v wrapped in Search.setIndex(...).
func Encode(w io.Writer, v any) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Prefix); err != nil {
		return err
	}
	if err := encodeValue(bw, v); err != nil {
		return err
	}
	if _, err := bw.WriteString(Suffix); err != nil {
		return err
	}
	return bw.Flush()
}

// Marshal returns the bare literal for v, without the Search.setIndex wrapper.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := encodeValue(bw, v); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(w *bufio.Writer, v any) error {
	switch val := v.(type) {
	case nil:
		_, err := w.WriteString("null")
		return err
	case bool:
		if val {
			_, err := w.WriteString("true")
			return err
		}
		_, err := w.WriteString("false")
		return err
	case int:
		_, err := w.WriteString(strconv.Itoa(val))
		return err
	case int64:
		_, err := w.WriteString(strconv.FormatInt(val, 10))
		return err
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("jsdump: unsupported number %v", val)
		}
		_, err := w.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		return err
	case string:
		return encodeString(w, val)
	case []int:
		if err := w.WriteByte('['); err != nil {
			return err
		}
		for i, n := range val {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := w.WriteString(strconv.Itoa(n)); err != nil {
				return err
			}
		}
		return w.WriteByte(']')
	case []string:
		if err := w.WriteByte('['); err != nil {
			return err
		}
		for i, s := range val {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if err := encodeString(w, s); err != nil {
				return err
			}
		}
		return w.WriteByte(']')
	case []any:
		if err := w.WriteByte('['); err != nil {
			return err
		}
		for i, item := range val {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if err := encodeValue(w, item); err != nil {
				return err
			}
		}
		return w.WriteByte(']')
	case map[string]any:
		// Entries are ordered by their encoded "key:" prefix, which puts
		// quoted keys ahead of bare ones the way the generator does.
		keys := make([]string, 0, len(val))
		encoded := make(map[string]string, len(val))
		for k := range val {
			keys = append(keys, k)
			encoded[k] = encodeKey(k) + ":"
		}
		sort.Slice(keys, func(i, j int) bool {
			return encoded[keys[i]] < encoded[keys[j]]
		})
		if err := w.WriteByte('{'); err != nil {
			return err
		}
		for i, k := range keys {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := w.WriteString(encoded[k]); err != nil {
				return err
			}
			if err := encodeValue(w, val[k]); err != nil {
				return fmt.Errorf("encoding key %q: %w", k, err)
			}
		}
		return w.WriteByte('}')
	default:
		return fmt.Errorf("jsdump: unsupported type %T", v)
	}
}

func encodeKey(key string) string {
	if IsBareKey(key) {
		return key
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	// Writes into a bytes.Buffer cannot fail.
	_ = encodeString(bw, key)
	_ = bw.Flush()
	return buf.String()
}

// IsBareKey reports whether key can be written without quotes: an ASCII
// identifier that is not a reserved word.
func IsBareKey(key string) bool {
	if key == "" {
		return false
	}
	if _, reserved := reservedWords[key]; reserved {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

const hexDigits = "0123456789abcdef"

func encodeString(w *bufio.Writer, s string) error {
	if err := w.WriteByte('"'); err != nil {
		return err
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		var err error
		switch {
		case r == '"':
			_, err = w.WriteString(`\"`)
		case r == '\\':
			_, err = w.WriteString(`\\`)
		case r == '\n':
			_, err = w.WriteString(`\n`)
		case r == '\r':
			_, err = w.WriteString(`\r`)
		case r == '\t':
			_, err = w.WriteString(`\t`)
		case r == '\b':
			_, err = w.WriteString(`\b`)
		case r == '\f':
			_, err = w.WriteString(`\f`)
		case r < 0x20 || (r >= 0x7f && r <= 0xffff):
			err = writeUnicodeEscape(w, r)
		case r > 0xffff:
			r1, r2 := surrogates(r)
			if err = writeUnicodeEscape(w, r1); err == nil {
				err = writeUnicodeEscape(w, r2)
			}
		default:
			err = w.WriteByte(byte(r))
		}
		if err != nil {
			return err
		}
	}
	return w.WriteByte('"')
}

func writeUnicodeEscape(w *bufio.Writer, r rune) error {
	buf := []byte{'\\', 'u',
		hexDigits[(r>>12)&0xf], hexDigits[(r>>8)&0xf],
		hexDigits[(r>>4)&0xf], hexDigits[r&0xf],
	}
	_, err := w.Write(buf)
	return err
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}
