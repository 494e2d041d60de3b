// Package textenc converts document bytes between a configured character
// encoding and UTF-8. Names follow the WHATWG encoding labels ("utf-8",
// "iso-8859-1", "windows-1252", "shift_jis", ...).
package textenc

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultName is used when no encoding is configured.
const DefaultName = "utf-8"

// Lookup returns the encoding registered under name.
func Lookup(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// Canonical returns the canonical label for name, e.g. "latin1" -> "windows-1252".
func Canonical(name string) (string, error) {
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return htmlindex.Name(enc)
}

// Decode converts b from the named encoding to UTF-8.
func Decode(name string, b []byte) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if isUTF8(enc) {
		return b, nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

// Encode converts UTF-8 b into the named encoding.
func Encode(name string, b []byte) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if isUTF8(enc) {
		return b, nil
	}
	out, err := encoding.HTMLEscapeUnsupported(enc.NewEncoder()).Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return out, nil
}

func isUTF8(enc encoding.Encoding) bool {
	n, err := htmlindex.Name(enc)
	return err == nil && n == "utf-8"
}
