// Package signer canonicalizes flat parameter sets and signs them with HMAC-SHA512.
//
// Canonical form: keys sorted byte-wise, values percent-encoded the way
// encodeURIComponent encodes them, pairs joined as key=value with '&'.
// Signing and verification share Canonicalize, so the signed bytes never drift.
package signer

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Params is a flat gateway parameter set.
type Params map[string]string

// SetInt stores an integer value in its decimal form.
func (p Params) SetInt(key string, v int64) {
	p[key] = strconv.FormatInt(v, 10)
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type Signer struct {
	secret        []byte
	signatureKeys []string
}

// New returns a Signer keyed with secret. signatureKeys are dropped from any
// parameter set before it is signed or verified.
func New(secret string, signatureKeys ...string) *Signer {
	return &Signer{
		secret:        []byte(secret),
		signatureKeys: append([]string(nil), signatureKeys...),
	}
}

// Canonicalize renders p in canonical form.
func Canonicalize(p Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Escape(p[k]))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA512 of the canonical form of p.
func (s *Signer) Sign(p Params) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(Canonicalize(s.strip(p))))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether claimed is the signature of p. It never panics;
// an empty or non-hex claim is simply a mismatch.
func (s *Signer) Verify(p Params, claimed string) bool {
	if claimed == "" {
		return false
	}
	want, err := hex.DecodeString(strings.ToLower(claimed))
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(Canonicalize(s.strip(p))))
	return hmac.Equal(mac.Sum(nil), want)
}

func (s *Signer) strip(p Params) Params {
	if len(s.signatureKeys) == 0 {
		return p
	}
	out := p.Clone()
	for _, k := range s.signatureKeys {
		delete(out, k)
	}
	return out
}

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes v, leaving A-Z a-z 0-9 and - _ . ! ~ * ' ( ) as is.
func Escape(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
