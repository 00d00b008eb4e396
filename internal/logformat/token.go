/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logformat tokenizes a log-format spec string (e.g. the COMBINED
// template) into an ordered list of literal and specifier tokens (§4.1a).
package logformat

import (
	"errors"
	"fmt"
)

// Specifier identifies one of the recognized %X format directives.
type Specifier byte

const (
	SpecHost       Specifier = 'h'
	SpecSkip       Specifier = '^'
	SpecDate       Specifier = 'd'
	SpecTime       Specifier = 't'
	SpecRequest    Specifier = 'r'
	SpecMethod     Specifier = 'm'
	SpecURL        Specifier = 'U'
	SpecProtocol   Specifier = 'H'
	SpecQueryStr   Specifier = 'q'
	SpecStatus     Specifier = 's'
	SpecRespSize   Specifier = 'b'
	SpecReferrer   Specifier = 'R'
	SpecUserAgent  Specifier = 'u'
	SpecVHost      Specifier = 'v'
	SpecRemoteUser Specifier = 'e'
	SpecServeUsec  Specifier = 'D'
	SpecServeSec   Specifier = 'T'
	SpecServeMilli Specifier = 'L'
	SpecCacheStat  Specifier = 'C'
	SpecDateTime   Specifier = 'x'
	SpecLiteralSp  Specifier = '~'
)

var knownSpecifiers = map[Specifier]bool{
	SpecHost: true, SpecSkip: true, SpecDate: true, SpecTime: true,
	SpecRequest: true, SpecMethod: true, SpecURL: true, SpecProtocol: true,
	SpecQueryStr: true, SpecStatus: true, SpecRespSize: true, SpecReferrer: true,
	SpecUserAgent: true, SpecVHost: true, SpecRemoteUser: true, SpecServeUsec: true,
	SpecServeSec: true, SpecServeMilli: true, SpecCacheStat: true, SpecDateTime: true,
	SpecLiteralSp: true,
}

// TokenKind distinguishes a literal run of bytes from a specifier slot.
type TokenKind int

const (
	KindLiteral TokenKind = iota
	KindSpecifier
)

// Token is one element of a tokenized format spec.
type Token struct {
	Kind    TokenKind
	Literal []byte    // valid when Kind == KindLiteral
	Spec    Specifier // valid when Kind == KindSpecifier
	Quoted  bool       // true if this specifier was wrapped in "..."
	// Delim is the literal byte sequence that terminates this field when
	// reading a raw line (normally the following literal token's leading
	// bytes, or the closing quote for a Quoted specifier).
	Delim []byte
}

var (
	ErrUnknownSpecifier  = errors.New("logformat: unknown %% specifier")
	ErrDanglingPercent   = errors.New("logformat: dangling %% at end of format")
	ErrUnterminatedQuote = errors.New("logformat: unterminated quoted specifier")
)

// Tokenize splits a format spec into an ordered list of literal and
// specifier tokens, resolving the delimiter that terminates each specifier
// field. The `\t` escape stands for one literal tab byte.
func Tokenize(format string) ([]Token, error) {
	raw := []byte(unescapeTabs(format))
	var toks []Token
	var litBuf []byte

	flushLiteral := func() {
		if len(litBuf) > 0 {
			toks = append(toks, Token{Kind: KindLiteral, Literal: append([]byte(nil), litBuf...)})
			litBuf = nil
		}
	}

	i := 0
	for i < len(raw) {
		c := raw[i]
		if c != '%' {
			litBuf = append(litBuf, c)
			i++
			continue
		}
		// c == '%'
		if i+1 >= len(raw) {
			return nil, ErrDanglingPercent
		}
		spec := Specifier(raw[i+1])
		if !knownSpecifiers[spec] {
			return nil, fmt.Errorf("%w: %%%c", ErrUnknownSpecifier, spec)
		}
		quoted := len(litBuf) > 0 && litBuf[len(litBuf)-1] == '"'
		flushLiteral()
		i += 2

		var delim []byte
		if quoted {
			// scan ahead for the closing quote, which the caller will also
			// emit as the next literal token.
			if i >= len(raw) || raw[i] != '"' {
				// not immediately closed: the delimiter is still the next
				// unescaped quote byte.
			}
			delim = []byte(`"`)
		} else if i < len(raw) {
			// delimiter is the next literal run up to the following '%' (or
			// end of string).
			j := i
			for j < len(raw) && raw[j] != '%' {
				j++
			}
			delim = append([]byte(nil), raw[i:j]...)
		}

		toks = append(toks, Token{Kind: KindSpecifier, Spec: spec, Quoted: quoted, Delim: delim})
	}
	flushLiteral()
	return toks, nil
}

func unescapeTabs(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == 't' {
			out = append(out, '\t')
			i++
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
