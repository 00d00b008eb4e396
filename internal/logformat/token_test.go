/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeCommon(t *testing.T) {
	toks, err := Tokenize(predefinedSpecs[Common])
	require.NoError(t, err)

	var specs []Specifier
	for _, tok := range toks {
		if tok.Kind == KindSpecifier {
			specs = append(specs, tok.Spec)
		}
	}
	require.Equal(t, []Specifier{SpecHost, SpecSkip, SpecDate, SpecTime, SpecSkip, SpecRequest, SpecStatus, SpecRespSize}, specs)
}

func TestTokenizeQuotedFieldsMarkedQuoted(t *testing.T) {
	toks, err := Tokenize(`"%r" %s`)
	require.NoError(t, err)
	require.True(t, toks[0].Kind == KindLiteral)
	require.Equal(t, `"`, string(toks[0].Literal))
	require.Equal(t, KindSpecifier, toks[1].Kind)
	require.True(t, toks[1].Quoted)
	require.Equal(t, []byte(`"`), toks[1].Delim)
}

func TestTokenizeUnknownSpecifier(t *testing.T) {
	_, err := Tokenize(`%Z`)
	require.ErrorIs(t, err, ErrUnknownSpecifier)
}

func TestTokenizeDanglingPercent(t *testing.T) {
	_, err := Tokenize(`abc%`)
	require.ErrorIs(t, err, ErrDanglingPercent)
}

func TestTokenizeTabEscape(t *testing.T) {
	toks, err := Tokenize(`%d\t%t`)
	require.NoError(t, err)
	require.Equal(t, KindSpecifier, toks[0].Kind)
	require.Equal(t, []byte("\t"), toks[0].Delim)
}

func TestResolvePredefinedName(t *testing.T) {
	require.Equal(t, predefinedSpecs[Combined], Resolve(Combined))
	require.Equal(t, "%h custom", Resolve("%h custom"))
}
