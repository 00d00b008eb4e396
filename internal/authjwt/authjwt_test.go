/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package authjwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("host.example.com", "s3cr3t", time.Minute)
	tok, err := iss.Issue("client-1")
	require.NoError(t, err)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "client-1", claims.Subject)
	require.Equal(t, "host.example.com", claims.Issuer)
	require.Equal(t, Scope, claims.Scope)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	iss := NewIssuer("host.example.com", "s3cr3t", time.Minute)
	tok, err := iss.Issue("client-1")
	require.NoError(t, err)

	other := NewIssuer("host.example.com", "other-secret", time.Minute)
	_, err = other.Verify(tok)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := &Issuer{hostname: "host.example.com", secret: []byte("s3cr3t"), expiry: -time.Second}
	tok, err := iss.Issue("client-1")
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	require.Error(t, err)
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	iss := NewIssuer("host.example.com", "s3cr3t", time.Minute)
	_, err := iss.Issue("")
	require.ErrorIs(t, err, ErrEmptySubject)
}
