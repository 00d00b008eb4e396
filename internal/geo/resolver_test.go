/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNopResolverAlwaysMisses(t *testing.T) {
	var r Resolver = NopResolver{}
	_, err := r.Lookup("8.8.8.8")
	require.ErrorIs(t, err, ErrNoRecord)
	require.NoError(t, r.Close())
}

func TestLegacyResolverUnsupported(t *testing.T) {
	_, err := NewLegacyResolver("/tmp/GeoIP.dat")
	require.Error(t, err)
}
