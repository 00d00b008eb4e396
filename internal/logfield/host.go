/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfield

import "net"

// validateHost attempts an IPv4 parse, then an IPv6 parse, then (when
// hostnames are allowed) accepts any non-empty token as a hostname (§4.1b).
func validateHost(token string, allowHostnames bool) (string, error) {
	if token == "" {
		return "", ErrBadHost
	}
	if ip := net.ParseIP(token); ip != nil {
		return token, nil
	}
	if allowHostnames {
		return token, nil
	}
	return "", ErrBadHost
}
