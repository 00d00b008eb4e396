/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "COMBINED", cfg.Global.Log_Format)
	require.True(t, cfg.Global.Code_444_As_404)
	require.Equal(t, DefaultMaxChoices, cfg.Global.Max_Choices)
	require.Equal(t, DefaultDNSCacheSize, cfg.Global.Dns_Cache_Size)
	require.Equal(t, DefaultWSAuthExpire, cfg.Global.Ws_Auth_Expire)
	require.Equal(t, "127.0.0.1:7890", cfg.Global.Ws_Url)
}

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "webtrail.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeTempConfig(t, `
[global]
log-file=/var/log/access.log
log-format=COMBINED
ws-url=0.0.0.0:9999
exclude-ip=10.0.0.0/8
exclude-ip=192.168.1.1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/log/access.log", cfg.Global.Log_File)
	require.Equal(t, "0.0.0.0:9999", cfg.Global.Ws_Url)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.Global.Exclude_Ip)
	// untouched fields keep their Defaults() values
	require.Equal(t, DefaultMaxChoices, cfg.Global.Max_Choices)
}

func TestLoadMissingLogFileFails(t *testing.T) {
	path := writeTempConfig(t, `
[global]
ws-url=127.0.0.1:7890
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoLogFile)
}

func TestVerifyBadWSURL(t *testing.T) {
	cfg := Defaults()
	cfg.Global.Log_File = "-"
	cfg.Global.Ws_Url = "not-a-host-port"
	require.ErrorIs(t, cfg.Verify(), ErrBadWSURL)
}

func TestVerifyEmptyWSURL(t *testing.T) {
	cfg := Defaults()
	cfg.Global.Log_File = "-"
	cfg.Global.Ws_Url = ""
	require.ErrorIs(t, cfg.Verify(), ErrBadWSURL)
}

func TestVerifyTLSCertWithoutKey(t *testing.T) {
	cfg := Defaults()
	cfg.Global.Log_File = "-"
	cfg.Global.Ssl_Cert = "/etc/webtrail/cert.pem"
	require.ErrorIs(t, cfg.Verify(), ErrTLSCertWithoutKey)
}

func TestVerifyFillsZeroDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Global.Log_File = "-"
	cfg.Global.Max_Choices = 0
	cfg.Global.Dns_Cache_Size = 0
	cfg.Global.Ws_Auth_Expire = 0

	require.NoError(t, cfg.Verify())
	require.Equal(t, DefaultMaxChoices, cfg.Global.Max_Choices)
	require.Equal(t, DefaultDNSCacheSize, cfg.Global.Dns_Cache_Size)
	require.Equal(t, DefaultWSAuthExpire, cfg.Global.Ws_Auth_Expire)
}

func TestWSAuthExpireDuration(t *testing.T) {
	g := Global{Ws_Auth_Expire: 45}
	require.Equal(t, 45*1e9, float64(g.WSAuthExpireDuration()))
}

func TestSortPanelsParsesValidEntries(t *testing.T) {
	g := Global{Sort_Panel: []string{"VISITORS, hits, desc", "OS,visitors,asc"}}
	panels, errs := g.SortPanels()
	require.Empty(t, errs)
	require.Equal(t, []SortPanel{
		{Module: "VISITORS", Field: "hits", Order: "desc"},
		{Module: "OS", Field: "visitors", Order: "asc"},
	}, panels)
}

func TestSortPanelsReportsMalformedEntry(t *testing.T) {
	g := Global{Sort_Panel: []string{"VISITORS,hits,desc", "bad-entry"}}
	panels, errs := g.SortPanels()
	require.Len(t, panels, 1)
	require.Len(t, errs, 1)
}

func TestApplyEnvOverridesSecret(t *testing.T) {
	t.Setenv(envWSAuthSecret, "from-env")
	cfg := Defaults()
	cfg.Global.Ws_Auth_Secret = "from-file"
	require.NoError(t, cfg.applyEnv())
	require.Equal(t, "from-env", cfg.Global.Ws_Auth_Secret)
}

func TestParseUintHexAndDecimal(t *testing.T) {
	v, err := ParseUint("0x1F")
	require.NoError(t, err)
	require.EqualValues(t, 31, v)

	v, err = ParseUint("42")
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
}
