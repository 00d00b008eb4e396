/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config is webtrail's configuration record (§6): one INI-style
// [global] section loaded with github.com/gravwell/gcfg, field-per-CLI
// option, with select secrets overlaid from the environment. Grounded on
// the teacher's config.IngestConfig / LoadConfigFile / LoadEnvVar pattern
// (config/loader.go, config/env.go in the retrieval pack) — the loader
// mechanics are reused verbatim in spirit; the field set is rebuilt from
// scratch for this tool's CLI surface.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gravwell/gcfg"
)

const (
	envWSAuthSecret = "WEBTRAIL_WS_AUTH_SECRET"
	envGeoIPDBPath  = "WEBTRAIL_GEOIP_DB_PATH"

	// DefaultMaxChoices is MAX_CHOICES (§4.4, §6).
	DefaultMaxChoices = 366
	// DefaultDNSCacheSize is the DNS resolver queue capacity (§4.6, §6).
	DefaultDNSCacheSize = 400
	// DefaultWSAuthExpire is --ws-auth-expire's default, in seconds (§6).
	DefaultWSAuthExpire = 1800
	// DefaultEmitInterval is the broadcaster's emission tick (§4.5).
	DefaultEmitInterval = time.Second
)

var (
	ErrNoLogFile         = errors.New("config: log-file is required (use \"-\" for stdin)")
	ErrBadLogFormat      = errors.New("config: log-format is required")
	ErrBadWSURL          = errors.New("config: ws-url must be host:port")
	ErrTLSCertWithoutKey = errors.New("config: ssl-cert and ssl-key must both be set or both be empty")
)

// SortPanel is one parsed --sort-panel=MODULE,FIELD,ORDER entry (§6).
type SortPanel struct {
	Module string
	Field  string
	Order  string
}

// Global is the [global] section of the INI config file; field names map
// to dashed CLI flags via gcfg's default name mapper (Log_File <->
// log-file, §6).
type Global struct {
	// Input
	Log_File    string // --log-file; "-" means stdin
	Log_Format  string // --log-format: a predefined name or a literal spec
	Date_Format string // --date-format
	Time_Format string // --time-format

	// Field parsing policy (§4.1b)
	No_Query_String  bool     // --no-query-string
	Double_Decode    bool     // not in the enumerated CLI list but needed by §4.1b; config-only
	Code_444_As_404  bool     // --444-as-404 / --no-444-as-404 (§3a); default true, see Defaults
	Http_Method      string   // --http-method; loaded but not passed to the parser, which reads the method from %m/%r only
	Http_Protocol    string   // --http-protocol; loaded but not passed to the parser, which reads the protocol from %H/%r only
	Static_File_Exts []string // whitelist extension for REQUESTS_STATIC classification

	// Ignore rules (§4.1b)
	Exclude_Ip      []string // --exclude-ip, may repeat, CIDR or bare IP
	Ignore_Referer  []string // --ignore-referer, may repeat, glob pattern
	Ignore_Panel    []string // --ignore-panel, may repeat, module name
	Ignore_Crawlers bool

	// Classification (§4.3)
	Real_Os         bool   // --real-os
	Agent_List      bool   // --agent-list (§3a: really populates HostAgentsSet)
	Geoip_Database  string // --geoip-database
	Browser_Db_File string // user-supplied browser table extension path
	Os_Db_File      string // user-supplied OS table extension path

	// Resolver (§4.6)
	No_Term_Resolver bool     // --no-term-resolver
	Dns_Server       []string // --dns-server, may repeat
	Dns_Cache_Size   int      // --dns-cache-size

	// Holder / sort (§4.4, §6)
	Max_Choices int      // MAX_CHOICES override
	Sort_Panel  []string // raw --sort-panel=MODULE,FIELD,ORDER entries, parsed by SortPanels()

	// Broadcast (§4.5)
	Ws_Url         string // --ws-url=HOST:PORT
	Origin         string // --origin
	Port           int    // --port; loaded but not read: the listen port comes from Ws_Url only
	Ssl_Cert       string // --ssl-cert
	Ssl_Key        string // --ssl-key
	Fifo_In        string // --fifo-in
	Fifo_Out       string // --fifo-out
	Snappy_Fifo    bool   // --snappy-fifo
	Ws_Auth_Secret string // --ws-auth-secret (overridable by WEBTRAIL_WS_AUTH_SECRET)
	Ws_Auth_Expire int    // --ws-auth-expire, seconds

	// Persistence (§4.2a, §6)
	Persist_Path string // --persist-path

	// Ambient / misc
	Log_Level    string // applog level name
	Output_Log   string // optional log file, in addition to stderr
	No_Color     bool   // --no-color: accepted for CLI parity, irrelevant (no TUI here)
	No_Progress  bool   // --no-progress: accepted for CLI parity, irrelevant (no TUI here)
	Color_Scheme int    // --color-scheme: accepted for CLI parity, irrelevant (no TUI here)
}

// Config is the top-level INI document; gcfg requires every mapped field
// to live under a named section.
type Config struct {
	Global Global
}

// Defaults returns a Config with every default value from §6 applied,
// suitable as the starting point before a config file is loaded over it.
func Defaults() *Config {
	return &Config{Global: Global{
		Log_Format:      "COMBINED",
		Date_Format:     "%d/%b/%Y",
		Time_Format:     "%H:%M:%S",
		Code_444_As_404: true,
		Ignore_Crawlers: false,
		Dns_Cache_Size:  DefaultDNSCacheSize,
		Max_Choices:     DefaultMaxChoices,
		Ws_Url:          "127.0.0.1:7890",
		Ws_Auth_Expire:  DefaultWSAuthExpire,
		Log_Level:       "ERROR",
	}}
}

// Load reads path as a gcfg INI document over the defaults and applies
// the environment-variable secret overlay, then verifies the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses the INI file at path into cfg, overwriting only the
// fields the file sets (gcfg.ReadStringInto leaves zero-valued fields
// untouched, the same accumulate-over-defaults behavior the teacher's
// LoadConfigFile/LoadConfigBytes pair relies on; read-then-ReadStringInto
// is the pattern every config.go in the retrieval pack uses, rather than
// a ReadFileInto entry point).
func LoadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return gcfg.ReadStringInto(cfg, string(b))
}

// applyEnv overlays secret-shaped fields from the environment, mirroring
// the teacher's LoadEnvVar: only set the field when the file left it
// empty, so an explicit config-file value always wins over an ambient
// environment default... except here the direction is reversed to match
// the common "never put secrets in a file" operational practice: the env
// var wins when present, the same way the teacher's ingest secret works.
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(envWSAuthSecret); ok {
		c.Global.Ws_Auth_Secret = v
	}
	if v, ok := os.LookupEnv(envGeoIPDBPath); ok {
		c.Global.Geoip_Database = v
	}
	return nil
}

// Verify checks cross-field invariants and fills in any remaining
// zero-valued defaults that Defaults() alone can't express (e.g. fields
// gcfg parsing cleared back to zero when a file is loaded with a partial
// [global] section covering only some keys — not actually possible with
// gcfg's accumulate semantics, but Verify is still the single place
// config-level ConfigError (§7) is raised).
func (c *Config) Verify() error {
	g := &c.Global

	if g.Log_File == "" {
		return ErrNoLogFile
	}
	if g.Log_Format == "" {
		return ErrBadLogFormat
	}
	if g.Max_Choices <= 0 {
		g.Max_Choices = DefaultMaxChoices
	}
	if g.Dns_Cache_Size <= 0 {
		g.Dns_Cache_Size = DefaultDNSCacheSize
	}
	if g.Ws_Auth_Expire <= 0 {
		g.Ws_Auth_Expire = DefaultWSAuthExpire
	}
	if (g.Ssl_Cert == "") != (g.Ssl_Key == "") {
		return ErrTLSCertWithoutKey
	}
	if g.Ws_Url == "" {
		return ErrBadWSURL
	} else if !strings.Contains(g.Ws_Url, ":") {
		return ErrBadWSURL
	}
	return nil
}

// WSAuthExpireDuration returns Ws_Auth_Expire as a time.Duration.
func (g Global) WSAuthExpireDuration() time.Duration {
	return time.Duration(g.Ws_Auth_Expire) * time.Second
}

// SortPanels parses every --sort-panel entry into a SortPanel, skipping
// (and the caller should log) any malformed one.
func (g Global) SortPanels() ([]SortPanel, []error) {
	var out []SortPanel
	var errs []error
	for _, raw := range g.Sort_Panel {
		parts := strings.Split(raw, ",")
		if len(parts) != 3 {
			errs = append(errs, fmt.Errorf("config: bad --sort-panel entry %q", raw))
			continue
		}
		out = append(out, SortPanel{
			Module: strings.TrimSpace(parts[0]),
			Field:  strings.TrimSpace(parts[1]),
			Order:  strings.TrimSpace(parts[2]),
		})
	}
	return out, errs
}

// ParseUint is a small helper retained from the teacher's config/parse.go
// ParseInt64/ParseUint64 pair (hex/decimal auto-detect), used by callers
// that need to accept either base from a config value.
func ParseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
