/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfield

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/asergeyev/nradix"
	"github.com/gobwas/glob"

	"github.com/webtrail/webtrail/internal/logformat"
	"github.com/webtrail/webtrail/internal/model"
)

// Config carries the field-level parsing and ignore-rule policy applied by
// a Parser. The zero Config is usable: dates and times use the Apache
// formats (see NewParser), no lines are ignored, and non-IP hosts are
// rejected unless AllowHostnames is set.
type Config struct {
	DateFormat string // one of %d/%b/%Y, %Y-%m-%d, %f
	TimeFormat string // %H:%M:%S or %f

	IgnoreQueryString bool
	DoubleDecode      bool
	Code444AsNotFound bool
	AllowHostnames    bool
	StaticExtensions  []string

	// IgnoreHostNets excludes any line whose host falls inside one of these
	// CIDR ranges (--exclude-ip, §4.1b/§6), matched via a radix tree the
	// same way the teacher's srcrouter processor matches a source IP
	// against its configured CIDR routes.
	IgnoreHostNets *nradix.Tree
	// IgnoreReferrers excludes any line whose referrer matches one of these
	// glob patterns (wildcard ignore-list, §4.1b).
	IgnoreReferrers []glob.Glob
	// IgnoreCrawlers, when set, excludes any line whose user agent
	// CrawlerFunc classifies as a crawler.
	IgnoreCrawlers bool
	// CrawlerFunc classifies a user-agent string; left nil, no line is ever
	// treated as a crawler. Injected rather than imported directly so this
	// package stays independent of the classification tables (§4.3).
	CrawlerFunc func(userAgent string) bool

	// Now supplies the current time for date formats that omit a year. Left
	// nil, time.Now is used.
	Now func() time.Time
}

func (c Config) staticExtensions() []string {
	if len(c.StaticExtensions) == 0 {
		return DefaultStaticExtensions
	}
	return c.StaticExtensions
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// Parser applies a tokenized log-format spec to raw lines, producing
// model.LogItem values (§4.1b).
type Parser struct {
	tokens []logformat.Token
	cfg    Config
}

// NewParser builds a Parser bound to a tokenized format and field policy.
// An empty DateFormat or TimeFormat defaults to %d/%b/%Y or %H:%M:%S.
func NewParser(tokens []logformat.Token, cfg Config) *Parser {
	if cfg.DateFormat == "" {
		cfg.DateFormat = logformat.DateApache
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = logformat.TimeDefault
	}
	return &Parser{tokens: tokens, cfg: cfg}
}

// fieldAccumulator holds the raw string values extracted from one line
// before they are cross-validated and assembled into a model.LogItem.
type fieldAccumulator struct {
	host, date, timeOfDay   string
	method, url, proto      string
	requestLine             string
	hasRequestLine          bool
	status, size            string
	referrer, userAgent     string
	vhost, remoteUser       string
	serveRaw                string
	serveSpec               logformat.Specifier
	hasServe                bool
	cacheStat               string
}

// Parse walks line against the tokenized format, left to right, and returns
// the assembled LogItem. A line excluded by a configured ignore-rule
// returns a zero LogItem and an error wrapping ErrIgnoredLine; callers must
// not count that as an invalid line.
func (p *Parser) Parse(line []byte) (model.LogItem, error) {
	var acc fieldAccumulator
	pos := 0

	for _, tok := range p.tokens {
		switch tok.Kind {
		case logformat.KindLiteral:
			if !bytes.HasPrefix(line[pos:], tok.Literal) {
				return model.LogItem{}, fmt.Errorf("%w: expected %q at offset %d", ErrLiteralMismatch, tok.Literal, pos)
			}
			pos += len(tok.Literal)
		case logformat.KindSpecifier:
			raw, newPos, err := extractField(line, pos, tok)
			if err != nil {
				return model.LogItem{}, err
			}
			pos = newPos
			if err := acc.assign(tok.Spec, raw); err != nil {
				return model.LogItem{}, err
			}
		}
	}

	return p.assemble(acc)
}

// extractField locates the raw bytes of one specifier field starting at
// pos, returning the advanced cursor position. It does not consume the
// trailing delimiter; the next literal token (if any) is expected to match
// it explicitly.
func extractField(line []byte, pos int, tok logformat.Token) (raw string, newPos int, err error) {
	if tok.Quoted {
		end := bytes.IndexByte(line[pos:], '"')
		if end < 0 {
			return "", pos, ErrUnterminatedQuote
		}
		return string(line[pos : pos+end]), pos + end, nil
	}
	if len(tok.Delim) == 0 {
		return string(line[pos:]), len(line), nil
	}
	rel := bytes.Index(line[pos:], tok.Delim)
	if rel < 0 {
		return string(line[pos:]), len(line), nil
	}
	return string(line[pos : pos+rel]), pos + rel, nil
}

// assign stores one extracted field onto the accumulator, keyed by which
// specifier produced it. Validation of cross-field invariants (status
// folding, size parsing, date/time parsing) happens in assemble, once all
// fields are collected — some validators need more than one raw field
// (serve time needs to know which of %D/%T/%L was used).
func (a *fieldAccumulator) assign(spec logformat.Specifier, raw string) error {
	switch spec {
	case logformat.SpecHost:
		a.host = raw
	case logformat.SpecDate:
		a.date = raw
	case logformat.SpecTime:
		a.timeOfDay = raw
	case logformat.SpecDateTime:
		a.date = raw // combined field, split out in assemble
	case logformat.SpecRequest:
		a.requestLine = raw
		a.hasRequestLine = true
	case logformat.SpecMethod:
		a.method = raw
	case logformat.SpecURL:
		a.url = raw
	case logformat.SpecProtocol:
		a.proto = raw
	case logformat.SpecQueryStr:
		if raw != "" && raw != "-" {
			if strings.Contains(a.url, "?") {
				a.url += "&" + raw
			} else {
				a.url += "?" + raw
			}
		}
	case logformat.SpecStatus:
		a.status = raw
	case logformat.SpecRespSize:
		a.size = raw
	case logformat.SpecReferrer:
		a.referrer = raw
	case logformat.SpecUserAgent:
		a.userAgent = raw
	case logformat.SpecVHost:
		a.vhost = raw
	case logformat.SpecRemoteUser:
		a.remoteUser = raw
	case logformat.SpecServeUsec, logformat.SpecServeSec, logformat.SpecServeMilli:
		a.serveRaw = raw
		a.serveSpec = spec
		a.hasServe = true
	case logformat.SpecCacheStat:
		a.cacheStat = raw
	case logformat.SpecSkip, logformat.SpecLiteralSp:
		// intentionally discarded
	}
	return nil
}

// assemble cross-validates the accumulated raw fields and produces the
// final LogItem, applying ignore-rules last so a structurally invalid line
// is reported as invalid even when it would also have been ignored.
func (p *Parser) assemble(a fieldAccumulator) (model.LogItem, error) {
	var item model.LogItem

	host, err := validateHost(a.host, p.cfg.AllowHostnames)
	if err != nil {
		return model.LogItem{}, err
	}
	item.Host = host

	if a.date != "" {
		if strings.Contains(a.date, " ") && a.timeOfDay == "" {
			// combined %x field: "10/Oct/2000:13:55:36 -0700" or similar.
			datePart, _, _ := strings.Cut(a.date, " ")
			dayPart, clockPart, found := strings.Cut(datePart, ":")
			if !found {
				return model.LogItem{}, ErrBadDate
			}
			d, err := parseDate("%d/%b/%Y", dayPart, p.cfg.now())
			if err != nil {
				return model.LogItem{}, err
			}
			item.Date = d
			item.Time = clockPart
			if idx := strings.IndexByte(clockPart, ':'); idx > 0 {
				item.Hour = clockPart[:idx]
			}
		} else {
			d, err := parseDate(p.cfg.DateFormat, a.date, p.cfg.now())
			if err != nil {
				return model.LogItem{}, err
			}
			item.Date = d
		}
	} else {
		return model.LogItem{}, ErrFieldMissing
	}

	if a.timeOfDay != "" {
		hhmmss, hour, err := parseTimeOfDay(p.cfg.TimeFormat, a.timeOfDay)
		if err != nil {
			return model.LogItem{}, err
		}
		item.Time = hhmmss
		item.Hour = hour
	}

	var rawURL string
	if a.hasRequestLine {
		method, url, proto, err := splitRequestLine(a.requestLine)
		if err != nil {
			return model.LogItem{}, err
		}
		item.Method, rawURL, item.Protocol = method, url, proto
	} else {
		item.Method, rawURL, item.Protocol = a.method, a.url, a.proto
	}
	if rawURL == "" {
		return model.LogItem{}, ErrFieldMissing
	}
	normalized, err := normalizeURL(rawURL, p.cfg.IgnoreQueryString, p.cfg.DoubleDecode)
	if err != nil {
		return model.LogItem{}, err
	}
	item.Request = normalized
	item.IsStatic = classifyStatic(normalized, p.cfg.staticExtensions())

	status, err := normalizeStatus(a.status, p.cfg.Code444AsNotFound)
	if err != nil {
		return model.LogItem{}, err
	}
	item.Status = status

	size, err := parseSize(a.size)
	if err != nil {
		return model.LogItem{}, err
	}
	item.RespSize = size

	if a.hasServe {
		usec, err := parseServeTime(a.serveSpec, a.serveRaw)
		if err != nil {
			return model.LogItem{}, err
		}
		item.ServeUsecs = usec
	}

	item.Referrer = a.referrer
	item.UserAgent = a.userAgent
	item.VHost = a.vhost
	item.RemoteUser = a.remoteUser
	item.CacheStat = a.cacheStat

	if p.cfg.CrawlerFunc != nil {
		item.IsCrawler = p.cfg.CrawlerFunc(item.UserAgent)
	}

	if err := p.checkIgnoreRules(item); err != nil {
		// the line is structurally valid; return it alongside the wrapped
		// ErrIgnoredLine so a caller that wants to log what was skipped
		// (e.g. why a crawler was excluded) still can.
		return item, err
	}

	return item, nil
}

// checkIgnoreRules applies the host-CIDR, referrer-wildcard, and
// ignore-crawlers exclusions (§4.1b). A match returns ErrIgnoredLine,
// wrapped with which rule fired.
func (p *Parser) checkIgnoreRules(item model.LogItem) error {
	if p.cfg.IgnoreHostNets != nil {
		if v, _ := p.cfg.IgnoreHostNets.FindCIDR(item.Host); v != nil {
			return fmt.Errorf("%w: host %s matches ignore-list", ErrIgnoredLine, item.Host)
		}
	}
	for _, g := range p.cfg.IgnoreReferrers {
		if g.Match(item.Referrer) {
			return fmt.Errorf("%w: referrer %q matches ignore pattern", ErrIgnoredLine, item.Referrer)
		}
	}
	if p.cfg.IgnoreCrawlers && item.IsCrawler {
		return fmt.Errorf("%w: user agent classified as crawler", ErrIgnoredLine)
	}
	return nil
}
