/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package applog is webtrail's structured logger, adapted from the
// teacher's ingest/log package: a level-gated writer that formats
// messages as RFC 5424 syslog lines via github.com/crewjam/rfc5424, with
// KV/KVErr helpers for attaching structured fields. Errors within a
// component short-circuit to a Log call here rather than panicking (§7).
package applog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Level gates which messages are written.
type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{OFF: "OFF", DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR", FATAL: "FATAL"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	default:
		return rfc5424.User | rfc5424.Info
	}
}

// LevelFromString parses a config/CLI level name, defaulting to ERROR on
// an empty string and failing on anything unrecognized.
func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ERROR":
		return ERROR, nil
	case "OFF":
		return OFF, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "FATAL":
		return FATAL, nil
	}
	return OFF, fmt.Errorf("invalid log level %q", s)
}

// KV is one structured field attached to a log line.
type KV struct {
	Key   string
	Value interface{}
}

// Field builds a KV pair.
func Field(key string, value interface{}) KV { return KV{Key: key, Value: value} }

// KVErr builds the conventional "err" field from an error.
func KVErr(err error) KV {
	if err == nil {
		return KV{Key: "err", Value: "<nil>"}
	}
	return KV{Key: "err", Value: err.Error()}
}

// Logger writes level-gated, RFC5424-shaped lines to one or more
// io.Writers. The zero value is not usable; construct with New.
type Logger struct {
	mu       sync.Mutex
	wtrs     []io.Writer
	lvl      Level
	hostname string
	appname  string
}

// New builds a Logger writing to wtr at the given level.
func New(wtr io.Writer, lvl Level) *Logger {
	hn, _ := os.Hostname()
	return &Logger{wtrs: []io.Writer{wtr}, lvl: lvl, hostname: hn, appname: "webtrail"}
}

// NewDiscard builds a Logger that drops everything; used by tests and by
// components run with logging disabled.
func NewDiscard() *Logger {
	return New(io.Discard, OFF)
}

// AddWriter fans subsequent output out to an additional writer (e.g. a
// rotating file writer alongside stderr).
func (l *Logger) AddWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wtrs = append(l.wtrs, w)
}

func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lvl = lvl
}

func (l *Logger) enabled(lvl Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lvl != OFF && lvl >= l.lvl
}

func (l *Logger) Debug(msg string, kvs ...KV) { l.log(DEBUG, msg, kvs...) }
func (l *Logger) Info(msg string, kvs ...KV)  { l.log(INFO, msg, kvs...) }
func (l *Logger) Warn(msg string, kvs ...KV)  { l.log(WARN, msg, kvs...) }
func (l *Logger) Error(msg string, kvs ...KV) { l.log(ERROR, msg, kvs...) }

// Fatal logs at FATAL and exits the process with code 1, matching the
// teacher's Fatalf/FatalfCode behavior for unrecoverable errors (§7).
func (l *Logger) Fatal(msg string, kvs ...KV) {
	l.log(FATAL, msg, kvs...)
	os.Exit(1)
}

func (l *Logger) log(lvl Level, msg string, kvs ...KV) {
	if !l.enabled(lvl) {
		return
	}
	var sds []rfc5424.SDParam
	for _, kv := range kvs {
		sds = append(sds, rfc5424.SDParam{Name: kv.Key, Value: fmt.Sprint(kv.Value)})
	}
	m := rfc5424.Message{
		Priority:  lvl.priority(),
		Timestamp: time.Now().UTC(),
		Hostname:  l.hostname,
		AppName:   l.appname,
		MessageID: lvl.String(),
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{
			{ID: "webtrail@1", Parameters: sds},
		}
	}
	b, err := m.MarshalBinary()
	if err != nil {
		b = []byte(fmt.Sprintf("%s %s %s\n", time.Now().UTC().Format(time.RFC3339), lvl, msg))
	} else {
		b = append(b, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.wtrs {
		_, _ = w.Write(b)
	}
}
