/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ingestpipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webtrail/webtrail/internal/logfield"
	"github.com/webtrail/webtrail/internal/logformat"
	"github.com/webtrail/webtrail/internal/model"
)

type fakeStore struct {
	items []model.LogItem
}

func (f *fakeStore) Ingest(item model.LogItem) {
	f.items = append(f.items, item)
}

func newCombinedParser(t *testing.T) *logfield.Parser {
	t.Helper()
	toks, err := logformat.TokenizeNamed(logformat.Combined)
	require.NoError(t, err)
	return logfield.NewParser(toks, logfield.Config{})
}

const sampleLine = `127.0.0.1 [10/Oct/2000:13:55:36 -0700] "GET /index.html HTTP/1.0" 200 2326 "-" "curl/7.0"`

func TestProcessLineCountsValidAndInvalid(t *testing.T) {
	fs := &fakeStore{}
	p := New(newCombinedParser(t), fs, nil)

	p.ProcessLine([]byte(sampleLine))
	p.ProcessLine([]byte("not a log line at all"))

	snap := p.Stats.Snapshot()
	require.EqualValues(t, 2, snap.Processed)
	require.EqualValues(t, 1, snap.Invalid)
	require.EqualValues(t, 0, snap.Ignored)
	require.Len(t, fs.items, 1)
	require.Equal(t, "/index.html", fs.items[0].Request)
}

func TestProcessLineCountsIgnored(t *testing.T) {
	toks, err := logformat.TokenizeNamed(logformat.Combined)
	require.NoError(t, err)
	parser := logfield.NewParser(toks, logfield.Config{IgnoreCrawlers: true, CrawlerFunc: func(ua string) bool {
		return strings.Contains(ua, "curl")
	}})
	fs := &fakeStore{}
	p := New(parser, fs, nil)

	p.ProcessLine([]byte(sampleLine))

	snap := p.Stats.Snapshot()
	require.EqualValues(t, 1, snap.Ignored)
	require.EqualValues(t, 0, snap.Invalid)
	require.Empty(t, fs.items)
}

func TestRunReaderConsumesUntilEOF(t *testing.T) {
	fs := &fakeStore{}
	p := New(newCombinedParser(t), fs, nil)

	r := bytes.NewBufferString(sampleLine + "\n" + sampleLine + "\n")
	require.NoError(t, p.RunReader(context.Background(), r))
	require.Len(t, fs.items, 2)
}

func TestBroadcastSourceMirrorsStats(t *testing.T) {
	fs := &fakeStore{}
	p := New(newCombinedParser(t), fs, nil)
	p.ProcessLine([]byte(sampleLine))

	src := BroadcastSource{Stats: p.Stats}
	snap := src.Snapshot()
	require.EqualValues(t, 1, snap.Processed)
	require.Equal(t, p.Stats.StartTime, snap.StartTime)
}
