/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webtrail/webtrail/internal/classify"
	"github.com/webtrail/webtrail/internal/geo"
	"github.com/webtrail/webtrail/internal/model"
)

// fakeGeoResolver returns a fixed Location for every lookup, standing in
// for geo.MMDBResolver so ingestGeo's key composition can be tested
// without a real .mmdb file on disk.
type fakeGeoResolver struct{ loc geo.Location }

func (f fakeGeoResolver) Lookup(string) (geo.Location, error) { return f.loc, nil }
func (f fakeGeoResolver) Close() error                        { return nil }

func sampleItem() model.LogItem {
	return model.LogItem{
		Host:       "203.0.113.5",
		Date:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Time:       "13:45:02",
		Hour:       "13",
		Request:    "/index.html",
		Method:     "GET",
		Protocol:   "HTTP/1.1",
		Status:     "200",
		Referrer:   "https://www.google.com/search?q=golang+parsing",
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/116.0.0.0 Safari/537.36",
		RespSize:   1024,
		ServeUsecs: 1500,
	}
}

func newTestStore() *Store {
	return New(Options{Classifier: classify.DefaultTable()})
}

func TestIngestVisitorsAndHitsMonotonic(t *testing.T) {
	s := newTestStore()
	item := sampleItem()
	s.Ingest(item)
	s.Ingest(item) // same visitor key, second hit

	snap := s.Snapshot(model.Visitors)
	rec := snap[item.DateKey()]
	require.EqualValues(t, 2, rec.Hits)
	require.EqualValues(t, 1, rec.Visitors)
	require.GreaterOrEqual(t, rec.Hits, rec.Visitors)
	require.EqualValues(t, 2, s.TotalHits())
}

func TestIngestRequestsClassification(t *testing.T) {
	s := newTestStore()
	item := sampleItem()
	s.Ingest(item)

	reqs := s.Snapshot(model.Requests)
	rec, ok := reqs["/index.html"]
	require.True(t, ok)
	require.EqualValues(t, 1, rec.Hits)
	require.Equal(t, "GET", rec.Method)
	require.Equal(t, "HTTP/1.1", rec.Protocol)

	notFound := sampleItem()
	notFound.Host = "203.0.113.6"
	notFound.Status = "404"
	notFound.Request = "/missing"
	s.Ingest(notFound)
	nf := s.Snapshot(model.NotFound)
	require.Contains(t, nf, "/missing")

	static := sampleItem()
	static.Host = "203.0.113.7"
	static.Request = "/app.css"
	static.IsStatic = true
	s.Ingest(static)
	st := s.Snapshot(model.RequestsStatic)
	require.Contains(t, st, "/app.css")
}

func TestIngestBrowserOSSubItems(t *testing.T) {
	s := newTestStore()
	s.Ingest(sampleItem())

	browsers := s.Snapshot(model.Browsers)
	rec, ok := browsers["Chrome"]
	require.True(t, ok)
	require.Len(t, rec.Sub, 1)
	require.Equal(t, "116.0.0.0", rec.Sub[0].Data)

	oses := s.Snapshot(model.OS)
	osRec, ok := oses["Windows"]
	require.True(t, ok)
	require.Len(t, osRec.Sub, 1)
}

func TestIngestReferrersAndKeyphrase(t *testing.T) {
	s := newTestStore()
	s.Ingest(sampleItem())

	refs := s.Snapshot(model.Referrers)
	require.Contains(t, refs, "https://www.google.com/search?q=golang+parsing")

	sites := s.Snapshot(model.ReferringSites)
	require.Contains(t, sites, "https://www.google.com")

	kps := s.Snapshot(model.Keyphrases)
	require.Contains(t, kps, "golang parsing")
}

func TestIngestStatusSubItems(t *testing.T) {
	s := newTestStore()
	s.Ingest(sampleItem())
	statuses := s.Snapshot(model.StatusCodes)
	rec, ok := statuses["2xx Success"]
	require.True(t, ok)
	require.Len(t, rec.Sub, 1)
	require.Equal(t, "200", rec.Sub[0].Data)
}

func TestIngestVisitTimes(t *testing.T) {
	s := newTestStore()
	s.Ingest(sampleItem())
	times := s.Snapshot(model.VisitTimes)
	require.Contains(t, times, "13")
}

func TestIngestOnNewHostFiresOnce(t *testing.T) {
	var seen []string
	s := New(Options{Classifier: classify.DefaultTable(), OnNewHost: func(h string) { seen = append(seen, h) }})
	item := sampleItem()
	s.Ingest(item)
	s.Ingest(item)
	require.Equal(t, []string{item.Host}, seen)
}

func TestIngestGeoLocationKeyedByContinentCodeAndName(t *testing.T) {
	resolv := fakeGeoResolver{loc: geo.Location{
		ContinentCode: "NA",
		Continent:     "North America",
		CountryCode:   "US",
		CountryName:   "United States",
	}}
	s := New(Options{Classifier: classify.DefaultTable(), Geo: resolv})
	s.Ingest(sampleItem())

	geos := s.Snapshot(model.GeoLocation)
	rec, ok := geos["NA North America"]
	require.True(t, ok)
	require.EqualValues(t, 1, rec.Hits)
	require.Len(t, rec.Sub, 1)
	require.Equal(t, "United States", rec.Sub[0].Data)
}

func TestHostAgentsSetDisabledByDefault(t *testing.T) {
	s := newTestStore()
	s.Ingest(sampleItem())
	require.Nil(t, s.HostAgents())
}

func TestHostAgentsSetDedupesAndCollectsPerHost(t *testing.T) {
	s := New(Options{Classifier: classify.DefaultTable(), AgentList: true})
	item := sampleItem()
	s.Ingest(item)
	s.Ingest(item) // same host+agent again, must not duplicate

	other := sampleItem()
	other.Host = "203.0.113.6"
	other.UserAgent = "curl/7.0"
	s.Ingest(other)

	agents := s.HostAgents()
	require.Equal(t, []string{item.UserAgent}, agents[item.Host])
	require.Equal(t, []string{"curl/7.0"}, agents[other.Host])
}

func TestExcludeCrawlersPolicy(t *testing.T) {
	tbl := classify.DefaultTable()
	s := New(Options{Classifier: tbl, ExcludeCrawlers: true})
	item := sampleItem()
	item.Host = "203.0.113.9"
	item.UserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	item.IsCrawler = true
	s.Ingest(item)

	visitors := s.Snapshot(model.Visitors)
	rec := visitors[item.DateKey()]
	require.EqualValues(t, 1, rec.Hits)
	require.EqualValues(t, 0, rec.Visitors)
}
