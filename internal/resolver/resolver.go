/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package resolver runs a bounded, asynchronous reverse-DNS worker (§4.6:
// "a single background worker dequeues... and performs getnameinfo"; §5:
// "two worker threads for the core: (1) the main parser/aggregator
// thread, (2) the DNS resolver thread"): hosts observed for the first
// time are enqueued, resolved off the hot path by that one goroutine, and
// the completion is recorded for later display. The job-channel shape is
// grounded on the dnslookup processor's workerGroup pattern, narrowed
// from its several-goroutine pool to the single worker §4.6/§5 specify.
package resolver

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DefaultQueueCapacity is the bounded FIFO depth from §3 ("DNS resolver
// queue... default capacity 400").
const DefaultQueueCapacity = 400

const defaultWorkerCount = 1
const defaultTimeout = 2 * time.Second

// Options configures a Resolver.
type Options struct {
	// Server is an optional "host:port" DNS server; when empty, resolution
	// falls back to net.LookupAddr (the OS resolver).
	Server        string
	QueueCapacity int
	WorkerCount   int
	Timeout       time.Duration
	// CacheSize bounds the number of completions retained; 0 means
	// unbounded (matching §3's "no eviction" for GeoRecord/HostAgentsSet,
	// applied the same way here for consistency).
	CacheSize int
}

// Resolver owns a bounded job queue and its worker pool. Results are
// retrievable via Lookup after Enqueue has been called and the worker has
// processed the job; callers that need to react to completion should poll
// or re-check on a timer, matching the "fire and forget, check back later"
// usage from the store's OnNewHost hook.
type Resolver struct {
	opts Options

	mu          sync.RWMutex
	completions map[string]string // ip -> hostname

	jobs   chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a Resolver's worker pool. Call Close to stop it.
func New(opts Options) *Resolver {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaultWorkerCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		opts:        opts,
		completions: make(map[string]string),
		jobs:        make(chan string, opts.QueueCapacity),
		cancel:      cancel,
	}
	for i := 0; i < opts.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	return r
}

// Enqueue submits host for asynchronous reverse resolution. It never
// blocks the caller: if the queue is full, the host is dropped (the
// display simply shows the raw IP until a later opportunity re-enqueues
// it, which is the degraded mode §4.6 tolerates under load).
func (r *Resolver) Enqueue(host string) {
	if net.ParseIP(host) == nil {
		return // not an IP; nothing to resolve
	}
	select {
	case r.jobs <- host:
	default:
	}
}

// Lookup returns a previously resolved hostname for ip, or ("", false) if
// no completion is recorded yet.
func (r *Resolver) Lookup(ip string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.completions[ip]
	return name, ok
}

// Close stops the worker pool and releases resources.
func (r *Resolver) Close() {
	r.cancel()
	close(r.jobs)
	r.wg.Wait()
}

func (r *Resolver) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case host, ok := <-r.jobs:
			if !ok {
				return
			}
			name, err := r.resolve(ctx, host)
			if err != nil || name == "" {
				continue
			}
			r.record(host, name)
		}
	}
}

func (r *Resolver) resolve(ctx context.Context, host string) (string, error) {
	if r.opts.Server != "" {
		return resolvePTR(ctx, r.opts.Server, host, r.opts.Timeout)
	}
	names, err := net.DefaultResolver.LookupAddr(ctx, host)
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[0], nil
}

func (r *Resolver) record(ip, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.CacheSize > 0 && len(r.completions) >= r.opts.CacheSize {
		// bounded cache, no ordering guarantee on eviction: drop one
		// arbitrary entry to make room. Map iteration order is
		// randomized by the runtime, which is an acceptable approximation
		// of LRU for a display-only cache.
		for k := range r.completions {
			delete(r.completions, k)
			break
		}
	}
	r.completions[ip] = name
}

// resolvePTR performs a reverse lookup against an explicit DNS server via
// miekg/dns, grounded on the dnslookup processor's exchange/resolve
// functions.
func resolvePTR(ctx context.Context, server, ip string, timeout time.Duration) (string, error) {
	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}
	m := new(dns.Msg)
	m.SetQuestion(reverse, dns.TypePTR)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: timeout}
	r, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return "", err
	}
	for _, ans := range r.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", nil
}
