/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command webtrail is the real-time log-analyzer core (§1): it parses an
// access log, aggregates it into the module stores of §4.2, and streams
// incremental snapshots to connected dashboards over WebSocket. The
// sequence is: build a config, build a logger, build the long-lived
// components, block on a quit signal, shut down cleanly.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/asergeyev/nradix"
	"github.com/gobwas/glob"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/webtrail/webtrail/internal/applog"
	"github.com/webtrail/webtrail/internal/authjwt"
	"github.com/webtrail/webtrail/internal/broadcaster"
	"github.com/webtrail/webtrail/internal/classify"
	"github.com/webtrail/webtrail/internal/config"
	"github.com/webtrail/webtrail/internal/counterdb"
	"github.com/webtrail/webtrail/internal/fifo"
	"github.com/webtrail/webtrail/internal/geo"
	"github.com/webtrail/webtrail/internal/holder"
	"github.com/webtrail/webtrail/internal/ingestpipeline"
	"github.com/webtrail/webtrail/internal/logfield"
	"github.com/webtrail/webtrail/internal/logformat"
	"github.com/webtrail/webtrail/internal/model"
	"github.com/webtrail/webtrail/internal/resolver"
	"github.com/webtrail/webtrail/internal/store"
	"github.com/webtrail/webtrail/internal/wsserver"
)

// version is stamped at release build time; left as a constant here since
// build-time ldflags injection is packaging infrastructure (out of scope,
// §1 "man-page/packaging infrastructure").
const version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configFile = flag.String("config-file", "", "path to the webtrail INI config file")
		logFile    = flag.String("log-file", "", "overrides Global.Log_File from the config")
		follow     = flag.Bool("f", false, "follow the log file for new lines (tail -f)")
		showStor   = flag.Bool("storage", false, "print build/runtime info and exit")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println("webtrail", version)
		return 0
	}
	if *showStor {
		printStorageInfo(os.Stdout)
		return 0
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}
	if *logFile != "" {
		cfg.Global.Log_File = *logFile
	}
	if err := cfg.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}

	lvl, err := applog.LevelFromString(cfg.Global.Log_Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}
	log := applog.New(os.Stderr, lvl)
	if cfg.Global.Output_Log != "" {
		if f, err := os.OpenFile(cfg.Global.Output_Log, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640); err == nil {
			log.AddWriter(f)
			defer f.Close()
		} else {
			log.Warn("failed to open Output_Log file", applog.KVErr(err))
		}
	}

	app, err := wire(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize", applog.KVErr(err))
		return 1
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	app.Start(ctx, *follow)
	log.Info("webtrail running", applog.Field("ws_url", cfg.Global.Ws_Url), applog.Field("log_file", cfg.Global.Log_File))

	<-ctx.Done()
	log.Info("shutting down")
	app.Shutdown()
	return 0
}

// application bundles every long-lived component main wires together, so
// Start/Shutdown have one obvious home instead of a sprawl of package-level
// globals (§9 design note: shared mutable state becomes one owning value).
type application struct {
	cfg *config.Config
	log *applog.Logger

	classifier classify.Table
	geoResolv  geo.Resolver
	dns        *resolver.Resolver
	st         *store.Store
	persist    *counterdb.DB

	ws    *wsserver.Server
	bcast *broadcaster.Broadcaster
	auth  *authjwt.Issuer
	stats *ingestpipeline.Stats
	pipe  *ingestpipeline.Pipeline

	// bridgeW/bridgeR are the in-process pipe a Broadcaster writes packets
	// into and the bridge goroutine reads them back out of, to hand each
	// one to ws.Broadcast — the Go realization of §4.5's outbound FIFO
	// mentioned in SPEC_FULL.md's "Go realization" note: the wire shape
	// (12-byte header + payload) is preserved even though both ends live in
	// this one process.
	bridgeW *io.PipeWriter
	bridgeR *io.PipeReader

	outFIFOFile *os.File
	inFIFOFile  *os.File

	wsServeErrCh chan error
	bridgeDoneCh chan struct{}
	stopTick     chan struct{}
}

func wire(cfg *config.Config, log *applog.Logger) (*application, error) {
	g := cfg.Global
	app := &application{cfg: cfg, log: log}

	app.classifier = classify.DefaultTable()
	if g.Browser_Db_File != "" {
		if err := loadSubstringFile(g.Browser_Db_File, app.classifier.AddBrowser); err != nil {
			log.Warn("failed to load browser-db file", applog.KVErr(err))
		}
	}
	if g.Os_Db_File != "" {
		if err := loadSubstringFile(g.Os_Db_File, app.classifier.AddOS); err != nil {
			log.Warn("failed to load os-db file", applog.KVErr(err))
		}
	}

	if g.Geoip_Database != "" {
		gr, err := geo.OpenMMDB(g.Geoip_Database)
		if err != nil {
			return nil, fmt.Errorf("geoip: %w", err)
		}
		app.geoResolv = gr
	} else {
		app.geoResolv = geo.NopResolver{}
	}

	if !g.No_Term_Resolver {
		app.dns = resolver.New(resolver.Options{
			Server:        firstOf(g.Dns_Server),
			QueueCapacity: g.Dns_Cache_Size,
			CacheSize:     g.Dns_Cache_Size,
		})
	}

	if g.Persist_Path != "" {
		db, err := counterdb.Open(g.Persist_Path)
		if err != nil {
			return nil, fmt.Errorf("persist: %w", err)
		}
		app.persist = db
	}

	ignoreNets, err := parseCIDRList(g.Exclude_Ip)
	if err != nil {
		return nil, fmt.Errorf("exclude-ip: %w", err)
	}
	ignoreRefs, err := parseGlobList(g.Ignore_Referer)
	if err != nil {
		return nil, fmt.Errorf("ignore-referer: %w", err)
	}

	storeOpts := store.Options{
		Classifier: app.classifier,
		Geo:        app.geoResolv,
		RealOS:     g.Real_Os,
		AgentList:  g.Agent_List,
	}
	if app.persist != nil {
		storeOpts.Persist = app.persist
	}
	if app.dns != nil {
		storeOpts.OnNewHost = func(h string) { app.dns.Enqueue(h) }
	}
	app.st = store.New(storeOpts)

	if app.persist != nil {
		all, err := app.persist.LoadAll()
		if err != nil {
			log.Warn("failed to load persisted counters", applog.KVErr(err))
		} else {
			for _, m := range model.Modules() {
				if records, ok := all[m]; ok {
					// Every ingested line bumps exactly one VISITORS entry,
					// so only that module's hit sum is the resumed line count.
					var resumed uint64
					if m == model.Visitors {
						for _, rec := range records {
							resumed += rec.Hits
						}
					}
					app.st.Seed(m, records, resumed)
				}
			}
		}
	}

	tokens, err := logformat.TokenizeNamed(g.Log_Format)
	if err != nil {
		return nil, fmt.Errorf("log-format: %w", err)
	}
	parser := logfield.NewParser(tokens, logfield.Config{
		DateFormat:        g.Date_Format,
		TimeFormat:        g.Time_Format,
		IgnoreQueryString: g.No_Query_String,
		DoubleDecode:      g.Double_Decode,
		Code444AsNotFound: g.Code_444_As_404,
		StaticExtensions:  g.Static_File_Exts,
		IgnoreHostNets:    ignoreNets,
		IgnoreReferrers:   ignoreRefs,
		IgnoreCrawlers:    g.Ignore_Crawlers,
		CrawlerFunc:       app.classifier.CrawlerFunc(),
	})
	app.pipe = ingestpipeline.New(parser, app.st, log)
	app.stats = app.pipe.Stats

	if g.Ws_Auth_Secret != "" {
		hostname, _ := os.Hostname()
		app.auth = authjwt.NewIssuer(hostname, g.Ws_Auth_Secret, g.WSAuthExpireDuration())
	}

	// Outbound bridge: the broadcaster always writes onto an in-process
	// pipe; the bridge goroutine (started in Start) reads packets back off
	// it and hands them to ws.Broadcast. When --fifo-out names a real path,
	// the same bytes are additionally mirrored onto that named pipe for an
	// external consumer (§6), via io.MultiWriter.
	app.bridgeR, app.bridgeW = io.Pipe()
	var outDest io.Writer = app.bridgeW
	if g.Fifo_Out != "" {
		f, err := openNamedFIFOWriter(g.Fifo_Out)
		if err != nil {
			return nil, fmt.Errorf("fifo-out: %w", err)
		}
		app.outFIFOFile = f
		outDest = io.MultiWriter(app.bridgeW, f)
	}
	outW := fifo.NewWriter(outDest, g.Snappy_Fifo)

	sortPanels, sortErrs := g.SortPanels()
	for _, e := range sortErrs {
		log.Warn("config error", applog.KVErr(e))
	}
	sortFor := buildSortFor(sortPanels)

	app.bcast = broadcaster.New(outW, broadcaster.Options{
		Store:      app.st,
		SortFor:    sortFor,
		MaxChoices: g.Max_Choices,
		Log:        log,
		Stats:      ingestpipeline.BroadcastSource{Stats: app.stats},
	})

	var onClientMsg func(uint32, []byte)
	if g.Fifo_In != "" {
		f, err := openNamedFIFOWriter(g.Fifo_In)
		if err != nil {
			return nil, fmt.Errorf("fifo-in: %w", err)
		}
		app.inFIFOFile = f
		inW := fifo.NewWriter(f, g.Snappy_Fifo)
		onClientMsg = func(clientID uint32, payload []byte) {
			if err := inW.Write(fifo.Packet{Listener: clientID, Opcode: fifo.OpcodeText, Payload: payload}); err != nil {
				log.Warn("fifo-in write failed", applog.KVErr(err))
			}
		}
	}

	ws, err := wsserver.New(wsserver.Options{
		Addr:            g.Ws_Url,
		Origin:          g.Origin,
		TLSCertFile:     g.Ssl_Cert,
		TLSKeyFile:      g.Ssl_Key,
		Auth:            app.auth,
		OnClientMessage: onClientMsg,
		Log:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("wsserver: %w", err)
	}
	app.ws = ws

	app.wsServeErrCh = make(chan error, 1)
	app.bridgeDoneCh = make(chan struct{})
	app.stopTick = make(chan struct{})

	return app, nil
}

// Start launches the background goroutines: the WS server's accept loop,
// the outbound FIFO bridge, the broadcaster's emission tick, and the
// ingest pipeline reading the configured log source.
func (a *application) Start(ctx context.Context, follow bool) {
	go func() { a.wsServeErrCh <- a.ws.Serve() }()

	go func() {
		defer close(a.bridgeDoneCh)
		rdr := fifo.NewReader(a.bridgeR, a.cfg.Global.Snappy_Fifo)
		for {
			pkt, err := rdr.Read()
			if err != nil {
				return
			}
			a.ws.Broadcast(pkt)
		}
	}()

	interval := config.DefaultEmitInterval
	go a.bcast.Run(interval, a.stopTick)

	go func() {
		err := a.pipe.RunFile(ctx, a.cfg.Global.Log_File, follow, 500*time.Millisecond)
		if err != nil && ctx.Err() == nil {
			a.log.Warn("log ingestion stopped", applog.KVErr(err))
		}
	}()
}

// Shutdown stops every background goroutine and releases resources.
func (a *application) Shutdown() {
	close(a.stopTick)
	_ = a.bridgeW.Close()
	<-a.bridgeDoneCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.ws.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("ws shutdown error", applog.KVErr(err))
	}
	select {
	case <-a.wsServeErrCh:
	case <-shutdownCtx.Done():
	}
}

// Close releases resources that outlive a single run (DNS worker, geo db,
// persisted counters, FIFO file handles).
func (a *application) Close() {
	if a.dns != nil {
		a.dns.Close()
	}
	if a.geoResolv != nil {
		_ = a.geoResolv.Close()
	}
	if a.persist != nil {
		_ = a.persist.Close()
	}
	if a.outFIFOFile != nil {
		_ = a.outFIFOFile.Close()
	}
	if a.inFIFOFile != nil {
		_ = a.inFIFOFile.Close()
	}
	if a.cfg.Global.Fifo_Out != "" {
		_ = fifo.RemoveNamed(a.cfg.Global.Fifo_Out)
	}
	if a.cfg.Global.Fifo_In != "" {
		_ = fifo.RemoveNamed(a.cfg.Global.Fifo_In)
	}
}

// openNamedFIFOWriter creates (if absent) and opens path for writing, for
// the --fifo-in/--fifo-out external-consumer paths (§6). Named pipes are
// POSIX-only (internal/fifo.CreateNamed returns ErrNamedPipesUnsupported
// on Windows); a caller configuring one on an unsupported platform gets
// that error back from wire().
func openNamedFIFOWriter(path string) (*os.File, error) {
	if err := fifo.CreateNamed(path, 0o600); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_WRONLY, 0o600)
}

// loadSubstringFile reads a "needle<TAB>family" per line table (blank lines
// and lines starting with '#' ignored) and applies add for each entry, for
// --browser-db-file/--os-db-file table extension (§4.3).
func loadSubstringFile(path string, add func(needle, family string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		needle, family, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		add(strings.TrimSpace(needle), strings.TrimSpace(family))
	}
	return sc.Err()
}

// parseCIDRList builds the --exclude-ip radix tree (§4.1b's host-ignore
// rule), accepting either a bare IP (widened to a /32 or /128) or a CIDR
// range per entry. Grounded on the teacher's srcrouter processor, which
// matches a source IP against an operator-configured CIDR list the same
// way (`github.com/asergeyev/nradix`, a teacher direct dependency,
// ingest/processors/srcrouter.go) — a radix tree is the teacher's own
// tool for "is this IP inside one of these ranges", so --exclude-ip
// reuses it rather than a hand-rolled net.IPNet scan, even though an
// admin-configured exclude list is small: it is still the idiom this
// codebase reaches for whenever a single IP is checked against a set of
// CIDR ranges, and a small tree costs nothing a slice scan wouldn't.
func parseCIDRList(entries []string) (*nradix.Tree, error) {
	var tree *nradix.Tree
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("exclude-ip: invalid address %q", e)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			e = fmt.Sprintf("%s/%d", ip.String(), bits)
		}
		if tree == nil {
			tree = nradix.NewTree(32)
		}
		if err := tree.AddCIDR(e, true); err != nil {
			return nil, fmt.Errorf("exclude-ip: %q: %w", e, err)
		}
	}
	return tree, nil
}

// parseGlobList compiles --ignore-referer wildcard patterns (§4.1b).
func parseGlobList(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("ignore-referer: %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func firstOf(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func buildSortFor(panels []config.SortPanel) broadcaster.SortFor {
	byModule := make(map[string]holder.Sort, len(panels))
	for _, p := range panels {
		byModule[p.Module] = holder.Sort{Field: holder.Field(p.Field), Order: holder.Order(p.Order)}
	}
	return func(m model.Module) holder.Sort {
		if s, ok := byModule[m.String()]; ok {
			return s
		}
		return holder.Sort{Field: holder.FieldHits, Order: holder.Desc}
	}
}

func printStorageInfo(w *os.File) {
	fmt.Fprintln(w, "webtrail", version)
	fmt.Fprintf(w, "Go:\t\t%s\n", runtime.Version())
	if platform, family, ver, err := host.PlatformInformation(); err == nil {
		fmt.Fprintf(w, "OS:\t\t%s/%s (%s %s, family %s)\n", runtime.GOOS, runtime.GOARCH, platform, ver, family)
	} else {
		fmt.Fprintf(w, "OS:\t\t%s/%s (platform info unavailable: %v)\n", runtime.GOOS, runtime.GOARCH, err)
	}
}
