package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/auramarua/nextpnr/device"
	"github.com/auramarua/nextpnr/internal/config"
	"github.com/auramarua/nextpnr/internal/logging"
	"github.com/auramarua/nextpnr/internal/observability"
	"github.com/auramarua/nextpnr/internal/route"
	"github.com/auramarua/nextpnr/model"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML router config (defaults apply when empty)")
	scenarioPath := flag.String("scenario", "", "path to a JSON device scenario (a built-in demo device is used when empty)")
	pressure := flag.Float64("pressure", -1, "pressure factor override (negative = use config)")
	history := flag.Float64("history", -1, "history factor override (negative = use config)")
	debugAddr := flag.String("debug-addr", "", "address for the debug HTTP server (/metrics, /result); disabled when empty")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "config load failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *pressure >= 0 {
		cfg.Pressure = *pressure
	}
	if *history >= 0 {
		cfg.History = *history
	}

	reg := prometheus.NewRegistry()
	collector, err := observability.NewRouterCollector(reg)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	var lastResult atomic.Pointer[route.Result]
	if *debugAddr != "" {
		go serveDebug(ctx, *debugAddr, collector, &lastResult, log)
	}

	grid, err := buildDevice(ctx, *scenarioPath, log)
	if err != nil {
		log.Error(ctx, "device setup failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	opts := route.Options{
		Pressure:       cfg.Pressure,
		History:        cfg.History,
		Workers:        cfg.Workers,
		SearchLimit:    cfg.SearchLimit,
		RipUpIters:     cfg.RipUpIters,
		HeuristicScale: cfg.HeuristicScale,
		Partition: route.PartitionOptions{
			Policy:           route.SplitPolicy(cfg.Partition.Policy),
			Depth:            cfg.Partition.Depth,
			MinArcsPerLeaf:   cfg.Partition.MinArcsPerLeaf,
			MinBoxExtent:     cfg.Partition.MinBoxExtent,
			ReservedPatterns: cfg.Partition.ReservedPatterns,
		},
		Logger:  log,
		Metrics: collector,
	}

	result, err := route.Route(ctx, grid, opts)
	if err != nil {
		log.Error(ctx, "routing aborted", logging.String("error", err.Error()))
		os.Exit(1)
	}
	lastResult.Store(result)

	printSummary(result)
	if !result.OK() {
		os.Exit(1)
	}
}

// buildDevice loads the scenario file, or falls back to the built-in demo
// device when no file is given.
func buildDevice(ctx context.Context, path string, log logging.Logger) (*device.Grid, error) {
	if path == "" {
		log.Info(ctx, "no scenario given; using built-in demo device")
		return buildDemoDevice()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()

	grid, summary, err := device.LoadScenario(f)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", path),
		logging.Int("wires", summary.WireCount),
		logging.Int("pips", summary.PipCount),
		logging.Int("nets", summary.NetCount),
	)
	return grid, nil
}

// buildDemoDevice assembles a small 8x8 device: one routing wire per tile,
// pips between orthogonal neighbours, and a handful of nets including one
// global net that the router must skip.
func buildDemoDevice() (*device.Grid, error) {
	const dim = 8
	grid := device.NewGrid(dim, dim)

	wires := make([][]model.WireID, dim)
	for x := 0; x < dim; x++ {
		wires[x] = make([]model.WireID, dim)
		for y := 0; y < dim; y++ {
			id, err := grid.AddWire(fmt.Sprintf("X%d/Y%d/R0", x, y), model.Coord{X: x, Y: y}, 1.0)
			if err != nil {
				return nil, err
			}
			wires[x][y] = id
		}
	}
	addPip := func(ax, ay, bx, by int) error {
		name := fmt.Sprintf("X%d/Y%d->X%d/Y%d", ax, ay, bx, by)
		_, err := grid.AddPip(name, wires[ax][ay], wires[bx][by], model.Coord{X: ax, Y: ay}, 1.0)
		return err
	}
	for x := 0; x < dim; x++ {
		for y := 0; y < dim; y++ {
			if x+1 < dim {
				if err := addPip(x, y, x+1, y); err != nil {
					return nil, err
				}
				if err := addPip(x+1, y, x, y); err != nil {
					return nil, err
				}
			}
			if y+1 < dim {
				if err := addPip(x, y, x, y+1); err != nil {
					return nil, err
				}
				if err := addPip(x, y+1, x, y); err != nil {
					return nil, err
				}
			}
		}
	}

	type demoNet struct {
		name   string
		global bool
		src    model.Coord
		dsts   []model.Coord
	}
	demo := []demoNet{
		{name: "alu.sum", src: model.Coord{X: 1, Y: 1}, dsts: []model.Coord{{X: 6, Y: 2}, {X: 5, Y: 6}}},
		{name: "fifo.rd_en", src: model.Coord{X: 2, Y: 5}, dsts: []model.Coord{{X: 1, Y: 6}}},
		{name: "uart.tx", src: model.Coord{X: 6, Y: 6}, dsts: []model.Coord{{X: 2, Y: 2}}},
		{name: "clk", global: true, src: model.Coord{X: 0, Y: 0}, dsts: []model.Coord{{X: 7, Y: 7}}},
	}
	for i, dn := range demo {
		net := &model.Net{
			ID:     model.NetID(i),
			Name:   dn.name,
			Global: dn.global,
			Driver: &model.PortRef{Cell: dn.name + "_drv", Pin: "O", Loc: dn.src},
		}
		for j, dst := range dn.dsts {
			net.Users = append(net.Users, model.PortRef{
				Cell: fmt.Sprintf("%s_sink%d", dn.name, j),
				Pin:  "I",
				Loc:  dst,
			})
		}
		if err := grid.AddNet(net); err != nil {
			return nil, err
		}
		if err := grid.ConnectDriver(net.ID, wires[dn.src.X][dn.src.Y]); err != nil {
			return nil, err
		}
		for j, dst := range dn.dsts {
			user := net.Users[j]
			if err := grid.ConnectSink(net.ID, user.Cell, user.Pin, wires[dst.X][dst.Y]); err != nil {
				return nil, err
			}
		}
	}
	return grid, nil
}

// serveDebug exposes /metrics, /healthz, and the last routing result.
func serveDebug(ctx context.Context, addr string, collector *observability.RouterCollector, result *atomic.Pointer[route.Result], log logging.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", collector.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Get("/result", func(w http.ResponseWriter, _ *http.Request) {
		res := result.Load()
		if res == nil {
			http.Error(w, "no routing result yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summaryOf(res))
	})

	log.Info(ctx, "debug server listening", logging.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Warn(ctx, "debug server stopped", logging.String("error", err.Error()))
	}
}

type partitionSummary struct {
	Name      string `json:"name"`
	Committed int    `json:"committed"`
	Failed    int    `json:"failed"`
	Iters     int    `json:"iterations"`
}

type runSummary struct {
	OK            bool               `json:"ok"`
	ArcsExtracted int                `json:"arcs_extracted"`
	SpecialArcs   int                `json:"special_arcs"`
	Committed     int                `json:"committed"`
	Failed        int                `json:"failed"`
	Partitions    []partitionSummary `json:"partitions"`
	Special       partitionSummary   `json:"special"`
}

func summaryOf(res *route.Result) runSummary {
	s := runSummary{
		OK:            res.OK(),
		ArcsExtracted: res.ArcsExtracted,
		SpecialArcs:   res.SpecialArcs,
		Committed:     res.Committed,
		Failed:        res.Failed,
		Special: partitionSummary{
			Name:      res.Special.Name,
			Committed: res.Special.Committed,
			Failed:    res.Special.Failed,
			Iters:     res.Special.Iters,
		},
	}
	for _, p := range res.Partitions {
		s.Partitions = append(s.Partitions, partitionSummary{
			Name:      p.Name,
			Committed: p.Committed,
			Failed:    p.Failed,
			Iters:     p.Iters,
		})
	}
	return s
}

func printSummary(res *route.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(summaryOf(res))
}
