package route

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/auramarua/nextpnr/internal/logging"
	"github.com/auramarua/nextpnr/model"
)

// ErrNilHost reports a missing host; nothing meaningful can run without one.
var ErrNilHost = errors.New("route: host must not be nil")

// tracerName scopes the spans emitted by the dispatcher.
const tracerName = "github.com/auramarua/nextpnr/internal/route"

// Route is the single entry point of the routing core. It claims the host's
// net table (at most once per host lifetime), extracts arcs, pre-filters
// reserved resources, partitions the rest geographically, routes every leaf
// partition in parallel, and finishes with a serial pass over the special
// arcs before committing routes back to the host.
//
// The returned error is reserved for fatal conditions: precondition
// violations, a second invocation against the same host, or a partition
// sanity-check failure. Per-arc routing failures are not errors; they are
// aggregated in the Result and leave Result.OK() false.
func Route(ctx context.Context, host Host, opts Options) (*Result, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.withDefaults()
	log := opts.Logger

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "route.run")
	defer span.End()

	// Net table construction transfers per-net ownership from the host to
	// this run; doing it twice against the same host is an error.
	nets, err := host.ClaimNets()
	if err != nil {
		return nil, fmt.Errorf("claim nets: %w", err)
	}

	width, height := host.GridDims()
	gridBox := model.Box{Max: model.Coord{X: width, Y: height}}
	log.Info(ctx, "routing started",
		logging.Int("grid_width", width),
		logging.Int("grid_height", height),
		logging.Int("wires", len(host.Wires())),
		logging.Int("pips", len(host.Pips())),
		logging.Int("nets", len(nets)),
	)
	if top, count, bbox := highestFanoutNet(host, nets); top != nil {
		log.Info(ctx, "highest fanout non-global net",
			logging.String("net", top.Name),
			logging.Int("arcs", count),
			logging.String("span", fmt.Sprintf("(%d, %d)-(%d, %d)",
				bbox.Min.X, bbox.Min.Y, bbox.Max.X, bbox.Max.Y)),
		)
	}

	arcs := extractPhase(ctx, tracer, host, nets)
	opts.Metrics.SetArcsExtracted(len(arcs))
	log.Info(ctx, "arcs extracted", logging.Int("count", len(arcs)))

	partitionStart := time.Now()
	leaves, special, err := partitionPhase(ctx, tracer, host, opts, arcs, gridBox)
	if err != nil {
		return nil, err
	}
	opts.Metrics.SetPartitions(len(leaves))
	log.Info(ctx, "partitioning finished",
		logging.Int("partitions", len(leaves)),
		logging.Int("special_arcs", len(special)),
		logging.String("elapsed", time.Since(partitionStart).String()),
	)

	router := NewRouter(host, opts)

	routeStart := time.Now()
	workers := routeParallel(ctx, tracer, router, leaves, opts.Workers)

	// The special pass must observe every partition worker's congestion
	// state, so it runs strictly after the join, over the merged view and
	// the whole grid.
	global := make(resourceState)
	for _, w := range workers {
		global.merge(w.State())
	}
	specialWorker := NewWorker(Partition{Box: gridBox, Name: "MISC", Arcs: special}, global)
	specialCtx, specialSpan := tracer.Start(ctx, "route.special",
		trace.WithAttributes(attribute.Int("arcs", len(special))))
	router.Route(specialCtx, specialWorker)
	specialSpan.End()

	log.Info(ctx, "routing finished",
		logging.String("elapsed", time.Since(routeStart).String()),
	)

	result := collectResult(len(arcs), len(special), workers, specialWorker)
	if err := commitRoutes(host, result); err != nil {
		return nil, err
	}

	log.Info(ctx, "routing summary",
		logging.Int("committed", result.Committed),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func extractPhase(ctx context.Context, tracer trace.Tracer, host Host, nets []*model.Net) []model.Arc {
	_, span := tracer.Start(ctx, "route.extract",
		trace.WithAttributes(attribute.Int("nets", len(nets))))
	defer span.End()
	arcs := ExtractArcs(host, nets)
	span.SetAttributes(attribute.Int("arcs", len(arcs)))
	return arcs
}

func partitionPhase(ctx context.Context, tracer trace.Tracer, host Host, opts Options, arcs []model.Arc, gridBox model.Box) ([]Partition, []model.Arc, error) {
	_, span := tracer.Start(ctx, "route.partition")
	defer span.End()

	p := NewPartitioner(host,
		opts.Partition.ReservedPatterns,
		opts.Partition.Policy,
		opts.Partition.Depth,
		opts.Partition.MinArcsPerLeaf,
		opts.Partition.MinBoxExtent,
	)
	partitionable, special := p.PreFilter(arcs)
	leaves, straddlers, err := p.Partition(partitionable, gridBox)
	if err != nil {
		return nil, nil, fmt.Errorf("partition: %w", err)
	}
	special = append(special, straddlers...)
	span.SetAttributes(
		attribute.Int("leaves", len(leaves)),
		attribute.Int("special", len(special)),
	)
	return leaves, special, nil
}

// routeParallel fans the leaf partitions out over a fixed-size worker pool
// and joins before returning. Workers never share mutable state: each owns
// the congestion counters of its disjoint box.
func routeParallel(ctx context.Context, tracer trace.Tracer, router *Router, leaves []Partition, poolSize int) []*Worker {
	ctx, span := tracer.Start(ctx, "route.parallel",
		trace.WithAttributes(attribute.Int("partitions", len(leaves))))
	defer span.End()

	workers := make([]*Worker, len(leaves))
	for i, leaf := range leaves {
		workers[i] = NewWorker(leaf, nil)
	}

	if poolSize > len(workers) {
		poolSize = len(workers)
	}
	tasks := make(chan *Worker)
	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range tasks {
				router.Route(ctx, w)
			}
		}()
	}
	for _, w := range workers {
		tasks <- w
	}
	close(tasks)
	wg.Wait()
	return workers
}

func collectResult(totalArcs, specialArcs int, workers []*Worker, special *Worker) *Result {
	result := &Result{
		ArcsExtracted: totalArcs,
		SpecialArcs:   specialArcs,
		Special:       special.Result(),
	}
	all := append(append([]*Worker{}, workers...), special)
	for _, w := range all {
		if w != special {
			result.Partitions = append(result.Partitions, w.Result())
		}
		for _, rt := range w.Routes() {
			result.Routes = append(result.Routes, rt)
			switch rt.Status {
			case ArcCommitted:
				result.Committed++
			case ArcFailed:
				result.Failed++
			}
		}
	}
	return result
}

// commitRoutes binds every committed arc's pip chain back onto the host.
func commitRoutes(host Host, result *Result) error {
	for _, rt := range result.Routes {
		if rt.Status != ArcCommitted {
			continue
		}
		if err := host.BindRoute(rt.Arc.Net, rt.Pips); err != nil {
			return fmt.Errorf("bind route for net %q: %w", rt.Arc.NetName, err)
		}
	}
	return nil
}
