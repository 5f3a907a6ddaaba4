package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/ul0gic/discredit/internal/cluster"
	"github.com/ul0gic/discredit/internal/inspect"
	"github.com/ul0gic/discredit/internal/store"
)

type clusterFlags struct {
	method            string
	minClusterSize    int
	minSamples        int
	k                 int
	kValues           []int
	nComponents       int
	seed              int64
	save              bool
	exportSamples     string
	samplesPerCluster int
	dbPath            string
}

func runCluster(args []string) error {
	flags := clusterFlags{
		method:  "density",
		kValues: []int{5, 10, 15, 20},
		seed:    42,
	}

	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--method":
			if !hasValue {
				return fmt.Errorf("--method requires a value")
			}
			flags.method = value
		case "--min-cluster-size":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid --min-cluster-size: %q", value)
			}
			flags.minClusterSize = v
		case "--min-samples":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid --min-samples: %q", value)
			}
			flags.minSamples = v
		case "--k":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid --k: %q", value)
			}
			flags.k = v
		case "--k-values":
			vs, err := parseIntList(value)
			if err != nil {
				return fmt.Errorf("invalid --k-values: %w", err)
			}
			flags.kValues = vs
		case "--n-components":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid --n-components: %q", value)
			}
			flags.nComponents = v
		case "--seed":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid --seed: %q", value)
			}
			flags.seed = v
		case "--export-samples":
			if !hasValue {
				return fmt.Errorf("--export-samples requires a path")
			}
			flags.exportSamples = value
		case "--samples-per-cluster":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid --samples-per-cluster: %q", value)
			}
			flags.samplesPerCluster = v
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			flags.dbPath = value
		case "--save":
			if hasValue {
				return fmt.Errorf("--save takes no value")
			}
			flags.save = true
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	st, err := openStore(flags.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	engine := cluster.NewEngine(cluster.RunContext{Source: st, Store: st, Seed: flags.seed})

	switch flags.method {
	case string(cluster.MethodDensity):
		result, err := engine.Density(ctx, cluster.DensityParams{
			MinClusterSize: flags.minClusterSize,
			MinSamples:     flags.minSamples,
		})
		if err != nil {
			return err
		}
		return finishRun(ctx, engine, st, flags, &result.Summary, result.MessageIDs, result.Labels)

	case string(cluster.MethodCentroid):
		if flags.k <= 0 {
			return fmt.Errorf("--k is required for centroid clustering")
		}
		result, err := engine.Centroid(ctx, cluster.CentroidParams{K: flags.k})
		if err != nil {
			return err
		}
		fmt.Printf("Inertia: %.4f\n", result.Inertia)
		return finishRun(ctx, engine, st, flags, &result.Summary, result.MessageIDs, result.Labels)

	case string(cluster.MethodReductionDensity):
		result, err := engine.ReductionDensity(ctx, cluster.ReductionParams{
			NComponents:    flags.nComponents,
			MinClusterSize: flags.minClusterSize,
			MinSamples:     flags.minSamples,
		})
		if err != nil {
			return err
		}
		return finishRun(ctx, engine, st, flags, &result.Summary, result.MessageIDs, result.Labels)

	case "compare":
		return runCompare(ctx, engine, flags.kValues)

	default:
		return fmt.Errorf("unknown method %q (supported: density, centroid, reduction_density, compare)", flags.method)
	}
}

// runCompare sweeps centroid clustering across k values and prints a
// comparison table. Nothing is persisted.
func runCompare(ctx context.Context, engine *cluster.Engine, kValues []int) error {
	fmt.Printf("%-6s %-12s %-12s %-14s %-14s\n", "K", "INERTIA", "SILHOUETTE", "CALINSKI-H", "DAVIES-B")
	for _, k := range kValues {
		result, err := engine.Centroid(ctx, cluster.CentroidParams{K: k})
		if err != nil {
			return fmt.Errorf("k=%d: %w", k, err)
		}
		sil, ch, db := "-", "-", "-"
		if q := result.Summary.Quality; q != nil {
			sil = fmt.Sprintf("%.4f", q.Silhouette)
			ch = fmt.Sprintf("%.2f", q.CalinskiHarabasz)
			db = fmt.Sprintf("%.4f", q.DaviesBouldin)
		}
		fmt.Printf("%-6d %-12.2f %-12s %-14s %-14s\n", k, result.Inertia, sil, ch, db)
	}
	return nil
}

// finishRun prints the result summary, then persists and samples as flagged.
func finishRun(ctx context.Context, engine *cluster.Engine, st store.Store, flags clusterFlags, summary *cluster.RunSummary, ids []string, labels []int) error {
	printSummary(summary)

	if flags.save {
		runID, err := engine.Save(ctx, summary, ids, labels)
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Printf("Saved as run %d\n", runID)
	}

	if flags.exportSamples != "" {
		reader := &resultReader{store: st, ids: ids, labels: labels}
		report, err := inspect.ClusterSamples(ctx, reader, summary.RunID, inspect.Options{
			SamplesPerCluster: flags.samplesPerCluster,
			Rand:              rand.New(rand.NewSource(flags.seed)),
		})
		if err != nil {
			return fmt.Errorf("sampling clusters: %w", err)
		}
		if err := inspect.WriteJSON(report, flags.exportSamples); err != nil {
			return err
		}
		fmt.Printf("Samples written to %s\n", flags.exportSamples)
	}
	return nil
}

func printSummary(summary *cluster.RunSummary) {
	fmt.Printf("Method:    %s\n", summary.Method)
	fmt.Printf("Samples:   %d\n", summary.NSamples)
	fmt.Printf("Clusters:  %d\n", summary.NClusters)
	fmt.Printf("Noise:     %d\n", summary.NNoise)
	if q := summary.Quality; q != nil {
		fmt.Printf("Silhouette:        %.4f\n", q.Silhouette)
		fmt.Printf("Calinski-Harabasz: %.2f\n", q.CalinskiHarabasz)
		fmt.Printf("Davies-Bouldin:    %.4f\n", q.DaviesBouldin)
	}

	labels := make([]int, 0, len(summary.ClusterSizes))
	for l := range summary.ClusterSizes {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	for _, l := range labels {
		fmt.Printf("  cluster %d: %d messages\n", l, summary.ClusterSizes[l])
	}
}

// resultReader serves in-memory clustering output as an inspect source, so
// samples can be drawn from an unsaved run.
type resultReader struct {
	store  store.Store
	ids    []string
	labels []int
}

func (r *resultReader) RunAssignments(ctx context.Context, runID int64) ([]store.Assignment, error) {
	assignments := make([]store.Assignment, len(r.ids))
	for i, id := range r.ids {
		assignments[i] = store.Assignment{MessageID: id, Label: r.labels[i]}
	}
	return assignments, nil
}

func (r *resultReader) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	return r.store.GetMessage(ctx, id)
}

func parseIntList(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", p)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return values, nil
}
