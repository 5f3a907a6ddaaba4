// Package mcp provides a Model Context Protocol server for discredit.
//
// It exposes stored clustering runs, per-cluster message samples, and store
// statistics as read-only MCP tools over stdio transport, so agent clients
// can inspect discovery results without touching the database directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ul0gic/discredit/internal/inspect"
	"github.com/ul0gic/discredit/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines, and
// SQLite supports only one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server exposing all discredit tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Discredit",
		ver,
		server.WithToolCapabilities(false),
	)

	registerRunsTool(s, cfg.Store)
	registerRunTool(s, cfg.Store)
	registerClusterSamplesTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	return s
}

func registerRunsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("discredit_runs",
		mcp.WithDescription("List recorded clustering runs, newest first, with method, parameters, cluster counts, and quality metrics."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 20
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = int(l)
			if limit > 100 {
				limit = 100
			}
		}

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list runs error: %v", err)), nil
		}
		if len(runs) == 0 {
			return mcp.NewToolResultText("No clustering runs recorded yet."), nil
		}

		data, _ := json.MarshalIndent(runViews(runs), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("discredit_run",
		mcp.WithDescription("Get one clustering run by id, including its full parameter set, quality metrics, and cluster size distribution."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("run_id",
			mcp.Required(),
			mcp.Description("Clustering run id"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		runID, err := req.RequireFloat("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}

		run, err := st.GetRun(ctx, int64(runID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get run error: %v", err)), nil
		}
		if run == nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %d not found", int64(runID))), nil
		}

		view := runView(run)

		assignments, err := st.RunAssignments(ctx, run.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run assignments error: %v", err)), nil
		}
		sizes := map[int]int{}
		for _, a := range assignments {
			sizes[a.Label]++
		}
		view["cluster_sizes"] = sizes

		data, _ := json.MarshalIndent(view, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerClusterSamplesTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("discredit_cluster_samples",
		mcp.WithDescription("Draw random message samples from every cluster of a run for human review. Pass a seed for reproducible draws."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("run_id",
			mcp.Required(),
			mcp.Description("Clustering run id"),
		),
		mcp.WithNumber("samples_per_cluster",
			mcp.Description("Messages drawn per cluster (default: 5, max: 25)"),
		),
		mcp.WithBoolean("include_noise",
			mcp.Description("Include a sample of the noise bucket (default: false)"),
		),
		mcp.WithNumber("seed",
			mcp.Description("Random seed for reproducible sampling (default: time-based)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		runID, err := req.RequireFloat("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}

		opts := inspect.Options{}
		if n, err := req.RequireFloat("samples_per_cluster"); err == nil && n > 0 {
			opts.SamplesPerCluster = int(n)
			if opts.SamplesPerCluster > 25 {
				opts.SamplesPerCluster = 25
			}
		}
		if inc, err := req.RequireBool("include_noise"); err == nil {
			opts.IncludeNoise = inc
		}
		if seed, err := req.RequireFloat("seed"); err == nil {
			opts.Rand = rand.New(rand.NewSource(int64(seed)))
		}

		report, err := inspect.ClusterSamples(ctx, st, int64(runID), opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sampling error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("discredit_stats",
		mcp.WithDescription("Get store statistics: message, user, embedding, run, and assignment counts plus database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		out := map[string]any{
			"messages":      stats.MessageCount,
			"users":         stats.UserCount,
			"embeddings":    stats.EmbeddingCount,
			"runs":          stats.RunCount,
			"assignments":   stats.AssignmentCount,
			"db_size_bytes": stats.DBSizeBytes,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func runView(run *store.ClusteringRun) map[string]any {
	view := map[string]any{
		"id":         run.ID,
		"method":     run.Method,
		"parameters": run.Parameters,
		"n_clusters": run.NClusters,
		"n_noise":    run.NNoise,
		"n_samples":  run.NSamples,
		"created_at": run.CreatedAt,
	}
	if run.Silhouette != nil {
		view["silhouette_score"] = *run.Silhouette
	}
	if run.QualityMetrics != nil {
		view["quality_metrics"] = run.QualityMetrics
	}
	return view
}

func runViews(runs []*store.ClusteringRun) []map[string]any {
	views := make([]map[string]any, len(runs))
	for i, r := range runs {
		views[i] = runView(r)
	}
	return views
}
