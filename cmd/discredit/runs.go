package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/ul0gic/discredit/internal/config"
	"github.com/ul0gic/discredit/internal/inspect"
)

func runRuns(args []string) error {
	var dbPath string
	limit := 20

	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			dbPath = value
		case "--limit":
			v, err := strconv.Atoi(value)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid --limit: %q", value)
			}
			limit = v
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No clustering runs recorded yet.")
		return nil
	}

	fmt.Printf("%-6s %-20s %-9s %-8s %-9s %-11s %-20s\n",
		"ID", "METHOD", "CLUSTERS", "NOISE", "SAMPLES", "SILHOUETTE", "CREATED")
	for _, r := range runs {
		sil := "-"
		if r.Silhouette != nil {
			sil = fmt.Sprintf("%.4f", *r.Silhouette)
		}
		created := time.Unix(r.CreatedAt, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("%-6d %-20s %-9d %-8d %-9d %-11s %-20s\n",
			r.ID, r.Method, r.NClusters, r.NNoise, r.NSamples, sil, created)
	}
	return nil
}

func runSamples(args []string) error {
	var dbPath, exportPath string
	var runID int64
	perCluster := 0
	includeNoise := false
	seed := int64(-1)

	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--run":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid --run: %q", value)
			}
			runID = v
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			dbPath = value
		case "--per-cluster":
			v, err := strconv.Atoi(value)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid --per-cluster: %q", value)
			}
			perCluster = v
		case "--include-noise":
			if hasValue {
				return fmt.Errorf("--include-noise takes no value")
			}
			includeNoise = true
		case "--seed":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid --seed: %q", value)
			}
			seed = v
		case "--export":
			if !hasValue {
				return fmt.Errorf("--export requires a path")
			}
			exportPath = value
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}
	if runID == 0 {
		return fmt.Errorf("usage: discredit samples --run <id> [--per-cluster N] [--include-noise] [--seed N] [--export <path>]")
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := inspect.Options{SamplesPerCluster: perCluster, IncludeNoise: includeNoise}
	if seed >= 0 {
		opts.Rand = rand.New(rand.NewSource(seed))
	}

	report, err := inspect.ClusterSamples(context.Background(), st, runID, opts)
	if err != nil {
		return err
	}

	if exportPath != "" {
		if err := inspect.WriteJSON(report, exportPath); err != nil {
			return err
		}
		fmt.Printf("Samples written to %s\n", exportPath)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runStats(args []string) error {
	var dbPath string
	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			dbPath = value
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Messages:    %d\n", stats.MessageCount)
	fmt.Printf("Users:       %d\n", stats.UserCount)
	fmt.Printf("Embeddings:  %d\n", stats.EmbeddingCount)
	fmt.Printf("Runs:        %d\n", stats.RunCount)
	fmt.Printf("Assignments: %d\n", stats.AssignmentCount)
	fmt.Printf("DB size:     %.2f MB\n", float64(stats.DBSizeBytes)/(1024*1024))
	return nil
}

func runConfig(args []string) error {
	var dbPath, configPath string
	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			dbPath = value
		case "--config":
			if !hasValue {
				return fmt.Errorf("--config requires a path")
			}
			configPath = value
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}

	cfg, err := config.ResolveConfig(config.ResolveOptions{ConfigPath: configPath, CLIDBPath: dbPath})
	if err != nil {
		return err
	}

	// API keys are never printed, only their provenance.
	if cfg.OpenAIAPIKey.Value != "" {
		cfg.OpenAIAPIKey.Value = "(set)"
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
