package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ul0gic/discredit/internal/config"
	"github.com/ul0gic/discredit/internal/embed"
)

func runEmbed(args []string) error {
	var dbPath, model string
	batchSize := 0
	dryRun := false

	for i := 0; i < len(args); i++ {
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			dbPath = value
		case "--model":
			if !hasValue {
				return fmt.Errorf("--model requires a value")
			}
			model = value
		case "--batch-size":
			v, err := strconv.Atoi(value)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid --batch-size: %q", value)
			}
			batchSize = v
		case "--dry-run", "-n":
			if hasValue {
				return fmt.Errorf("%s takes no value", name)
			}
			dryRun = true
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}

	cfg, err := config.ResolveConfig(config.ResolveOptions{CLIDBPath: dbPath, CLIEmbedModel: model})
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	pipeline := &embed.Pipeline{
		Source:    st,
		Sink:      st,
		BatchSize: batchSize,
		Progress: func(done, total int) {
			fmt.Printf("  embedded %d/%d\n", done, total)
		},
	}

	if dryRun {
		plan, err := pipeline.Plan(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Pending:  %d messages (%d filtered out)\n", plan.Pending, plan.Skipped)
		fmt.Printf("Estimate: ~%d tokens, ~$%.4f\n", plan.EstimatedTokens, plan.EstimatedUSD)
		return nil
	}

	embedModel := cfg.EffectiveEmbedModel(embed.DefaultModel)
	embedder, err := embed.NewOpenAIEmbedder(cfg.OpenAIAPIKey.Value, embedModel.Value)
	if err != nil {
		return err
	}
	pipeline.Embedder = embedder

	done, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("embedding stopped after %d messages: %w", done, err)
	}
	fmt.Printf("Embedded %d messages with %s\n", done, embedder.Model())
	return nil
}
