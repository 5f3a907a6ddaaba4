// Command discredit is the market-intelligence discovery pipeline CLI:
// import scraped messages, embed them, cluster the embedding space, and
// inspect the resulting clusters.
package main

import (
	"fmt"
	"os"

	"github.com/ul0gic/discredit/internal/taxonomy"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "embed":
		err = runEmbed(os.Args[2:])
	case "cluster":
		err = runCluster(os.Args[2:])
	case "runs":
		err = runRuns(os.Args[2:])
	case "samples":
		err = runSamples(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "taxonomy":
		fmt.Print(taxonomy.Summary())
	case "config":
		err = runConfig(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("discredit %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`discredit %s - message clustering for market intelligence

Usage:
  discredit <command> [arguments]

Commands:
  import <path>       Import scraped messages from a JSONL file
  embed               Embed messages that have no vector yet
  cluster             Cluster the embedding space and save the run
  runs                List recorded clustering runs
  samples             Draw random message samples from a run's clusters
  stats               Show store statistics
  taxonomy            Print the classification taxonomy
  config              Show resolved configuration and value provenance
  mcp                 Serve runs and samples over MCP (stdio)
  version             Print version

Cluster Flags:
  --method <m>        density | centroid | reduction_density | compare
  --min-cluster-size  Density: smallest cluster kept (default 25)
  --min-samples       Density: neighborhood size for core distance (default 10)
  --k <n>             Centroid: number of clusters
  --k-values <list>   Compare: comma-separated k values (default 5,10,15,20)
  --n-components <n>  Reduction: output dimensionality (default 50)
  --seed <n>          Random seed (default 42)
  --save              Persist the run and its assignments
  --export-samples <path>   Write per-cluster samples as JSON after the run
  --samples-per-cluster <n> Samples drawn per cluster (default 5)

Common Flags:
  --db <path>         Database path (default ~/.discredit/discredit.db)
  -h, --help          Show this help message
`, version)
}
