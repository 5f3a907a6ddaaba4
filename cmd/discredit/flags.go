package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ul0gic/discredit/internal/config"
	"github.com/ul0gic/discredit/internal/store"
)

// splitFlag returns the flag name and its value, accepting both "--flag=v"
// and "--flag v" forms. For the space form the next argument is consumed only
// if it does not look like another flag; negative numbers look like flags but
// are consumed as values.
func splitFlag(args []string, i *int) (name, value string, hasValue bool) {
	arg := args[*i]
	if idx := strings.Index(arg, "="); idx >= 0 {
		return arg[:idx], arg[idx+1:], true
	}
	if *i+1 < len(args) {
		next := args[*i+1]
		if !strings.HasPrefix(next, "-") || isNumber(next) {
			*i++
			return arg, next, true
		}
	}
	return arg, "", false
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// openStore opens the SQLite store at the resolved path. The --db flag wins
// over DISCREDIT_DB, which wins over the config file.
func openStore(dbFlag string) (store.Store, error) {
	cfg, err := config.ResolveConfig(config.ResolveOptions{CLIDBPath: dbFlag})
	if err != nil {
		return nil, err
	}
	path := cfg.EffectiveDBPath(store.DefaultDBPath)

	st, err := store.NewStore(store.StoreConfig{DBPath: path.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}
