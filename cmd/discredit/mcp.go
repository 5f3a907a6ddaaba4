package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ul0gic/discredit/internal/mcp"
)

func runMCP(args []string) error {
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

	s := mcp.NewServer(mcp.ServerConfig{Store: st, Version: version})
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
