// Command check runs an offline conflict check over exported graph and
// assignment files, without touching Postgres or Redis. It exits 0 when the
// assignments are clean, 1 when conflicts were found and 2 on bad input.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/gatehouse-fm/gatehouse/cmd/gatehouse/cli"
)

func main() {
	var (
		graphPath       = flag.String("graph", "", "path to the exported role graph JSON")
		assignmentsPath = flag.String("assignments", "", "path to the exported assignments JSON")
		priority        = flag.String("priority", "internal,portal", "partition priority, highest first")
		maxDepth        = flag.Int("max-depth", 0, "implication chain depth cap, 0 disables")
		jsonOut         = flag.Bool("json", false, "emit the report as JSON")
	)
	flag.Parse()

	var order []string
	for _, p := range strings.Split(*priority, ",") {
		if p = strings.TrimSpace(p); p != "" {
			order = append(order, p)
		}
	}

	checker := cli.NewCheckCLI()
	os.Exit(checker.Run(context.Background(), cli.CheckOptions{
		GraphPath:       *graphPath,
		AssignmentsPath: *assignmentsPath,
		Priority:        order,
		MaxDepth:        *maxDepth,
		JSONOutput:      *jsonOut,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}))
}
