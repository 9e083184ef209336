// Package cli hosts operational helpers that run outside the HTTP server.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// CheckOptions configures an offline conflict check over exported files.
type CheckOptions struct {
	// GraphPath points at a JSON array of roles (key, partition, implies).
	GraphPath string
	// AssignmentsPath points at a JSON array of user assignments.
	AssignmentsPath string
	// Priority ranks partitions highest first for removal suggestions.
	Priority []string
	// MaxDepth caps implication chain length. Zero disables the cap.
	MaxDepth int
	// JSONOutput switches the report from text lines to a JSON document.
	JSONOutput bool

	Stdout io.Writer
	Stderr io.Writer
}

// CheckReport is the JSON output document of an offline check.
type CheckReport struct {
	RolesLoaded     int             `json:"roles_loaded"`
	AccountsChecked int             `json:"accounts_checked"`
	Conflicts       []CheckConflict `json:"conflicts"`
}

// CheckConflict pairs a detected conflict with the suggested removals.
type CheckConflict struct {
	Conflict  rolegraph.Conflict `json:"conflict"`
	Suggested []string           `json:"suggested"`
}

// CheckCLI runs conflict checks against exported graph and assignment files,
// without Postgres or Redis.
type CheckCLI struct{}

// NewCheckCLI constructs the helper.
func NewCheckCLI() *CheckCLI {
	return &CheckCLI{}
}

// Run executes the check and returns a process exit code: 0 when clean,
// 1 when conflicts were found, 2 on input or traversal errors.
func (c *CheckCLI) Run(ctx context.Context, opts CheckOptions) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var roleList []rolegraph.Role
	if err := readJSONFile(opts.GraphPath, &roleList); err != nil {
		fmt.Fprintf(stderr, "load graph: %v\n", err)
		return 2
	}
	var assignments []rolegraph.Assignment
	if err := readJSONFile(opts.AssignmentsPath, &assignments); err != nil {
		fmt.Fprintf(stderr, "load assignments: %v\n", err)
		return 2
	}

	graph := rolegraph.NewGraph(roleList)
	if opts.MaxDepth > 0 {
		graph = graph.WithMaxDepth(opts.MaxDepth)
	}

	priority := opts.Priority
	if len(priority) == 0 {
		priority = []string{"internal", "portal"}
	}

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].UserID < assignments[j].UserID })

	report := CheckReport{RolesLoaded: graph.Len()}
	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(stderr, "check aborted: %v\n", err)
			return 2
		}
		conflict, err := graph.CheckUser(a)
		if err != nil {
			fmt.Fprintf(stderr, "check user %s: %v\n", a.UserID, err)
			return 2
		}
		report.AccountsChecked++
		if conflict == nil {
			continue
		}
		suggested, err := graph.SuggestRemoval(conflict, a, priority)
		if err != nil {
			fmt.Fprintf(stderr, "suggest removal for %s: %v\n", a.UserID, err)
			return 2
		}
		report.Conflicts = append(report.Conflicts, CheckConflict{Conflict: *conflict, Suggested: suggested})
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "encode report: %v\n", err)
			return 2
		}
	} else {
		writeTextReport(stdout, report)
	}

	if len(report.Conflicts) > 0 {
		return 1
	}
	return 0
}

func writeTextReport(w io.Writer, report CheckReport) {
	fmt.Fprintf(w, "checked %d accounts against %d roles\n", report.AccountsChecked, report.RolesLoaded)
	for _, c := range report.Conflicts {
		fmt.Fprintf(w, "conflict: user %s spans partitions %v\n", c.Conflict.UserID, c.Conflict.Partitions)
		for _, p := range c.Conflict.Partitions {
			fmt.Fprintf(w, "  %s via %v\n", p, c.Conflict.Witnesses[p])
		}
		fmt.Fprintf(w, "  suggest removing %v\n", c.Suggested)
	}
	if len(report.Conflicts) == 0 {
		fmt.Fprintln(w, "no conflicts found")
	}
}

func readJSONFile(path string, v any) error {
	if path == "" {
		return errors.New("path not provided")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
