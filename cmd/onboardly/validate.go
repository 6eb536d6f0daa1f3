package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/onboardly/internal/governance"
	"github.com/rahul/onboardly/internal/tour"
	"github.com/rahul/onboardly/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate tour definition files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for tour definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := tour.GenerateJSONSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

type fileReport struct {
	def      *tour.Definition
	errors   []*tour.ValidationError
	warnings []*tour.ValidationError
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	policy, err := buildPolicy(cfg)
	if err != nil {
		return err
	}

	reports := make([]fileReport, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(8)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			reports[i] = validateOne(ctx, path, policy)
			return nil
		})
	}
	g.Wait()

	out := cmd.OutOrStdout()
	failed := 0
	for i, path := range args {
		r := reports[i]
		for _, w := range r.warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ %s: %s\n", path, describe(w))
		}
		if len(r.errors) > 0 {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %d error(s)\n", path, len(r.errors))
			for j, e := range r.errors {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", j+1, describe(e))
			}
			continue
		}
		fmt.Fprintf(out, "✓ %s is valid (%s, %d steps)\n", path, r.def.TourID, len(r.def.Steps))
	}
	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d file(s)", failed, len(args))
	}
	return nil
}

func validateOne(ctx context.Context, path string, policy governance.PolicyEngine) fileReport {
	def, all := tour.ValidateFile(ctx, path, policy)
	r := fileReport{def: def}
	for _, e := range all {
		if e.Severity == "warning" {
			r.warnings = append(r.warnings, e)
		} else {
			r.errors = append(r.errors, e)
		}
	}
	return r
}

func describe(e *tour.ValidationError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Phase, e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (at %s)", e.Path)
	}
	return b.String()
}
