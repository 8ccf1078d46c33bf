package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/livetemplate/listingkit"
)

func newFixCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "fix <file|dir>...",
		Short: "Auto-fix common document problems",
		Long: `Fix synthesizes missing parts of template documents: the component root,
metadata, the default styleVariables palette and node ids. Problems that
cannot be fixed automatically are reported after the fixes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd, args, dryRun)
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show fixes without writing files")
	return cmd
}

func runFix(cmd *cobra.Command, args []string, dryRun bool) error {
	out := cmd.OutOrStdout()
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	var fixedFiles, totalFixes, failed int
	for _, file := range files {
		fixes, problems, err := fixFile(file, dryRun)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: %s\n", ErrorStyle.Render("✗"), file, err)
			continue
		}
		if len(fixes) == 0 && len(problems) == 0 {
			continue
		}

		status := SuccessStyle.Render("✓")
		if dryRun {
			status = WarningStyle.Render("○")
		}
		if listingkit.HasErrors(problems) {
			status = ErrorStyle.Render("✗")
		}
		fmt.Fprintf(out, "%s %s\n", status, file)
		for _, fix := range fixes {
			fmt.Fprintf(out, "  - %s\n", fix)
		}
		for _, p := range problems {
			printProblem(out, p)
		}
		if len(fixes) > 0 {
			fixedFiles++
			totalFixes += len(fixes)
		}
	}

	fmt.Fprintln(out)
	switch {
	case totalFixes == 0:
		fmt.Fprintln(out, SuccessStyle.Render("✓ No fixes needed"))
	case dryRun:
		fmt.Fprintf(out, "%d fix(es) in %d file(s) would be applied\n", totalFixes, fixedFiles)
		fmt.Fprintln(out, HelpStyle.Render("Run without --dry-run to apply them"))
	default:
		fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("✓ Applied %d fix(es) in %d file(s)", totalFixes, fixedFiles)))
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be fixed", failed)
	}
	return nil
}

// fixFile applies Fix to one document and returns the fixes together with
// the problems that remain. The file is rewritten only when something
// changed and dryRun is false.
func fixFile(path string, dryRun bool) ([]string, []listingkit.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(listingkit.ExtractJSON(string(data))), &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	fixed, fixes := listingkit.Fix(raw)
	problems := listingkit.Validate(fixed)
	if len(fixes) == 0 || dryRun {
		return fixes, problems, nil
	}

	out, err := json.MarshalIndent(fixed, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(path, append(out, '\n'), info.Mode().Perm()); err != nil {
		return nil, nil, fmt.Errorf("failed to write file: %w", err)
	}
	return fixes, problems, nil
}
