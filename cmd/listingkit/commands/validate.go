package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livetemplate/listingkit"
)

var errValidationFailed = errors.New("validation failed")

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Validate template documents",
		Long: `Validate checks each JSON template document against the document shape:
node ids, guards, bindings, style values and asset URLs.

Directories are searched recursively for .json files. Hidden directories and
directories starting with an underscore are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	var valid, errCount, warnCount int
	for _, file := range files {
		problems, err := validateFile(file)
		if err != nil {
			errCount++
			fmt.Fprintf(out, "%s %s\n", ErrorStyle.Render("✗"), file)
			fmt.Fprintf(out, "  %s\n", err)
			continue
		}
		if listingkit.HasErrors(problems) {
			fmt.Fprintf(out, "%s %s\n", ErrorStyle.Render("✗"), file)
		} else {
			valid++
			fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("✓"), file)
		}
		for _, p := range problems {
			if p.Severity == listingkit.SeverityError {
				errCount++
			} else {
				warnCount++
			}
			printProblem(out, p)
		}
	}

	printSummary(out, len(files), valid, errCount, warnCount)
	if errCount > 0 {
		fmt.Fprintln(out, ErrorStyle.Render(fmt.Sprintf("✗ Validation failed with %d error(s)", errCount)))
		return errValidationFailed
	}
	fmt.Fprintln(out, SuccessStyle.Render("✓ All checks passed!"))
	return nil
}

// validateFile returns the problems in one document. Unreadable files and
// files that are not JSON are an error.
func validateFile(path string) ([]listingkit.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw interface{}
	if err := json.Unmarshal([]byte(listingkit.ExtractJSON(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return listingkit.Validate(raw), nil
}

func printProblem(out io.Writer, p listingkit.Problem) {
	style := WarningStyle
	if p.Severity == listingkit.SeverityError {
		style = ErrorStyle
	}
	fmt.Fprintf(out, "  %s %s\n", style.Render(fmt.Sprintf("%-7s", p.Severity)), p)
}

func printSummary(out io.Writer, total, valid, errs, warnings int) {
	fmt.Fprintf(out, "\n%s\n", strings.Repeat("─", separatorWidth))
	fmt.Fprintln(out, TitleStyle.Render("Summary:"))
	fmt.Fprintf(out, "  Total files: %d\n", total)
	fmt.Fprintf(out, "  Valid:       %d\n", valid)
	fmt.Fprintf(out, "  Errors:      %d\n", errs)
	fmt.Fprintf(out, "  Warnings:    %d\n\n", warnings)
}

// collectFiles expands directories into the .json files beneath them.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path does not exist: %s", arg)
			}
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != arg && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(name) == ".json" && !strings.HasPrefix(name, ".") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory: %w", err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .json documents found")
	}
	return files, nil
}
