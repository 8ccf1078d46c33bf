package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/render"
	"github.com/livetemplate/listingkit/internal/runtime"
)

type renderOptions struct {
	editing bool
	state   map[string]string
	form    map[string]string
	errors  map[string]string
	out     string
}

func newRenderCommand() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a template document to HTML",
		Long: `Render evaluates a template document against its content and images and
prints the resulting HTML. Interaction state can be supplied with flags:

  listingkit render shirt.json --state faq_active=true --form email=a@b.co

Problems found while rendering are printed to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.editing, "editing", false, "Render in editing mode")
	cmd.Flags().StringToStringVar(&opts.state, "state", nil, "Boolean UI state (key=true|false)")
	cmd.Flags().StringToStringVar(&opts.form, "form", nil, "Form field values (name=value)")
	cmd.Flags().StringToStringVar(&opts.errors, "error", nil, "Form field errors (name=message)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write HTML to a file instead of stdout")
	return cmd
}

func runRender(cmd *cobra.Command, file string, opts renderOptions) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	doc, err := listingkit.ParseDocument(data)
	var problems []listingkit.Problem
	var verr *listingkit.DocumentValidationError
	switch {
	case err == nil:
	case doc != nil && errors.As(err, &verr):
		problems = verr.Errors()
	default:
		return fmt.Errorf("%s: %w", file, err)
	}

	ctx, err := renderContext(doc, opts)
	if err != nil {
		return err
	}
	res := render.RenderDocument(doc, ctx, render.Options{Editing: opts.editing})
	html, err := render.RenderHTML(res.Root)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	stderr := cmd.ErrOrStderr()
	for _, p := range append(problems, res.Problems...) {
		printProblem(stderr, p)
	}

	if opts.out != "" {
		if err := os.WriteFile(opts.out, []byte(html+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintf(stderr, "%s Wrote %s\n", SuccessStyle.Render("✓"), opts.out)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), html)
	return nil
}

func renderContext(doc *listingkit.Document, opts renderOptions) (*runtime.RenderContext, error) {
	ctx := runtime.NewRenderContext()
	if doc.Content != nil {
		ctx.Content = doc.Content
	}
	ctx.Images = doc.Images
	for k, v := range opts.state {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("--state %s: want true or false, got %q", k, v)
		}
		ctx.State[k] = b
	}
	for k, v := range opts.form {
		ctx.FormData[k] = v
	}
	for k, v := range opts.errors {
		ctx.Errors[k] = v
	}
	return ctx, nil
}
