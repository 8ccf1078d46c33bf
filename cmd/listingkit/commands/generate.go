package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/generate"
	"github.com/livetemplate/listingkit/internal/store"
)

type generateOptions struct {
	config   string
	kind     string
	prompt   string
	variants int
	out      string
	provider string
	model    string
	images   []string
	content  map[string]string
}

func newGenerateCommand() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate template documents with an AI provider",
		Long: `Generate asks the configured provider for one or more template documents.
Invalid answers are re-prompted with the validation problems, up to
ai.max_attempts times.

Without --out the documents are printed as JSON. With --out each document is
saved as <id>.json in that directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "Config file (default: ./listingkit.yaml)")
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "product", "Document kind (product/seller/advert/custom)")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Description of the listing")
	cmd.Flags().IntVar(&opts.variants, "variants", 0, "Number of documents to generate (default: ai.variants)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Directory to save documents in")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Override ai.provider (gemini/anthropic/openai)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Override ai.model")
	cmd.Flags().StringSliceVar(&opts.images, "image", nil, "Image URL to place in the listing (repeatable)")
	cmd.Flags().StringToStringVar(&opts.content, "content", nil, "Seller content that must appear verbatim (key=value)")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := loadConfig(opts.config, ".")
	if err != nil {
		return err
	}
	if err := applyAIFlags(cfg, opts.provider, opts.model); err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, err := buildGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	req := generate.Request{Kind: opts.kind, Prompt: opts.prompt, Images: opts.images}
	if len(opts.content) > 0 {
		req.Content = make(map[string]interface{}, len(opts.content))
		for k, v := range opts.content {
			req.Content[k] = v
		}
	}
	variants := opts.variants
	if variants == 0 {
		variants = cfg.AI.GetVariants()
	}
	if variants < 1 {
		return fmt.Errorf("--variants must be at least 1")
	}

	results, err := svc.GenerateVariants(ctx, req, variants)
	if err != nil {
		if errors.Is(err, generate.ErrInvalidRequest) {
			return err
		}
		logger.Warn("generation failed", zap.String("kind", req.Kind), zap.Error(err))
		return errors.New(generate.UserFriendlyMessage(err))
	}

	if opts.out == "" {
		docs := make([]*listingkit.Document, len(results))
		for i, res := range results {
			docs[i] = res.Document
		}
		var v interface{} = docs
		if len(docs) == 1 {
			v = docs[0]
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	fs, err := store.NewFileStore(opts.out, logger)
	if err != nil {
		return err
	}
	defer fs.Close()

	for _, res := range results {
		id := store.NewID()
		if err := fs.Put(ctx, id, res.Document); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s %s %s\n",
			SuccessStyle.Render("✓"),
			InfoStyle.Render(fs.Path(id)),
			res.Document.Name(),
			HelpStyle.Render(fmt.Sprintf("(%s, %d attempt(s))", res.Provider, res.Attempts)))
	}
	return nil
}
