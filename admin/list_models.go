package admin

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/malonaz/inquirex/internal/cli"
	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/store"
)

// NewListModelsCmd instantiates and returns the models command.
func NewListModelsCmd(gateway llm.Gateway, s *store.Store) *cobra.Command {
	var opts struct {
		Search   string
		PageSize int
		Verbose  bool
	}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available AI models",
		Long:  "List the models offered by OpenRouter for the configured api key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := gateway.ListModels(cmd.Context(), s.Settings().APIKey)
			if err != nil {
				return errors.Wrap(err, "listing models")
			}
			models = filterModels(models, opts.Search)
			current := s.Settings().Model

			for page := 0; page*opts.PageSize < len(models); page++ {
				end := min((page+1)*opts.PageSize, len(models))
				cli.Title("Available Models - Page %d (%d models)", page+1, end-page*opts.PageSize)
				for _, model := range models[page*opts.PageSize : end] {
					printModel(model, model.ID == current, opts.Verbose)
				}
				if end == len(models) {
					break
				}
				cli.Separator()
				if !cli.QueryUser("Load next page?") {
					return nil
				}
			}
			cli.Separator()
			cli.Title("End of Results")
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "only list models whose id or name contains this")
	cmd.Flags().IntVarP(&opts.PageSize, "page-size", "p", 25, "models per page")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "Show all model fields.")
	return cmd
}

func filterModels(models []*llm.ModelInfo, search string) []*llm.ModelInfo {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return models
	}
	filtered := []*llm.ModelInfo{}
	for _, model := range models {
		if strings.Contains(strings.ToLower(model.ID), search) || strings.Contains(strings.ToLower(model.Name), search) {
			filtered = append(filtered, model)
		}
	}
	return filtered
}

func printModel(model *llm.ModelInfo, current, verbose bool) {
	marker := " "
	if current {
		marker = "*"
	}
	cli.AIOutput(fmt.Sprintf("%s %s (%s)\n", marker, model.ID, model.Name))
	if !verbose {
		return
	}
	cli.AIThought("    context: %d tokens, prompt: %s, completion: %s\n", model.ContextLength, model.Pricing.Prompt, model.Pricing.Completion)
	if model.Description != "" {
		cli.AIThought("    %s\n", model.Description)
	}
}
