package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/newsflow/internal/app"
	"github.com/unclebandit/newsflow/internal/model"
)

func NewImportSubscribersCommand(opts *RootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import-subscribers <file.json|file.yaml>",
		Short: "Import subscribers from a JSON or YAML file",
		Long: `Import subscribers from a file holding either a list of subscribers or an
object with a "subscribers" list. Imported entries are merged into the stored
list, replacing existing entries with the same email, unless --replace is
given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

			imported, err := readSubscribers(args[0])
			if err != nil {
				return out.Fail(ExitCommandError, err)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				subscribers := imported
				if !replace {
					existing, err := a.Subscribers.List(ctx)
					if err != nil {
						return out.Fail(ExitCommandError, err)
					}
					subscribers = append(existing, imported...)
				}

				count, err := a.Subscribers.ReplaceAll(ctx, subscribers)
				if err != nil {
					return out.Fail(ExitFailure, err)
				}
				result := map[string]int{"imported": len(imported), "total": count}
				return out.Success(result, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d subscribers from %s (%d total)\n", len(imported), args[0], count)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the stored list instead of merging")
	return cmd
}

// readSubscribers loads a subscriber file. YAML is converted to JSON first
// so unknown fields survive the same way they do over HTTP.
func readSubscribers(path string) ([]model.Subscriber, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
	}

	var subscribers []model.Subscriber
	if err := json.Unmarshal(data, &subscribers); err == nil {
		return validSubscribers(path, subscribers)
	}
	var wrapped struct {
		Subscribers []model.Subscriber `json:"subscribers"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return validSubscribers(path, wrapped.Subscribers)
}

func validSubscribers(path string, subscribers []model.Subscriber) ([]model.Subscriber, error) {
	for i, s := range subscribers {
		if strings.TrimSpace(s.Email) == "" {
			return nil, fmt.Errorf("%s: subscriber %d has no email", path, i)
		}
	}
	return subscribers, nil
}
