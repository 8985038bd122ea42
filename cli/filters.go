package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bassamadnan/mailpilot/config"
)

func newFiltersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage the rules that drop mail before it reaches the model",
	}
	cmd.AddCommand(newFiltersListCmd(opts))

	rules := []struct {
		name   string
		what   string
		add    func(*config.Manager, string) error
		remove func(*config.Manager, string) error
	}{
		{"sender", "an ignored sender address", (*config.Manager).AddIgnoreSender, (*config.Manager).RemoveIgnoreSender},
		{"subject", "an ignored subject keyword", (*config.Manager).AddIgnoreKeywordInSubject, (*config.Manager).RemoveIgnoreKeywordInSubject},
		{"body", "an ignored body keyword", (*config.Manager).AddIgnoreKeywordInBody, (*config.Manager).RemoveIgnoreKeywordInBody},
	}
	for _, r := range rules {
		cmd.AddCommand(newFilterEditCmd(opts, "add-"+r.name, "Add "+r.what, r.add))
		cmd.AddCommand(newFilterEditCmd(opts, "remove-"+r.name, "Remove "+r.what, r.remove))
	}
	return cmd
}

func openFilters(opts *rootOptions) (*config.Manager, error) {
	cfg, err := loadConfig(opts, false)
	if err != nil {
		return nil, err
	}
	return config.NewManager(cfg.FiltersFile, zerolog.Nop())
}

func newFiltersListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the current rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openFilters(opts)
			if err != nil {
				return err
			}
			f := m.GetFilters()
			out := cmd.OutOrStdout()
			printRules(out, "senders", f.IgnoreSenders)
			printRules(out, "subject keywords", f.IgnoreKeywordsInSubject)
			printRules(out, "body keywords", f.IgnoreKeywordsInBody)
			return nil
		},
	}
}

func newFilterEditCmd(opts *rootOptions, use, short string, edit func(*config.Manager, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <value>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openFilters(opts)
			if err != nil {
				return err
			}
			for _, v := range args {
				if strings.TrimSpace(v) == "" {
					continue
				}
				if err := edit(m, v); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", m.Path())
			return nil
		},
	}
}

func printRules(w io.Writer, title string, rules []string) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(rules) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, r := range rules {
		fmt.Fprintf(w, "  %s\n", r)
	}
}
