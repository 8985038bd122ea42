package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bassamadnan/mailpilot/config"
	"github.com/bassamadnan/mailpilot/gmail"
	"github.com/bassamadnan/mailpilot/secrets"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Gmail token and the model API key",
	}
	cmd.AddCommand(newAuthLoginCmd(opts))
	cmd.AddCommand(newAuthSetKeyCmd(opts))
	cmd.AddCommand(newAuthStatusCmd(opts))
	return cmd
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt asks for a single value, through a form on a terminal and a plain line read otherwise.
func prompt(in io.Reader, out io.Writer, title string, secret bool) (string, error) {
	if !isInteractive() {
		fmt.Fprintf(out, "%s: ", title)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	var value string
	input := huh.NewInput().
		Title(title).
		Value(&value).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("required")
			}
			return nil
		})
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func newAuthLoginCmd(opts *rootOptions) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize Gmail access and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			oauthCfg, err := gmail.OAuthConfig(cfg.Gmail.CredentialsFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if code == "" {
				fmt.Fprintf(out, "Open this link in your browser and authorize access:\n\n%s\n\n", gmail.ConsentURL(oauthCfg))
				code, err = prompt(cmd.InOrStdin(), out, "Authorization code", false)
				if err != nil {
					return err
				}
			}
			if code == "" {
				return errors.New("no authorization code given")
			}

			if _, err := gmail.ExchangeCode(cmd.Context(), oauthCfg, code, tokenStore(cfg)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token stored (%s)\n", describeTokenStore(cfg))
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Authorization code, skipping the prompt")
	return cmd
}

func newAuthSetKeyCmd(opts *rootOptions) *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the model API key in the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			var key string
			if fromStdin {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				key = strings.TrimSpace(string(b))
			} else {
				key, err = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "API key", true)
				if err != nil {
					return err
				}
			}
			if key == "" {
				return errors.New("empty API key")
			}
			store := secrets.New(cfg.KeyringBackend)
			if err := store.SetAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key stored in keyring (%s)\n", store.Backend())
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the key from stdin")
	return cmd
}

func newAuthStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a Gmail token and an API key are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			tok, err := tokenStore(cfg).Load()
			switch {
			case errors.Is(err, gmail.ErrNoToken):
				fmt.Fprintf(out, "gmail token  missing (%s)\n", describeTokenStore(cfg))
			case err != nil:
				return err
			case tok.RefreshToken == "":
				fmt.Fprintf(out, "gmail token  present, no refresh token (%s)\n", describeTokenStore(cfg))
			default:
				fmt.Fprintf(out, "gmail token  present (%s)\n", describeTokenStore(cfg))
			}

			if cfg.LLM.APIKey == "" {
				fmt.Fprintln(out, "api key      missing")
			} else {
				fmt.Fprintf(out, "api key      present (%s)\n", cfg.LLM.APIKeySource)
			}
			return nil
		},
	}
}

func describeTokenStore(cfg config.Config) string {
	if cfg.Gmail.TokenStore == config.TokenStoreFile {
		return "file " + cfg.Gmail.TokenFile
	}
	return "keyring"
}
