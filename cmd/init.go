package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/output"
)

var (
	errURLRequired  = errors.New("server URL is required")
	errUserRequired = errors.New("username is required")
)

var initCmd = &cobra.Command{
	Use:   "init <local_store>",
	Short: "Create a local store bound to a shared table",
	Long: `Creates a new local store file holding the repository coordinates of a
shared table. Missing coordinates are asked for interactively.

Examples:
  stb init people.xml --url http://example.net:8080/people --username alice
  stb init people.xml    # prompts for everything`,
	GroupID: "store",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := localstore.Repository{}
		repo.URL, _ = cmd.Flags().GetString("url")
		repo.Realm, _ = cmd.Flags().GetString("realm")
		repo.Username, _ = cmd.Flags().GetString("username")
		repo.Password, _ = cmd.Flags().GetString("password")

		if repo.URL == "" || repo.Username == "" {
			if err := runInitForm(&repo); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		if err := validateRepo(&repo); err != nil {
			output.Error("%v", err)
			return err
		}

		if err := localstore.Create(args[0], repo); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("created %s for %s", args[0], repo.URL)
		fmt.Printf("Run \"stb pull %s\" to fetch the table.\n", args[0])
		return nil
	},
}

// runInitForm asks for the repository coordinates, prefilled with
// whatever the flags already supplied.
func runInitForm(repo *localstore.Repository) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Value(&repo.URL).
				Placeholder("http://example.net:8080/people").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errURLRequired
					}
					return nil
				}),
			huh.NewInput().
				Title("Realm").
				Value(&repo.Realm).
				Placeholder("shared"),
			huh.NewInput().
				Title("Username").
				Value(&repo.Username).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errUserRequired
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				Value(&repo.Password).
				EchoMode(huh.EchoModePassword).
				Description("Leave empty to supply STB_PASSWORD at sync time."),
		).Title("New shared table"),
	)
	form.WithTheme(huh.ThemeDracula())
	return form.Run()
}

// validateRepo normalizes and checks the coordinates before they are
// written to disk.
func validateRepo(repo *localstore.Repository) error {
	repo.URL = strings.TrimSpace(repo.URL)
	repo.Username = strings.TrimSpace(repo.Username)
	repo.Realm = strings.TrimSpace(repo.Realm)

	if repo.URL == "" {
		return errURLRequired
	}
	u, err := url.Parse(repo.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", repo.URL)
	}
	if repo.Username == "" {
		return errUserRequired
	}
	if repo.Realm == "" {
		repo.Realm = "shared"
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("url", "", "Server URL of the shared table")
	initCmd.Flags().String("realm", "", "Digest auth realm (default \"shared\")")
	initCmd.Flags().String("username", "", "Username for the shared table")
	initCmd.Flags().String("password", "", "Password (prefer STB_PASSWORD or the prompt)")
}
