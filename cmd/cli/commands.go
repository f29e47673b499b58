package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/and161185/reflekt/internal/autosave"
	"github.com/and161185/reflekt/internal/client"
	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/model"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return id, nil
}

func credentialFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVarP(email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func addRegister(topLevel *cobra.Command, opts *options) {
	var email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Example: `
reflekt register -e me@example.com -p secret
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(false)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			id, err := c.Register(ctx, email, password)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "registered", id)
			return nil
		},
	}
	credentialFlags(cmd, &email, &password)
	topLevel.AddCommand(cmd)
}

func addLogin(topLevel *cobra.Command, opts *options) {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(false)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			tok, err := c.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveToken(tok.AccessToken, tok.ExpiresAt); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("logged in"), "until", tok.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
	credentialFlags(cmd, &email, &password)
	topLevel.AddCommand(cmd)
}

func addLogout(topLevel *cobra.Command) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return removeToken()
		},
	})
}

func addToday(topLevel *cobra.Command, opts *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Show today's entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			e, err := c.Today(ctx, time.Now())
			if errors.Is(err, errs.ErrNotFound) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing written today yet. Start with: reflekt write")
				return nil
			}
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), *e)
			return nil
		},
	})
}

func addShow(topLevel *cobra.Command, opts *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			e, err := c.Get(ctx, id)
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), *e)
			return nil
		},
	})
}

func addWrite(topLevel *cobra.Command, opts *options) {
	cmd := &cobra.Command{
		Use:   "write [ID|new]",
		Short: "Write into an entry from stdin, saving as you go",
		Long: `Each input line is appended as a paragraph and saved shortly after you stop typing.
A line starting with ":title " sets the title. End input (Ctrl-D) to finish.
Without an argument, today's entry is opened, or a new one is started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx := cmd.Context()

			entry, err := openEntry(opts, c, args)
			if err != nil {
				return err
			}
			_, err = runWrite(ctx, c, entry, cmd.InOrStdin(), cmd.OutOrStdout(), autosave.Options{Logger: opts.logger()})
			return err
		},
	}
	topLevel.AddCommand(cmd)
}

func openEntry(opts *options, c *client.Client, args []string) (model.Entry, error) {
	ctx, cancel := opts.context()
	defer cancel()
	switch {
	case len(args) == 1 && args[0] == "new":
		return model.Entry{ID: model.NewEntryID}, nil
	case len(args) == 1:
		id, err := parseID(args[0])
		if err != nil {
			return model.Entry{}, err
		}
		e, err := c.Get(ctx, id)
		if err != nil {
			return model.Entry{}, err
		}
		return *e, nil
	default:
		e, err := c.Today(ctx, time.Now())
		if errors.Is(err, errs.ErrNotFound) {
			return model.Entry{ID: model.NewEntryID}, nil
		}
		if err != nil {
			return model.Entry{}, err
		}
		return *e, nil
	}
}

func addDelete(topLevel *cobra.Command, opts *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete an entry permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			if _, err := c.Delete(ctx, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
			return nil
		},
	})
}

func addList(topLevel *cobra.Command, opts *options) {
	var p client.ListParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse the archive",
		Example: `
reflekt list --q trip --from 2024-01-01 --to 2024-01-10
reflekt list --page 2
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			b := client.NewBrowser(c)
			if _, err := b.SetDates(ctx, p.From, p.To); err != nil {
				return err
			}
			page, err := b.Search(ctx, p.Query)
			for err == nil && page.Page < p.Page && page.HasNext() {
				page, err = b.Next(ctx)
			}
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), page, p.Query != "" || p.From != "" || p.To != "")
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Query, "q", "", "title contains (case-insensitive)")
	cmd.Flags().StringVar(&p.From, "from", "", "created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.To, "to", "", "created on or before (YYYY-MM-DD)")
	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	topLevel.AddCommand(cmd)
}

func addSidebar(topLevel *cobra.Command, opts *options) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "sidebar",
		Short: "Recent entries grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			es, err := c.Recent(ctx)
			if err != nil {
				return err
			}
			printSidebar(cmd.OutOrStdout(), es, time.Now())
			return nil
		},
	})
}

type importItem struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// readImportFile loads a JSON array of {title, content, created_at}.
func readImportFile(path string) ([]model.ImportedEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []importItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]model.ImportedEntry, 0, len(items))
	for _, it := range items {
		out = append(out, model.ImportedEntry(it))
	}
	return out, nil
}

func addImport(topLevel *cobra.Command, opts *options) {
	var source string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import legacy entries from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			c, err := opts.dial(true)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := opts.context()
			defer cancel()

			n, err := c.Import(ctx, source, entries)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries from %s\n", n, source)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "import", "name of the originating app")
	topLevel.AddCommand(cmd)
}
