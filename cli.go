package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// This file binds every discrete user action to its core service. Each
// command carries a correlation id through the logger so one invocation
// can be traced end to end, and every failure is converted into a
// user-visible message instead of a crash.

// SetupCommands builds the command tree of the client.
func (app *App) SetupCommands() *cobra.Command {
	root := &cobra.Command{
		Use:           "freelit",
		Short:         "freelit is an e-book catalog and reader client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		app.homeCommand(),
		app.searchCommand(),
		app.libraryCommand(),
		app.bookCommand(),
		app.saveCommand(),
		app.unsaveCommand(),
		app.toggleCommand(),
		app.downloadCommand(),
		app.removeCommand(),
		app.loginCommand(),
		app.registerCommand(),
		app.logoutCommand(),
		app.whoamiCommand(),
		app.forgotPasswordCommand(),
		app.versionCommand(),
	)
	return root
}

// commandLogger returns a logger stamped with a fresh correlation id for
// one user action.
func (app *App) commandLogger(name string) *zap.Logger {
	return app.logger.With(
		zap.String("command", name),
		zap.String("command.id", app.ids.Generate(CommandIDPrefix)),
	)
}

func (app *App) homeCommand() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Show the home feed of the selected category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("home")
			books, err := app.catalog.FetchAll(cmd.Context())
			if err != nil {
				logger.Error("failed to fetch catalog", zap.Error(err))
				return err
			}
			feed := HomeFeed(books, category, app.config.Library.HomeFeedLimit)
			logger.Info("home feed derived", zap.String("category", category), zap.Int("total", len(feed)))
			printBooks(cmd, feed)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "Filosofía", "category tab to display")
	return cmd
}

func (app *App) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog by title or author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("search")
			books, err := app.catalog.FetchAll(cmd.Context())
			if err != nil {
				logger.Error("failed to fetch catalog", zap.Error(err))
				return err
			}
			results := SearchBooks(books, args[0])
			logger.Info("search completed", zap.String("query", args[0]), zap.Int("total", len(results)))
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			printBooks(cmd, results)
			return nil
		},
	}
}

func (app *App) libraryCommand() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Show the books saved in my library",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("library")

			// The catalog snapshot and the saved ids are independent
			// reads, so both run concurrently.
			var books []Book
			var ids map[string]struct{}
			g, gCtx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				var err error
				books, err = app.catalog.FetchAll(gCtx)
				return err
			})
			g.Go(func() error {
				var err error
				ids, err = app.library.SavedIDs(gCtx)
				return err
			})
			if err := g.Wait(); err != nil {
				logger.Error("failed to load library view", zap.Error(err))
				return err
			}

			// Saved ids missing from the current snapshot drop out silently.
			saved := []Book{}
			for _, book := range books {
				if _, ok := ids[book.ID]; ok {
					saved = append(saved, book)
				}
			}
			if query != "" {
				saved = SearchBooks(saved, query)
			}
			logger.Info("library view derived", zap.Int("total", len(saved)))
			printBooks(cmd, saved)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "filter saved books by title or author")
	return cmd
}

func (app *App) bookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "book <id>",
		Short: "Show the details of one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("book")
			book, err := app.findBook(cmd.Context(), args[0])
			if err != nil {
				logger.Error("failed to locate book", zap.Error(err))
				return err
			}

			saved, err := app.library.IsSaved(cmd.Context(), book.ID)
			if err != nil {
				logger.Error("failed to read membership flag", zap.Error(err))
				return err
			}
			state := app.downloader.Probe(book)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\npor %s\n\n%s\n\n", book.Title, book.Author, book.Description)
			fmt.Fprintf(out, "category: %s\nsaved: %t\ndownload: %s\n", book.Category, saved, state.Status)
			if state.LocalPath != "" {
				fmt.Fprintf(out, "local file: %s\n", state.LocalPath)
			}
			return nil
		},
	}
}

func (app *App) saveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <id>",
		Short: "Add a book to my library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("save")
			if err := app.library.Add(cmd.Context(), args[0]); err != nil {
				logger.Error("failed to save book", zap.String("book.id", args[0]), zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book added to your library.")
			return nil
		},
	}
}

func (app *App) unsaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unsave <id>",
		Short: "Remove a book from my library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("unsave")
			if err := app.library.Remove(cmd.Context(), args[0]); err != nil {
				logger.Error("failed to unsave book", zap.String("book.id", args[0]), zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book removed from your library.")
			return nil
		},
	}
}

func (app *App) toggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle the library membership of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("toggle")
			saved, err := app.library.Toggle(cmd.Context(), args[0])
			if err != nil {
				logger.Error("failed to toggle book", zap.String("book.id", args[0]), zap.Error(err))
				return err
			}
			if saved {
				fmt.Fprintln(cmd.OutOrStdout(), "Book added to your library.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Book removed from your library.")
			}
			return nil
		},
	}
}

func (app *App) downloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "download <id>",
		Aliases: []string{"open"},
		Short:   "Download a book file, or open it when already on the device",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("download")
			book, err := app.findBook(cmd.Context(), args[0])
			if err != nil {
				logger.Error("failed to locate book", zap.Error(err))
				return err
			}

			state, err := app.downloader.DownloadOrOpen(cmd.Context(), book)
			if err != nil {
				logger.Error("download failed", zap.String("book.id", book.ID), zap.Error(err))
				return err
			}
			switch state.Status {
			case Downloaded:
				fmt.Fprintf(cmd.OutOrStdout(), "Book available at %s\n", state.LocalPath)
			case Downloading:
				fmt.Fprintln(cmd.OutOrStdout(), "Download already in progress.")
			}
			return nil
		},
	}
	return cmd
}

func (app *App) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete the downloaded file of a book from the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.commandLogger("remove")
			book, err := app.findBook(cmd.Context(), args[0])
			if err != nil {
				logger.Error("failed to locate book", zap.Error(err))
				return err
			}
			if _, err = app.downloader.Delete(book); err != nil {
				logger.Error("failed to delete local file", zap.String("book.id", book.ID), zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Local file deleted.")
			return nil
		},
	}
}

func (app *App) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("login")
			if err := app.account.Login(cmd.Context(), email, password); err != nil {
				logger.Error("login failed", zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session opened. Welcome back!")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (app *App) registerCommand() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("register")
			account, err := app.account.Register(cmd.Context(), name, email, password)
			if err != nil {
				logger.Error("registration failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. You can now login.\n", account.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (app *App) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Close the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("logout")
			if err := app.account.Logout(cmd.Context()); err != nil {
				logger.Error("logout failed", zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session closed.")
			return nil
		},
	}
}

func (app *App) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("whoami")
			account, err := app.account.Me(cmd.Context())
			if err != nil {
				logger.Error("profile fetch failed", zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", account.Name, account.Email)
			return nil
		},
	}
}

func (app *App) forgotPasswordCommand() *cobra.Command {
	var email, redirectURL string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Send a password recovery email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := app.commandLogger("forgot-password")
			if err := app.account.Recover(cmd.Context(), email, redirectURL); err != nil {
				logger.Error("recovery failed", zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Recovery email sent. Check your inbox.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "recovery confirmation page")
	return cmd
}

func (app *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "freelit %s (commit %s, built %s)\n",
				app.config.GitTag, app.config.GitCommit, app.config.BuildTime)
		},
	}
}

// findBook fetches the current catalog snapshot and locates one book by
// its id.
func (app *App) findBook(ctx context.Context, id string) (Book, error) {
	books, err := app.catalog.FetchAll(ctx)
	if err != nil {
		return Book{}, err
	}
	for _, book := range books {
		if book.ID == id {
			return book, nil
		}
	}
	return Book{}, fmt.Errorf("book %s not found in catalog", id)
}

// printBooks renders a list of books the way the screens lay them out:
// title, author and category per row.
func printBooks(cmd *cobra.Command, books []Book) {
	out := cmd.OutOrStdout()
	if len(books) == 0 {
		fmt.Fprintln(out, "No books to display.")
		return
	}
	for _, book := range books {
		fmt.Fprintf(out, "%-24s  %-20s  %-12s  %s\n", book.Title, book.Author, book.Category, book.ID)
	}
}
