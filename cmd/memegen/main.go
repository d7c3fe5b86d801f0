package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShowBamboo/ai-meme-generator/internal/api"
	"github.com/ShowBamboo/ai-meme-generator/internal/config"
	"github.com/ShowBamboo/ai-meme-generator/internal/engine"
	"github.com/ShowBamboo/ai-meme-generator/internal/history"
	"github.com/ShowBamboo/ai-meme-generator/internal/image"
	"github.com/ShowBamboo/ai-meme-generator/internal/repl"
	"github.com/ShowBamboo/ai-meme-generator/internal/session"
	"github.com/ShowBamboo/ai-meme-generator/internal/store"
	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig      string
	flagBaseURL     string
	flagVerbose     bool
	flagStyle       string
	flagStrength    int
	flagVariants    int
	flagTemplate    string
	flagMemeMode    bool
	flagAutoCaption bool
	flagUpscale     bool
	flagOutput      string
	flagSave        bool
	flagFavorites   bool
	flagProvider    string
	flagQuery       string
	flagSyncSource  string
	flagSyncLimit   int
	flagSyncURLs    []string
)

// App carries the injectable seams so tests can run commands against a
// fake backend and a temp store.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	LoadConfig func(path string) (*config.Config, error)
	NewClient  func(cfg *config.Config) *api.Client
	NewBackend func(client *api.Client) engine.Backend
	OpenStore  func(cfg *config.Config) (*store.Store, error)
	NewSaver   func() *image.Saver
}

func DefaultApp() *App {
	return &App{
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		LoadConfig: config.Load,
		NewClient: func(cfg *config.Config) *api.Client {
			return api.New(&api.Config{
				BaseURL:    cfg.BaseURL,
				TimeoutSec: cfg.TimeoutSec,
				Verbose:    cfg.Verbose,
			})
		},
		NewBackend: func(client *api.Client) engine.Backend { return client },
		OpenStore: func(cfg *config.Config) (*store.Store, error) {
			return store.NewStoreWithPath(cfg.DBPath())
		},
		NewSaver: image.NewSaver,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memegen",
		Short: "Generate memes from natural-language prompts",
		Long: `memegen talks to a meme generation backend: it turns a prompt plus
style settings into generated images with auto-suggested captions,
optional upscaling, and a favoritable history.

Examples:
  memegen generate "monday morning mood"
  memegen generate --style anime --variants 3 --auto-caption "deadline panic"
  memegen history --favorites
  memegen repl`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "backend base URL")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "dump HTTP requests and responses")

	cmd.AddCommand(
		newGenerateCmd(app),
		newCaptionsCmd(app),
		newOptimizeCmd(app),
		newHistoryCmd(app),
		newProvidersCmd(app),
		newTemplatesCmd(app),
		newReplCmd(app),
	)

	return cmd
}

// runtime bundles everything a command needs for one invocation.
type runtime struct {
	cfg    *config.Config
	client *api.Client
	store  *store.Store
	engine *engine.Engine
}

func (rt *runtime) close() {
	if rt.store != nil {
		rt.store.Close()
	}
}

func setup(app *App) (*runtime, error) {
	cfg, err := app.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagVerbose {
		cfg.Verbose = true
	}

	st, err := app.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	client := app.NewClient(cfg)
	eng := engine.New(app.NewBackend(client), session.New(st), history.NewManager(st))

	return &runtime{cfg: cfg, client: client, store: st, engine: eng}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// applySessionFlags copies only the flags the user actually set onto the
// session, so persisted preferences keep working as defaults.
func applySessionFlags(cmd *cobra.Command, sess *session.Store) error {
	flags := cmd.Flags()

	if flags.Changed("style") {
		style := models.Style(flagStyle)
		if !style.IsValid() {
			return fmt.Errorf("invalid style %q: valid styles: %v", flagStyle, models.ValidStyles())
		}
		sess.SetStyle(style)
	}
	if flags.Changed("strength") {
		if flagStrength < models.MinStyleStrength || flagStrength > models.MaxStyleStrength {
			return fmt.Errorf("strength must be %d..%d", models.MinStyleStrength, models.MaxStyleStrength)
		}
		sess.SetStyleStrength(flagStrength)
	}
	if flags.Changed("variants") {
		if flagVariants < models.MinVariants || flagVariants > models.MaxVariants {
			return fmt.Errorf("variants must be %d..%d", models.MinVariants, models.MaxVariants)
		}
		sess.SetNumVariants(flagVariants)
	}
	if flags.Changed("template") {
		sess.SetSelectedTemplateID(flagTemplate)
	}
	if flags.Changed("meme-mode") {
		sess.SetMemeMode(flagMemeMode)
	}
	if flags.Changed("auto-caption") {
		sess.SetAutoCaption(flagAutoCaption)
	}
	return nil
}

func newGenerateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a meme from a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, app)
		},
	}

	cmd.Flags().StringVar(&flagStyle, "style", "", "visual style (cartoon, hand-drawn, anime, realistic, retro, minimalist)")
	cmd.Flags().IntVar(&flagStrength, "strength", 2, "style strength (1-3)")
	cmd.Flags().IntVarP(&flagVariants, "variants", "n", 1, "number of variants (1-6)")
	cmd.Flags().StringVar(&flagTemplate, "template", "", "template id (empty for pure generation)")
	cmd.Flags().BoolVar(&flagMemeMode, "meme-mode", false, "bias captions toward internet slang")
	cmd.Flags().BoolVar(&flagAutoCaption, "auto-caption", false, "derive overlay text from caption suggestions")
	cmd.Flags().BoolVar(&flagUpscale, "upscale", false, "upscale the primary image after generating")
	cmd.Flags().BoolVar(&flagSave, "save", false, "download the result to a local file")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output filename (implies --save)")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()

	prompt := strings.TrimSpace(args[0])
	if prompt == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if len([]rune(prompt)) > models.MaxPromptLen {
		return fmt.Errorf("prompt too long: max %d characters", models.MaxPromptLen)
	}

	if err := applySessionFlags(cmd, rt.engine.Session()); err != nil {
		return err
	}
	rt.engine.Session().SetPrompt(prompt)

	snap := rt.engine.Snapshot()
	fmt.Fprintf(app.Out, "Generating %d variant(s) in %s style...\n",
		snap.Preferences.NumVariants, snap.Preferences.Style)

	if err := rt.engine.Generate(ctx); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	snap = rt.engine.Snapshot()
	if snap.OptimizedPrompt != "" {
		fmt.Fprintf(app.Out, "Optimized prompt: %s\n", snap.OptimizedPrompt)
	}
	if snap.SelectedCaption != "" {
		fmt.Fprintf(app.Out, "Caption: %s\n", snap.SelectedCaption)
	}
	for i, v := range snap.Images {
		fmt.Fprintf(app.Out, "[%d] %s\n", i+1, rt.client.ResolveURL(v.ImageURL))
	}

	if flagUpscale {
		fmt.Fprintln(app.Out, "Upscaling...")
		if err := rt.engine.UpscaleImage(ctx); err != nil {
			return fmt.Errorf("upscale failed: %w", err)
		}
		snap = rt.engine.Snapshot()
		fmt.Fprintf(app.Out, "Upscaled: %s\n", rt.client.ResolveURL(snap.UpscaledImageURL))
	}

	if flagSave || flagOutput != "" {
		saver := app.NewSaver()
		url := rt.client.ResolveURL(snap.DisplayImageURL())
		saved, err := saver.Save(ctx, url, flagOutput, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Saved: %s\n", saved)
	}

	return nil
}

func newCaptionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captions <prompt>",
		Short: "Suggest captions for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := applySessionFlags(cmd, rt.engine.Session()); err != nil {
				return err
			}
			rt.engine.Session().SetPrompt(args[0])

			if err := rt.engine.FetchCaptions(ctx); err != nil {
				return fmt.Errorf("caption fetch failed: %w", err)
			}

			snap := rt.engine.Snapshot()
			if len(snap.Captions) == 0 {
				fmt.Fprintln(app.Out, "No suggestions.")
				return nil
			}
			for i, caption := range snap.Captions {
				fmt.Fprintf(app.Out, "[%d] %s\n", i+1, caption)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagStyle, "style", "", "visual style")
	cmd.Flags().BoolVar(&flagMemeMode, "meme-mode", false, "bias captions toward internet slang")

	return cmd
}

func newOptimizeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize <prompt>",
		Short: "Preview the server-side prompt rewrite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			rt.engine.Session().SetPrompt(args[0])
			optimized, err := rt.engine.OptimizePrompt(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, optimized)
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.engine.RefreshHistory(ctx); err != nil {
				return err
			}

			filter := history.Filter{
				FavoritesOnly: flagFavorites,
				Provider:      flagProvider,
				Query:         flagQuery,
			}
			records := rt.engine.History().Filtered(filter)
			if len(records) == 0 {
				fmt.Fprintln(app.Out, "No matching history.")
				return nil
			}
			for _, rec := range records {
				star := " "
				if rt.engine.History().IsFavorite(rec.ID) {
					star = "★"
				}
				fmt.Fprintf(app.Out, "%s %s  %s (%s)\n", star, rec.ID, rec.Prompt, rec.Style)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagFavorites, "favorites", false, "only favorited entries")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "filter by provider")
	cmd.Flags().StringVar(&flagQuery, "query", "", "free-text filter over prompts")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a history entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := signalContext()
				defer cancel()

				rt, err := setup(app)
				if err != nil {
					return err
				}
				defer rt.close()

				if err := rt.engine.DeleteHistoryItem(ctx, args[0]); err != nil {
					return fmt.Errorf("delete failed: %w", err)
				}
				fmt.Fprintf(app.Out, "Deleted: %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "fav <id>",
			Short: "Toggle favorite on a history entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := setup(app)
				if err != nil {
					return err
				}
				defer rt.close()

				rt.engine.ToggleFavorite(args[0])
				if rt.engine.History().IsFavorite(args[0]) {
					fmt.Fprintf(app.Out, "Favorited: %s\n", args[0])
				} else {
					fmt.Fprintf(app.Out, "Unfavorited: %s\n", args[0])
				}
				return nil
			},
		},
	)

	return cmd
}

func newProvidersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show backing provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.engine.RefreshProviders(ctx); err != nil {
				return err
			}
			snap := rt.engine.Snapshot()
			for _, p := range snap.Providers {
				state := "disabled"
				if p.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(app.Out, "%-12s %-8s %s\n", p.Name, state, p.Detail)
			}
			fmt.Fprintf(app.Out, "%d of %d enabled\n", snap.EnabledProviderCount(), len(snap.Providers))
			return nil
		},
	}
}

func newTemplatesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List visual templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.engine.RefreshTemplates(ctx); err != nil {
				return err
			}
			snap := rt.engine.Snapshot()
			if len(snap.Templates) == 0 {
				fmt.Fprintln(app.Out, "No templates available.")
				return nil
			}
			for _, t := range snap.Templates {
				fmt.Fprintf(app.Out, "%-24s id=%s\n", t.Name, t.ID)
			}
			return nil
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync templates from imgflip or URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			req := models.SyncTemplatesRequest{Source: flagSyncSource}
			switch req.Source {
			case models.SyncSourceImgflip:
				req.Limit = flagSyncLimit
			case models.SyncSourceURLs:
				if len(flagSyncURLs) == 0 {
					return fmt.Errorf("--url is required when --source=urls")
				}
				req.URLs = flagSyncURLs
			default:
				return fmt.Errorf("unknown source %q (imgflip or urls)", req.Source)
			}

			if err := rt.engine.SyncTemplates(ctx, req); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			fmt.Fprintln(app.Out, rt.engine.Snapshot().TemplateSyncMessage)
			return nil
		},
	}
	syncCmd.Flags().StringVar(&flagSyncSource, "source", models.SyncSourceImgflip, "imgflip or urls")
	syncCmd.Flags().IntVar(&flagSyncLimit, "limit", 20, "how many imgflip templates to pull")
	syncCmd.Flags().StringArrayVar(&flagSyncURLs, "url", nil, "template image URL (repeatable)")

	cmd.AddCommand(syncCmd)
	return cmd
}

func newReplCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := setup(app)
			if err != nil {
				return err
			}
			defer rt.close()

			rt.engine.Hydrate(ctx)
			snap := rt.engine.Snapshot()
			if snap.ProvidersError != "" {
				fmt.Fprintf(app.Err, "Warning: %s\n", snap.ProvidersError)
			}
			if snap.TemplatesError != "" {
				fmt.Fprintf(app.Err, "Warning: %s\n", snap.TemplatesError)
			}

			r := repl.New(&repl.Config{
				In:       app.In,
				Out:      app.Out,
				Err:      app.Err,
				Engine:   rt.engine,
				Saver:    app.NewSaver(),
				Resolver: rt.client,
			})
			return r.Run(ctx)
		},
	}
}
