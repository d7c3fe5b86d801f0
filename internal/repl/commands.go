package repl

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ShowBamboo/ai-meme-generator/internal/history"
	"github.com/ShowBamboo/ai-meme-generator/internal/security"
	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func (r *REPL) registerCommands() {
	commands := []Command{
		&GenerateCommand{},
		&PromptCommand{},
		&SetCommand{},
		&ShowCommand{},
		&PickCommand{},
		&CaptionsCommand{},
		&CaptionCommand{},
		&UpscaleCommand{},
		&OptimizeCommand{},
		&SaveCommand{},
		&HistoryCommand{},
		&UseCommand{},
		&DeleteCommand{},
		&FavCommand{},
		&ProvidersCommand{},
		&TemplatesCommand{},
		&SyncCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}

	for _, cmd := range commands {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// GenerateCommand runs the full generation workflow.
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate a meme from the current or given prompt" }
func (c *GenerateCommand) Usage() string       { return "generate [prompt]" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) > 0 {
		r.engine.Session().SetPrompt(strings.Join(args, " "))
	}

	snap := r.engine.Snapshot()
	if strings.TrimSpace(snap.Prompt) == "" {
		return fmt.Errorf("no prompt set (use: generate <prompt>)")
	}

	fmt.Fprintf(r.out, "Generating %d variant(s) in %s style...\n", snap.Preferences.NumVariants, snap.Preferences.Style)

	if err := r.engine.Generate(ctx); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	snap = r.engine.Snapshot()
	if snap.OptimizedPrompt != "" {
		fmt.Fprintf(r.out, "Optimized prompt: %s\n", snap.OptimizedPrompt)
	}
	for i, v := range snap.Images {
		marker := " "
		if snap.Selected != nil && snap.Selected.ID == v.ID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s [%d] %s\n", marker, i+1, r.resolver.ResolveURL(v.ImageURL))
	}
	return nil
}

// PromptCommand sets the working prompt without generating.
type PromptCommand struct{}

func (c *PromptCommand) Name() string        { return "prompt" }
func (c *PromptCommand) Aliases() []string   { return []string{"p"} }
func (c *PromptCommand) Description() string { return "Set the working prompt" }
func (c *PromptCommand) Usage() string       { return "prompt <text>" }

func (c *PromptCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	prompt := strings.Join(args, " ")
	if len([]rune(prompt)) > models.MaxPromptLen {
		return fmt.Errorf("prompt too long: max %d characters", models.MaxPromptLen)
	}
	r.engine.Session().SetPrompt(prompt)
	fmt.Fprintln(r.out, "Prompt set.")
	return nil
}

// SetCommand mutates one preference field.
type SetCommand struct{}

func (c *SetCommand) Name() string      { return "set" }
func (c *SetCommand) Aliases() []string { return nil }
func (c *SetCommand) Description() string {
	return "Set a preference: style, strength, variants, template, meme, autocaption"
}
func (c *SetCommand) Usage() string { return "set <field> <value>" }

func (c *SetCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	sess := r.engine.Session()
	field, value := strings.ToLower(args[0]), args[1]

	switch field {
	case "style":
		style := models.Style(value)
		if !style.IsValid() {
			return fmt.Errorf("invalid style %q (valid: %v)", value, models.ValidStyles())
		}
		sess.SetStyle(style)
	case "strength":
		n, err := strconv.Atoi(value)
		if err != nil || n < models.MinStyleStrength || n > models.MaxStyleStrength {
			return fmt.Errorf("strength must be %d..%d", models.MinStyleStrength, models.MaxStyleStrength)
		}
		sess.SetStyleStrength(n)
	case "variants":
		n, err := strconv.Atoi(value)
		if err != nil || n < models.MinVariants || n > models.MaxVariants {
			return fmt.Errorf("variants must be %d..%d", models.MinVariants, models.MaxVariants)
		}
		sess.SetNumVariants(n)
	case "template":
		if value == "none" {
			sess.SetSelectedTemplateID("")
		} else {
			sess.SetSelectedTemplateID(value)
		}
	case "meme":
		sess.SetMemeMode(value == "on" || value == "true")
	case "autocaption":
		r.engine.SetAutoCaption(ctx, value == "on" || value == "true")
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	fmt.Fprintf(r.out, "%s set to %s\n", field, value)
	return nil
}

// ShowCommand prints the current engine state.
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"status", "s"} }
func (c *ShowCommand) Description() string { return "Show the current session state" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	snap := r.engine.Snapshot()
	prefs := snap.Preferences

	fmt.Fprintf(r.out, "Prompt:      %s\n", snap.Prompt)
	if snap.OptimizedPrompt != "" {
		fmt.Fprintf(r.out, "Optimized:   %s\n", snap.OptimizedPrompt)
	}
	fmt.Fprintf(r.out, "Style:       %s (strength %d)\n", prefs.Style, prefs.StyleStrength)
	fmt.Fprintf(r.out, "Variants:    %d\n", prefs.NumVariants)
	fmt.Fprintf(r.out, "Meme mode:   %v  Auto-caption: %v\n", prefs.MemeMode, prefs.AutoCaption)
	if tpl, ok := snap.CurrentTemplate(); ok {
		fmt.Fprintf(r.out, "Template:    %s (%s)\n", tpl.Name, tpl.ID)
	} else if prefs.SelectedTemplateID != "" {
		fmt.Fprintf(r.out, "Template:    %s\n", prefs.SelectedTemplateID)
	}
	if snap.ImageURL != "" {
		fmt.Fprintf(r.out, "Image:       %s\n", r.resolver.ResolveURL(snap.DisplayImageURL()))
		if snap.Provider != "" {
			mock := ""
			if snap.IsMock {
				mock = " (mock)"
			}
			fmt.Fprintf(r.out, "Provider:    %s%s\n", snap.Provider, mock)
		}
	}
	if snap.SelectedCaption != "" {
		fmt.Fprintf(r.out, "Caption:     %s\n", snap.SelectedCaption)
	}
	if snap.Error != "" {
		fmt.Fprintf(r.out, "Last error:  %s\n", snap.Error)
	}
	return nil
}

// PickCommand selects one of the generated variants.
type PickCommand struct{}

func (c *PickCommand) Name() string        { return "pick" }
func (c *PickCommand) Aliases() []string   { return []string{"variant"} }
func (c *PickCommand) Description() string { return "Select a variant as the displayed image" }
func (c *PickCommand) Usage() string       { return "pick <number>" }

func (c *PickCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	snap := r.engine.Snapshot()
	if len(snap.Images) == 0 {
		return fmt.Errorf("no variants to pick from (run 'generate' first)")
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(snap.Images) {
		return fmt.Errorf("pick a number between 1 and %d", len(snap.Images))
	}

	if err := r.engine.SelectVariant(snap.Images[n-1]); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Variant %d selected: %s\n", n, r.resolver.ResolveURL(snap.Images[n-1].ImageURL))
	return nil
}

// CaptionsCommand fetches a batch of caption suggestions.
type CaptionsCommand struct{}

func (c *CaptionsCommand) Name() string        { return "captions" }
func (c *CaptionsCommand) Aliases() []string   { return nil }
func (c *CaptionsCommand) Description() string { return "Fetch caption suggestions for the prompt" }
func (c *CaptionsCommand) Usage() string       { return "captions" }

func (c *CaptionsCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if strings.TrimSpace(r.engine.Snapshot().Prompt) == "" {
		return fmt.Errorf("no prompt set")
	}

	if err := r.engine.FetchCaptions(ctx); err != nil {
		return fmt.Errorf("caption fetch failed: %w", err)
	}

	snap := r.engine.Snapshot()
	if len(snap.Captions) == 0 {
		fmt.Fprintln(r.out, "No suggestions.")
		return nil
	}
	for i, caption := range snap.Captions {
		marker := " "
		if caption == snap.SelectedCaption {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s [%d] %s\n", marker, i+1, caption)
	}
	return nil
}

// CaptionCommand selects a caption suggestion by number.
type CaptionCommand struct{}

func (c *CaptionCommand) Name() string        { return "caption" }
func (c *CaptionCommand) Aliases() []string   { return nil }
func (c *CaptionCommand) Description() string { return "Select a caption suggestion" }
func (c *CaptionCommand) Usage() string       { return "caption <number>" }

func (c *CaptionCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	snap := r.engine.Snapshot()
	if len(snap.Captions) == 0 {
		return fmt.Errorf("no suggestions fetched (run 'captions' first)")
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(snap.Captions) {
		return fmt.Errorf("pick a number between 1 and %d", len(snap.Captions))
	}

	r.engine.SelectCaption(snap.Captions[n-1])
	fmt.Fprintf(r.out, "Caption selected: %s\n", snap.Captions[n-1])
	return nil
}

// UpscaleCommand upscales the displayed image.
type UpscaleCommand struct{}

func (c *UpscaleCommand) Name() string        { return "upscale" }
func (c *UpscaleCommand) Aliases() []string   { return []string{"hd"} }
func (c *UpscaleCommand) Description() string { return "Upscale the displayed image" }
func (c *UpscaleCommand) Usage() string       { return "upscale" }

func (c *UpscaleCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if r.engine.Snapshot().ImageURL == "" {
		return fmt.Errorf("no image to upscale (run 'generate' first)")
	}

	fmt.Fprintln(r.out, "Upscaling...")
	if err := r.engine.UpscaleImage(ctx); err != nil {
		return fmt.Errorf("upscale failed: %w", err)
	}

	snap := r.engine.Snapshot()
	fmt.Fprintf(r.out, "Upscaled: %s\n", r.resolver.ResolveURL(snap.UpscaledImageURL))
	return nil
}

// OptimizeCommand previews the server-side prompt rewrite.
type OptimizeCommand struct{}

func (c *OptimizeCommand) Name() string        { return "optimize" }
func (c *OptimizeCommand) Aliases() []string   { return nil }
func (c *OptimizeCommand) Description() string { return "Preview the optimized prompt" }
func (c *OptimizeCommand) Usage() string       { return "optimize" }

func (c *OptimizeCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	optimized, err := r.engine.OptimizePrompt(ctx)
	if err != nil {
		return err
	}
	if optimized == "" {
		return fmt.Errorf("no prompt set")
	}
	fmt.Fprintf(r.out, "Optimized prompt: %s\n", optimized)
	return nil
}

// SaveCommand downloads the displayed image (upscaled if available).
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return nil }
func (c *SaveCommand) Description() string { return "Save the displayed image to a file" }
func (c *SaveCommand) Usage() string       { return "save [path]" }

func (c *SaveCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	snap := r.engine.Snapshot()
	if snap.ImageURL == "" {
		return fmt.Errorf("no image to save")
	}

	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	url := r.resolver.ResolveURL(snap.DisplayImageURL())
	saved, err := r.saver.Save(ctx, url, path, snap.Prompt)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Saved: %s\n", saved)
	return nil
}

// HistoryCommand lists cached history with optional filters.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string      { return "history" }
func (c *HistoryCommand) Aliases() []string { return []string{"h"} }
func (c *HistoryCommand) Description() string {
	return "List history; filters: fav, provider:<name>, free text"
}
func (c *HistoryCommand) Usage() string { return "history [fav] [provider:<name>] [query]" }

func (c *HistoryCommand) Execute(_ context.Context, r *REPL, args []string) error {
	filter, query := parseHistoryFilter(args)
	filter.Query = query

	records := r.engine.History().Filtered(filter)
	if len(records) == 0 {
		fmt.Fprintln(r.out, "No matching history.")
		return nil
	}

	for i, rec := range records {
		star := " "
		if r.engine.History().IsFavorite(rec.ID) {
			star = "★"
		}
		fmt.Fprintf(r.out, "%s [%d] %s  (%s, %s)\n", star, i+1, rec.Prompt, rec.Style, formatCreatedAt(rec.CreatedAt))
		fmt.Fprintf(r.out, "      id=%s provider=%s\n", rec.ID, rec.Provider)
	}
	return nil
}

func parseHistoryFilter(args []string) (history.Filter, string) {
	var filter history.Filter
	var queryParts []string
	for _, arg := range args {
		switch {
		case arg == "fav":
			filter.FavoritesOnly = true
		case strings.HasPrefix(arg, "provider:"):
			filter.Provider = strings.TrimPrefix(arg, "provider:")
		default:
			queryParts = append(queryParts, arg)
		}
	}
	return filter, strings.Join(queryParts, " ")
}

func formatCreatedAt(createdAt string) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return createdAt
	}
	return humanize.Time(t)
}

// UseCommand replays a history record into the session.
type UseCommand struct{}

func (c *UseCommand) Name() string        { return "use" }
func (c *UseCommand) Aliases() []string   { return []string{"replay"} }
func (c *UseCommand) Description() string { return "Restore session state from a history entry" }
func (c *UseCommand) Usage() string       { return "use <number|id>" }

func (c *UseCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	rec, err := resolveRecord(r, args[0])
	if err != nil {
		return err
	}
	r.engine.SelectHistoryItem(rec)
	fmt.Fprintf(r.out, "Restored: %s\n", rec.Prompt)
	return nil
}

// DeleteCommand deletes a history record remotely, then locally.
type DeleteCommand struct{}

func (c *DeleteCommand) Name() string        { return "delete" }
func (c *DeleteCommand) Aliases() []string   { return []string{"rm"} }
func (c *DeleteCommand) Description() string { return "Delete a history entry" }
func (c *DeleteCommand) Usage() string       { return "delete <number|id>" }

func (c *DeleteCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	rec, err := resolveRecord(r, args[0])
	if err != nil {
		return err
	}
	if err := r.engine.DeleteHistoryItem(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Fprintf(r.out, "Deleted: %s\n", rec.ID)
	return nil
}

// FavCommand toggles the favorite flag on a history record.
type FavCommand struct{}

func (c *FavCommand) Name() string        { return "fav" }
func (c *FavCommand) Aliases() []string   { return []string{"star"} }
func (c *FavCommand) Description() string { return "Toggle favorite on a history entry" }
func (c *FavCommand) Usage() string       { return "fav <number|id>" }

func (c *FavCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	rec, err := resolveRecord(r, args[0])
	if err != nil {
		return err
	}
	r.engine.ToggleFavorite(rec.ID)
	if r.engine.History().IsFavorite(rec.ID) {
		fmt.Fprintf(r.out, "Favorited: %s\n", rec.Prompt)
	} else {
		fmt.Fprintf(r.out, "Unfavorited: %s\n", rec.Prompt)
	}
	return nil
}

// resolveRecord accepts a 1-based list position or a raw record id.
func resolveRecord(r *REPL, arg string) (models.HistoryRecord, error) {
	records := r.engine.History().Records()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(records) {
			return models.HistoryRecord{}, fmt.Errorf("no history entry %d", n)
		}
		return records[n-1], nil
	}
	rec, ok := r.engine.History().Get(arg)
	if !ok {
		return models.HistoryRecord{}, fmt.Errorf("no history entry with id %s", arg)
	}
	return rec, nil
}

// ProvidersCommand prints the provider status snapshot.
type ProvidersCommand struct{}

func (c *ProvidersCommand) Name() string        { return "providers" }
func (c *ProvidersCommand) Aliases() []string   { return nil }
func (c *ProvidersCommand) Description() string { return "Show backing provider status" }
func (c *ProvidersCommand) Usage() string       { return "providers" }

func (c *ProvidersCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.engine.RefreshProviders(ctx); err != nil {
		return err
	}
	snap := r.engine.Snapshot()
	if len(snap.Providers) == 0 {
		fmt.Fprintln(r.out, "No providers reported.")
		return nil
	}
	for _, p := range snap.Providers {
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(r.out, "%-12s %-8s %s\n", p.Name, state, p.Detail)
	}
	fmt.Fprintf(r.out, "%d of %d enabled\n", snap.EnabledProviderCount(), len(snap.Providers))
	return nil
}

// TemplatesCommand prints the template catalog.
type TemplatesCommand struct{}

func (c *TemplatesCommand) Name() string        { return "templates" }
func (c *TemplatesCommand) Aliases() []string   { return nil }
func (c *TemplatesCommand) Description() string { return "List visual templates" }
func (c *TemplatesCommand) Usage() string       { return "templates" }

func (c *TemplatesCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.engine.RefreshTemplates(ctx); err != nil {
		return err
	}
	snap := r.engine.Snapshot()
	if len(snap.Templates) == 0 {
		fmt.Fprintln(r.out, "No templates available (try 'sync imgflip').")
		return nil
	}
	sorted := append([]models.Template(nil), snap.Templates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, t := range sorted {
		marker := " "
		if t.ID == snap.Preferences.SelectedTemplateID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %-24s id=%s\n", marker, t.Name, t.ID)
	}
	return nil
}

// SyncCommand refreshes the backend template catalog.
type SyncCommand struct{}

func (c *SyncCommand) Name() string        { return "sync" }
func (c *SyncCommand) Aliases() []string   { return nil }
func (c *SyncCommand) Description() string { return "Sync templates from imgflip or URLs" }
func (c *SyncCommand) Usage() string       { return "sync imgflip [limit] | sync urls <url>..." }

func (c *SyncCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	req := models.SyncTemplatesRequest{Source: strings.ToLower(args[0])}
	switch req.Source {
	case models.SyncSourceImgflip:
		req.Limit = 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("limit must be a positive number")
			}
			req.Limit = n
		}
	case models.SyncSourceURLs:
		if len(args) < 2 {
			return fmt.Errorf("usage: sync urls <url>...")
		}
		for _, raw := range args[1:] {
			if err := security.ValidateRemoteURL(raw, false); err != nil {
				return fmt.Errorf("rejected %s: %w", raw, err)
			}
		}
		req.URLs = args[1:]
	default:
		return fmt.Errorf("unknown source %q (imgflip or urls)", args[0])
	}

	fmt.Fprintln(r.out, "Syncing templates...")
	if err := r.engine.SyncTemplates(ctx, req); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	snap := r.engine.Snapshot()
	fmt.Fprintln(r.out, snap.TemplateSyncMessage)
	return nil
}

// HelpCommand lists available commands.
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	names := make([]string, 0, len(r.commands))
	seen := make(map[string]bool)
	for _, cmd := range r.commands {
		if seen[cmd.Name()] {
			continue
		}
		seen[cmd.Name()] = true
		names = append(names, cmd.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := r.commands[name]
		fmt.Fprintf(r.out, "  %-24s %s\n", cmd.Usage(), cmd.Description())
	}
	return nil
}

// QuitCommand exits the REPL.
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Bye.")
	r.Stop()
	return nil
}
