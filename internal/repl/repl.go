// Package repl is the interactive front end of the generation engine. It
// keeps a live session across commands, which is where variant selection,
// caption picking and upscaling of the current image make sense.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ShowBamboo/ai-meme-generator/internal/engine"
	"github.com/ShowBamboo/ai-meme-generator/internal/image"
)

// URLResolver turns server-relative image paths into absolute URLs.
type URLResolver interface {
	ResolveURL(raw string) string
}

type REPL struct {
	in       io.Reader
	out      io.Writer
	err      io.Writer
	engine   *engine.Engine
	saver    *image.Saver
	resolver URLResolver
	commands map[string]Command
	running  bool
}

type Config struct {
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	Engine   *engine.Engine
	Saver    *image.Saver
	Resolver URLResolver
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:       cfg.In,
		out:      cfg.Out,
		err:      cfg.Err,
		engine:   cfg.Engine,
		saver:    cfg.Saver,
		resolver: cfg.Resolver,
		commands: make(map[string]Command),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "memegen interactive mode")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	snap := r.engine.Snapshot()
	if snap.ImageURL != "" {
		fmt.Fprintf(r.out, "memegen [%s] (image)> ", snap.Preferences.Style)
	} else {
		fmt.Fprintf(r.out, "memegen [%s]> ", snap.Preferences.Style)
	}
}

// parseCommand splits a line into fields, honoring double quotes so
// multi-word prompts stay a single argument.
func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
