// Command citysuggest drives the city suggestion controller from a terminal.
// Every stdin line replaces the input text; ":pick N" selects the N-th
// shown suggestion, ":submit" prints the form values and ":quit" exits.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"meteo_backend/internal/autocomplete"
	"meteo_backend/platform/config"
	"meteo_backend/platform/logger"
)

type terminal struct {
	mu    sync.Mutex
	out   io.Writer
	shown []autocomplete.SuggestionItem
}

func (t *terminal) Render(items []autocomplete.SuggestionItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shown = items
	if len(items) == 0 {
		fmt.Fprintln(t.out, "  (no suggestions)")
		return
	}
	for i, it := range items {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, it.Label)
	}
}

func (t *terminal) item(n int) (autocomplete.SuggestionItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.shown) {
		return autocomplete.SuggestionItem{}, false
	}
	return t.shown[n-1], true
}

func main() {
	cfg, err := config.LoadSuggest()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.NewWithWriter(os.Stderr, cfg.Env)

	client, err := autocomplete.NewClient(cfg.GetSuggestEndpoint(), autocomplete.WithTimeout(cfg.GetSuggestTimeout()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid SUGGEST_ENDPOINT:", err)
		os.Exit(1)
	}

	term := &terminal{out: os.Stdout}
	ctrl := autocomplete.NewController(client, autocomplete.Options{
		MinChars: cfg.GetSuggestMinChars(),
		MaxItems: cfg.GetSuggestMaxItems(),
		Delay:    cfg.GetSuggestDelay(),
		Renderer: term,
		OnResult: func(r autocomplete.Result) {
			if r.Err != nil {
				fmt.Fprintf(os.Stdout, "  lookup for %q failed: %v\n", r.Query, r.Err)
			}
		},
		Logger: log,
	})
	defer ctrl.Close()

	run(os.Stdin, os.Stdout, ctrl, term)
}

func run(in io.Reader, out io.Writer, ctrl *autocomplete.Controller, term *terminal) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == ":quit":
			return
		case line == ":submit":
			values := ctrl.Submit()
			fmt.Fprintln(out, values.Encode().Encode())
		case strings.HasPrefix(line, ":pick "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":pick ")))
			if err != nil {
				fmt.Fprintln(out, "  usage: :pick N")
				continue
			}
			item, ok := term.item(n)
			if !ok {
				fmt.Fprintln(out, "  no such suggestion")
				continue
			}
			if err := ctrl.Select(autocomplete.SelectEvent{Text: item}); err != nil {
				fmt.Fprintln(out, "  selection rejected:", err)
				continue
			}
			fmt.Fprintf(out, "  selected %s\n", ctrl.Text())
		default:
			ctrl.Input(line)
		}
	}
}
