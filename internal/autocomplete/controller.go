// Package autocomplete coordinates a city input field with a remote
// suggestion endpoint: debounced lookups, suggestion mapping, the hidden
// selection value and the guard applied before the form is posted.
package autocomplete

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"meteo_backend/platform/logger"
)

const (
	DefaultMinChars = 2
	DefaultMaxItems = 7
	DefaultDelay    = 2 * time.Second
)

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Renderer displays a suggestion list. It receives a copy it may keep.
type Renderer interface {
	Render(items []SuggestionItem)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(items []SuggestionItem)

func (f RendererFunc) Render(items []SuggestionItem) { f(items) }

// Result describes one completed lookup that was still current when it finished.
type Result struct {
	Seq   uint64
	Query string
	Items []SuggestionItem
	Err   error
}

// Options tunes a Controller. Zero values fall back to the defaults.
type Options struct {
	MinChars  int
	MaxItems  int
	Delay     time.Duration
	Renderer  Renderer
	OnResult  func(Result)
	AfterFunc AfterFunc
	Logger    *logger.Logger
}

// SelectEvent wraps the value handed over by a pick, mirroring the
// payload of a widget's select event.
type SelectEvent struct {
	Text any
}

// FormValues is what the enclosing form posts.
type FormValues struct {
	City      string
	Selection string
}

// Encode returns the values under the field names the weather search reads.
func (f FormValues) Encode() url.Values {
	v := url.Values{}
	v.Set("city", f.City)
	v.Set("selection", f.Selection)
	return v
}

// Controller owns the input text, the current suggestion list and the
// selection value. All methods are safe for concurrent use.
type Controller struct {
	lookup   Lookuper
	minChars int
	maxItems int
	delay    time.Duration
	renderer Renderer
	onResult func(Result)
	after    AfterFunc
	log      *logger.Logger

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	// renderMu orders Render and OnResult calls.
	renderMu sync.Mutex

	mu        sync.Mutex
	text      string
	selection string
	items     []SuggestionItem
	seq       uint64
	timer     Timer
	cancel    context.CancelFunc
	inFlight  bool
	closed    bool
}

// NewController builds a controller querying lookup.
func NewController(lookup Lookuper, opts Options) *Controller {
	c := &Controller{
		lookup:   lookup,
		minChars: opts.MinChars,
		maxItems: opts.MaxItems,
		delay:    opts.Delay,
		renderer: opts.Renderer,
		onResult: opts.OnResult,
		after:    opts.AfterFunc,
		log:      opts.Logger,
	}
	if c.minChars <= 0 {
		c.minChars = DefaultMinChars
	}
	if c.maxItems <= 0 {
		c.maxItems = DefaultMaxItems
	}
	if c.delay <= 0 {
		c.delay = DefaultDelay
	}
	if c.after == nil {
		c.after = realAfterFunc
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	c.base, c.stop = context.WithCancel(context.Background())
	return c
}

// Input records a change of the visible text. The selection is cleared,
// any pending or running lookup is abandoned, and a new lookup is
// scheduled when the trimmed text is long enough.
func (c *Controller) Input(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.text = text
	c.selection = ""
	seq := c.supersedeLocked()
	if c.closed {
		return
	}

	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < c.minChars {
		return
	}

	c.wg.Add(1)
	c.timer = c.after(c.delay, func() {
		var once sync.Once
		done := func() { once.Do(c.wg.Done) }
		defer done()
		c.fire(seq, query, done)
	})
}

// supersedeLocked stops the pending timer, cancels the in-flight request
// and issues a new sequence number. Callers hold c.mu.
func (c *Controller) supersedeLocked() uint64 {
	if c.timer != nil {
		if c.timer.Stop() {
			c.wg.Done()
		}
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = false
	c.seq++
	return c.seq
}

// fire runs one scheduled lookup. done releases the callback from Close's
// wait and is called before any hook runs, so a hook may call Close.
func (c *Controller) fire(seq uint64, query string, done func()) {
	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.base)
	c.timer = nil
	c.cancel = cancel
	c.inFlight = true
	c.mu.Unlock()

	records, err := c.lookup.Lookup(ctx, query)
	cancel()

	res := Result{Seq: seq, Query: query}
	if err != nil {
		res.Err = err
	} else {
		res.Items = MapRecords(records)
	}
	c.deliver(res, done)
}

func (c *Controller) deliver(res Result, done func()) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if res.Seq != c.seq {
		c.mu.Unlock()
		c.log.Debug("autocomplete: dropping stale lookup result", "seq", res.Seq, "query", res.Query)
		return
	}
	c.cancel = nil
	c.inFlight = false
	if res.Err == nil {
		c.items = res.Items
	}
	visible := c.visibleLocked()
	c.mu.Unlock()
	done()

	if res.Err != nil {
		c.logLookupError(res)
	} else {
		c.log.Debug("autocomplete: suggestions updated", "query", res.Query, "count", len(res.Items))
		if c.renderer != nil {
			c.renderer.Render(visible)
		}
	}

	if c.onResult != nil {
		c.onResult(res)
	}
}

func (c *Controller) logLookupError(res Result) {
	var remote *RemoteError
	var decode *DecodeError
	switch {
	case errors.As(res.Err, &remote):
		c.log.Warn("autocomplete: lookup endpoint failed", "query", res.Query, "status", remote.StatusCode)
	case errors.As(res.Err, &decode):
		c.log.Warn("autocomplete: unreadable lookup response", "query", res.Query, "error", decode.Err)
	default:
		c.log.Warn("autocomplete: lookup failed", "query", res.Query, "error", res.Err)
	}
}

func (c *Controller) visibleLocked() []SuggestionItem {
	n := len(c.items)
	if n > c.maxItems {
		n = c.maxItems
	}
	out := make([]SuggestionItem, n)
	copy(out, c.items[:n])
	return out
}

// Select stores the picked suggestion as the selection value. v may be a
// raw value string, a SuggestionItem, a *SuggestionItem, a SelectionPayload
// or a SelectEvent wrapping any of them. On success the visible text is
// replaced by the item's label. A value that does not parse clears the
// selection and the error is returned.
func (c *Controller) Select(v any) error {
	value, label, err := selectedValue(v)
	var payload SelectionPayload
	if err == nil {
		payload, err = ParseSelection(value)
	}
	var encoded string
	if err == nil {
		encoded, err = payload.Encode()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.selection = ""
		c.log.Warn("autocomplete: invalid selection value", "error", err)
		return err
	}

	c.selection = encoded
	if label != "" {
		c.text = label
	} else {
		c.text = value
	}
	// A pick supersedes whatever lookup was pending for the old text.
	c.supersedeLocked()
	return nil
}

func selectedValue(v any) (value, label string, err error) {
	switch t := v.(type) {
	case string:
		return t, "", nil
	case SuggestionItem:
		return t.Value, t.Label, nil
	case *SuggestionItem:
		if t == nil {
			return "", "", &DecodeError{Source: "selection", Err: errors.New("nil suggestion")}
		}
		return t.Value, t.Label, nil
	case SelectionPayload:
		raw, err := t.Encode()
		return raw, "", err
	case *SelectionPayload:
		if t == nil {
			return "", "", &DecodeError{Source: "selection", Err: errors.New("nil payload")}
		}
		raw, err := t.Encode()
		return raw, "", err
	case SelectEvent:
		return selectedValue(t.Text)
	case *SelectEvent:
		if t == nil {
			return "", "", &DecodeError{Source: "selection", Err: errors.New("nil event")}
		}
		return selectedValue(t.Text)
	default:
		return "", "", &DecodeError{Source: "selection", Err: fmt.Errorf("unsupported value type %T", v)}
	}
}

// Submit applies the submission guard and returns the values to post.
// A selection left over from a longer text is dropped once the text is
// shorter than the lookup threshold.
func (c *Controller) Submit() FormValues {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selection != "" && utf8.RuneCountInString(strings.TrimSpace(c.text)) < c.minChars {
		c.selection = ""
	}
	return FormValues{City: c.text, Selection: c.selection}
}

// Text returns the visible input text.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Selection returns the current selection value, "" when nothing is picked.
func (c *Controller) Selection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Suggestions returns a copy of the full mapped list from the last
// successful lookup.
func (c *Controller) Suggestions() []SuggestionItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SuggestionItem, len(c.items))
	copy(out, c.items)
	return out
}

// Pending reports whether a lookup is scheduled or running.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil || c.inFlight
}

// Close abandons pending work and waits for running lookups to return.
// A result that was already being delivered may still reach the hooks;
// no other result does. Close may be called from OnResult or the Renderer.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.supersedeLocked()
	c.stop()
	c.mu.Unlock()

	c.wg.Wait()
}
