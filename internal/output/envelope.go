package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Response is the success envelope for structured output.
type Response struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ErrorResponse is the error envelope for structured output.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code"`
	Hint  string `json:"hint,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto  Format = iota // summary line + indented JSON data
	FormatJSON                // full envelope as JSON
	FormatYAML                // full envelope as YAML
	FormatQuiet               // data only, no envelope
	FormatIDs                 // only ids
	FormatCount               // only count
)

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
	JQ     string // gojq filter applied to the data before rendering
}

// DefaultOptions returns options for standard output.
func DefaultOptions() Options {
	return Options{
		Format: FormatAuto,
		Writer: os.Stdout,
	}
}

// Writer handles all output formatting.
type Writer struct {
	opts   Options
	locale Locale
}

// New creates a new output writer.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Writer{opts: opts, locale: DetectLocale()}
}

// Locale exposes the writer's detected locale for count formatting.
func (w *Writer) Locale() Locale {
	return w.locale
}

// ResponseOption customizes a success response.
type ResponseOption func(*Response)

// WithSummary attaches a one-line summary to the response.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}

	if w.opts.JQ != "" {
		filtered, err := applyJQ(w.opts.JQ, resp.Data)
		if err != nil {
			return err
		}
		resp.Data = filtered
	}

	return w.write(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	resp := &ErrorResponse{
		OK:    false,
		Error: e.Message,
		Code:  e.Code,
		Hint:  e.Hint,
	}
	return w.write(resp)
}

func (w *Writer) write(v any) error {
	switch w.opts.Format {
	case FormatQuiet:
		if resp, ok := v.(*Response); ok {
			return w.writeJSON(resp.Data)
		}
		return w.writeJSON(v)
	case FormatYAML:
		return w.writeYAML(v)
	case FormatIDs:
		return w.writeIDs(v)
	case FormatCount:
		return w.writeCount(v)
	case FormatJSON:
		return w.writeJSON(v)
	default: // FormatAuto
		return w.writeText(v)
	}
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (w *Writer) writeYAML(v any) error {
	// Round-trip through JSON so yaml honors the json struct tags.
	norm, err := normalize(v)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(norm)
	if err != nil {
		return err
	}
	_, err = w.opts.Writer.Write(data)
	return err
}

func (w *Writer) writeText(v any) error {
	resp, ok := v.(*Response)
	if !ok {
		if errResp, ok := v.(*ErrorResponse); ok {
			fmt.Fprintf(w.opts.Writer, "error: %s\n", errResp.Error)
			if errResp.Hint != "" {
				fmt.Fprintf(w.opts.Writer, "hint: %s\n", errResp.Hint)
			}
			return nil
		}
		return w.writeJSON(v)
	}
	if resp.Summary != "" {
		fmt.Fprintln(w.opts.Writer, resp.Summary)
	}
	if resp.Data == nil {
		return nil
	}
	return w.writeJSON(resp.Data)
}

// writeIDs prints one id per line for list data, or the single id.
func (w *Writer) writeIDs(v any) error {
	data := envelopeData(v)
	norm, err := normalize(data)
	if err != nil {
		return err
	}
	switch t := norm.(type) {
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				if id, ok := m["_id"]; ok {
					fmt.Fprintln(w.opts.Writer, id)
				}
			}
		}
	case map[string]any:
		if id, ok := t["_id"]; ok {
			fmt.Fprintln(w.opts.Writer, id)
		}
	}
	return nil
}

func (w *Writer) writeCount(v any) error {
	data := envelopeData(v)
	norm, err := normalize(data)
	if err != nil {
		return err
	}
	n := 0
	switch t := norm.(type) {
	case []any:
		n = len(t)
	case nil:
		n = 0
	default:
		n = 1
	}
	fmt.Fprintln(w.opts.Writer, w.locale.FormatCount(n))
	return nil
}

func envelopeData(v any) any {
	if resp, ok := v.(*Response); ok {
		return resp.Data
	}
	return v
}

// normalize round-trips v through JSON into plain maps/slices.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// applyJQ runs a gojq filter over the data, returning the single result or
// the slice of results.
func applyJQ(filter string, data any) (any, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, ErrUsageHint("Invalid jq filter", err.Error())
	}

	norm, err := normalize(data)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := query.Run(norm)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, ErrUsageHint("jq filter failed", err.Error())
		}
		results = append(results, v)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}
