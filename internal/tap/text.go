package tap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// TextLine reads one record per line into a single field and writes records
// as tab-separated lines.
type TextLine struct {
	path   string
	fields tuple.Fields
}

// NewTextLine returns a line-oriented file connector. The source field defaults to "line".
func NewTextLine(path string, fields tuple.Fields) *TextLine {
	if len(fields) == 0 {
		fields = tuple.NewFields("line")
	}
	return &TextLine{path: path, fields: fields[:1]}
}

func (t *TextLine) Identifier() string         { return t.path }
func (t *TextLine) SourceFields() tuple.Fields { return t.fields }
func (t *TextLine) SinkFields() tuple.Fields   { return nil }

func (t *TextLine) OpenRead(ctx context.Context) (Reader, error) {
	return openLineReader(t.path, func(line string) tuple.Tuple {
		return tuple.Of(line)
	}, false)
}

func (t *TextLine) OpenWrite(ctx context.Context) (Writer, error) {
	return openLineWriter(t.path, "\t", nil)
}

// TextDelimited reads and writes delimited columns.
type TextDelimited struct {
	path      string
	fields    tuple.Fields
	sink      tuple.Fields
	delimiter string
	header    bool
}

// NewTextDelimited returns a delimited file connector. The delimiter defaults to a tab.
func NewTextDelimited(path string, fields, sink tuple.Fields, delimiter string, header bool) *TextDelimited {
	if delimiter == "" {
		delimiter = "\t"
	}
	return &TextDelimited{path: path, fields: fields, sink: sink, delimiter: delimiter, header: header}
}

func (t *TextDelimited) Identifier() string         { return t.path }
func (t *TextDelimited) SourceFields() tuple.Fields { return t.fields }
func (t *TextDelimited) SinkFields() tuple.Fields   { return t.sink }

func (t *TextDelimited) OpenRead(ctx context.Context) (Reader, error) {
	width := len(t.fields)
	return openLineReader(t.path, func(line string) tuple.Tuple {
		parts := strings.Split(line, t.delimiter)
		out := make(tuple.Tuple, width)
		for i := 0; i < width && i < len(parts); i++ {
			out[i] = parseValue(parts[i])
		}
		return out
	}, t.header)
}

func (t *TextDelimited) OpenWrite(ctx context.Context) (Writer, error) {
	var header tuple.Fields
	if t.header {
		header = t.sink
		if len(header) == 0 {
			header = t.fields
		}
	}
	return openLineWriter(t.path, t.delimiter, header)
}

// parseValue keeps integers and floats numeric so grouping compares them as numbers.
func parseValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

type lineReader struct {
	f       *os.File
	scanner *bufio.Scanner
	parse   func(string) tuple.Tuple
}

func openLineReader(path string, parse func(string) tuple.Tuple, skipHeader bool) (*lineReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for reading: %w", path, err)
	}
	r := &lineReader{f: f, scanner: bufio.NewScanner(f), parse: parse}
	if skipHeader {
		r.scanner.Scan()
	}
	return r, nil
}

func (r *lineReader) Read(ctx context.Context) (tuple.Tuple, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return r.parse(r.scanner.Text()), nil
}

func (r *lineReader) Close() error {
	return r.f.Close()
}

type lineWriter struct {
	f         *os.File
	w         *bufio.Writer
	delimiter string
}

func openLineWriter(path, delimiter string, header tuple.Fields) (*lineWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	w := &lineWriter{f: f, w: bufio.NewWriter(f), delimiter: delimiter}
	if len(header) > 0 {
		if _, err := w.w.WriteString(strings.Join(header, delimiter) + "\n"); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *lineWriter) Write(ctx context.Context, t tuple.Tuple) error {
	parts := make([]string, len(t))
	for i, v := range t {
		if v != nil {
			parts[i] = fmt.Sprint(v)
		}
	}
	_, err := w.w.WriteString(strings.Join(parts, w.delimiter) + "\n")
	return err
}

func (w *lineWriter) Flush() error {
	return w.w.Flush()
}

func (w *lineWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
