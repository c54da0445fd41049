// Package tap holds the connectors records are read from and written to.
// A connector is opened by the caller of the runtime and handed over as a
// Reader or Writer; the runtime never opens connectors itself.
package tap

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Tap describes a connector.
type Tap interface {
	// Identifier names the underlying resource, such as a file path.
	Identifier() string
	// SourceFields are the fields of records read from the connector.
	SourceFields() tuple.Fields
	// SinkFields select the fields written to the connector. Empty means every incoming field.
	SinkFields() tuple.Fields
	OpenRead(ctx context.Context) (Reader, error)
	OpenWrite(ctx context.Context) (Writer, error)
}

// Reader yields records until it returns io.EOF.
type Reader interface {
	Read(ctx context.Context) (tuple.Tuple, error)
	Close() error
}

// Writer accepts records. Flush pushes buffered records to the resource.
type Writer interface {
	Write(ctx context.Context, t tuple.Tuple) error
	Flush() error
	Close() error
}

// Scheme names a connector implementation in flow descriptions.
type Scheme string

const (
	SchemeMemory        Scheme = "memory"
	SchemeTextLine      Scheme = "text_line"
	SchemeTextDelimited Scheme = "text_delimited"
)

// Options configures New.
type Options struct {
	Scheme    Scheme
	Path      string
	Fields    tuple.Fields
	SinkOnly  tuple.Fields
	Delimiter string
	Header    bool
}

// New builds a connector for a scheme.
func New(opts Options) (Tap, error) {
	switch opts.Scheme {
	case SchemeMemory:
		return NewMemory(opts.Path, opts.Fields), nil
	case SchemeTextLine, "":
		return NewTextLine(opts.Path, opts.Fields), nil
	case SchemeTextDelimited:
		return NewTextDelimited(opts.Path, opts.Fields, opts.SinkOnly, opts.Delimiter, opts.Header), nil
	default:
		return nil, fmt.Errorf("unknown tap scheme %q", opts.Scheme)
	}
}
