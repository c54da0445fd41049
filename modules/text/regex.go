package text

import (
	"context"
	"fmt"
	"regexp"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

func compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern must not be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// firstString returns the first argument rendered as a string. Null values
// read as the empty string.
func firstString(args tuple.Entry) (string, error) {
	if len(args.Tuple) == 0 {
		return "", fmt.Errorf("no argument to read")
	}
	switch v := args.Tuple[0].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// SplitInput defines the arguments of regex_split.
type SplitInput struct {
	Pattern string `flow:"pattern"`
	Field   string `flow:"field"`
}

// RegexSplit emits one single field record per non-empty token.
type RegexSplit struct {
	re       *regexp.Regexp
	declared tuple.Fields
}

// NewRegexSplit is the on_create handler of regex_split.
func NewRegexSplit(ctx context.Context, in *SplitInput) (*RegexSplit, error) {
	re, err := compile(in.Pattern)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Compiled split pattern.", "pattern", in.Pattern, "field", in.Field)
	return &RegexSplit{re: re, declared: tuple.NewFields(in.Field)}, nil
}

func (s *RegexSplit) Name() string           { return "regex_split" }
func (s *RegexSplit) Declared() tuple.Fields { return s.declared }

func (s *RegexSplit) Operate(_ context.Context, args tuple.Entry, out operation.Collector) error {
	v, err := firstString(args)
	if err != nil {
		return err
	}
	for _, tok := range s.re.Split(v, -1) {
		if tok == "" {
			continue
		}
		if err := out.Collect(tuple.Of(tok)); err != nil {
			return err
		}
	}
	return nil
}

// FilterInput defines the arguments of regex_filter.
type FilterInput struct {
	Pattern     string `flow:"pattern"`
	RemoveMatch bool   `flow:"remove_match"`
}

// RegexFilter keeps the records whose first argument matches, or removes
// them when RemoveMatch is set.
type RegexFilter struct {
	re          *regexp.Regexp
	removeMatch bool
}

// NewRegexFilter is the on_create handler of regex_filter.
func NewRegexFilter(_ context.Context, in *FilterInput) (*RegexFilter, error) {
	re, err := compile(in.Pattern)
	if err != nil {
		return nil, err
	}
	return &RegexFilter{re: re, removeMatch: in.RemoveMatch}, nil
}

func (f *RegexFilter) Name() string           { return "regex_filter" }
func (f *RegexFilter) Declared() tuple.Fields { return nil }

func (f *RegexFilter) Remove(_ context.Context, args tuple.Entry) (bool, error) {
	v, err := firstString(args)
	if err != nil {
		return false, err
	}
	return f.re.MatchString(v) == f.removeMatch, nil
}

// ReplaceInput defines the arguments of regex_replace.
type ReplaceInput struct {
	Pattern     string `flow:"pattern"`
	Replacement string `flow:"replacement"`
	ReplaceAll  bool   `flow:"replace_all"`
	Field       string `flow:"field"`
}

// RegexReplace rewrites the first argument. Replacement may reference
// capture groups with $1 or ${name}.
type RegexReplace struct {
	re          *regexp.Regexp
	replacement string
	all         bool
	declared    tuple.Fields
}

// NewRegexReplace is the on_create handler of regex_replace.
func NewRegexReplace(_ context.Context, in *ReplaceInput) (*RegexReplace, error) {
	re, err := compile(in.Pattern)
	if err != nil {
		return nil, err
	}
	return &RegexReplace{re: re, replacement: in.Replacement, all: in.ReplaceAll, declared: tuple.NewFields(in.Field)}, nil
}

func (r *RegexReplace) Name() string           { return "regex_replace" }
func (r *RegexReplace) Declared() tuple.Fields { return r.declared }

func (r *RegexReplace) Operate(_ context.Context, args tuple.Entry, out operation.Collector) error {
	v, err := firstString(args)
	if err != nil {
		return err
	}
	if r.all {
		return out.Collect(tuple.Of(r.re.ReplaceAllString(v, r.replacement)))
	}
	loc := r.re.FindStringSubmatchIndex(v)
	if loc == nil {
		return out.Collect(tuple.Of(v))
	}
	var dst []byte
	dst = r.re.ExpandString(dst, r.replacement, v, loc)
	return out.Collect(tuple.Of(v[:loc[0]] + string(dst) + v[loc[1]:]))
}

// IdentityInput defines the arguments of identity.
type IdentityInput struct {
	Fields []string `flow:"fields"`
}

// Identity passes its arguments through. With Fields set the values are
// emitted under the new names.
type Identity struct {
	declared tuple.Fields
}

// NewIdentity is the on_create handler of identity.
func NewIdentity(_ context.Context, in *IdentityInput) (*Identity, error) {
	declared := tuple.NewFields(in.Fields...)
	if declared.HasDuplicates() {
		return nil, fmt.Errorf("fields %s contain duplicates", declared)
	}
	return &Identity{declared: declared}, nil
}

func (i *Identity) Name() string           { return "identity" }
func (i *Identity) Declared() tuple.Fields { return i.declared }

func (i *Identity) Operate(_ context.Context, args tuple.Entry, out operation.Collector) error {
	if len(i.declared) > 0 && len(i.declared) != len(args.Tuple) {
		return fmt.Errorf("identity declares %d fields but received %d arguments", len(i.declared), len(args.Tuple))
	}
	return out.Collect(args.Tuple.Copy())
}
