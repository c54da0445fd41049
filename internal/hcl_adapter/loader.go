package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

// Loader reads flow descriptions and operation manifests written in HCL. It
// implements config.Loader.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load merges every .hcl file found under paths into one model. Any file may
// hold any block; the merge rejects duplicates across files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	model := config.NewModel()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		fileModel, err := l.translateFile(ctx, file, hclFile)
		if err != nil {
			return nil, nil, err
		}
		if err := model.Merge(fileModel); err != nil {
			return nil, nil, fmt.Errorf("in %s: %w", file, err)
		}
	}

	f := model.Flow
	logger.Debug("HCL loading complete.", "operations", len(model.Operations), "sources", len(f.Sources), "sinks", len(f.Sinks), "traps", len(f.Traps), "pipes", len(f.Pipes))
	return model, NewConverter(), nil
}

// Parse translates one in-memory HCL source.
func (l *Loader) Parse(ctx context.Context, filename string, src []byte) (*config.Model, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return l.translateFile(ctx, filename, hclFile)
}

func (l *Loader) translateFile(ctx context.Context, filename string, hclFile *hcl.File) (*config.Model, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	model := config.NewModel()
	for _, op := range root.Operations {
		def, err := l.translateOperationDefinition(ctx, op)
		if err != nil {
			return nil, err
		}
		if _, exists := model.Operations[def.Type]; exists {
			return nil, fmt.Errorf("in %s: operation %q declared more than once", filename, def.Type)
		}
		model.Operations[def.Type] = def
	}

	if len(root.Flows) > 1 {
		return nil, fmt.Errorf("in %s: at most one flow block is allowed, found %d", filename, len(root.Flows))
	}
	for _, fb := range root.Flows {
		model.Flow.Name = fb.Name
		model.Flow.Description = fb.Description
	}
	for _, s := range root.Sources {
		model.Flow.Sources = append(model.Flow.Sources, l.translateTap(s))
	}
	for _, s := range root.Sinks {
		model.Flow.Sinks = append(model.Flow.Sinks, l.translateTap(s))
	}
	for _, s := range root.Traps {
		model.Flow.Traps = append(model.Flow.Traps, l.translateTap(s))
	}
	for _, p := range root.Pipes {
		pipe, err := l.translatePipe(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", filename, err)
		}
		model.Flow.Pipes = append(model.Flow.Pipes, pipe)
	}
	return model, nil
}

// findAllHCLFiles returns every .hcl file under paths, each once, in walk
// order. Paths that do not exist are skipped.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if filepath.Ext(p) == ".hcl" && !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return nil, fmt.Errorf("error accessing path %s: %w", root, err)
		case !info.IsDir():
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return files, nil
}
