// Package hcl loads experiment files and translates them into composition
// descriptors and device specifications.
package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/fsutil"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/schema"
)

// Loader parses experiment HCL files.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the experiment path (file or directory) into a merged Config.
func (l *Loader) Load(ctx context.Context, path string) (*schema.Config, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindExperimentFiles(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Experiment files found.", "count", len(files))

	parser := hclparse.NewParser()
	bodies := make([]hcl.Body, 0, len(files))
	for _, file := range files {
		parsed, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", file, diags)
		}
		bodies = append(bodies, parsed.Body)
	}

	var cfg schema.Config
	if diags := gohcl.DecodeBody(hcl.MergeBodies(bodies), nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decoding experiment configuration: %w", diags)
	}

	if cfg.Experiment == nil {
		return nil, fmt.Errorf("no 'experiment' block found under %q", path)
	}
	return &cfg, nil
}
