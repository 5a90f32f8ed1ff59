// Package hcl_adapter loads warehouse manifests written in HCL into the
// format-agnostic config.Model.
//
// A manifest declares artifacts with table, view and summary blocks, plus
// optional locals shared by every loaded file:
//
//	locals {
//	  vao = ["vao_list", "vao_line"]
//	}
//
//	summary "vao_base" {
//	  tables      = local.vao
//	  primary_key = ["uarn"]
//	  sql         = <<-SQL
//	    SELECT * FROM {{ t 1 }} JOIN {{ t 2 }} USING (uarn)
//	  SQL
//	  index { columns = ["pc"] }
//	}
package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/munge/internal/config"
	"github.com/vk/munge/internal/ctxlog"
	"github.com/vk/munge/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

var localsSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "locals"}},
}

// parsedFile is one manifest after the first pass.
type parsedFile struct {
	path string
	body hcl.Body // everything but locals
	file *hcl.File
}

// Load reads every .hcl file under paths. Files are read in lexical order
// and blocks keep their order within a file, which fixes registration order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles), "files", hclFiles)

	// First pass: parse everything and collect locals.
	parser := hclparse.NewParser()
	var files []parsedFile
	var localBodies []hcl.Body
	for _, path := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, errors.Wrapf(diags, "failed to parse HCL file %s", path)
		}
		content, remain, diags := hclFile.Body.PartialContent(localsSchema)
		if diags.HasErrors() {
			return nil, errors.Wrapf(diags, "failed to read locals in %s", path)
		}
		for _, block := range content.Blocks {
			localBodies = append(localBodies, block.Body)
		}
		files = append(files, parsedFile{path: path, body: remain, file: hclFile})
	}

	locals := make(map[string]cty.Value)
	if diags := evalLocals(localBodies, locals); diags.HasErrors() {
		return nil, errors.Wrap(diags, "failed to evaluate locals")
	}
	evalCtx := newEvalContext(locals)
	logger.Debug("Locals evaluated.", "count", len(locals))

	// Second pass: decode artifact blocks against the locals.
	model := &config.Model{}
	for _, f := range files {
		var root fileRoot
		if diags := gohcl.DecodeBody(f.body, evalCtx, &root); diags.HasErrors() {
			return nil, errors.Wrapf(diags, "failed to decode HCL file %s", f.path)
		}

		defs, err := l.translateFile(ctx, f, &root)
		if err != nil {
			return nil, err
		}
		model.Artifacts = append(model.Artifacts, defs...)
	}

	logger.Debug("HCL loading complete.", "artifacts", len(model.Artifacts))
	return model, nil
}

// blockPositions maps "type.label" to the block's declaration range.
func blockPositions(f *hcl.File) map[string]hcl.Range {
	out := make(map[string]hcl.Range)
	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return out
	}
	for _, b := range body.Blocks {
		if len(b.Labels) == 0 {
			continue
		}
		key := b.Type + "." + b.Labels[0]
		if _, seen := out[key]; !seen {
			out[key] = b.DefRange()
		}
	}
	return out
}

func sourceOf(r hcl.Range) string {
	if r.Filename == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d,%d", r.Filename, r.Start.Line, r.Start.Column)
}

// sortByPosition restores declaration order across block types.
func sortByPosition(defs []*config.ArtifactDefinition, pos map[string]hcl.Range) {
	slices.SortStableFunc(defs, func(a, b *config.ArtifactDefinition) int {
		return pos[blockType(a.Kind)+"."+a.Name].Start.Byte - pos[blockType(b.Kind)+"."+b.Name].Start.Byte
	})
}

// findAllHCLFiles walks all given paths and returns a flat, de-duplicated
// list of all .hcl files found, each path's files in lexical order.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WithHint(
					errors.Newf("manifest path %s does not exist", path),
					"pass an existing file or directory with --manifest",
				)
			}
			return nil, errors.Wrapf(err, "error accessing path %s", path)
		}
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			if _, wasSeen := seen[abs]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[abs] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
