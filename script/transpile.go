package script

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
)

// Extensions whose source is always transpiled before it reaches goja
var transpiledLoaders = map[string]api.Loader{
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
	".mjs": api.LoaderJS,
}

// moduleSyntax matches a top-level import or export statement
var moduleSyntax = regexp.MustCompile(`(?m)^\s*(import|export)[\s{*]`)

// TranspileError reports esbuild diagnostics for a script
type TranspileError struct {
	Messages []string
}

func (e *TranspileError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Transpile converts TypeScript or ES module source into CommonJS that goja
// runs. Imports become require() calls, so `import * as pd from 'pd-api'`
// resolves to the pd object.
func Transpile(name, src string, loader api.Loader) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Target:     api.ES2017,
		Sourcefile: name,
		Sourcemap:  api.SourceMapInline,
	})
	if len(result.Errors) > 0 {
		te := &TranspileError{Messages: make([]string, 0, len(result.Errors))}
		for _, msg := range result.Errors {
			if loc := msg.Location; loc != nil {
				te.Messages = append(te.Messages, fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, msg.Text))
			} else {
				te.Messages = append(te.Messages, msg.Text)
			}
		}
		return "", te
	}
	return string(result.Code), nil
}

// compile turns a script into a goja program. TypeScript and .mjs files are
// transpiled first; plain JavaScript is compiled as is, and transpiled only
// when it fails to compile and uses import or export.
func compile(name, src string) (*goja.Program, error) {
	loader, transpile := transpiledLoaders[strings.ToLower(filepath.Ext(name))]
	if !transpile {
		program, err := goja.Compile(name, src, false)
		if err == nil {
			return program, nil
		}
		if !moduleSyntax.MatchString(src) {
			return nil, &LoadError{Path: name, Op: "compile", Err: err}
		}
		loader = api.LoaderJS
	}

	code, err := Transpile(name, src, loader)
	if err != nil {
		return nil, &LoadError{Path: name, Op: "transpile", Err: err}
	}
	program, err := goja.Compile(name, code, false)
	if err != nil {
		return nil, &LoadError{Path: name, Op: "compile", Err: err}
	}
	return program, nil
}
