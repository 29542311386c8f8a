// Package transform wraps the third-party source transformers the pipeline
// delegates to: esbuild for stylesheet bundling and script transpiling, and
// tdewolff/minify for optional minified output.
package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	perrors "github.com/conneroisu/sitepipe/internal/errors"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var targetPattern = regexp.MustCompile(`^([a-z]+)([0-9][0-9.]*)$`)

// ParseTargets turns strings such as "chrome90" or "safari14.1" into esbuild
// engine constraints.
func ParseTargets(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		m := targetPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", m[1], t)
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

var jsTargets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// keepURLs leaves every url() in a stylesheet as written, so query strings,
// fragments and any file type pass through. @import is still bundled.
var keepURLs = api.Plugin{
	Name: "keep-urls",
	Setup: func(build api.PluginBuild) {
		build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			if args.Kind != api.ResolveCSSURLToken {
				return api.OnResolveResult{}, nil
			}
			return api.OnResolveResult{Path: args.Path, External: true}, nil
		})
	},
}

// BundleCSS reads the entry stylesheet, inlines its @import rules and lowers
// nesting and newer syntax for the engines given.
func BundleCSS(entry string, engines []api.Engine) ([]byte, error) {
	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Write:       false,
		Metafile:    true,
		Engines:     engines,
		Plugins:     []api.Plugin{keepURLs},
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, messageError(entry, result.Errors)
	}
	if len(result.OutputFiles) == 0 {
		return nil, perrors.NewRenderError(entry, "bundler produced no output", nil)
	}
	code, err := stripFileBanners(result.OutputFiles[0].Contents, result.Metafile)
	if err != nil {
		return nil, perrors.NewRenderError(entry, "reading bundler metafile", err)
	}
	return code, nil
}

// stripFileBanners drops the "/* path */" line the bundler writes before the
// rules of each input file.
func stripFileBanners(code []byte, metafile string) ([]byte, error) {
	var meta struct {
		Inputs map[string]json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(code))
	for _, line := range bytes.SplitAfter(code, []byte("\n")) {
		trimmed := strings.TrimSpace(string(line))
		if strings.HasPrefix(trimmed, "/* ") && strings.HasSuffix(trimmed, " */") {
			if _, ok := meta.Inputs[trimmed[3:len(trimmed)-3]]; ok {
				continue
			}
		}
		out = append(out, line...)
	}
	return out, nil
}

// JS transpiles a script to the given ECMAScript target, preserving its
// semantics.
func JS(source []byte, file, target string) ([]byte, error) {
	t, ok := jsTargets[strings.ToLower(target)]
	if !ok {
		return nil, fmt.Errorf("unknown script target %q", target)
	}
	result := api.Transform(string(source), api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: file,
		Target:     t,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, messageError(file, result.Errors)
	}
	return result.Code, nil
}

func messageError(file string, msgs []api.Message) error {
	first := msgs[0]
	err := perrors.NewRenderError(file, first.Text, nil)
	if first.Location != nil {
		err.WithLocation(file, first.Location.Line, first.Location.Column+1)
	}
	if len(msgs) > 1 {
		err.Message = fmt.Sprintf("%s (and %d more)", first.Text, len(msgs)-1)
	}
	return err
}
