/*
Copyright 2025 The Kubeflow authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package jobtemplate renders a job invocation into the code fragment that is
// submitted to a remote session. The fragment looks the job up in the remote
// job registry, builds it with the execution context and the given arguments,
// runs it and prints the result.
//
// Argument values are inserted as literal source text. They are not quoted or
// escaped, so callers must only pass strings they trust to run on the cluster.
package jobtemplate

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
)

// DefaultTemplate is the wrapper around a job invocation.
const DefaultTemplate = `from {{ .RegistryModule }} import {{ .RegistryHolder }}

Job = {{ .RegistryHolder }}.get_registry()['{{ .JobKey }}']
job = Job({{ .Arguments }})
result = job.execute()
print(result)
`

var identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Kwarg is one keyword argument.
type Kwarg struct {
	Name  string
	Value string
}

// Invocation is a request to run the job registered under JobKey.
// Kwargs is a slice so that the rendered order is the order given.
type Invocation struct {
	JobKey string
	Args   []string
	Kwargs []Kwarg
}

// Renderer renders invocations with a given wrapper template.
type Renderer struct {
	tmpl           *template.Template
	registryModule string
	registryHolder string
}

// NewRenderer parses text as the wrapper template. An empty text selects
// DefaultTemplate, an empty registryModule selects the default module.
func NewRenderer(text, registryModule string) (*Renderer, error) {
	if text == "" {
		text = DefaultTemplate
	}
	if registryModule == "" {
		registryModule = common.DefaultRegistryModule
	}
	tmpl, err := template.New("job").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job template: %v", err)
	}
	return &Renderer{
		tmpl:           tmpl,
		registryModule: registryModule,
		registryHolder: common.DefaultRegistryHolder,
	}, nil
}

var defaultRenderer = func() *Renderer {
	r, err := NewRenderer("", "")
	if err != nil {
		panic(err)
	}
	return r
}()

// Render renders inv with the default template.
func Render(inv Invocation) (string, error) {
	return defaultRenderer.Render(inv)
}

// Render returns the code fragment for inv.
func (r *Renderer) Render(inv Invocation) (string, error) {
	if !identifierRegexp.MatchString(inv.JobKey) {
		return "", fmt.Errorf("invalid job key %q", inv.JobKey)
	}
	arguments, err := Arguments(inv)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = r.tmpl.Execute(&buf, struct {
		RegistryModule string
		RegistryHolder string
		JobKey         string
		Arguments      string
	}{
		RegistryModule: r.registryModule,
		RegistryHolder: r.registryHolder,
		JobKey:         inv.JobKey,
		Arguments:      arguments,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render job %s: %v", inv.JobKey, err)
	}
	return buf.String(), nil
}

// Arguments returns the argument list of the job constructor call: the
// execution context first, then positional arguments, then keyword arguments
// in slice order.
func Arguments(inv Invocation) (string, error) {
	parts := make([]string, 0, 1+len(inv.Args)+len(inv.Kwargs))
	parts = append(parts, common.ExecutionContextArg)
	for i, arg := range inv.Args {
		if strings.TrimSpace(arg) == "" {
			return "", fmt.Errorf("job %s: positional argument %d is empty", inv.JobKey, i)
		}
		parts = append(parts, arg)
	}

	seen := make(map[string]bool, len(inv.Kwargs))
	for _, kwarg := range inv.Kwargs {
		if !identifierRegexp.MatchString(kwarg.Name) {
			return "", fmt.Errorf("job %s: invalid keyword argument name %q", inv.JobKey, kwarg.Name)
		}
		if seen[kwarg.Name] {
			return "", fmt.Errorf("job %s: keyword argument %s given twice", inv.JobKey, kwarg.Name)
		}
		if strings.TrimSpace(kwarg.Value) == "" {
			return "", fmt.Errorf("job %s: keyword argument %s is empty", inv.JobKey, kwarg.Name)
		}
		seen[kwarg.Name] = true
		parts = append(parts, kwarg.Name+"="+kwarg.Value)
	}
	return strings.Join(parts, ", "), nil
}

// ParseKwargs parses name=value pairs, keeping their order.
func ParseKwargs(pairs []string) ([]Kwarg, error) {
	kwargs := make([]Kwarg, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid keyword argument %q, expected name=value", pair)
		}
		kwargs = append(kwargs, Kwarg{Name: strings.TrimSpace(name), Value: value})
	}
	return kwargs, nil
}
