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

// Package jobs holds the catalog of jobs known to the remote job registry and
// how each of them is invoked from a pipeline.
//
// The registry is an explicit object populated at startup. Names that are not
// registered can still be invoked: the remote environment performs the actual
// lookup when the code runs.
package jobs

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
)

// Params are the pipeline parameters a job invocation is built from.
type Params struct {
	Date time.Time
	Days int
	// Extra keyword arguments are appended after the standard ones.
	Extra []jobtemplate.Kwarg
}

// Kwargs returns the standard keyword arguments, days then date, followed by
// the extra ones.
func (p Params) Kwargs() []jobtemplate.Kwarg {
	kwargs := make([]jobtemplate.Kwarg, 0, 2+len(p.Extra))
	if p.Days > 0 {
		kwargs = append(kwargs, jobtemplate.Kwarg{Name: common.ParamDays, Value: strconv.Itoa(p.Days)})
	}
	if !p.Date.IsZero() {
		kwargs = append(kwargs, jobtemplate.Kwarg{Name: common.ParamDate, Value: Quote(p.Date.Format(common.DateLayout))})
	}
	return append(kwargs, p.Extra...)
}

// Quote renders s as a single-quoted string literal.
func Quote(s string) string {
	return "'" + s + "'"
}

// Factory builds the invocation of one job.
type Factory func(name string, params Params) jobtemplate.Invocation

// DefaultFactory passes the pipeline parameters as keyword arguments.
func DefaultFactory(name string, params Params) jobtemplate.Invocation {
	return jobtemplate.Invocation{JobKey: name, Kwargs: params.Kwargs()}
}

type entry struct {
	factory     Factory
	abstract    bool
	description string
}

// Option configures a registration.
type Option func(*entry)

// Abstract marks a registration as a base that is never invoked directly.
func Abstract() Option {
	return func(e *entry) {
		e.abstract = true
	}
}

// WithDescription attaches a human readable description.
func WithDescription(description string) Option {
	return func(e *entry) {
		e.description = description
	}
}

// Registry maps job names to invocation factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a job. A nil factory selects DefaultFactory.
func (r *Registry) Register(name string, factory Factory, opts ...Option) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if factory == nil {
		factory = DefaultFactory
	}
	e := &entry{factory: factory}
	for _, opt := range opts {
		opt(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("job %s is already registered", name)
	}
	r.entries[name] = e
	return nil
}

// Lookup returns the factory of a registered, non abstract job.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || e.abstract {
		return nil, false
	}
	return e.factory, true
}

// Description returns the description of a registered job.
func (r *Registry) Description(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.description
	}
	return ""
}

// Names returns the sorted names of the non abstract jobs.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if !e.abstract {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Invocation builds the invocation of name. Unregistered and abstract names
// fall back to DefaultFactory.
func (r *Registry) Invocation(name string, params Params) jobtemplate.Invocation {
	factory, ok := r.Lookup(name)
	if !ok {
		factory = DefaultFactory
	}
	return factory(name, params)
}
