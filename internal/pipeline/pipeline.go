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

// Package pipeline defines named sequences of jobs that run one after the
// other in a single session.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
)

const (
	Reactivation = "reactivation"
	Cancellation = "cancellation"
)

// Pipeline is an ordered list of registered job names.
type Pipeline struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Jobs        []string `json:"jobs"`
	// When maps a job to a boolean expression over date, days, day, weekday
	// and job. The job is skipped when its expression is false.
	When map[string]string `json:"when,omitempty"`
}

// Validate checks that the pipeline has a name and at least one job.
func (p Pipeline) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("pipeline name must not be empty")
	}
	if len(p.Jobs) == 0 {
		return fmt.Errorf("pipeline %s has no jobs", p.Name)
	}
	for i, job := range p.Jobs {
		if strings.TrimSpace(job) == "" {
			return fmt.Errorf("pipeline %s: job %d has no name", p.Name, i)
		}
	}
	for job, condition := range p.When {
		if !slices.Contains(p.Jobs, job) {
			return fmt.Errorf("pipeline %s: condition for unknown job %s", p.Name, job)
		}
		if _, err := compileCondition(condition); err != nil {
			return fmt.Errorf("pipeline %s: job %s: %v", p.Name, job, err)
		}
	}
	return nil
}

// File is the format of a pipeline definitions file.
type File struct {
	Pipelines []Pipeline `json:"pipelines"`
}

// Defaults returns the built-in pipelines.
func Defaults() []Pipeline {
	return []Pipeline{
		{
			Name:        Reactivation,
			Description: "Pull reactivation records and update the warehouse",
			Jobs:        []string{jobs.JobReactivationPullRecord, jobs.JobReactivationUpdateDWH},
		},
		{
			Name:        Cancellation,
			Description: "Pull cancellation records and update the warehouse",
			Jobs:        []string{jobs.JobCancellationPullRecord, jobs.JobCancellationUpdateDWH},
		},
	}
}

// Catalog holds pipelines by lower case name.
type Catalog struct {
	pipelines map[string]Pipeline
}

// NewCatalog returns a catalog of the given pipelines. Later pipelines
// replace earlier ones of the same name.
func NewCatalog(pipelines ...Pipeline) (*Catalog, error) {
	c := &Catalog{pipelines: make(map[string]Pipeline, len(pipelines))}
	for _, p := range pipelines {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		c.pipelines[strings.ToLower(p.Name)] = p
	}
	return c, nil
}

// Load returns the built-in pipelines overridden and extended by the
// definitions in path. An empty path returns the built-in pipelines.
func Load(path string) (*Catalog, error) {
	pipelines := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipelines file %s: %v", path, err)
		}
		var file File
		if err := yaml.UnmarshalStrict(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse pipelines file %s: %v", path, err)
		}
		pipelines = append(pipelines, file.Pipelines...)
	}
	return NewCatalog(pipelines...)
}

// Get returns the pipeline named name, ignoring case.
func (c *Catalog) Get(name string) (Pipeline, error) {
	p, ok := c.pipelines[strings.ToLower(name)]
	if !ok {
		return Pipeline{}, fmt.Errorf("unknown pipeline %q, must be one of %s", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names returns the sorted pipeline names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.pipelines))
	for _, p := range c.pipelines {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
