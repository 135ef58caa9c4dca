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

package pipeline

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
)

// conditionEnv is what a job condition can refer to.
type conditionEnv struct {
	Date    time.Time `expr:"date"`
	Days    int       `expr:"days"`
	Day     int       `expr:"day"`
	Weekday string    `expr:"weekday"`
	Job     string    `expr:"job"`
}

func newConditionEnv(job string, params jobs.Params) conditionEnv {
	return conditionEnv{
		Date:    params.Date,
		Days:    params.Days,
		Day:     params.Date.Day(),
		Weekday: params.Date.Weekday().String(),
		Job:     job,
	}
}

func compileCondition(condition string) (*vm.Program, error) {
	program, err := expr.Compile(condition, expr.Env(conditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %v", condition, err)
	}
	return program, nil
}

// shouldRun evaluates the condition of job, if any.
func (p Pipeline) shouldRun(job string, params jobs.Params) (bool, error) {
	condition, ok := p.When[job]
	if !ok {
		return true, nil
	}
	program, err := compileCondition(condition)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, newConditionEnv(job, params))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition of job %s: %v", job, err)
	}
	return out.(bool), nil
}
