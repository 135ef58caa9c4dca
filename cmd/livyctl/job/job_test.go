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

package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
)

func TestParseParams(t *testing.T) {
	now := time.Date(2020, 1, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))

	params, err := parseParams("", 30, nil, now)
	require.NoError(t, err)
	assert.Equal(t, []jobtemplate.Kwarg{
		{Name: "days", Value: "30"},
		{Name: "date", Value: "'2020-01-02'"},
	}, params.Kwargs())

	params, err = parseParams("2019-09-30", 0, []string{"limit=5"}, now)
	require.NoError(t, err)
	assert.Equal(t, []jobtemplate.Kwarg{
		{Name: "date", Value: "'2019-09-30'"},
		{Name: "limit", Value: "5"},
	}, params.Kwargs())

	_, err = parseParams("30/09/2019", 30, nil, now)
	assert.Error(t, err)
	_, err = parseParams("", 30, []string{"limit"}, now)
	assert.Error(t, err)
}

func TestParseParamsStandardKeywordArguments(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := parseParams("", 30, []string{"days=7"}, now)
	assert.ErrorContains(t, err, "--days 0")
	_, err = parseParams("", 0, []string{"date='2020-02-02'"}, now)
	assert.ErrorContains(t, err, "--date")

	params, err := parseParams("", 0, []string{"days=7"}, now)
	require.NoError(t, err)
	assert.Equal(t, []jobtemplate.Kwarg{
		{Name: "date", Value: "'2020-01-01'"},
		{Name: "days", Value: "7"},
	}, params.Kwargs())
}
