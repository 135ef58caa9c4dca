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

package jobs

// Names of the jobs shipped in the remote jobs package.
const (
	JobSparkSQL                = "SparkSQL"
	JobLoadCSV                 = "LoadCSV"
	JobGetTrainingData         = "GetTrainingData"
	JobDropNullAndDuplicateRow = "DropNullAndDuplicateRow"
	JobDropNullColumns         = "DropNullColumns"
	JobSetTrainingData         = "SetTrainingData"
	JobBenchmarkModel          = "BenchmarkModel"

	JobReactivationPullRecord = "ReactivationPullRecord"
	JobReactivationUpdateDWH  = "ReactivationUpdateDWH"
	JobCancellationPullRecord = "CancellationPullRecord"
	JobCancellationUpdateDWH  = "CancellationUpdateDWH"
)

// RegisterBuiltins registers the jobs shipped in the remote jobs package.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		name        string
		description string
		opts        []Option
	}{
		{name: JobSparkSQL, description: "Base of the Spark SQL jobs", opts: []Option{Abstract()}},
		{name: JobLoadCSV, description: "Load a CSV record into a temp table"},
		{name: JobGetTrainingData, description: "Read the training data set"},
		{name: JobDropNullAndDuplicateRow, description: "Drop rows with nulls and duplicate rows"},
		{name: JobDropNullColumns, description: "Drop columns that are mostly null"},
		{name: JobSetTrainingData, description: "Index features and persist the training data set"},
		{name: JobBenchmarkModel, description: "Train and benchmark the model"},
		{name: JobReactivationPullRecord, description: "Pull reactivation records"},
		{name: JobReactivationUpdateDWH, description: "Push reactivation records to the warehouse"},
		{name: JobCancellationPullRecord, description: "Pull cancellation records"},
		{name: JobCancellationUpdateDWH, description: "Push cancellation records to the warehouse"},
	}
	for _, b := range builtins {
		opts := append([]Option{WithDescription(b.description)}, b.opts...)
		if err := r.Register(b.name, nil, opts...); err != nil {
			return err
		}
	}
	return nil
}
