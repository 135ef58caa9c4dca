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

package handle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// FileStore keeps one YAML file per key in a directory.
type FileStore struct {
	dir string
}

var _ Store = &FileStore{}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".yaml")
}

func (s *FileStore) Save(_ context.Context, key string, h Handle) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode session handle: %v", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create handle directory %s: %v", s.dir, err)
	}

	// Write then rename so a concurrent Load never reads a partial file.
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save session handle %s: %v", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save session handle %s: %v", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save session handle %s: %v", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to save session handle %s: %v", key, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, key string) (Handle, error) {
	if err := ValidateKey(key); err != nil {
		return Handle{}, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Handle{}, fmt.Errorf("failed to load session handle %s: %v", key, err)
	}
	var h Handle
	if err := yaml.Unmarshal(data, &h); err != nil {
		return Handle{}, fmt.Errorf("failed to decode session handle %s: %v", key, err)
	}
	return h, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}
