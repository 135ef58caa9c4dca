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

// Package handle persists session handles between independent workflow
// steps, so that the step starting a session, the steps running jobs in it
// and the step ending it can run as separate processes.
package handle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/kubeflow/spark-livy-runner/pkg/config"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

// ErrNotFound is returned when no handle is stored under a key.
var ErrNotFound = errors.New("session handle not found")

var keyRegexp = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Handle is the persisted form of a session. It is passed back to the client
// unchanged.
type Handle struct {
	ID        int       `json:"id"`
	Path      string    `json:"path"`
	Kind      string    `json:"kind,omitempty"`
	Host      string    `json:"host,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromSession returns the handle of session.
func FromSession(session *livy.Session, host string, now time.Time) Handle {
	return Handle{ID: session.ID, Path: session.Path, Kind: session.Kind, Host: host, CreatedAt: now.UTC()}
}

// Session returns the session the handle addresses.
func (h Handle) Session() *livy.Session {
	return &livy.Session{ID: h.ID, Path: h.Path, Kind: h.Kind}
}

// Store persists handles under a key, typically the workflow run id.
type Store interface {
	Save(ctx context.Context, key string, h Handle) error
	Load(ctx context.Context, key string) (Handle, error)
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks that key can be used as a file and object name.
func ValidateKey(key string) error {
	if len(key) > 200 || !keyRegexp.MatchString(key) {
		return fmt.Errorf("invalid handle key %q: must consist of lower case alphanumeric characters or '-'", key)
	}
	return nil
}

// New returns the store selected by cfg.
func New(ctx context.Context, cfg config.HandleStoreConfig) (Store, error) {
	switch cfg.Type {
	case config.HandleStoreFile:
		return NewFileStore(cfg.Dir), nil
	case config.HandleStoreConfigMap:
		k8sClient, err := util.GetK8sClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Kubernetes client: %v", err)
		}
		return NewConfigMapStore(k8sClient, cfg.Namespace, cfg.Prefix), nil
	case config.HandleStoreEtcd:
		cli, err := newEtcdClient(cfg.Endpoints)
		if err != nil {
			return nil, err
		}
		return NewEtcdStore(cli, cfg.Prefix), nil
	case config.HandleStoreS3:
		var endpoint string
		if len(cfg.Endpoints) > 0 {
			endpoint = cfg.Endpoints[0]
		}
		api, err := newS3Client(ctx, cfg.Region, endpoint)
		if err != nil {
			return nil, err
		}
		return NewS3Store(api, cfg.Bucket, cfg.Prefix), nil
	case config.HandleStorePostgres:
		pool, err := newPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(ctx, pool, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown handle store type %q", cfg.Type)
	}
}
