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
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"sigs.k8s.io/yaml"
)

// EtcdDialTimeout bounds the initial connection to the etcd cluster.
const EtcdDialTimeout = 5 * time.Second

// EtcdStore keeps each handle under its own etcd key.
type EtcdStore struct {
	kv     clientv3.KV
	prefix string
}

var _ Store = &EtcdStore{}

// NewEtcdStore returns a store writing keys below prefix through kv.
func NewEtcdStore(kv clientv3.KV, prefix string) *EtcdStore {
	return &EtcdStore{kv: kv, prefix: strings.Trim(prefix, "/")}
}

func newEtcdClient(endpoints []string) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: EtcdDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd %v: %v", endpoints, err)
	}
	return cli, nil
}

func (s *EtcdStore) key(key string) string {
	if s.prefix == "" {
		return "/" + key
	}
	return "/" + s.prefix + "/" + key
}

func (s *EtcdStore) Save(ctx context.Context, key string, h Handle) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode session handle: %v", err)
	}
	if _, err := s.kv.Put(ctx, s.key(key), string(data)); err != nil {
		return fmt.Errorf("failed to put %s: %v", s.key(key), err)
	}
	return nil
}

func (s *EtcdStore) Load(ctx context.Context, key string) (Handle, error) {
	if err := ValidateKey(key); err != nil {
		return Handle{}, err
	}
	resp, err := s.kv.Get(ctx, s.key(key))
	if err != nil {
		return Handle{}, fmt.Errorf("failed to get %s: %v", s.key(key), err)
	}
	if len(resp.Kvs) == 0 {
		return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	var h Handle
	if err := yaml.Unmarshal(resp.Kvs[0].Value, &h); err != nil {
		return Handle{}, fmt.Errorf("failed to decode session handle %s: %v", key, err)
	}
	return h, nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	resp, err := s.kv.Delete(ctx, s.key(key))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %v", s.key(key), err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}
