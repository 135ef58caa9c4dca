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

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"
)

const (
	// ConfigMapDataKey is the data key holding the handle YAML.
	ConfigMapDataKey = "handle.yaml"

	// LabelHandleKey labels the ConfigMap with the key it is stored under.
	LabelHandleKey = "livyctl.kubeflow.org/handle-key"
)

// ConfigMapStore keeps each handle in its own ConfigMap, for steps that run
// as separate pods.
type ConfigMapStore struct {
	client    client.Client
	namespace string
	prefix    string
}

var _ Store = &ConfigMapStore{}

func NewConfigMapStore(c client.Client, namespace, prefix string) *ConfigMapStore {
	return &ConfigMapStore{client: c, namespace: namespace, prefix: prefix}
}

func (s *ConfigMapStore) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "-" + key
}

func (s *ConfigMapStore) Save(ctx context.Context, key string, h Handle) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode session handle: %v", err)
	}

	cm := &corev1.ConfigMap{}
	nn := types.NamespacedName{Namespace: s.namespace, Name: s.name(key)}
	err = s.client.Get(ctx, nn, cm)
	if errors.IsNotFound(err) {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      nn.Name,
				Namespace: nn.Namespace,
				Labels:    map[string]string{LabelHandleKey: key},
			},
			Data: map[string]string{ConfigMapDataKey: string(data)},
		}
		if err := s.client.Create(ctx, cm); err != nil {
			return fmt.Errorf("failed to create ConfigMap %s: %v", nn, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get ConfigMap %s: %v", nn, err)
	}

	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[ConfigMapDataKey] = string(data)
	if err := s.client.Update(ctx, cm); err != nil {
		return fmt.Errorf("failed to update ConfigMap %s: %v", nn, err)
	}
	return nil
}

func (s *ConfigMapStore) Load(ctx context.Context, key string) (Handle, error) {
	if err := ValidateKey(key); err != nil {
		return Handle{}, err
	}
	cm := &corev1.ConfigMap{}
	nn := types.NamespacedName{Namespace: s.namespace, Name: s.name(key)}
	if err := s.client.Get(ctx, nn, cm); err != nil {
		if errors.IsNotFound(err) {
			return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Handle{}, fmt.Errorf("failed to get ConfigMap %s: %v", nn, err)
	}

	data, ok := cm.Data[ConfigMapDataKey]
	if !ok {
		return Handle{}, fmt.Errorf("ConfigMap %s has no %s", nn, ConfigMapDataKey)
	}
	var h Handle
	if err := yaml.Unmarshal([]byte(data), &h); err != nil {
		return Handle{}, fmt.Errorf("failed to decode session handle %s: %v", key, err)
	}
	return h, nil
}

func (s *ConfigMapStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: s.name(key), Namespace: s.namespace},
	}
	if err := s.client.Delete(ctx, cm); err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete ConfigMap %s/%s: %v", s.namespace, cm.Name, err)
	}
	return nil
}
