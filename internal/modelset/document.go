package modelset

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Meta is the fixed identity header of the persisted manifest.
type Meta struct {
	Name      string
	Namespace string
	// Ext is the model file extension without the dot (js, yml).
	Ext string
}

// Document is the on-disk ConfigMap manifest.
type Document struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   DocumentMetadata  `yaml:"metadata"`
	Data       map[string]string `yaml:"data"`
}

type DocumentMetadata struct {
	Name        string            `yaml:"name"`
	Namespace   string            `yaml:"namespace,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

const managedByLabel = "app.kubernetes.io/managed-by"

// NewDocument builds the manifest for set. Every entry becomes one data key.
func NewDocument(set Set, meta Meta) Document {
	data := make(map[string]string, len(set))
	for name, text := range set {
		data[FileName(name, meta.Ext)] = text
	}
	return Document{
		APIVersion: "v1",
		Kind:       "ConfigMap",
		Metadata: DocumentMetadata{
			Name:      meta.Name,
			Namespace: meta.Namespace,
			Labels:    map[string]string{managedByLabel: "cubedeploy"},
		},
		Data: data,
	}
}

// carry copies labels and annotations from a previously decoded header so
// edits made to the manifest by hand survive a rewrite. Name and namespace
// stay as configured, and the managed-by label is always ours.
func (d *Document) carry(prev DocumentMetadata) {
	for k, v := range prev.Labels {
		if _, ok := d.Metadata.Labels[k]; !ok {
			if d.Metadata.Labels == nil {
				d.Metadata.Labels = map[string]string{}
			}
			d.Metadata.Labels[k] = v
		}
	}
	if len(prev.Annotations) > 0 {
		d.Metadata.Annotations = make(map[string]string, len(prev.Annotations))
		for k, v := range prev.Annotations {
			d.Metadata.Annotations[k] = v
		}
	}
}

// Encode serializes the whole set as a ConfigMap manifest.
func Encode(set Set, meta Meta) ([]byte, error) {
	return EncodeDocument(NewDocument(set, meta))
}

// EncodeDocument serializes doc as YAML.
func EncodeDocument(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a manifest and returns the models it carries. Data keys that
// do not end in ".<ext>" are not models and are skipped. An empty input is an
// empty set.
func Decode(b []byte, ext string) (Set, Document, error) {
	var doc Document
	if len(bytes.TrimSpace(b)) == 0 {
		return Set{}, doc, nil
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, doc, fmt.Errorf("decode manifest: %w", err)
	}
	if doc.Kind != "" && doc.Kind != "ConfigMap" {
		return nil, doc, fmt.Errorf("decode manifest: kind %q is not ConfigMap", doc.Kind)
	}
	suffix := "." + ext
	set := make(Set, len(doc.Data))
	for key, text := range doc.Data {
		name, ok := strings.CutSuffix(key, suffix)
		if !ok || name == "" {
			continue
		}
		set[name] = text
	}
	return set, doc, nil
}

// ConfigMap converts the manifest into the API object used by the client-go backend.
func (d Document) ConfigMap() *kubecore.ConfigMap {
	data := make(map[string]string, len(d.Data))
	for k, v := range d.Data {
		data[k] = v
	}
	labels := make(map[string]string, len(d.Metadata.Labels))
	for k, v := range d.Metadata.Labels {
		labels[k] = v
	}
	var annotations map[string]string
	if len(d.Metadata.Annotations) > 0 {
		annotations = make(map[string]string, len(d.Metadata.Annotations))
		for k, v := range d.Metadata.Annotations {
			annotations[k] = v
		}
	}
	return &kubecore.ConfigMap{
		TypeMeta: kubeapimeta.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      d.Metadata.Name,
			Namespace: d.Metadata.Namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Data: data,
	}
}
