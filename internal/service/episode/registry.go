package episode

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps detector class labels to the category identifiers used by
// the alerting API. Only labels present in the registry can open an episode.
// A Registry is immutable once built.
type Registry struct {
	categories map[string]string
}

// NewRegistry copies the given label -> category id mapping.
func NewRegistry(categories map[string]string) (*Registry, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("registry needs at least one target class")
	}

	r := &Registry{categories: make(map[string]string, len(categories))}
	for label, id := range categories {
		label = strings.TrimSpace(label)
		id = strings.TrimSpace(id)
		if label == "" {
			return nil, fmt.Errorf("empty class label")
		}
		if id == "" {
			return nil, fmt.Errorf("class %q has no category id", label)
		}
		r.categories[label] = id
	}
	return r, nil
}

// Lookup returns the category id for a label.
func (r *Registry) Lookup(label string) (string, bool) {
	id, ok := r.categories[label]
	return id, ok
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.categories))
	for label := range r.categories {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of registered target classes.
func (r *Registry) Len() int {
	return len(r.categories)
}
