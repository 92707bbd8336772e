package restore

import (
	"os"
	"strings"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	yaml "gopkg.in/yaml.v2"
)

// ContainerResources is the recorded resource block of one container
type ContainerResources struct {
	CPULimit      string
	MemoryLimit   string
	CPURequest    string
	MemoryRequest string
}

// Entry is one recorded workload manifest keyed by its app label
type Entry struct {
	Kind      string
	Name      string
	App       string
	Doc       string
	Resources map[string]ContainerResources
}

// Index looks up original workload manifests by app label. It is built once
// from the environment's manifest file and never mutated afterwards.
type Index struct {
	entries map[string]Entry
}

// NewIndex parses the multi-document manifest file and indexes every
// workload document by its app label. Documents without an app label are
// skipped.
func NewIndex(manifestPath string) (*Index, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, cerrors.Restore{Target: manifestPath, Reason: "unable to read manifest file: " + err.Error()}
	}

	index := &Index{entries: map[string]Entry{}}
	for _, doc := range splitDocs(string(raw)) {
		var node map[interface{}]interface{}
		if err := yaml.Unmarshal([]byte(doc), &node); err != nil {
			log.Warnf("[Restore]: Skipping unparsable manifest document, err: %v", err)
			continue
		}
		if node == nil {
			continue
		}

		entry := Entry{
			Kind:      stringAt(node, "kind"),
			Name:      stringAt(mapAt(node, "metadata"), "name"),
			App:       docAppLabel(node),
			Doc:       doc,
			Resources: docContainerResources(node),
		}
		if entry.App == "" {
			continue
		}
		if _, dup := index.entries[entry.App]; dup {
			log.Warnf("[Restore]: Duplicate manifest for app %v, keeping the first", entry.App)
			continue
		}
		index.entries[entry.App] = entry
	}

	if len(index.entries) == 0 {
		return nil, cerrors.Restore{Target: manifestPath, Reason: "manifest file contains no indexable workloads"}
	}
	return index, nil
}

// Lookup returns the recorded manifest for the app label
func (i *Index) Lookup(app string) (Entry, bool) {
	entry, ok := i.entries[app]
	return entry, ok
}

// Len reports the number of indexed workloads
func (i *Index) Len() int {
	return len(i.entries)
}

// splitDocs cuts a multi-document YAML stream on document separators,
// keeping each raw document for later re-apply
func splitDocs(raw string) []string {
	var docs []string
	for _, doc := range strings.Split(raw, "\n---") {
		doc = strings.TrimPrefix(doc, "---")
		if strings.TrimSpace(doc) == "" {
			continue
		}
		docs = append(docs, strings.TrimLeft(doc, "\n"))
	}
	return docs
}

// docAppLabel prefers the pod template's app label, falling back to the
// object's own labels for bare pods and services
func docAppLabel(node map[interface{}]interface{}) string {
	template := mapAt(mapAt(node, "spec"), "template")
	if app := stringAt(mapAt(mapAt(template, "metadata"), "labels"), "app"); app != "" {
		return app
	}
	return stringAt(mapAt(mapAt(node, "metadata"), "labels"), "app")
}

func docContainerResources(node map[interface{}]interface{}) map[string]ContainerResources {
	podSpec := mapAt(mapAt(mapAt(node, "spec"), "template"), "spec")
	if podSpec == nil {
		podSpec = mapAt(node, "spec")
	}
	containers, ok := podSpec["containers"].([]interface{})
	if !ok {
		return nil
	}

	resources := map[string]ContainerResources{}
	for _, item := range containers {
		container, ok := item.(map[interface{}]interface{})
		if !ok {
			continue
		}
		name := stringAt(container, "name")
		if name == "" {
			continue
		}
		block := mapAt(container, "resources")
		resources[name] = ContainerResources{
			CPULimit:      stringAt(mapAt(block, "limits"), "cpu"),
			MemoryLimit:   stringAt(mapAt(block, "limits"), "memory"),
			CPURequest:    stringAt(mapAt(block, "requests"), "cpu"),
			MemoryRequest: stringAt(mapAt(block, "requests"), "memory"),
		}
	}
	return resources
}

func mapAt(node map[interface{}]interface{}, key string) map[interface{}]interface{} {
	if node == nil {
		return nil
	}
	child, _ := node[key].(map[interface{}]interface{})
	return child
}

func stringAt(node map[interface{}]interface{}, key string) string {
	if node == nil {
		return ""
	}
	value, _ := node[key].(string)
	return value
}
