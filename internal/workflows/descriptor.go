package workflows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ysmood/gson"
)

// Descriptor summarises an exported automation-extension workflow.
// The workflow itself runs inside the extension; nothing here executes it.
type Descriptor struct {
	Path       string
	Name       string
	ID         string
	ExtVersion string
	NodeCount  int
	EdgeCount  int
}

// LoadDescriptor reads and validates a workflow JSON export
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow descriptor: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid workflow descriptor %s: %w", path, err)
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("invalid workflow descriptor %s: top level must be an object", path)
	}

	j := gson.New(raw)
	d := &Descriptor{Path: path}
	d.Name, _ = j.Get("name").Val().(string)
	d.ID, _ = j.Get("id").Val().(string)
	d.ExtVersion, _ = j.Get("extVersion").Val().(string)

	// drawflow is sometimes exported as a JSON string
	flow := j.Get("drawflow")
	if s, ok := flow.Val().(string); ok && s != "" {
		var inner interface{}
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("invalid drawflow in %s: %w", path, err)
		}
		flow = gson.New(inner)
	}

	if nodes, ok := flow.Get("nodes").Val().([]interface{}); ok {
		d.NodeCount = len(nodes)
		if edges, ok := flow.Get("edges").Val().([]interface{}); ok {
			d.EdgeCount = len(edges)
		}
	} else if legacy, ok := flow.Get("drawflow").Get("Home").Get("data").Val().(map[string]interface{}); ok {
		d.NodeCount = len(legacy)
	}

	return d, nil
}
