package workflows

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDescriptor(t *testing.T) {
	path := writeDescriptor(t, `{
		"id": "wf-123",
		"name": "Fill contact form",
		"extVersion": "1.28.27",
		"drawflow": {
			"nodes": [{"id": "trigger"}, {"id": "forms"}, {"id": "click"}],
			"edges": [{"id": "e1"}, {"id": "e2"}]
		}
	}`)

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, path, d.Path)
	assert.Equal(t, "Fill contact form", d.Name)
	assert.Equal(t, "wf-123", d.ID)
	assert.Equal(t, "1.28.27", d.ExtVersion)
	assert.Equal(t, 3, d.NodeCount)
	assert.Equal(t, 2, d.EdgeCount)
}

func TestLoadDescriptorStringDrawflow(t *testing.T) {
	path := writeDescriptor(t, `{"name":"Legacy","drawflow":"{\"drawflow\":{\"Home\":{\"data\":{\"1\":{},\"2\":{}}}}}"}`)

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "Legacy", d.Name)
	assert.Equal(t, 2, d.NodeCount)
	assert.Zero(t, d.EdgeCount)
}

func TestLoadDescriptorWithoutFlow(t *testing.T) {
	d, err := LoadDescriptor(writeDescriptor(t, "\xef\xbb\xbf{\"name\":\"Empty\"}"))
	require.NoError(t, err)
	assert.Equal(t, "Empty", d.Name)
	assert.Zero(t, d.NodeCount)
}

func TestLoadDescriptorErrors(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadDescriptor(writeDescriptor(t, "{not json"))
	assert.Error(t, err)

	_, err = LoadDescriptor(writeDescriptor(t, `[1, 2, 3]`))
	assert.Error(t, err)

	_, err = LoadDescriptor(writeDescriptor(t, `{"drawflow": "{broken"}`))
	assert.Error(t, err)
}
