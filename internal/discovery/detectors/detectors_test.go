package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDockerCompose_Detect(t *testing.T) {
	d := &DockerCompose{}
	for _, name := range []string{"compose.yaml", "compose.yml", "docker-compose.yml", "Docker-Compose.YAML"} {
		assert.True(t, d.Detect(name), name)
	}
	for _, name := range []string{"compose.json", "yardmaster.yaml", "Dockerfile"} {
		assert.False(t, d.Detect(name), name)
	}
}

func TestManifest_Detect(t *testing.T) {
	yamlDetector := &Manifest{Format: "yaml"}
	tomlDetector := &Manifest{Format: "toml"}

	assert.Equal(t, "manifest-yaml", yamlDetector.Name())
	assert.True(t, yamlDetector.Detect("yardmaster.yml"))
	assert.True(t, yamlDetector.Detect("yardmaster.yaml"))
	assert.False(t, yamlDetector.Detect("yardmaster.toml"))
	assert.True(t, tomlDetector.Detect("Yardmaster.toml"))
	assert.False(t, tomlDetector.Detect("compose.yml"))
}
