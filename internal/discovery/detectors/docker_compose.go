package detectors

import (
	"slices"
	"strings"
)

var composeFilenames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yml",
	"docker-compose.yaml",
}

// DockerCompose matches the file names docker compose itself looks for, in
// its order of preference.
type DockerCompose struct{}

func (d *DockerCompose) Name() string { return "compose" }

func (d *DockerCompose) Detect(filename string) bool {
	return slices.Contains(composeFilenames, strings.ToLower(filename))
}
