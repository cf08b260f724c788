package discovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/yardmaster/internal/filesystems"
)

func newTestScanner(files ...string) *Scanner {
	mfs := filesystems.NewMemoryFS()
	for _, f := range files {
		mfs.AddFile(f, []byte("services: {}"))
	}
	return NewScannerWithDetectors(mfs, DefaultDetectors())
}

func TestScanner_FindPrefersCompose(t *testing.T) {
	s := newTestScanner("stack/yardmaster.toml", "stack/docker-compose.yml", "stack/README.md")

	cfg, err := s.Find("stack")
	require.NoError(t, err)
	assert.Equal(t, ConfigFile{Path: "stack/docker-compose.yml", Type: TypeCompose}, cfg)

	all, err := s.DiscoverConfigs("stack")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, TypeManifestTOML, all[1].Type)
}

func TestScanner_FindNothing(t *testing.T) {
	s := newTestScanner("stack/README.md")

	_, err := s.Find("stack")
	assert.True(t, errors.Is(err, ErrNoTopology))
}

func TestScanner_Resolve(t *testing.T) {
	s := newTestScanner("stack/yardmaster.yaml", "custom/topology.toml", "custom/prod.yml")

	tests := []struct {
		path string
		want ConfigFile
	}{
		{"stack", ConfigFile{Path: "stack/yardmaster.yaml", Type: TypeManifestYAML}},
		{"custom/topology.toml", ConfigFile{Path: "custom/topology.toml", Type: TypeManifestTOML}},
		{"custom/prod.yml", ConfigFile{Path: "custom/prod.yml", Type: TypeCompose}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := s.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
