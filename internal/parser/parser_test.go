package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/errkind"
	"github.com/railwayapp/yardmaster/internal/filesystems"
	"github.com/railwayapp/yardmaster/internal/schema"
)

func loadFrom(t *testing.T, path, content string, env environment.Environment) (*schema.Topology, error) {
	t.Helper()
	mfs := filesystems.NewMemoryFS()
	mfs.AddFile(path, []byte(content))
	return NewLoader(mfs).Load(context.Background(), path, env)
}

func assertUndercrawler(t *testing.T, topo *schema.Topology) {
	t.Helper()

	assert.Equal(t, "undercrawler", topo.Name)
	require.Len(t, topo.Services, 3)
	assert.Equal(t, []schema.Volume{{Name: "autologin-keychain"}, {Name: "crawler-jobs"}, {Name: "mongo-data"}}, topo.Volumes)

	autologin, crawler, mongo := topo.Services[0], topo.Services[1], topo.Services[2]

	assert.Equal(t, "autologin", autologin.Name)
	assert.ElementsMatch(t, []schema.PortMapping{
		{HostPort: 8088, ContainerPort: 8088, Protocol: "tcp"},
		{HostPort: 8089, ContainerPort: 8089, Protocol: "tcp"},
	}, autologin.Ports)
	assert.Empty(t, autologin.Dependencies)
	assert.Equal(t, schema.RestartNone, autologin.Restart)

	assert.Equal(t, "crawler", crawler.Name)
	assert.Equal(t, []string{"autologin", "mongo"}, crawler.Dependencies)
	assert.Equal(t, []string{"FILES_STORE"}, crawler.Environment.Required)
	assert.Equal(t, "http://autologin:8089", crawler.Environment.Literals["AUTOLOGIN_URL"])
	assert.Equal(t, []schema.Mount{{Source: "crawler-jobs", Target: "/var/lib/undercrawler/jobs", Kind: schema.MountVolume}}, crawler.Mounts)

	assert.Equal(t, "mongo", mongo.Name)
	assert.Equal(t, []int{27017}, mongo.Expose)
	assert.Empty(t, mongo.Ports)
	assert.Equal(t, schema.RestartAlways, mongo.Restart)
}

func TestLoad_ExampleCompose(t *testing.T) {
	topo, err := NewLoader(filesystems.NewLocalFS()).Load(context.Background(), "../../examples/undercrawler/compose.yml", environment.Environment{})
	require.NoError(t, err)
	assertUndercrawler(t, topo)
	assert.Equal(t, "../../examples/undercrawler", topo.Dir)
}

func TestLoad_ExampleManifest(t *testing.T) {
	topo, err := NewLoader(filesystems.NewLocalFS()).Load(context.Background(), "../../examples/undercrawler/yardmaster.toml", environment.Environment{})
	require.NoError(t, err)
	assertUndercrawler(t, topo)
}

func TestLoad_DirectoryPicksCompose(t *testing.T) {
	topo, err := Load(context.Background(), "../../examples/undercrawler", environment.Environment{})
	require.NoError(t, err)
	assert.Equal(t, "undercrawler", topo.Name)
}

func TestLoad_ManifestYAML(t *testing.T) {
	topo, err := loadFrom(t, "stack/yardmaster.yaml", `
services:
  cache:
    image: redis:7
    ports: ["127.0.0.1:6379:6379"]
    restart: unless-stopped
    environment: [REDIS_PASSWORD, "MAXMEMORY=64mb"]
`, nil)
	require.NoError(t, err)

	assert.Equal(t, "stack", topo.Name)
	cache := topo.Services[0]
	assert.Equal(t, []schema.PortMapping{{HostIP: "127.0.0.1", HostPort: 6379, ContainerPort: 6379, Protocol: "tcp"}}, cache.Ports)
	assert.Equal(t, schema.RestartAlways, cache.Restart)
	assert.Equal(t, []string{"REDIS_PASSWORD"}, cache.Environment.Required)
	assert.Equal(t, "64mb", cache.Environment.Literals["MAXMEMORY"])
}

func TestLoad_ComposeInterpolatesFromExplicitEnvironment(t *testing.T) {
	topo, err := loadFrom(t, "stack/compose.yml", `
services:
  db:
    image: "mongo:${MONGO_TAG}"
    environment:
      - MONGO_INITDB_DATABASE
`, environment.Environment{"MONGO_TAG": "3.2", "MONGO_INITDB_DATABASE": "crawl"})
	require.NoError(t, err)

	db := topo.Services[0]
	assert.Equal(t, "mongo:3.2", db.Image)
	// Name-only entries stay required even when the variable is available.
	assert.Equal(t, []string{"MONGO_INITDB_DATABASE"}, db.Environment.Required)
}

func TestLoad_ComposeUnsetVariableIsAValidationError(t *testing.T) {
	_, err := loadFrom(t, "stack/compose.yml", `
services:
  crawler:
    image: "hyperiongray/undercrawler:${CRAWLER_TAG}"
    environment:
      - SPLASH_URL=$SPLASH_URL
      - AUTOLOGIN_URL=${AUTOLOGIN_URL:-http://autologin:8089}
      - MONGO_URL=${MONGO_URL-mongodb://mongo:27017}
      - PRICE=$$5
`, environment.Environment{})
	require.Error(t, err)
	assert.Equal(t, errkind.Validation, errkind.Of(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	messages := make([]string, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		messages = append(messages, p.String())
	}
	assert.Equal(t, []string{
		`variable "CRAWLER_TAG" is not set and has no default`,
		`variable "SPLASH_URL" is not set and has no default`,
	}, messages)
}

func TestLoad_ComposeDefaultsNeedNoVariable(t *testing.T) {
	topo, err := loadFrom(t, "stack/compose.yml", `
services:
  crawler:
    image: "hyperiongray/undercrawler:${CRAWLER_TAG:-latest}"
    environment:
      - AUTOLOGIN_URL=${AUTOLOGIN_URL:-http://autologin:8089}
`, environment.Environment{})
	require.NoError(t, err)

	crawler := topo.Services[0]
	assert.Equal(t, "hyperiongray/undercrawler:latest", crawler.Image)
	assert.Equal(t, "http://autologin:8089", crawler.Environment.Literals["AUTOLOGIN_URL"])
}

func TestLoad_EnumeratesEveryProblem(t *testing.T) {
	_, err := loadFrom(t, "stack/yardmaster.yaml", `
services:
  crawler:
    image: hyperiongray/undercrawler
    ports: ["8089:6800"]
    links: [mongo, splash]
    volumes: ["jobs:/jobs"]
  autologin:
    image: hyperiongray/autologin
    ports: ["8089:8089", "not-a-port"]
    restart: sometimes
  mongo:
    depends_on: [mongo]
`, nil)
	require.Error(t, err)
	assert.Equal(t, errkind.Validation, errkind.Of(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	messages := make([]string, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		messages = append(messages, p.String())
	}
	assert.ElementsMatch(t, []string{
		`service autologin: port "not-a-port": expected hostPort:containerPort`,
		`service autologin: unknown restart policy "sometimes"`,
		`service crawler: depends on undefined service "splash"`,
		`service crawler: host port 8089/tcp is already published by service "autologin"`,
		`service crawler: mounts undefined volume "jobs" at /jobs`,
		`service mongo: image is required`,
		`service mongo: depends on itself`,
	}, messages)
}

func TestLoad_DuplicateHostPortSameServiceAndProtocols(t *testing.T) {
	_, err := loadFrom(t, "s/yardmaster.yaml", `
services:
  dns:
    image: coredns/coredns
    ports: ["5353:53/udp", "5353:53/tcp", "5353:54/tcp"]
`, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Problems, 1)
	assert.Contains(t, verr.Problems[0].Message, "5353/tcp more than once")
}

func TestLoad_MalformedDocument(t *testing.T) {
	_, err := loadFrom(t, "s/yardmaster.toml", `[services.crawler`, nil)
	assert.Equal(t, errkind.Validation, errkind.Of(err))

	_, err = loadFrom(t, "s/yardmaster.yaml", "services:\n  web:\n    image: x\n    replicas: 3\n", nil)
	assert.Equal(t, errkind.Validation, errkind.Of(err))
}

func TestLoad_EmptyTopology(t *testing.T) {
	_, err := loadFrom(t, "s/yardmaster.yaml", "volumes: {}\n", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topology defines no services", verr.Problems[0].Message)
}
