package sequencer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/metrics"
	"github.com/railwayapp/yardmaster/internal/runtime/runtimetest"
	"github.com/railwayapp/yardmaster/internal/schema"
)

func service(name string, deps ...string) schema.Service {
	s := schema.NewService(name)
	s.Image = "example/" + name
	s.Dependencies = deps
	return s
}

// undercrawler mirrors the example topology: a crawler linked to MongoDB
// and the autologin sidecar.
func undercrawler() *schema.Topology {
	topo := schema.NewTopology("undercrawler")

	mongo := service("mongo")
	mongo.Image = "mongo:3.2"
	mongo.Expose = []int{27017}
	mongo.Restart = schema.RestartAlways
	mongo.Mounts = []schema.Mount{{Source: "mongo-data", Target: "/data/db", Kind: schema.MountVolume}}

	autologin := service("autologin")
	autologin.Ports = []schema.PortMapping{
		{HostPort: 8088, ContainerPort: 8088, Protocol: "tcp"},
		{HostPort: 8089, ContainerPort: 8089, Protocol: "tcp"},
	}
	autologin.Mounts = []schema.Mount{{Source: "autologin-keychain", Target: "/var/lib/autologin", Kind: schema.MountVolume}}

	crawler := service("crawler", "autologin", "mongo")
	crawler.Ports = []schema.PortMapping{{HostPort: 6800, ContainerPort: 6800, Protocol: "tcp"}}
	crawler.Environment.Required = []string{"FILES_STORE"}
	crawler.Environment.Literals["AUTOLOGIN_URL"] = "http://autologin:8089"
	crawler.Mounts = []schema.Mount{{Source: "crawler-jobs", Target: "/var/lib/undercrawler/jobs", Kind: schema.MountVolume}}

	for _, s := range []schema.Service{crawler, mongo, autologin} {
		topo.AddService(s)
	}
	for _, v := range []string{"autologin-keychain", "crawler-jobs", "mongo-data"} {
		topo.AddVolume(v)
	}
	topo.Sort()
	return topo
}

func crawlerEnv() environment.Environment {
	return environment.Environment{"FILES_STORE": "/data/files"}
}

// fixture gives every service one endpoint "<name>:1" that answers while the
// fake instance runs, unless the service is marked unready.
type fixture struct {
	rt *runtimetest.Runtime

	mu      sync.Mutex
	readyAt map[string]time.Time
	unready map[string]bool
}

func newFixture(topo *schema.Topology) *fixture {
	f := &fixture{
		rt:      runtimetest.New(),
		readyAt: make(map[string]time.Time),
		unready: make(map[string]bool),
	}
	for _, s := range topo.Services {
		f.rt.SetEndpoints(s.Name, s.Name+":1")
	}
	return f
}

func (f *fixture) Probe(ctx context.Context, addr string) error {
	name, _, _ := strings.Cut(addr, ":")
	running := f.rt.Running(name)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unready[name] || !running {
		return errors.New("connection refused")
	}
	if _, ok := f.readyAt[name]; !ok {
		f.readyAt[name] = time.Now()
	}
	return nil
}

func (f *fixture) setUnready(name string, unready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unready[name] = unready
}

func (f *fixture) readyTime(name string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.readyAt[name]
	return t, ok
}

func (f *fixture) sequencer(env environment.Environment, opts ...Option) *Sequencer {
	base := []Option{
		WithLogger(zap.NewNop()),
		WithMetrics(metrics.New()),
		WithEnvironment(env),
		WithProber(f),
		WithReadiness(time.Millisecond, 2*time.Second),
		WithRestartDelay(time.Millisecond),
	}
	return New(f.rt, append(base, opts...)...)
}
