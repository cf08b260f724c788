package parser

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/template"
	composeTypes "github.com/compose-spec/compose-go/v2/types"

	"github.com/railwayapp/yardmaster/internal/discovery"
	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/schema"
)

type ComposeParser struct{}

func NewComposeParser() *ComposeParser {
	return &ComposeParser{}
}

func (p *ComposeParser) CanParse(configType string) bool {
	return configType == discovery.TypeCompose
}

func (p *ComposeParser) Parse(ctx context.Context, config discovery.ConfigFile, content []byte, env environment.Environment) (*Fragment, error) {
	workingDir := filepath.Dir(config.Path)
	projectName := loader.NormalizeProjectName(filepath.Base(absOrSelf(workingDir)))
	if projectName == "" {
		projectName = defaultProjectName
	}

	// The loader gets no environment of its own: with one it would fill
	// name-only environment entries at load time, and those must stay
	// unresolved until a service starts.
	configDetails := composeTypes.ConfigDetails{
		WorkingDir: workingDir,
		ConfigFiles: []composeTypes.ConfigFile{
			{Filename: config.Path, Content: content},
		},
		Environment: composeTypes.Mapping{},
	}

	unset := newUnsetVariables()
	project, err := loader.LoadWithContext(ctx, configDetails, func(options *loader.Options) {
		options.SetProjectName(projectName, false)
		options.SkipConsistencyCheck = true
		options.SkipResolveEnvironment = true
		options.ResolvePaths = false
		if options.Interpolate != nil {
			options.Interpolate.LookupValue = env.Lookup
			options.Interpolate.Substitute = unset.substitute
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load compose project: %w", err)
	}

	fragment := &Fragment{
		Topology: schema.NewTopology(project.Name),
		Source:   config.Path,
	}
	for _, name := range unset.names() {
		fragment.addProblem("", "variable %q is not set and has no default", name)
	}

	for name := range project.Volumes {
		fragment.Topology.AddVolume(name)
	}
	for _, composeService := range project.Services {
		fragment.Topology.AddService(p.convertService(fragment, composeService))
	}
	fragment.Topology.Sort()

	return fragment, nil
}

func (p *ComposeParser) convertService(fragment *Fragment, composeService composeTypes.ServiceConfig) schema.Service {
	name := composeService.Name
	service := schema.NewService(name)
	service.Image = composeService.Image
	if service.Image == "" && composeService.Build != nil {
		fragment.addProblem(name, "build contexts are not supported, an image is required")
	}

	// A nil value is a name-only entry: the variable must come from the
	// environment at start time.
	for key, value := range composeService.Environment {
		if value == nil {
			service.Environment.Required = append(service.Environment.Required, key)
			continue
		}
		service.Environment.Literals[key] = *value
	}
	slices.Sort(service.Environment.Required)

	for _, expose := range composeService.Expose {
		port, err := schema.ParsePort(expose)
		if err != nil {
			fragment.addProblem(name, "expose: %v", err)
			continue
		}
		service.Expose = append(service.Expose, port)
	}

	for _, port := range composeService.Ports {
		mapping, ok := p.convertPort(fragment, name, port)
		if !ok {
			continue
		}
		if mapping.HostPort == 0 {
			// Container-only ports are reachable inside the project network.
			service.Expose = append(service.Expose, mapping.ContainerPort)
			continue
		}
		service.Ports = append(service.Ports, mapping)
	}

	for _, volume := range composeService.Volumes {
		switch volume.Type {
		case composeTypes.VolumeTypeVolume:
			if volume.Source == "" {
				fragment.addProblem(name, "anonymous volume at %s is not supported, name it", volume.Target)
				continue
			}
			service.Mounts = append(service.Mounts, schema.Mount{
				Source: volume.Source, Target: volume.Target, ReadOnly: volume.ReadOnly, Kind: schema.MountVolume,
			})
		case composeTypes.VolumeTypeBind:
			service.Mounts = append(service.Mounts, schema.Mount{
				Source: volume.Source, Target: volume.Target, ReadOnly: volume.ReadOnly, Kind: schema.MountBind,
			})
		default:
			fragment.addProblem(name, "volume type %q at %s is not supported", volume.Type, volume.Target)
		}
	}

	deps := make(map[string]bool)
	for dep := range composeService.DependsOn {
		deps[dep] = true
	}
	for _, link := range composeService.Links {
		target, _, _ := strings.Cut(link, ":")
		deps[target] = true
	}
	for dep := range deps {
		service.Dependencies = append(service.Dependencies, dep)
	}
	slices.Sort(service.Dependencies)

	policy, ok := schema.ParseRestartPolicy(composeService.Restart)
	if !ok {
		fragment.addProblem(name, "unknown restart policy %q", composeService.Restart)
	}
	service.Restart = policy

	return service
}

func (p *ComposeParser) convertPort(fragment *Fragment, service string, port composeTypes.ServicePortConfig) (schema.PortMapping, bool) {
	protocol := port.Protocol
	if protocol == "" {
		protocol = "tcp"
	}
	mapping := schema.PortMapping{
		HostIP:        port.HostIP,
		ContainerPort: int(port.Target),
		Protocol:      protocol,
	}
	if port.Published == "" {
		return mapping, true
	}

	hostPort, err := strconv.Atoi(port.Published)
	if err != nil || hostPort < 1 || hostPort > 65535 {
		fragment.addProblem(service, "published port %q is not a single valid port", port.Published)
		return schema.PortMapping{}, false
	}
	mapping.HostPort = hostPort
	return mapping, true
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// unsetVariables interpolates like compose does, but instead of logging and
// substituting an empty string for a plain ${VAR} or $VAR whose variable is
// absent, it records the name. References with a default or alternative
// (${VAR:-x}, ${VAR-x}, ${VAR:+x}, ${VAR+x}) resolve as usual.
type unsetVariables struct {
	mu      sync.Mutex
	missing map[string]bool
}

func newUnsetVariables() *unsetVariables {
	return &unsetVariables{missing: make(map[string]bool)}
}

func (u *unsetVariables) substitute(value string, mapping template.Mapping) (string, error) {
	return template.SubstituteWithOptions(value, mapping,
		template.WithoutLogging,
		template.WithReplacementFunction(u.replace),
	)
}

func (u *unsetVariables) replace(substring string, mapping template.Mapping, cfg *template.Config) (string, error) {
	var misses []string
	tracked := func(name string) (string, bool) {
		v, ok := mapping(name)
		if !ok {
			misses = append(misses, name)
		}
		return v, ok
	}

	value, applied, err := template.DefaultReplacementAppliedFunc(substring, tracked, cfg)
	if err == nil && !applied {
		u.mu.Lock()
		for _, name := range misses {
			u.missing[name] = true
		}
		u.mu.Unlock()
	}
	return value, err
}

func (u *unsetVariables) names() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Sorted(maps.Keys(u.missing))
}
