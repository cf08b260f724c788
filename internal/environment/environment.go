// Package environment supplies the explicit variable set a topology is
// resolved against. Nothing here reads the process environment implicitly:
// callers build an Environment once and pass it down.
package environment

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/railwayapp/yardmaster/internal/errkind"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// Environment maps variable names to values.
type Environment map[string]string

// FromList builds an Environment from KEY=value pairs as returned by os.Environ.
func FromList(pairs []string) Environment {
	env := make(Environment, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Load builds the Environment for a run: env files are read in order, later
// files overriding earlier ones, and the process variables override both.
func Load(processEnv []string, envFiles ...string) (Environment, error) {
	env := make(Environment)
	for _, path := range envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for k, v := range FromList(processEnv) {
		env[k] = v
	}
	return env, nil
}

// FromOS is Load with the current process environment.
func FromOS(envFiles ...string) (Environment, error) {
	return Load(os.Environ(), envFiles...)
}

func (e Environment) Lookup(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// MissingEnvironmentError reports every required variable a service lacks.
type MissingEnvironmentError struct {
	Service string
	Missing []string
}

func (e *MissingEnvironmentError) Error() string {
	return fmt.Sprintf("service %s: missing environment variables: %s", e.Service, strings.Join(e.Missing, ", "))
}

func (e *MissingEnvironmentError) Kind() errkind.Kind { return errkind.MissingEnvironment }

// Resolve returns the KEY=value list for the named service. Literal entries
// from the topology are taken as-is; required names must be present in env.
func Resolve(topology *schema.Topology, serviceName string, env Environment) ([]string, error) {
	service, ok := topology.Service(serviceName)
	if !ok {
		return nil, fmt.Errorf("service %s is not defined in topology %s", serviceName, topology.Name)
	}
	return ResolveService(service, env)
}

// ResolveService is Resolve for an already looked-up service.
func ResolveService(service schema.Service, env Environment) ([]string, error) {
	values := make(map[string]string, len(service.Environment.Literals)+len(service.Environment.Required))
	for k, v := range service.Environment.Literals {
		values[k] = v
	}

	var missing []string
	for _, name := range service.Environment.Required {
		v, ok := env.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingEnvironmentError{Service: service.Name, Missing: missing}
	}

	resolved := make([]string, 0, len(values))
	for k, v := range values {
		resolved = append(resolved, k+"="+v)
	}
	sort.Strings(resolved)
	return resolved, nil
}
