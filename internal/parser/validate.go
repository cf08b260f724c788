package parser

import (
	"sort"

	"github.com/railwayapp/yardmaster/internal/schema"
)

// Validate checks every topology invariant and returns a ValidationError
// listing all problems, including those the parser already recorded.
func Validate(fragment *Fragment) error {
	topology := fragment.Topology
	problems := append([]Problem(nil), fragment.Problems...)

	if len(topology.Services) == 0 {
		problems = append(problems, newProblem("", "topology defines no services"))
	}

	names := make(map[string]bool, len(topology.Services))
	for _, s := range topology.Services {
		if names[s.Name] {
			problems = append(problems, newProblem(s.Name, "defined more than once"))
		}
		names[s.Name] = true
	}

	hostPorts := make(map[string]string) // port key -> first service publishing it
	for _, s := range topology.Services {
		if s.Image == "" {
			problems = append(problems, newProblem(s.Name, "image is required"))
		}

		for _, dep := range s.Dependencies {
			switch {
			case dep == s.Name:
				problems = append(problems, newProblem(s.Name, "depends on itself"))
			case !names[dep]:
				problems = append(problems, newProblem(s.Name, "depends on undefined service %q", dep))
			}
		}

		for _, p := range s.Ports {
			key := p.Key()
			if owner, taken := hostPorts[key]; taken {
				if owner == s.Name {
					problems = append(problems, newProblem(s.Name, "publishes host port %s more than once", key))
				} else {
					problems = append(problems, newProblem(s.Name, "host port %s is already published by service %q", key, owner))
				}
				continue
			}
			hostPorts[key] = s.Name
		}

		for _, m := range s.Mounts {
			if m.Kind == schema.MountVolume && !topology.HasVolume(m.Source) {
				problems = append(problems, newProblem(s.Name, "mounts undefined volume %q at %s", m.Source, m.Target))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}

	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Service < problems[j].Service })
	return &ValidationError{Source: fragment.Source, Problems: problems}
}
