package config

import (
	"fmt"
	"strings"
)

type Instance string

const (
	Production Instance = "production"
	Staging    Instance = "staging"
	QAStaging  Instance = "qastaging"
)

// Environment is the set of roots one Launchpad instance is served from.
// All roots end with a slash.
type Environment struct {
	Name     Instance
	APIRoot  string
	WebRoot  string
	BugsRoot string
}

var environments = map[Instance]Environment{
	Production: {
		Name:     Production,
		APIRoot:  "https://api.launchpad.net/",
		WebRoot:  "https://launchpad.net/",
		BugsRoot: "https://bugs.launchpad.net/",
	},
	Staging: {
		Name:     Staging,
		APIRoot:  "https://api.staging.launchpad.net/",
		WebRoot:  "https://staging.launchpad.net/",
		BugsRoot: "https://bugs.staging.launchpad.net/",
	},
	QAStaging: {
		Name:     QAStaging,
		APIRoot:  "https://api.qastaging.launchpad.net/",
		WebRoot:  "https://qastaging.launchpad.net/",
		BugsRoot: "https://bugs.qastaging.launchpad.net/",
	},
}

func LookupEnvironment(name string) (Environment, error) {
	key := Instance(strings.ToLower(strings.TrimSpace(name)))
	if key == "" {
		key = Production
	}
	env, ok := environments[key]
	if !ok {
		return Environment{}, fmt.Errorf("unknown launchpad instance %q (use production|staging|qastaging)", name)
	}
	return env, nil
}

func (e Environment) BugURL(id int) string {
	return fmt.Sprintf("%sbugs/%d", e.WebRoot, id)
}

func (e Environment) ProjectBugURL(project string, id int) string {
	return fmt.Sprintf("%s%s/+bug/%d", e.BugsRoot, project, id)
}
