package execute

import (
	"sort"
	"strings"
)

// DefaultUseCase is used when no remote use case is configured.
const DefaultUseCase UseCase = "hybridexec-default"

// UseCase names the remote execution tenant a command is billed to.
type UseCase string

func (u UseCase) String() string { return string(u) }

// Platform is the set of properties a remote worker must satisfy.
type Platform struct {
	Properties map[string]string
}

// String renders the properties sorted by key, e.g. "arch=amd64,os=linux".
func (p *Platform) String() string {
	if p == nil || len(p.Properties) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p.Properties[k])
	}
	return strings.Join(parts, ",")
}
