package domain

import (
	"fmt"
	"strings"
)

// EnvironmentKind names the execution context a challenge needs.
type EnvironmentKind string

// Supported environment kinds, ordered from least to most capable.
const (
	EnvDocker   EnvironmentKind = "DOCKER"
	EnvK8s      EnvironmentKind = "K8S"
	EnvK8sVault EnvironmentKind = "K8S_VAULT"
	EnvCloud    EnvironmentKind = "CLOUD"
	EnvAWS      EnvironmentKind = "AWS"
)

// EnvironmentKinds lists every kind in capability order.
var EnvironmentKinds = []EnvironmentKind{EnvDocker, EnvK8s, EnvK8sVault, EnvCloud, EnvAWS}

// kindAliases maps deployment target names to the kind they provide.
var kindAliases = map[string]EnvironmentKind{
	"VAULT":    EnvK8sVault,
	"GCP":      EnvCloud,
	"GKE":      EnvCloud,
	"AZURE":    EnvCloud,
	"AKS":      EnvCloud,
	"EKS":      EnvAWS,
	"MINIKUBE": EnvK8s,
	"KIND":     EnvK8s,
}

// ParseEnvironmentKind parses a kind case-insensitively. Deployment target
// names are accepted too: gcp and azure map to CLOUD, eks to AWS.
func ParseEnvironmentKind(s string) (EnvironmentKind, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	if k, ok := kindAliases[v]; ok {
		return k, nil
	}
	for _, k := range EnvironmentKinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown environment kind %q", s)
}

// Rank returns the position of the kind in capability order, or -1.
func (k EnvironmentKind) Rank() int {
	for i, candidate := range EnvironmentKinds {
		if candidate == k {
			return i
		}
	}
	return -1
}
