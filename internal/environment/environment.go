// Package environment detects the runtime the application is executing in
// and decides which challenges can run there.
package environment

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/secretlab/internal/config"
	"github.com/ashureev/secretlab/internal/domain"
	"k8s.io/client-go/rest"
)

// warnings maps each required kind to the remediation shown when a challenge
// cannot run in the detected environment.
var warnings = map[domain.EnvironmentKind]string{
	domain.EnvDocker:   "This challenge requires %s: run the application as a Docker container, for example with 'docker run -p 8080:8080 secretlab'.",
	domain.EnvK8s:      "This challenge requires %s: deploy the application to a Kubernetes cluster (minikube or kind work fine) and set K8S_ENV=k8s.",
	domain.EnvK8sVault: "This challenge requires %s: deploy the application to Kubernetes together with HashiCorp Vault and set K8S_ENV=k8s_vault.",
	domain.EnvCloud:    "This challenge requires %s: deploy the application to a managed cloud Kubernetes cluster and set K8S_ENV to your cloud provider.",
	domain.EnvAWS:      "This challenge requires %s: deploy the application to AWS (EKS) with the provided Terraform and set K8S_ENV=aws.",
}

// Runtime is the detected execution context.
type Runtime struct {
	kind domain.EnvironmentKind
}

// New returns a runtime of the given kind.
func New(kind domain.EnvironmentKind) *Runtime {
	return &Runtime{kind: kind}
}

// Kind returns the detected environment kind.
func (r *Runtime) Kind() domain.EnvironmentKind {
	return r.kind
}

// CanRun reports whether any of the challenge's required environments is
// available in this runtime. A more capable runtime also satisfies every
// less capable kind; a challenge that declares nothing runs everywhere.
func (r *Runtime) CanRun(c *domain.Challenge) bool {
	if len(c.RequiredEnvironments) == 0 {
		return true
	}
	current := r.kind.Rank()
	for _, required := range c.RequiredEnvironments {
		if rank := required.Rank(); rank >= 0 && rank <= current {
			return true
		}
	}
	return false
}

// Warning returns the missing-environment warning for the challenge, or ""
// when it can run here.
func (r *Runtime) Warning(c *domain.Challenge) string {
	if r.CanRun(c) {
		return ""
	}
	kind, ok := c.FirstRequiredEnvironment()
	if !ok {
		return ""
	}
	tmpl, ok := warnings[kind]
	if !ok {
		return fmt.Sprintf("This challenge requires %s.", kind)
	}
	return fmt.Sprintf(tmpl, kind)
}

// Probes inspects the host to guess the environment when none is declared.
type Probes struct {
	InCluster   func() bool
	InContainer func() bool
	VaultAddr   string
}

// DefaultProbes returns probes backed by the real host.
func DefaultProbes(vaultAddr string) Probes {
	return Probes{
		InCluster:   inCluster,
		InContainer: config.IsContainer,
		VaultAddr:   vaultAddr,
	}
}

func inCluster() bool {
	_, err := rest.InClusterConfig()
	if err != nil {
		if !errors.Is(err, rest.ErrNotInCluster) {
			slog.Debug("In-cluster config unavailable", "error", err)
		}
		return false
	}
	return true
}

// Detect resolves the runtime. A recognised declared kind wins; otherwise the
// probes decide, falling back to DOCKER.
func Detect(declared string, probes Probes) *Runtime {
	if strings.TrimSpace(declared) != "" {
		kind, err := domain.ParseEnvironmentKind(declared)
		if err == nil {
			slog.Info("Runtime environment declared", "kind", kind)
			return New(kind)
		}
		slog.Warn("Unrecognised K8S_ENV, detecting runtime instead", "declared", declared, "error", err)
	}

	kind := domain.EnvDocker
	if probes.InCluster != nil && probes.InCluster() {
		kind = domain.EnvK8s
		if config.IsSet(probes.VaultAddr) {
			kind = domain.EnvK8sVault
		}
	} else if probes.InContainer != nil && !probes.InContainer() {
		slog.Warn("Not running inside a container, assuming DOCKER runtime")
	}

	slog.Info("Runtime environment detected", "kind", kind)
	return New(kind)
}
