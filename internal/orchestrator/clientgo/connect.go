package clientgo

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"cubedeploy/internal/orchestrator"
)

// Connect builds a REST config and clientset.
//
// The kubeconfig is searched in this order, later entries winning:
//
// - `~/.kube/config`
//
// - environment variable `KUBECONFIG`
//
// - the explicit path, when given
//
// When no file is found it falls back to the in-cluster config. Every failure
// is returned as a dependency-unavailable error.
func Connect(explicit, kubeContext string) (*rest.Config, kubernetes.Interface, error) {
	kubeconfig := ""

	if home := homedir.HomeDir(); home != "" {
		p := filepath.Join(home, ".kube", "config")
		if isFile(p) {
			kubeconfig = p
		}
	}
	if k := os.Getenv("KUBECONFIG"); k != "" && isFile(k) {
		kubeconfig = k
	}
	if explicit != "" {
		if !isFile(explicit) {
			return nil, nil, orchestrator.ErrUnavailable("kubeconfig %s not found", explicit)
		}
		kubeconfig = explicit
	}

	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
			&clientcmd.ConfigOverrides{CurrentContext: kubeContext},
		).ClientConfig()
	}
	if err != nil {
		return nil, nil, orchestrator.ErrUnavailable("kubernetes config: %v", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("kubernetes client: %w", err)
	}
	return cfg, cs, nil
}

func isFile(p string) bool {
	s, err := os.Stat(p)
	return err == nil && !s.IsDir()
}
