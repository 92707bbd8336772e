package exec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/pkg/errors"
	apiv1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// PodCommand runs commands inside target containers over the exec subresource
type PodCommand struct {
	Clients clients.ClientSets
}

// Exec runs the provided command inside the target container and returns the
// combined stdout and stderr. An empty containerName targets the pod's first
// container.
func (p PodCommand) Exec(ctx context.Context, namespace, podName, containerName string, command []string) (string, error) {
	pod, err := p.Clients.KubeClient.CoreV1().Pods(namespace).Get(ctx, podName, v1.GetOptions{})
	if err != nil {
		return "", errors.Errorf("unable to get %v pod in %v namespace, err: %v", podName, namespace, err)
	}
	if containerName == "" {
		containerName = pod.Spec.Containers[0].Name
	}
	if err := checkPodStatus(pod, containerName); err != nil {
		return "", err
	}

	req := p.Clients.KubeClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(podName).
		Namespace(namespace).
		SubResource("exec")

	req.VersionedParams(&apiv1.PodExecOptions{
		Command:   command,
		Container: containerName,
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, runtime.NewParameterCodec(scheme.Scheme))

	executor, err := remotecommand.NewSPDYExecutor(p.Clients.KubeConfig, "POST", req.URL())
	if err != nil {
		return "", fmt.Errorf("error while creating Executor: %v", err)
	}

	// stderr is kept with stdout, probe summaries land on either stream
	var out bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  nil,
		Stdout: &out,
		Stderr: &out,
		Tty:    false,
	})
	if err != nil {
		return out.String(), err
	}

	return out.String(), nil
}

// checkPodStatus verify the status of given pod & container
func checkPodStatus(pod *apiv1.Pod, containerName string) error {
	if pod.Status.Phase != apiv1.PodRunning {
		return errors.Errorf("%v pod is not in running state, phase: %v", pod.Name, pod.Status.Phase)
	}
	for _, container := range pod.Status.ContainerStatuses {
		if container.Name == containerName && !container.Ready {
			return errors.Errorf("%v container of %v pod is not in ready state, phase: %v", container.Name, pod.Name, pod.Status.Phase)
		}
	}
	return nil
}
