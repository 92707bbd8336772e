package injection

import (
	"context"
	"fmt"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/status"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/palantir/stacktrace"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
)

// starvation limits applied to the first container of the owning deployment;
// tight enough that any real workload degrades immediately
const configErrorPatch = `{"spec":{"template":{"spec":{"containers":[{"name":%q,"resources":{"requests":{"cpu":"1m","memory":"100Mi"},"limits":{"cpu":"2m","memory":"200Mi"}}}]}}}}`

// injectConfigError walks a target pod's owner references up to its
// Deployment and patches the first container down to starvation limits
func (inj *Injector) injectConfigError(ctx context.Context, target, namespace string) error {
	pods, err := status.GetPodList(ctx, namespace, "app="+target, inj.Clients)
	if err != nil {
		return cerrors.Injection{Kind: string(types.PodConfigError), Target: target, Reason: fmt.Sprintf("unable to list target pods: %v", err)}
	}
	if len(pods) == 0 {
		return cerrors.Injection{Kind: string(types.PodConfigError), Target: target, Reason: "no pods matched the target selector"}
	}

	deploymentName, err := inj.owningDeployment(ctx, namespace, &pods[0])
	if err != nil {
		return stacktrace.Propagate(err, "could not resolve the deployment owning pod %v", pods[0].Name)
	}

	deployment, err := inj.Clients.KubeClient.AppsV1().Deployments(namespace).Get(ctx, deploymentName, metav1.GetOptions{})
	if err != nil {
		return cerrors.Injection{Kind: string(types.PodConfigError), Target: target, Reason: fmt.Sprintf("unable to get deployment %v: %v", deploymentName, err)}
	}
	if len(deployment.Spec.Template.Spec.Containers) == 0 {
		return cerrors.Injection{Kind: string(types.PodConfigError), Target: target, Reason: "deployment has no containers"}
	}
	containerName := deployment.Spec.Template.Spec.Containers[0].Name

	patch := fmt.Sprintf(configErrorPatch, containerName)
	if _, err := inj.Clients.KubeClient.AppsV1().Deployments(namespace).Patch(ctx, deploymentName,
		k8stypes.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{}); err != nil {
		return cerrors.Injection{Kind: string(types.PodConfigError), Target: target, Reason: fmt.Sprintf("patch failed: %v", err)}
	}

	log.Infof("[Injection]: Patched deployment %v container %v down to starvation limits", deploymentName, containerName)
	return nil
}

// owningDeployment resolves pod -> ReplicaSet -> Deployment
func (inj *Injector) owningDeployment(ctx context.Context, namespace string, pod *corev1.Pod) (string, error) {
	replicaSetName := ownerOfKind(pod.OwnerReferences, "ReplicaSet")
	if replicaSetName == "" {
		return "", cerrors.Injection{Kind: string(types.PodConfigError), Target: pod.Name, Reason: "pod is not owned by a ReplicaSet"}
	}

	replicaSet, err := inj.Clients.KubeClient.AppsV1().ReplicaSets(namespace).Get(ctx, replicaSetName, metav1.GetOptions{})
	if err != nil {
		return "", cerrors.Injection{Kind: string(types.PodConfigError), Target: pod.Name, Reason: fmt.Sprintf("unable to get replicaset %v: %v", replicaSetName, err)}
	}

	deploymentName := ownerOfKind(replicaSet.OwnerReferences, "Deployment")
	if deploymentName == "" {
		return "", cerrors.Injection{Kind: string(types.PodConfigError), Target: pod.Name, Reason: "replicaset is not owned by a Deployment"}
	}
	return deploymentName, nil
}

func ownerOfKind(refs []metav1.OwnerReference, kind string) string {
	for _, ref := range refs {
		if ref.Kind == kind {
			return ref.Name
		}
	}
	return ""
}
