package restore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/clients"
	"github.com/chaosmend/chaosmend-go/pkg/metrics"
	"github.com/chaosmend/chaosmend-go/pkg/utils/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

const sampleManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: cart
  labels:
    app: cart
spec:
  template:
    metadata:
      labels:
        app: cart
    spec:
      containers:
        - name: server
          resources:
            requests:
              cpu: 250m
              memory: 128Mi
            limits:
              cpu: 500m
              memory: 256Mi
---
apiVersion: v1
kind: Service
metadata:
  name: cart
  labels:
    app: cart-svc
spec:
  ports:
    - port: 8080
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: checkout
  labels:
    app: checkout
spec:
  template:
    metadata:
      labels:
        app: checkout
    spec:
      containers:
        - name: server
          resources: {}
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewIndex(t *testing.T) {
	index, err := NewIndex(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, 3, index.Len())

	entry, ok := index.Lookup("cart")
	require.True(t, ok)
	assert.Equal(t, "Deployment", entry.Kind)
	assert.Equal(t, "cart", entry.Name)
	assert.Equal(t, "500m", entry.Resources["server"].CPULimit)
	assert.Equal(t, "256Mi", entry.Resources["server"].MemoryLimit)
	assert.Contains(t, entry.Doc, "kind: Deployment")

	_, ok = index.Lookup("payments")
	assert.False(t, ok)
}

func TestNewIndexEmptyManifest(t *testing.T) {
	_, err := NewIndex(writeManifest(t, "# nothing here\n"))
	assert.Error(t, err)
}

func TestNewIndexMissingFile(t *testing.T) {
	_, err := NewIndex("/nonexistent/manifest.yaml")
	assert.Error(t, err)
}

func indexedEntry(t *testing.T) Entry {
	t.Helper()
	index, err := NewIndex(writeManifest(t, sampleManifest))
	require.NoError(t, err)
	entry, ok := index.Lookup("cart")
	require.True(t, ok)
	return entry
}

func livePod(cpuLimit string) *corev1.Pod {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "cart-1",
			Namespace: "shop",
			Labels:    map[string]string{"app": "cart"},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name: "server",
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("250m"),
						corev1.ResourceMemory: resource.MustParse("128Mi"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse(cpuLimit),
						corev1.ResourceMemory: resource.MustParse("256Mi"),
					},
				},
			}},
		},
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
		},
	}
	return pod
}

func TestPodDivergesNormalizesQuantities(t *testing.T) {
	entry := indexedEntry(t)

	// 0.5 cpu and 500m are the same quantity, no divergence
	assert.False(t, podDiverges(livePod("0.5"), entry))
	assert.False(t, podDiverges(livePod("500m"), entry))
	assert.True(t, podDiverges(livePod("2m"), entry))
}

type stubSampler struct{}

func (stubSampler) TopPodContainers(ctx context.Context, namespace, selector string) ([]metrics.ContainerUsage, error) {
	return nil, nil
}
func (stubSampler) TopPod(ctx context.Context, namespace, pod string) ([]metrics.ContainerUsage, error) {
	return nil, nil
}
func (stubSampler) Available(ctx context.Context, namespace, selector string) error { return nil }

type applyRunner struct {
	applied []string
}

func (a *applyRunner) Run(ctx context.Context, stdin, name string, args ...string) (shell.Result, error) {
	a.applied = append(a.applied, stdin)
	return shell.Result{}, nil
}

func TestRestoreDeletesDivergentPodAndReapplies(t *testing.T) {
	index, err := NewIndex(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	divergent := livePod("2m")
	client := fake.NewSimpleClientset(divergent)
	runner := &applyRunner{}
	r := &Restorer{
		Clients:      clients.ClientSets{KubeClient: client},
		Runner:       runner,
		Sampler:      stubSampler{},
		Index:        index,
		ApplyTimeout: time.Second,
		ReadyTimeout: 1,
		ReadyDelay:   1,
	}

	// the divergent pod is gone before readiness is polled, so the fake
	// cluster looks empty; the restore still reports the apply
	err = r.Restore(context.Background(), "shop", "cart")
	require.Error(t, err)

	require.Len(t, runner.applied, 1)
	assert.Contains(t, runner.applied[0], "name: cart")

	_, getErr := client.CoreV1().Pods("shop").Get(context.Background(), "cart-1", metav1.GetOptions{})
	assert.Error(t, getErr)
}

func TestRestoreHealthyPodSurvives(t *testing.T) {
	index, err := NewIndex(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	healthy := livePod("500m")
	client := fake.NewSimpleClientset(healthy)
	runner := &applyRunner{}
	r := &Restorer{
		Clients:      clients.ClientSets{KubeClient: client},
		Runner:       runner,
		Sampler:      stubSampler{},
		Index:        index,
		ApplyTimeout: time.Second,
		ReadyTimeout: 1,
		ReadyDelay:   1,
	}

	require.NoError(t, r.Restore(context.Background(), "shop", "cart"))

	_, getErr := client.CoreV1().Pods("shop").Get(context.Background(), "cart-1", metav1.GetOptions{})
	assert.NoError(t, getErr)
}

func TestRestoreUnknownWorkload(t *testing.T) {
	index, err := NewIndex(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	r := &Restorer{Index: index}
	assert.Error(t, r.Restore(context.Background(), "shop", "payments"))
}
