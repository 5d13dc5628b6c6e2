package infra

import (
	"context"
	"testing"
	"time"

	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

func TestNewClusterBackendDefaultsNamespace(t *testing.T) {
	b := NewClusterBackend(fake.NewSimpleClientset(), "", "/host", nil)
	assert.Equal(t, "default", b.Namespace)
}

func TestBuildJobUsesArgvAsCommand(t *testing.T) {
	b := &ClusterBackend{}
	job, err := b.buildJob(jobParams{
		Name:      "run1",
		Image:     "test-image",
		Argv:      []string{"echo", "hi"},
		MountPath: "/workdir",
	})
	require.NoError(t, err)
	assert.Equal(t, "run1-job", job.Name)
	require.Len(t, job.Spec.Template.Spec.Containers, 1)
	assert.Equal(t, []string{"echo", "hi"}, job.Spec.Template.Spec.Containers[0].Command)
	assert.Equal(t, "run1-pvc", job.Spec.Template.Spec.Volumes[0].VolumeSource.PersistentVolumeClaim.ClaimName)
}

func TestBuildPVAndPVCShareQuantityAndName(t *testing.T) {
	b := &ClusterBackend{}
	pv, err := b.buildPV(jobParams{Name: "run1", StorageSize: "2Gi", HostPath: "/host"})
	require.NoError(t, err)
	pvc, err := b.buildPVC(jobParams{Name: "run1", StorageSize: "2Gi"})
	require.NoError(t, err)

	assert.Equal(t, "run1-pv", pv.Name)
	assert.Equal(t, "run1-pvc", pvc.Name)
	assert.Equal(t, "run1-pv", pvc.Spec.VolumeName)
	assert.Equal(t, "/host", pv.Spec.PersistentVolumeSource.HostPath.Path)
}

func TestBuildPVRejectsInvalidStorageSize(t *testing.T) {
	b := &ClusterBackend{}
	_, err := b.buildPV(jobParams{Name: "run1", StorageSize: "not-a-quantity"})
	assert.Error(t, err)
}

func TestBuildJobCarriesHotwingsLabels(t *testing.T) {
	b := &ClusterBackend{}
	job, err := b.buildJob(jobParams{
		Name:           "run1",
		Image:          "test-image",
		HotwingsUser:   "hotwings",
		HotwingsTaskID: "some-taskid",
	})
	require.NoError(t, err)
	assert.Equal(t, "hotwings", job.Labels["hotwings-user"])
	assert.Equal(t, "some-taskid", job.Labels["hotwings-task-id"])
	assert.Equal(t, "hotwings", job.Spec.Template.Labels["hotwings-user"])
	assert.Equal(t, "some-taskid", job.Spec.Template.Labels["hotwings-task-id"])
}

func TestBuildJobOmitsGPURequestWhenRuntimeIsNotNvidia(t *testing.T) {
	b := &ClusterBackend{}
	job, err := b.buildJob(jobParams{Name: "run1", Image: "test-image", Runtime: "runc", GPUCount: 2})
	require.NoError(t, err)
	assert.Nil(t, job.Spec.Template.Spec.RuntimeClassName)
	assert.Empty(t, job.Spec.Template.Spec.Containers[0].Resources.Limits)
}

func TestBuildJobOmitsGPURequestWhenGPUCountIsZero(t *testing.T) {
	b := &ClusterBackend{}
	job, err := b.buildJob(jobParams{Name: "run1", Image: "test-image", Runtime: "nvidia", GPUCount: 0})
	require.NoError(t, err)
	assert.Nil(t, job.Spec.Template.Spec.RuntimeClassName)
}

func TestBuildJobRequestsGPUsWhenRuntimeIsNvidia(t *testing.T) {
	b := &ClusterBackend{}
	job, err := b.buildJob(jobParams{Name: "run1", Image: "test-image", Runtime: "nvidia", GPUCount: 2})
	require.NoError(t, err)
	require.NotNil(t, job.Spec.Template.Spec.RuntimeClassName)
	assert.Equal(t, "nvidia", *job.Spec.Template.Spec.RuntimeClassName)
	qty := job.Spec.Template.Spec.Containers[0].Resources.Limits["nvidia.com/gpu"]
	assert.Equal(t, "2", qty.String())
}

func TestHotwingsTaskIDDerivesFromResumeArgvPlaybookPath(t *testing.T) {
	id := hotwingsTaskID([]string{"--arg-resume", "encoded", "/srv/jobs/some-taskid/main.yml"})
	assert.Equal(t, "some-taskid", id)
}

func TestHotwingsTaskIDFallsBackWhenArgvHasNoResumePath(t *testing.T) {
	id := hotwingsTaskID([]string{"bash", "-c", "echo hi"})
	assert.Equal(t, "unknown", id)
}

func TestRenderManifestsIncludesHotwingsAndGPUFields(t *testing.T) {
	b := &ClusterBackend{}
	out, err := b.renderManifests(jobParams{
		Name: "run1", Image: "test-image", Argv: []string{"echo", "hi"},
		StorageSize: "1Gi", MountPath: "/workdir", HostPath: "/host",
		HotwingsUser: "hotwings", HotwingsTaskID: "some-taskid",
		Runtime: "nvidia", GPUCount: 2,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "hotwings-user: hotwings")
	assert.Contains(t, out, "hotwings-task-id: some-taskid")
	assert.Contains(t, out, "runtimeClassName: nvidia")
	assert.Contains(t, out, "nvidia.com/gpu: 2")
}

func TestRenderManifestsProducesThreeDocuments(t *testing.T) {
	b := &ClusterBackend{}
	out, err := b.renderManifests(jobParams{
		Name: "run1", Image: "test-image", Argv: []string{"echo", "hi"},
		StorageSize: "1Gi", MountPath: "/workdir", HostPath: "/host",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "run1-pv")
	assert.Contains(t, out, "run1-pvc")
	assert.Contains(t, out, "run1-job")
	assert.Equal(t, 2, countSeparators(out))
}

func countSeparators(s string) int {
	count := 0
	for i := 0; i+4 <= len(s); i++ {
		if s[i:i+4] == "---\n" {
			count++
		}
	}
	return count
}

func TestLaunchTimesOutWaitingForTerminalJobState(t *testing.T) {
	client := fake.NewSimpleClientset()
	b := NewClusterBackend(client, "default", "/host", nil)
	spec := pbcontext.New().
		Set("image", pbcontext.String("test-image")).
		Set("name", pbcontext.String("run1"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The fake clientset never emits a Complete/Failed condition on its own,
	// so Launch blocks in awaitTerminal until the context deadline fires.
	_, taskErr := b.Launch(ctx, spec, []string{"echo", "hi"})
	require.NotNil(t, taskErr)
	assert.Contains(t, taskErr.Error(), "context cancelled")
}

func TestLaunchRejectsMissingImage(t *testing.T) {
	b := NewClusterBackend(fake.NewSimpleClientset(), "default", "/host", nil)
	spec := pbcontext.New()
	_, taskErr := b.Launch(context.Background(), spec, nil)
	require.NotNil(t, taskErr)
}
