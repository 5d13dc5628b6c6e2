package infra

import (
	"bytes"
	"context"
	"fmt"
	"os/user"
	"path/filepath"
	"strconv"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	resourcev1 "k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/aleozlx/playbook-go/internal/logger"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// nvidiaRuntimeClass names the K8s RuntimeClass selected when a step asks
// for runtime: nvidia, mirroring the local backend's `--runtime nvidia`
// docker flag.
const nvidiaRuntimeClass = "nvidia"

// gpuResourceName is the device-plugin resource key the NVIDIA K8s device
// plugin advertises capacity under.
const gpuResourceName = "nvidia.com/gpu"

// ClusterBackend launches a step's argv as a Kubernetes batch Job, backed by
// a PersistentVolume/PersistentVolumeClaim pair standing in for the local
// backend's bind-mounted working directory. It is the Go-native analogue of
// the original's Python-embedded K8s submission system: render three
// manifests, submit them, block on the Job's terminal state.
type ClusterBackend struct {
	Client    kubernetes.Interface
	Namespace string
	HostPath  string
	log       *logger.Logger
}

// NewClusterBackend constructs a ClusterBackend against an already-built
// clientset (typically from client-go's in-cluster or kubeconfig loader).
func NewClusterBackend(client kubernetes.Interface, namespace, hostPath string, log *logger.Logger) *ClusterBackend {
	if namespace == "" {
		namespace = "default"
	}
	return &ClusterBackend{Client: client, Namespace: namespace, HostPath: hostPath, log: log}
}

type jobParams struct {
	Name        string
	Image       string
	Argv        []string
	StorageSize string
	MountPath   string
	HostPath    string

	// HotwingsUser and HotwingsTaskID are the job-provenance fields spec
	// §4.5 requires the cluster templates to resolve: the submitting OS
	// user and a task identifier derived from the playbook's directory.
	HotwingsUser   string
	HotwingsTaskID string

	// Runtime and GPUCount gate a GPU resource request: set only when
	// Runtime == "nvidia" and GPUCount > 0.
	Runtime  string
	GPUCount int64
}

// hotwingsUser resolves the submitting OS user, the same identity source
// the local backend uses for its default `-u uid:gid` flag. The original's
// hotwings system left this as a commented-out TODO parsing `id`'s stdout;
// user.Current() is the direct os/exec-free Go equivalent.
func hotwingsUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// hotwingsTaskID derives the task identifier from the resume argv's
// playbook path, per spec §4.5: "derived from the parent directory name of
// the playbook path." The resume argv built by enterContainer always has
// the shape [--arg-resume, <closure>, <playbookPath>, (verbosity)].
func hotwingsTaskID(argv []string) string {
	if len(argv) >= 3 && argv[0] == "--arg-resume" {
		return filepath.Base(filepath.Dir(argv[2]))
	}
	return "unknown"
}

func (b *ClusterBackend) render(tpl, name string, p jobParams) ([]byte, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(tpl)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Launch renders and submits the PV/PVC/Job trio for spec, then blocks on
// the Job's watch stream until it reaches a terminal state.
func (b *ClusterBackend) Launch(ctx context.Context, spec pbcontext.Context, argv []string) (string, *pberrors.TaskError) {
	image, err := spec.UnpackString("image")
	if err != nil {
		return "", pberrors.NewInternalTaskError("the container image specification was invalid")
	}
	name, err := spec.UnpackString("name")
	if err != nil {
		name = fmt.Sprintf("playbook-run-%d", time.Now().UnixNano())
	}

	storage := "1Gi"
	if v, err := spec.UnpackString("storage_size"); err == nil {
		storage = v
	}

	runtime, _ := spec.UnpackString("runtime")
	gpus, _ := spec.UnpackInt("gpus")

	params := jobParams{
		Name:           name,
		Image:          image,
		Argv:           argv,
		StorageSize:    storage,
		MountPath:      "/workdir",
		HostPath:       b.HostPath,
		HotwingsUser:   hotwingsUser(),
		HotwingsTaskID: hotwingsTaskID(argv),
		Runtime:        runtime,
		GPUCount:       gpus,
	}

	pv, err := b.buildPV(params)
	if err != nil {
		return "", pberrors.NewInternalTaskError("failed to render PersistentVolume manifest: " + err.Error())
	}
	pvc, err := b.buildPVC(params)
	if err != nil {
		return "", pberrors.NewInternalTaskError("failed to render PersistentVolumeClaim manifest: " + err.Error())
	}
	job, err := b.buildJob(params)
	if err != nil {
		return "", pberrors.NewInternalTaskError("failed to render Job manifest: " + err.Error())
	}

	if b.log != nil {
		b.log.Info("submitting cluster job: " + params.Name)
		if rendered, err := b.renderManifests(params); err == nil {
			b.log.Debug(rendered)
		}
	}

	if _, err := b.Client.CoreV1().PersistentVolumes().Create(ctx, pv, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return "", pberrors.NewExternalAPITaskError("failed to create PersistentVolume", err)
	}
	if _, err := b.Client.CoreV1().PersistentVolumeClaims(b.Namespace).Create(ctx, pvc, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return "", pberrors.NewExternalAPITaskError("failed to create PersistentVolumeClaim", err)
	}
	if _, err := b.Client.BatchV1().Jobs(b.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", pberrors.NewExternalAPITaskError("failed to create Job", err)
	}

	if err := b.awaitTerminal(ctx, params.Name); err != nil {
		return "", err
	}
	return params.Name, nil
}

// renderManifests produces the human-readable YAML form of the three
// resources, using the same sprig-enabled templates the original's
// Handlebars manifests played this role with. The typed client-go objects
// built below are submitted; this text form is logged at debug level so an
// operator can see exactly what was requested.
func (b *ClusterBackend) renderManifests(p jobParams) (string, error) {
	pv, err := b.render(pvTemplate, "pv", p)
	if err != nil {
		return "", err
	}
	pvc, err := b.render(pvcTemplate, "pvc", p)
	if err != nil {
		return "", err
	}
	job, err := b.render(jobTemplate, "job", p)
	if err != nil {
		return "", err
	}
	return string(pv) + "---\n" + string(pvc) + "---\n" + string(job), nil
}

func (b *ClusterBackend) buildPV(p jobParams) (*corev1.PersistentVolume, error) {
	qty, err := resourcev1.ParseQuantity(p.StorageSize)
	if err != nil {
		return nil, err
	}
	return &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{
			Name:   p.Name + "-pv",
			Labels: map[string]string{"playbook-run": p.Name},
		},
		Spec: corev1.PersistentVolumeSpec{
			Capacity:    corev1.ResourceList{corev1.ResourceStorage: qty},
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				HostPath: &corev1.HostPathVolumeSource{Path: p.HostPath},
			},
		},
	}, nil
}

func (b *ClusterBackend) buildPVC(p jobParams) (*corev1.PersistentVolumeClaim, error) {
	qty, err := resourcev1.ParseQuantity(p.StorageSize)
	if err != nil {
		return nil, err
	}
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: p.Name + "-pvc"},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: qty},
			},
			VolumeName: p.Name + "-pv",
		},
	}, nil
}

func (b *ClusterBackend) buildJob(p jobParams) (*batchv1.Job, error) {
	backoff := int32(0)
	labels := map[string]string{
		"playbook-run":     p.Name,
		"hotwings-user":    p.HotwingsUser,
		"hotwings-task-id": p.HotwingsTaskID,
	}

	container := corev1.Container{
		Name:    p.Name,
		Image:   p.Image,
		Command: p.Argv,
		VolumeMounts: []corev1.VolumeMount{
			{Name: "workdir", MountPath: p.MountPath},
		},
	}

	podSpec := corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers:    []corev1.Container{container},
		Volumes: []corev1.Volume{
			{
				Name: "workdir",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: p.Name + "-pvc"},
				},
			},
		},
	}

	if p.Runtime == nvidiaRuntimeClass && p.GPUCount > 0 {
		qty, err := resourcev1.ParseQuantity(strconv.FormatInt(p.GPUCount, 10))
		if err != nil {
			return nil, err
		}
		podSpec.Containers[0].Resources = corev1.ResourceRequirements{
			Limits: corev1.ResourceList{corev1.ResourceName(gpuResourceName): qty},
		}
		runtimeClass := nvidiaRuntimeClass
		podSpec.RuntimeClassName = &runtimeClass
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: p.Name + "-job", Labels: labels},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       podSpec,
			},
		},
	}, nil
}

// awaitTerminal blocks on the Job's watch stream until it reports Complete
// or Failed, mapping a Failed condition to an ExternalAPI TaskError.
func (b *ClusterBackend) awaitTerminal(ctx context.Context, name string) *pberrors.TaskError {
	watcher, err := b.Client.BatchV1().Jobs(b.Namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("metadata.name", name+"-job").String(),
	})
	if err != nil {
		return pberrors.NewExternalAPITaskError("failed to watch Job", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return pberrors.NewExternalAPITaskError("context cancelled waiting for Job", ctx.Err())
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return pberrors.NewExternalAPITaskError("Job watch channel closed before a terminal state", nil)
			}
			if event.Type == watch.Error {
				return pberrors.NewExternalAPITaskError("Job watch reported an error event", nil)
			}
			job, ok := event.Object.(*batchv1.Job)
			if !ok {
				continue
			}
			for _, cond := range job.Status.Conditions {
				if cond.Status != corev1.ConditionTrue {
					continue
				}
				switch cond.Type {
				case batchv1.JobComplete:
					return nil
				case batchv1.JobFailed:
					return pberrors.NewExternalAPITaskError("Job reported Failed: "+cond.Message, nil)
				}
			}
		}
	}
}
