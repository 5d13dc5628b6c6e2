package infra

// These templates stand in for the original system's Handlebars manifests:
// one PersistentVolume/PersistentVolumeClaim pair backing the step's
// bind-mounted working directory, and a batch Job running the resume argv
// inside the requested image. text/template + sprig give the same
// lookup/default helpers the original's Handlebars helpers provided.

const pvTemplate = `apiVersion: v1
kind: PersistentVolume
metadata:
  name: {{ .Name }}-pv
  labels:
    playbook-run: {{ .Name }}
spec:
  capacity:
    storage: {{ .StorageSize | default "1Gi" }}
  accessModes: ["ReadWriteOnce"]
  hostPath:
    path: {{ .HostPath }}
`

const pvcTemplate = `apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: {{ .Name }}-pvc
spec:
  accessModes: ["ReadWriteOnce"]
  resources:
    requests:
      storage: {{ .StorageSize | default "1Gi" }}
  volumeName: {{ .Name }}-pv
`

const jobTemplate = `apiVersion: batch/v1
kind: Job
metadata:
  name: {{ .Name }}-job
  labels:
    playbook-run: {{ .Name }}
    hotwings-user: {{ .HotwingsUser }}
    hotwings-task-id: {{ .HotwingsTaskID }}
spec:
  backoffLimit: 0
  template:
    metadata:
      labels:
        playbook-run: {{ .Name }}
        hotwings-user: {{ .HotwingsUser }}
        hotwings-task-id: {{ .HotwingsTaskID }}
    spec:
      restartPolicy: Never
{{- if and (eq .Runtime "nvidia") (gt .GPUCount 0) }}
      runtimeClassName: nvidia
{{- end }}
      containers:
        - name: {{ .Name }}
          image: {{ .Image }}
          command: {{ .Argv | toJson }}
{{- if and (eq .Runtime "nvidia") (gt .GPUCount 0) }}
          resources:
            limits:
              nvidia.com/gpu: {{ .GPUCount }}
{{- end }}
          volumeMounts:
            - name: workdir
              mountPath: {{ .MountPath | default "/workdir" }}
      volumes:
        - name: workdir
          persistentVolumeClaim:
            claimName: {{ .Name }}-pvc
`
