// Package batch runs bulk uploads and downloads as resumable operations.
// Each batch derives a stable id from what it does, persists per-task state
// under the data directory while running, and on re-invocation picks up
// where the previous run stopped instead of starting over.
package batch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/logging"
	"github.com/CrispStrobe/filen-go/internal/transfer"
)

// timeNow is swapped in tests to control save throttling.
var timeNow = time.Now

// Policy decides what happens when a transfer target already exists.
type Policy string

const (
	// PolicySkip leaves existing targets alone. The default.
	PolicySkip Policy = "skip"

	// PolicyOverwrite replaces existing targets unconditionally.
	PolicyOverwrite Policy = "overwrite"

	// PolicyNewer replaces a target only when the source is strictly newer.
	PolicyNewer Policy = "newer"

	// PolicyInteractive asks per conflict, defaulting to no. Only valid for
	// single-file batches.
	PolicyInteractive Policy = "interactive"
)

// ParsePolicy maps a flag value onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyOverwrite, PolicyNewer, PolicyInteractive:
		return Policy(s), nil
	}
	return "", fmt.Errorf("batch: unknown conflict policy %q", s)
}

// TaskStatus is persisted per task. Skip and error statuses carry their
// reason inline, e.g. "skipped(conflict)" or "error(upload)".
type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskUploading   TaskStatus = "uploading"
	TaskDownloading TaskStatus = "downloading"
	TaskCompleted   TaskStatus = "completed"
	TaskInterrupted TaskStatus = "interrupted"
)

// TaskSkipped builds a skip status with its reason.
func TaskSkipped(reason string) TaskStatus {
	return TaskStatus("skipped(" + reason + ")")
}

// TaskError builds an error status with its reason.
func TaskError(reason string) TaskStatus {
	return TaskStatus("error(" + reason + ")")
}

// IsSkipped reports whether the task was skipped, for any reason.
func (s TaskStatus) IsSkipped() bool {
	return strings.HasPrefix(string(s), "skipped")
}

// IsError reports whether the task failed, for any reason.
func (s TaskStatus) IsError() bool {
	return strings.HasPrefix(string(s), "error")
}

// IsDone reports whether the task needs no further work.
func (s TaskStatus) IsDone() bool {
	return s == TaskCompleted || s.IsSkipped()
}

// Task is one file transfer inside a batch. Upload tasks carry the resume
// triple (FileUUID, UploadKey, LastChunk) once chunk traffic has started;
// download tasks are re-run whole, so the triple stays empty for them.
type Task struct {
	LocalPath              string     `json:"localPath"`
	RemotePath             string     `json:"remotePath,omitempty"`
	RemoteUUID             string     `json:"remoteUuid,omitempty"`
	Status                 TaskStatus `json:"status"`
	FileUUID               string     `json:"fileUuid,omitempty"`
	UploadKey              string     `json:"uploadKey,omitempty"`
	LastChunk              int        `json:"lastChunk"`
	RemoteModificationTime int64      `json:"remoteModificationTime,omitempty"`
}

// State is the persisted form of a batch.
type State struct {
	OperationType    string `json:"operationType"`
	TargetRemotePath string `json:"targetRemotePath,omitempty"`
	LocalDestination string `json:"localDestination,omitempty"`
	Tasks            []Task `json:"tasks"`
}

// Summary is the outcome of a batch run.
type Summary struct {
	BatchID     string
	Tasks       []Task
	Completed   int
	Skipped     int
	Errors      int
	Interrupted int
}

// Failed reports whether the run must exit non-zero: any task errored or
// was interrupted mid-transfer.
func (s *Summary) Failed() bool {
	return s.Errors > 0 || s.Interrupted > 0
}

func summarize(id string, st *State) *Summary {
	sum := &Summary{BatchID: id, Tasks: append([]Task(nil), st.Tasks...)}
	for _, t := range st.Tasks {
		switch {
		case t.Status == TaskCompleted:
			sum.Completed++
		case t.Status.IsSkipped():
			sum.Skipped++
		case t.Status.IsError():
			sum.Errors++
		case t.Status == TaskInterrupted:
			sum.Interrupted++
		}
	}
	return sum
}

// BatchID derives the stable identifier of a batch from the operation, its
// sources exactly as given, and its target. Re-running the same command
// yields the same id and therefore resumes the same state file.
func BatchID(op string, sources []string, target string) string {
	sum := sha1.Sum([]byte(op + "-" + strings.Join(sources, "|") + "-" + target))
	return hex.EncodeToString(sum[:])[:16]
}

// Options tune a batch run.
type Options struct {
	Policy  Policy
	Include []string
	Exclude []string

	// Prompt asks the user a yes/no question; required for
	// PolicyInteractive. Returning false or an error declines.
	Prompt func(question string) (bool, error)
}

// UploadSpec describes a bulk upload: local sources (paths or globs) into
// one remote folder. Directory sources are walked only when Recursive is
// set; without it a directory source fails task construction.
type UploadSpec struct {
	Sources          []string
	TargetRemotePath string
	Recursive        bool
	Options
}

// DownloadSpec describes a bulk download: remote sources into one local
// directory.
type DownloadSpec struct {
	Sources          []string
	LocalDestination string
	Options
}

// Controller runs batches.
type Controller interface {
	RunUpload(ctx context.Context, spec UploadSpec) (*Summary, error)
	RunDownload(ctx context.Context, spec DownloadSpec) (*Summary, error)
}

type controller struct {
	api   api.Client
	drv   drive.Drive
	eng   transfer.Engine
	store *StateStore
	log   logging.Logger
}

// New builds a batch controller.
func New(client api.Client, drv drive.Drive, eng transfer.Engine, store *StateStore, log logging.Logger) Controller {
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &controller{api: client, drv: drv, eng: eng, store: store, log: log}
}

func (c *controller) checkOptions(opts Options, taskCount int) error {
	switch opts.Policy {
	case PolicySkip, PolicyOverwrite, PolicyNewer:
		return nil
	case PolicyInteractive:
		if opts.Prompt == nil {
			return fmt.Errorf("batch: interactive policy needs a prompt")
		}
		if taskCount > 1 {
			return fmt.Errorf("batch: interactive policy works on a single file, got %d", taskCount)
		}
		return nil
	case "":
		return nil
	}
	return fmt.Errorf("batch: unknown conflict policy %q", opts.Policy)
}
