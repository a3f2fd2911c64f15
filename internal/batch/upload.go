package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/filex"
	"github.com/CrispStrobe/filen-go/internal/transfer"
)

// RunUpload uploads local sources into one remote folder as a resumable
// batch. Construction failures (bad patterns, unresolvable target, nothing
// to do) abort before any state is written; per-task failures are recorded
// in the summary and the run continues.
func (c *controller) RunUpload(ctx context.Context, spec UploadSpec) (*Summary, error) {
	if spec.Policy == "" {
		spec.Policy = PolicySkip
	}
	if len(spec.Sources) == 0 {
		return nil, fmt.Errorf("batch: no sources")
	}
	filter, err := NewFilter(spec.Include, spec.Exclude)
	if err != nil {
		return nil, err
	}

	target := normalizeRemote(spec.TargetRemotePath)
	id := BatchID("upload", spec.Sources, target)
	st, err := c.store.Load(id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		tasks, err := buildUploadTasks(spec.Sources, target, filter, spec.Recursive)
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			return nil, fmt.Errorf("batch: nothing to upload")
		}
		st = &State{OperationType: "upload", TargetRemotePath: target, Tasks: tasks}
	} else {
		c.log.Info(ctx, "resuming batch", "batch_id", id, "tasks", len(st.Tasks))
	}
	if err := c.checkOptions(spec.Options, len(st.Tasks)); err != nil {
		return nil, err
	}

	parents, err := c.ensureRemoteDirs(ctx, st)
	if err != nil {
		return nil, err
	}

	sv := newSaver(c.store, id, st, c.log)
	sv.save(ctx)

	for i := range st.Tasks {
		if ctx.Err() != nil {
			break
		}
		task := &st.Tasks[i]
		if task.Status.IsDone() {
			continue
		}
		c.runUploadTask(ctx, sv, task, parents[path.Dir(task.RemotePath)], spec.Options)
	}

	return c.finish(ctx, sv, id, st), nil
}

// finish summarizes a run and either deletes the state file (everything
// done) or saves it one last time for the next invocation.
func (c *controller) finish(ctx context.Context, sv *saver, id string, st *State) *Summary {
	sum := summarize(id, st)
	if allDone(st) {
		if err := c.store.Delete(id); err != nil {
			c.log.Warn(ctx, "could not delete batch state", "batch_id", id, "error", err)
		}
	} else {
		sv.save(ctx)
	}
	c.log.Info(ctx, "batch finished",
		"batch_id", id,
		"completed", sum.Completed,
		"skipped", sum.Skipped,
		"errors", sum.Errors,
		"interrupted", sum.Interrupted)
	return sum
}

func allDone(st *State) bool {
	for _, t := range st.Tasks {
		if !t.Status.IsDone() {
			return false
		}
	}
	return true
}

// normalizeRemote turns any remote path spelling into the canonical
// rooted form without a trailing slash; "/" stays "/".
func normalizeRemote(p string) string {
	parts := drive.SplitPath(p)
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

// ensureRemoteDirs creates every remote folder the pending tasks upload
// into and returns remote dir path to folder uuid.
func (c *controller) ensureRemoteDirs(ctx context.Context, st *State) (map[string]string, error) {
	parents := make(map[string]string)
	for i := range st.Tasks {
		t := &st.Tasks[i]
		if t.Status.IsDone() {
			continue
		}
		dir := path.Dir(t.RemotePath)
		if _, ok := parents[dir]; ok {
			continue
		}
		uuid, err := c.drv.MkdirAll(ctx, dir, drive.MkdirOpts{})
		if err != nil {
			return nil, fmt.Errorf("batch: create remote folder %s: %w", dir, err)
		}
		parents[dir] = uuid
	}
	return parents, nil
}

// buildUploadTasks expands sources (paths or globs) into one task per
// file. A directory source ending in a slash spills its contents directly
// into the target; without the slash the directory itself appears inside
// the target, like cp -r.
func buildUploadTasks(sources []string, target string, filter *Filter, recursive bool) ([]Task, error) {
	var tasks []Task
	seen := make(map[string]struct{})
	add := func(t Task) {
		key := t.LocalPath + "\x00" + t.RemotePath
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tasks = append(tasks, t)
	}

	for _, src := range sources {
		spill := strings.HasSuffix(src, "/") || strings.HasSuffix(src, string(os.PathSeparator))
		matches, err := expandSource(src)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			fi, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("batch: %s: %w", m, err)
			}
			if !fi.IsDir() {
				if filter.Admit(filepath.Base(m)) {
					add(Task{
						LocalPath:  m,
						RemotePath: path.Join(target, filepath.Base(m)),
						Status:     TaskPending,
						LastChunk:  -1,
					})
				}
				continue
			}
			if !recursive {
				return nil, fmt.Errorf("batch: %s is a directory (use -r to upload directories)", m)
			}
			sub, err := walkLocalDir(m, target, spill, filter)
			if err != nil {
				return nil, err
			}
			for _, t := range sub {
				add(t)
			}
		}
	}
	return tasks, nil
}

func expandSource(src string) ([]string, error) {
	cleaned := strings.TrimRight(src, "/"+string(os.PathSeparator))
	if cleaned == "" {
		cleaned = "/"
	}
	matches, err := filepath.Glob(cleaned)
	if err != nil {
		return nil, fmt.Errorf("batch: bad source pattern %q: %w", src, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("batch: no match for %q", src)
	}
	return matches, nil
}

func walkLocalDir(root, target string, spill bool, filter *Filter) ([]Task, error) {
	base := target
	if !spill {
		base = path.Join(target, filepath.Base(root))
	}
	var tasks []Task
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		if !filter.Admit(relSlash) {
			return nil
		}
		tasks = append(tasks, Task{
			LocalPath:  p,
			RemotePath: path.Join(base, relSlash),
			Status:     TaskPending,
			LastChunk:  -1,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: walk %s: %w", root, err)
	}
	return tasks, nil
}

// runUploadTask executes one upload task. Tasks that already hold a resume
// triple skip the conflict check; that was settled before their first
// chunk moved.
func (c *controller) runUploadTask(ctx context.Context, sv *saver, task *Task, parentUUID string, opts Options) {
	name := path.Base(task.RemotePath)
	resuming := task.FileUUID != "" && task.UploadKey != ""

	if !resuming {
		proceed, status, err := c.resolveUploadConflict(ctx, parentUUID, name, task.LocalPath, opts)
		if err != nil {
			sv.transition(ctx, task, TaskError("conflict_check"))
			c.log.Error(ctx, "conflict check failed", "path", task.RemotePath, "error", err)
			return
		}
		if !proceed {
			sv.transition(ctx, task, status)
			c.log.Info(ctx, "task skipped", "path", task.RemotePath, "status", status)
			return
		}
	}

	in := transfer.UploadInput{
		LocalPath:  task.LocalPath,
		ParentUUID: parentUUID,
		RemoteName: name,
		OnStart: func(fileUUID, uploadKey string) error {
			task.FileUUID, task.UploadKey, task.LastChunk = fileUUID, uploadKey, -1
			sv.transition(ctx, task, TaskUploading)
			return nil
		},
		OnChunk: func(index int, _ int) {
			task.LastChunk = index
			sv.chunk(ctx)
		},
	}
	if resuming {
		in.FileUUID = task.FileUUID
		in.UploadKey = task.UploadKey
		in.LastUploadedChunk = task.LastChunk
		sv.transition(ctx, task, TaskUploading)
		c.log.Info(ctx, "resuming upload", "path", task.RemotePath, "after_chunk", task.LastChunk)
	}

	res, err := c.eng.Upload(ctx, in)
	if err != nil {
		var cue *transfer.ChunkUploadError
		if errors.As(err, &cue) {
			task.FileUUID, task.UploadKey, task.LastChunk = cue.FileUUID, cue.UploadKey, cue.LastChunk
			sv.transition(ctx, task, TaskInterrupted)
			c.log.Warn(ctx, "upload interrupted", "path", task.RemotePath, "last_chunk", cue.LastChunk, "error", err)
			return
		}
		sv.transition(ctx, task, TaskError("upload"))
		c.log.Error(ctx, "upload failed", "path", task.RemotePath, "error", err)
		return
	}

	// The resume triple belongs to in-flight tasks only.
	task.FileUUID, task.UploadKey = "", ""
	task.LastChunk = res.Chunks - 1
	sv.transition(ctx, task, TaskCompleted)
}

// resolveUploadConflict applies the conflict policy against the remote
// side. The existence probe uses the cheap hashed-name endpoint; only the
// newer policy needs the full listing for a timestamp.
func (c *controller) resolveUploadConflict(ctx context.Context, parentUUID, name, localPath string, opts Options) (bool, TaskStatus, error) {
	resp, err := c.api.FileExists(ctx, parentUUID, c.drv.NameHash(name))
	if err != nil {
		return false, "", err
	}
	if !resp.Exists {
		return true, "", nil
	}

	switch opts.Policy {
	case PolicyOverwrite:
		return true, "", nil
	case PolicyNewer:
		localMs, err := filex.ModTimeMillis(localPath)
		if err != nil || localMs <= 0 {
			return false, TaskSkipped("no_timestamp"), nil
		}
		remoteMs := c.remoteModTime(ctx, parentUUID, name)
		if remoteMs <= 0 {
			return false, TaskSkipped("no_timestamp"), nil
		}
		if localMs > remoteMs {
			return true, "", nil
		}
		return false, TaskSkipped("newer"), nil
	case PolicyInteractive:
		ok, err := opts.Prompt(fmt.Sprintf("overwrite remote %s?", name))
		if err != nil || !ok {
			return false, TaskSkipped("declined"), nil
		}
		return true, "", nil
	default:
		return false, TaskSkipped("conflict"), nil
	}
}

func (c *controller) remoteModTime(ctx context.Context, parentUUID, name string) int64 {
	files, err := c.drv.ListFiles(ctx, parentUUID)
	if err != nil {
		return 0
	}
	for i := range files {
		if !files[i].Encrypted && files[i].Name == name {
			return files[i].LastModified
		}
	}
	return 0
}
