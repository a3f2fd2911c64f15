package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/filex"
	"github.com/CrispStrobe/filen-go/internal/models"
	"github.com/CrispStrobe/filen-go/internal/transfer"
)

// RunDownload downloads remote sources into one local directory as a
// resumable batch. The same trailing-slash rule as uploads applies: a
// folder source ending in a slash spills its contents into the
// destination, otherwise the folder itself appears inside it.
func (c *controller) RunDownload(ctx context.Context, spec DownloadSpec) (*Summary, error) {
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

	dest := spec.LocalDestination
	if dest == "" {
		dest = "."
	}
	id := BatchID("download", spec.Sources, dest)
	st, err := c.store.Load(id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		tasks, err := c.buildDownloadTasks(ctx, spec.Sources, dest, filter)
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			return nil, fmt.Errorf("batch: nothing to download")
		}
		st = &State{OperationType: "download", LocalDestination: dest, Tasks: tasks}
	} else {
		c.log.Info(ctx, "resuming batch", "batch_id", id, "tasks", len(st.Tasks))
	}
	if err := c.checkOptions(spec.Options, len(st.Tasks)); err != nil {
		return nil, err
	}

	if err := ensureLocalDirs(st); err != nil {
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
		c.runDownloadTask(ctx, sv, task, spec.Options)
	}

	return c.finish(ctx, sv, id, st), nil
}

func ensureLocalDirs(st *State) error {
	for i := range st.Tasks {
		t := &st.Tasks[i]
		if t.Status.IsDone() {
			continue
		}
		if err := filex.EnsureDir(filepath.Dir(t.LocalPath)); err != nil {
			return err
		}
	}
	return nil
}

func (c *controller) buildDownloadTasks(ctx context.Context, sources []string, dest string, filter *Filter) ([]Task, error) {
	var tasks []Task
	seen := make(map[string]struct{})
	add := func(t Task) {
		key := t.RemoteUUID + "\x00" + t.LocalPath
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tasks = append(tasks, t)
	}

	for _, src := range sources {
		spill := strings.HasSuffix(src, "/")
		item, err := c.drv.Resolve(ctx, src)
		if err != nil {
			return nil, err
		}
		if item.Kind == models.KindFile {
			if filter.Admit(item.Name) {
				add(Task{
					LocalPath:              filepath.Join(dest, item.Name),
					RemotePath:             item.Path,
					RemoteUUID:             item.UUID,
					Status:                 TaskPending,
					LastChunk:              -1,
					RemoteModificationTime: item.File.LastModified,
				})
			}
			continue
		}

		base := dest
		if !spill && !item.IsRoot() {
			base = filepath.Join(dest, item.Name)
		}
		sub, err := c.walkRemote(ctx, item, base, filter)
		if err != nil {
			return nil, err
		}
		for _, t := range sub {
			add(t)
		}
	}
	return tasks, nil
}

// walkRemote turns every file under a remote folder into a task, keeping
// the folder structure below the local base.
func (c *controller) walkRemote(ctx context.Context, start *drive.Item, destBase string, filter *Filter) ([]Task, error) {
	prefix := strings.TrimSuffix(start.Path, "/") + "/"
	var tasks []Task
	err := c.drv.Find(ctx, start.Path, "*", -1, func(m drive.Match) error {
		rel := strings.TrimPrefix(m.Path, prefix)
		if !filter.Admit(rel) {
			return nil
		}
		tasks = append(tasks, Task{
			LocalPath:              filepath.Join(destBase, filepath.FromSlash(rel)),
			RemotePath:             m.Path,
			RemoteUUID:             m.File.UUID,
			Status:                 TaskPending,
			LastChunk:              -1,
			RemoteModificationTime: m.File.LastModified,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// runDownloadTask executes one download task. Downloads restart whole on
// resume; a task already past its conflict check (status downloading) is
// not re-checked, or its own partial file would count as a conflict.
func (c *controller) runDownloadTask(ctx context.Context, sv *saver, task *Task, opts Options) {
	file, err := c.drv.FileByUUID(ctx, task.RemoteUUID)
	if err != nil {
		sv.transition(ctx, task, TaskError("metadata"))
		c.log.Error(ctx, "could not fetch file record", "path", task.RemotePath, "error", err)
		return
	}

	if task.Status == TaskPending {
		proceed, status := resolveDownloadConflict(task.LocalPath, file.LastModified, opts)
		if !proceed {
			sv.transition(ctx, task, status)
			c.log.Info(ctx, "task skipped", "path", task.RemotePath, "status", status)
			return
		}
	}

	sv.transition(ctx, task, TaskDownloading)
	_, err = c.eng.Download(ctx, transfer.DownloadInput{
		File:     file,
		DestPath: task.LocalPath,
		OnChunk: func(index int, _ int) {
			task.LastChunk = index
			sv.chunk(ctx)
		},
	})
	if err != nil {
		sv.transition(ctx, task, TaskError("download"))
		c.log.Error(ctx, "download failed", "path", task.RemotePath, "error", err)
		return
	}
	task.RemoteModificationTime = file.LastModified
	sv.transition(ctx, task, TaskCompleted)
}

func resolveDownloadConflict(localPath string, remoteMs int64, opts Options) (bool, TaskStatus) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return true, ""
	}

	switch opts.Policy {
	case PolicyOverwrite:
		return true, ""
	case PolicyNewer:
		localMs := fi.ModTime().UnixMilli()
		if localMs <= 0 || remoteMs <= 0 {
			return false, TaskSkipped("no_timestamp")
		}
		if remoteMs > localMs {
			return true, ""
		}
		return false, TaskSkipped("newer")
	case PolicyInteractive:
		ok, err := opts.Prompt(fmt.Sprintf("overwrite local %s?", localPath))
		if err != nil || !ok {
			return false, TaskSkipped("declined")
		}
		return true, ""
	default:
		return false, TaskSkipped("conflict")
	}
}
