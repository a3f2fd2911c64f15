package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CrispStrobe/filen-go/internal/batch"
	"github.com/CrispStrobe/filen-go/internal/common"
	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/flagx"
	"github.com/CrispStrobe/filen-go/internal/models"
	"github.com/CrispStrobe/filen-go/internal/transfer"
)

// batchFlags is the flag surface shared by up and down.
type batchFlags struct {
	onConflict string
	include    flagx.Strings
	exclude    flagx.Strings
	force      bool
}

func bindBatchFlags(fs *flag.FlagSet, bf *batchFlags) {
	fs.StringVar(&bf.onConflict, "on-conflict", "", "skip, overwrite, newer or interactive")
	fs.StringVar(&bf.onConflict, "p", "", "shorthand for -on-conflict")
	fs.Var(&bf.include, "include", "only transfer files matching this glob (repeatable)")
	fs.Var(&bf.exclude, "exclude", "never transfer files matching this glob (repeatable)")
	fs.BoolVar(&bf.force, "force", false, "overwrite conflicts and never prompt")
}

// batchOptions builds batch options from the parsed flags. -force implies the
// overwrite policy and silences interactive prompting.
func (a *App) batchOptions(bf *batchFlags) (batch.Options, error) {
	policy, err := batch.ParsePolicy(bf.onConflict)
	if err != nil {
		return batch.Options{}, err
	}
	opts := batch.Options{
		Policy:  policy,
		Include: bf.include,
		Exclude: bf.exclude,
	}
	if bf.force {
		opts.Policy = batch.PolicyOverwrite
		return opts, nil
	}
	if policy == batch.PolicyInteractive {
		opts.Prompt = func(question string) (bool, error) {
			return promptYesNo(a.reader, question, a.out)
		}
	}
	return opts, nil
}

func (a *App) cmdUp(ctx context.Context, args []string) error {
	fs := a.newFlagSet("up")
	var bf batchFlags
	recursive := fs.Bool("r", false, "recurse into directory sources")
	bindBatchFlags(fs, &bf)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: up [flags] <source...> <remote-dir>")
	}
	rest := fs.Args()
	sources, target := rest[:len(rest)-1], rest[len(rest)-1]

	opts, err := a.batchOptions(&bf)
	if err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}

	sum, err := s.ctl.RunUpload(ctx, batch.UploadSpec{
		Sources:          sources,
		TargetRemotePath: target,
		Recursive:        *recursive,
		Options:          opts,
	})
	if err != nil {
		return err
	}
	return a.reportSummary(sum, "uploaded")
}

func (a *App) cmdDown(ctx context.Context, args []string) error {
	fs := a.newFlagSet("down")
	var bf batchFlags
	dest := fs.String("t", "", "local destination directory (default .)")
	bindBatchFlags(fs, &bf)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: down [flags] <remote...> [-t local-dir]")
	}

	opts, err := a.batchOptions(&bf)
	if err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}

	sum, err := s.ctl.RunDownload(ctx, batch.DownloadSpec{
		Sources:          fs.Args(),
		LocalDestination: *dest,
		Options:          opts,
	})
	if err != nil {
		return err
	}
	return a.reportSummary(sum, "downloaded")
}

// reportSummary prints the batch outcome and turns a failed batch into an
// error so the process exits non-zero.
func (a *App) reportSummary(sum *batch.Summary, verb string) error {
	fmt.Fprintf(a.out, "%s %d, skipped %d, errors %d, interrupted %d\n",
		verb, sum.Completed, sum.Skipped, sum.Errors, sum.Interrupted)
	if sum.Failed() {
		return fmt.Errorf("batch %s did not finish cleanly; rerun the same command to resume", sum.BatchID)
	}
	return nil
}

// cmdCp copies one remote file by downloading it to a temporary location
// and uploading it into the destination folder. The service has no
// server-side copy.
func (a *App) cmdCp(ctx context.Context, args []string) error {
	fs := a.newFlagSet("cp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: cp <remote-file> <remote-dir>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	item, err := s.drv.Resolve(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if item.Kind == models.KindFolder {
		return fmt.Errorf("%w: copying folders", common.ErrUnsupported)
	}

	destUUID, err := s.drv.MkdirAll(ctx, fs.Arg(1), drive.MkdirOpts{})
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "filen-cp-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	local, err := s.eng.Download(ctx, transfer.DownloadInput{
		File:     item.File,
		DestPath: filepath.Join(tmpDir, item.Name),
	})
	if err != nil {
		return err
	}
	if _, err := s.eng.Upload(ctx, transfer.UploadInput{
		LocalPath:        local,
		ParentUUID:       destUUID,
		RemoteName:       item.Name,
		ModificationTime: item.File.LastModified,
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "copied %s to %s\n", fs.Arg(0), fs.Arg(1))
	return nil
}

func (a *App) cmdVerify(ctx context.Context, args []string) error {
	fs := a.newFlagSet("verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: verify <remote-file> <local-file>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	item, err := s.drv.Resolve(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if item.Kind != models.KindFile {
		return fmt.Errorf("%s is not a file", fs.Arg(0))
	}

	if err := s.eng.Verify(item.File, fs.Arg(1)); err != nil {
		if errors.Is(err, common.ErrNoChecksum) {
			return fmt.Errorf("%s has no recorded checksum to verify against", fs.Arg(0))
		}
		return err
	}
	fmt.Fprintf(a.out, "OK: %s matches %s\n", fs.Arg(1), fs.Arg(0))
	return nil
}
