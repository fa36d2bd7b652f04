// local filesystem Fetcher: recursive directory copy.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"github.com/recmeta/recmeta/pkg/transfer"
)

const noBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{with string . "suffix"}} {{.}}{{end}}`

type Fetcher struct {
	progressOutput io.Writer
}

var _ transfer.Fetcher = &Fetcher{}

type Option func(*Fetcher) *Fetcher

func WithProgressOutput(w io.Writer) Option {
	return func(f *Fetcher) *Fetcher {
		f.progressOutput = w
		return f
	}
}

func New(option ...Option) *Fetcher {
	f := &Fetcher{progressOutput: os.Stderr}
	for _, opt := range option {
		f = opt(f)
	}
	return f
}

// strip "file://" when present. plain filepaths pass through.
func asPath(src string) string {
	return strings.TrimPrefix(src, "file://")
}

func (f *Fetcher) Exists(ctx context.Context, src string) (bool, error) {
	if _, err := os.Stat(asPath(src)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *Fetcher) Fetch(ctx context.Context, src string, dest string) error {
	root := asPath(src)

	info, err := os.Stat(root)
	if err != nil {
		return err
	}

	bar := noBar.New(-1)
	bar.SetWriter(f.progressOutput)
	bar.Set("prefix", fmt.Sprintf("copying %s:", ellipsis(root, 40)))
	bar.Start()
	defer bar.Finish()

	if !info.IsDir() {
		if err := os.MkdirAll(dest, os.FileMode(0777)); err != nil {
			return err
		}
		return copyFile(ctx, bar, root, filepath.Join(dest, filepath.Base(root)), info.Mode())
	}

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		fdest := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(fdest, os.FileMode(0777))
		case d.Type()&fs.ModeSymlink != 0:
			linkname, err := os.Readlink(p)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(fdest), os.FileMode(0777)); err != nil {
				return err
			}
			return os.Symlink(linkname, fdest)
		default:
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(fdest), os.FileMode(0777)); err != nil {
				return err
			}
			return copyFile(ctx, bar, p, fdest, info.Mode())
		}
	})
}

func copyFile(ctx context.Context, bar *pb.ProgressBar, src string, dest string, mode fs.FileMode) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := os.OpenFile(dest, os.O_CREATE|os.O_RDWR|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer w.Close()

	pw := bar.NewProxyWriter(w) // do not close. won't Finish the bar here.
	if _, err := io.Copy(pw, r); err != nil {
		return err
	}
	return nil
}

func ellipsis(s string, length int) string {
	if len(s) <= length {
		return s
	}

	l := len(s)
	return "[...]" + s[l-length+5:]
}
