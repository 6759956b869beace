package upload

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/large-farva/passrelay/internal/config"
)

// Rclone copies files to a remote through the rclone binary.
type Rclone struct {
	Path      string
	Remote    string
	Folder    string
	ExtraArgs []string
	Timeout   time.Duration
}

// NewRclone builds a transfer from the [upload] section.
func NewRclone(cfg config.UploadConfig) *Rclone {
	return &Rclone{
		Path:      cfg.RclonePath,
		Remote:    cfg.Remote,
		Folder:    cfg.Folder,
		ExtraArgs: cfg.ExtraArgs,
		Timeout:   time.Duration(cfg.TimeoutMinutes) * time.Minute,
	}
}

// Destination is the remote path files are copied into.
func (r *Rclone) Destination() string {
	return r.Remote + r.Folder
}

// Verify checks that the binary exists, the remote answers, and the
// destination folder exists.
func (r *Rclone) Verify(ctx context.Context) error {
	if _, err := exec.LookPath(r.Path); err != nil {
		return fmt.Errorf("rclone not found: %w", err)
	}
	if err := r.run(ctx, "lsd", r.Remote); err != nil {
		return fmt.Errorf("remote %s: %w", r.Remote, err)
	}
	if err := r.run(ctx, "mkdir", r.Destination()); err != nil {
		return fmt.Errorf("folder %s: %w", r.Destination(), err)
	}
	return nil
}

// Copy uploads one file into the destination folder.
func (r *Rclone) Copy(ctx context.Context, path string) error {
	args := append([]string{"copy", path, r.Destination()}, r.ExtraArgs...)
	return r.run(ctx, args...)
}

func (r *Rclone) run(ctx context.Context, args ...string) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, r.Path, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
