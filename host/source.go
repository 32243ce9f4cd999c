package host

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/hpcloud/tail"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const maxLineSize = 1024 * 1024

// Replay processes every event of reader in order. Malformed lines are logged
// and skipped; processing errors are logged and returned combined.
func (r *Runner) Replay(ctx context.Context, reader io.Reader) error {
	var (
		errs    error
		scanner = bufio.NewScanner(reader)
	)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := r.handleLine(scanner.Bytes()); err != nil {
			errs = multierr.Append(errs, errors.WithMessagef(err, "line %d", line))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, errors.WithMessage(err, "failed to read events"))
	}
	return errs
}

// Follow tails the event log at path until ctx is done, reopening it when
// rotated. Poll watches the file by polling instead of inotify.
func (r *Runner) Follow(ctx context.Context, path string, poll bool) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:      true,
		ReOpen:      true,
		Poll:        poll,
		MaxLineSize: maxLineSize,
		Logger:      tail.DiscardingLogger,
	})
	if err != nil {
		return errors.WithMessagef(err, "can't follow %s", path)
	}
	if !poll {
		defer t.Cleanup()
	}
	r.logger.Infow("follow event log", "path", path, "poll", poll)
	for {
		select {
		case <-ctx.Done():
			t.Kill(nil)
			//the tail goroutine may be blocked on a line send
			for range t.Lines {
			}
			return errors.WithMessage(t.Wait(), "failed to stop tail")
		case line, ok := <-t.Lines:
			if !ok {
				return errors.WithMessagef(t.Err(), "tail of %s stopped", path)
			}
			if line.Err != nil {
				r.logger.Warnw("failed to read event", "path", path, "err", line.Err)
				continue
			}
			if err := r.handleLine([]byte(line.Text)); err != nil {
				r.logger.Warnw("failed to process event", "path", path, "err", err)
			}
		}
	}
}

func (r *Runner) handleLine(line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return nil
	}
	var event Event
	if err := json.Unmarshal(line, &event); err != nil {
		r.scope.Counter("malformed_events").Inc(1)
		r.logger.Warnw("skip malformed event", "line", string(line), "err", err)
		return nil
	}
	return r.Process(event)
}
