// Package pump streams process output into a harness and the run log.
package pump

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sourcegraph/conc/panics"

	runerrors "github.com/antmicro/warp-pipe/internal/errors"
	"github.com/antmicro/warp-pipe/internal/harness"
)

// Result is what a pump collected from one stream.
type Result struct {
	// Transcript holds every byte read, in order.
	Transcript []byte
	// Lines is the number of lines read, counting an unterminated last line.
	Lines int
	// Fault is set when the harness panicked. Lines after the panic were
	// recorded but not fed.
	Fault error
	// ReadErr is the error that ended the stream, nil on EOF.
	ReadErr error
}

// Pump feeds one output stream to a harness.
type Pump struct {
	// Label names the run in errors and log entries.
	Label   string
	Harness harness.Harness
	// LogPath receives the transcript when the stream ends. Empty skips it.
	LogPath string
	Logger  *slog.Logger
}

// Run reads r until EOF or a read error. The returned error reports a
// failure to write the log; harness panics and read errors are part of the
// Result.
func (p *Pump) Run(r io.Reader) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		res     Result
		buf     bytes.Buffer
		catcher panics.Catcher
		br      = bufio.NewReader(r)
	)

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			buf.Write(line)
			res.Lines++

			if res.Fault == nil && p.Harness != nil {
				text := string(bytes.TrimSuffix(line, []byte("\n")))
				catcher.Try(func() { p.Harness.FeedLine(text) })
				if rec := catcher.Recovered(); rec != nil {
					res.Fault = runerrors.HarnessFault(p.Label, rec.AsError())
					logger.Error("harness panicked, draining remaining output",
						"run", p.Label, "harness", p.Harness.Name(), "line", res.Lines, "panic", rec.Value)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				res.ReadErr = err
			}
			break
		}
	}

	res.Transcript = buf.Bytes()
	if p.LogPath == "" {
		return res, nil
	}
	if err := WriteFileAtomic(p.LogPath, res.Transcript); err != nil {
		return res, fmt.Errorf("write log %s: %w", p.LogPath, err)
	}
	return res, nil
}

// Run reads r line by line into h and writes the transcript to logPath.
func Run(r io.Reader, h harness.Harness, logPath string) (string, error) {
	p := &Pump{Harness: h, LogPath: logPath}
	res, err := p.Run(r)
	if err == nil {
		err = res.Fault
	}
	return string(res.Transcript), err
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial log.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
