// Package rotlog backs the standard log package's output with a rotating
// file writer for the duration of one DAQ run, so an unattended multi-hour
// run does not grow an unbounded run.log.
package rotlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/agilira/lethe"
)

// Run wraps a lethe.Logger rooted at outputDir/run.log and adds it to the
// standard logger's output, alongside the previous writer. Close restores
// the previous output and closes the rotating file.
type Run struct {
	logger   *lethe.Logger
	previous io.Writer
}

// Open creates (or truncates into) outputDir/run.log and copies the
// standard log package's output to it as well as to the previous writer,
// with up to 5 rotated backups retained and a
// stderr fallback if the rotating sink itself errors.
func Open(outputDir string) (*Run, error) {
	path := filepath.Join(outputDir, "run.log")
	logger := &lethe.Logger{
		Filename:   path,
		MaxSizeStr: "50MB",
		MaxBackups: 5,
		Compress:   true,
		ErrorCallback: func(operation string, err error) {
			fmt.Fprintf(os.Stderr, "rotlog: %s: %v\n", operation, err)
		},
	}

	previous := log.Writer()
	log.SetOutput(io.MultiWriter(previous, logger))

	return &Run{logger: logger, previous: previous}, nil
}

// Close flushes and closes the rotating file and restores the previous log
// output.
func (r *Run) Close() error {
	log.SetOutput(r.previous)
	if r.logger == nil {
		return nil
	}
	return r.logger.Close()
}
