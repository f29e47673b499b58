package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/and161185/reflekt/internal/autosave"
	"github.com/and161185/reflekt/internal/model"
)

const titleCmd = ":title "

// maxLineSize caps a single pasted line.
const maxLineSize = 4 << 20

// runWrite edits e from line input. Each line is appended as a paragraph,
// ":title TEXT" renames the entry, and EOF flushes pending edits.
func runWrite(ctx context.Context, saver autosave.Saver, e model.Entry, in io.Reader, out io.Writer, opts autosave.Options) (int64, error) {
	userCreated := opts.OnCreated
	opts.OnCreated = func(id int64, location string) {
		_, _ = fmt.Fprintln(out, color.HiBlackString("created %s", location))
		if userCreated != nil {
			userCreated(id, location)
		}
	}
	ctrl := autosave.New(ctx, saver, e, opts)
	defer ctrl.Close()

	// the editor first echoes what it loaded
	ctrl.Change(e.Title, e.Content)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if t, ok := strings.CutPrefix(line, titleCmd); ok {
			_, content := ctrl.Snapshot()
			ctrl.Change(strings.TrimSpace(t), content)
			continue
		}
		ctrl.QuickAdd(line)
	}
	// input errors still keep what was typed so far
	scanErr := sc.Err()
	err := ctrl.Flush(ctx)
	_, _ = fmt.Fprintln(out, statusText(ctrl.Status()))
	if scanErr != nil {
		return ctrl.ID(), errors.Join(fmt.Errorf("read input: %w", scanErr), err)
	}
	return ctrl.ID(), err
}
