package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/pixlfs"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// batchProgress shows queue progress as a bar on an interactive stderr and
// as plain lines otherwise.
type batchProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newBatchProgress(out io.Writer, total int, description string) *batchProgress {
	p := &batchProgress{out: out}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(out),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(out, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return p
}

// Update reflects one queue event.
func (p *batchProgress) Update(pr pixlfs.Progress) {
	if p.bar == nil {
		fmt.Fprintf(p.out, "[%d/%d] %s\n", pr.Completed, pr.Total, pr.Current)
		return
	}
	if pr.Total != p.bar.GetMax() {
		p.bar.ChangeMax(pr.Total)
	}
	p.bar.Describe(pr.Label)
	_ = p.bar.Set(pr.Completed - 1)
}

// Finish completes the bar.
func (p *batchProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// report prints a batch summary and turns failures into an error.
func report(out io.Writer, s pixlfs.Summary, err error) error {
	fmt.Fprintf(out, "%d succeeded, %d failed, %d skipped\n", s.Succeeded, s.Failed, s.Skipped)
	if err != nil {
		return err
	}
	if s.Cancelled {
		return fmt.Errorf("cancelled")
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d operation(s) failed", s.Failed)
	}
	return nil
}
