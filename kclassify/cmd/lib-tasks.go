// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// TaskOptions controls running file-level tasks in parallel.
type TaskOptions struct {
	NumCPUs int
	Verbose bool   // show the progress bar
	Name    string // prefix of the progress bar
}

// runFileTasks calls fn for every file with at most opt.NumCPUs tasks at
// the same time. A failed task does not stop the others. Errors are logged
// along with the file names, and a summary error is returned if any
// task failed.
func runFileTasks(files []string, opt *TaskOptions, fn func(i int, file string) error) error {
	threads := opt.NumCPUs
	if threads < 1 {
		threads = 1
	}

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if opt.Verbose {
		name := opt.Name
		if name == "" {
			name = "processed files: "
		}
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)

		chDuration = make(chan time.Duration, threads)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.EwmaIncrBy(1, t)
			}
			doneDuration <- 1
		}()
	}

	failed := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(threads)
	for i, file := range files {
		g.Go(func() error {
			startTime := time.Now()
			failed[i] = fn(i, file)
			if opt.Verbose {
				chDuration <- time.Since(startTime)
			}
			return nil // the others keep running
		})
	}
	g.Wait()

	if opt.Verbose {
		close(chDuration)
		<-doneDuration
		pbs.Wait()
	}

	var nFailed int
	for i, err := range failed {
		if err != nil {
			log.Errorf("%s: %s", files[i], err)
			nFailed++
		}
	}
	if nFailed > 0 {
		return fmt.Errorf("%d of %d task(s) failed", nFailed, len(files))
	}
	return nil
}
