package converter

import (
	"runtime"
	"sync"

	"github.com/shaderconv/converter/internal/shader"
)

// Job is one source for ConvertAll.
type Job struct {
	// Name names the emitted files, usually the input path.
	Name   string
	Source string
	Format shader.Format
}

// Outcome is the result of one Job. Exactly one of Result and Err is set.
type Outcome struct {
	Job    Job
	Result *Result
	Err    error
}

// ConvertAll converts jobs concurrently, at most MaxParallel at a time.
// Outcomes are in job order.
func (c *Converter) ConvertAll(jobs []Job) []Outcome {
	parallel := c.opts.MaxParallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	if parallel > 32 {
		parallel = 32
	}

	out := make([]Outcome, len(jobs))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := c.ConvertNamed(j.Name, j.Source, j.Format)
			out[i] = Outcome{Job: j, Result: res, Err: err}
		}(i, j)
	}
	wg.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	c.log.Info("batch converted", "jobs", len(jobs), "failed", failed, "parallel", parallel)
	return out
}
