package calque

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
)

const (
	// ConcurrencyUnlimited disables the handler goroutine limit.
	ConcurrencyUnlimited = 0
	// ConcurrencyAuto sizes the limit from GOMAXPROCS * CPUMultiplier.
	ConcurrencyAuto = -1
	// DefaultCPUMultiplier suits flows dominated by network calls.
	DefaultCPUMultiplier = 50
)

// FlowConfig bounds how many handler goroutines may run at once across every
// Run of the same Flow.
type FlowConfig struct {
	MaxConcurrent int
	CPUMultiplier int
}

// Flow chains handlers into a streaming pipeline.
type Flow struct {
	handlers []Handler
	sem      chan struct{}
}

// NewFlow creates an empty flow. Without a config the flow is unbounded.
func NewFlow(configs ...FlowConfig) *Flow {
	var cfg FlowConfig
	if len(configs) > 0 {
		cfg = configs[0]
	}

	f := &Flow{}
	switch {
	case cfg.MaxConcurrent == ConcurrencyAuto:
		mult := cfg.CPUMultiplier
		if mult <= 0 {
			mult = DefaultCPUMultiplier
		}
		f.sem = make(chan struct{}, runtime.GOMAXPROCS(0)*mult)
	case cfg.MaxConcurrent > 0:
		f.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return f
}

// Use appends a handler.
func (f *Flow) Use(h Handler) *Flow {
	f.handlers = append(f.handlers, h)
	return f
}

// UseFunc appends a function handler.
func (f *Flow) UseFunc(fn HandlerFunc) *Flow {
	return f.Use(fn)
}

// Len reports the number of handlers.
func (f *Flow) Len() int {
	return len(f.handlers)
}

// ServeFlow lets a flow be nested inside another flow.
func (f *Flow) ServeFlow(req *Request, res *Response) error {
	return f.stream(req.Context, req.Data, res.Data)
}

// Run feeds input through every handler and decodes the final stream into
// output. Supported inputs are string, []byte and io.Reader; supported outputs
// are *string, *[]byte, io.Writer and nil (discard).
func (f *Flow) Run(ctx context.Context, input any, output any) error {
	in, err := toReader(ctx, input)
	if err != nil {
		return err
	}

	if len(f.handlers) == 0 {
		return fromReader(ctx, in, output)
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- fromReader(ctx, pr, output)
	}()

	runErr := f.stream(ctx, in, pw)
	_ = pw.CloseWithError(runErr)
	outErr := <-done
	if runErr != nil {
		return runErr
	}
	return outErr
}

func (f *Flow) stream(ctx context.Context, input io.Reader, output io.Writer) error {
	if len(f.handlers) == 0 {
		_, err := io.Copy(output, input)
		return err
	}

	n := len(f.handlers)
	readers := make([]*io.PipeReader, n)
	writers := make([]*io.PipeWriter, n)
	for i := range n - 1 {
		readers[i], writers[i] = io.Pipe()
	}

	errCh := make(chan error, n)
	var wg sync.WaitGroup

	for i, h := range f.handlers {
		var in io.Reader = input
		if i > 0 {
			in = readers[i-1]
		}
		var out io.Writer = output
		if i < n-1 {
			out = writers[i]
		}

		wg.Add(1)
		go func(idx int, h Handler, in io.Reader, out io.Writer) {
			defer wg.Done()

			var err error
			defer func() {
				if idx < n-1 {
					_ = writers[idx].CloseWithError(err)
				}
				if idx > 0 {
					// unblock the upstream writer if we stopped reading early
					_ = readers[idx-1].CloseWithError(err)
				}
			}()

			if f.sem != nil {
				select {
				case f.sem <- struct{}{}:
					defer func() { <-f.sem }()
				case <-ctx.Done():
					err = ctx.Err()
					errCh <- err
					return
				}
			}

			err = h.ServeFlow(&Request{Context: ctx, Data: in}, &Response{Data: out})
			if err != nil {
				errCh <- err
			}
		}(i, h, in, out)
	}

	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func toReader(ctx context.Context, input any) (io.Reader, error) {
	switch v := input.(type) {
	case nil:
		return strings.NewReader(""), nil
	case string:
		return strings.NewReader(v), nil
	case []byte:
		return bytes.NewReader(v), nil
	case io.Reader:
		return v, nil
	default:
		return nil, NewErr(ctx, fmt.Sprintf("unsupported input type: %T", input))
	}
}

func fromReader(ctx context.Context, r io.Reader, output any) error {
	switch out := output.(type) {
	case nil:
		_, err := io.Copy(io.Discard, r)
		return err
	case *string:
		var sb strings.Builder
		_, err := io.Copy(&sb, r)
		*out = sb.String()
		return err
	case *[]byte:
		data, err := io.ReadAll(r)
		*out = data
		return err
	case io.Writer:
		_, err := io.Copy(out, r)
		return err
	default:
		_, _ = io.Copy(io.Discard, r)
		return NewErr(ctx, fmt.Sprintf("unsupported output type: %T", output))
	}
}
