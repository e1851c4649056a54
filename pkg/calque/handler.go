// Package calque is the streaming kernel the answer pipeline is assembled on.
//
// A Handler reads its input from Request.Data and writes its output to
// Response.Data. Handlers are chained by Flow, each running in its own
// goroutine and connected to the next one by an io.Pipe.
package calque

import (
	"context"
	"fmt"
	"io"
)

// Handler processes one stage of a flow.
type Handler interface {
	ServeFlow(*Request, *Response) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(req *Request, res *Response) error

// ServeFlow calls f(req, res).
func (f HandlerFunc) ServeFlow(req *Request, res *Response) error {
	return f(req, res)
}

// Request carries the context and the input stream of a handler.
type Request struct {
	Context context.Context
	Data    io.Reader
}

// NewRequest creates a Request.
func NewRequest(ctx context.Context, data io.Reader) *Request {
	return &Request{Context: ctx, Data: data}
}

// WithContext returns a shallow copy of r using ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	return &Request{Context: ctx, Data: r.Data}
}

// Response carries the output stream of a handler.
type Response struct {
	Data io.Writer
}

// NewResponse creates a Response.
func NewResponse(data io.Writer) *Response {
	return &Response{Data: data}
}

// Read drains the request stream into outPtr.
func Read[T string | []byte](req *Request, outPtr *T) error {
	data, err := io.ReadAll(req.Data)
	if err != nil {
		return err
	}

	switch ptr := any(outPtr).(type) {
	case *string:
		*ptr = string(data)
	case *[]byte:
		*ptr = data
	default:
		return fmt.Errorf("unsupported type %T", outPtr)
	}
	return nil
}

// Write writes data to the response stream.
func Write[T string | []byte](res *Response, data T) error {
	var err error
	switch v := any(data).(type) {
	case string:
		_, err = io.WriteString(res.Data, v)
	case []byte:
		_, err = res.Data.Write(v)
	default:
		err = fmt.Errorf("unsupported type %T", data)
	}
	return err
}
