// Package stage defines the unit of a conduit pipeline.
//
// A Stage is a stateful transform fed one chunk at a time. Each call returns
// a Result that is either NeedMoreInput or Produced(bytes). The two are not
// interchangeable:
//   - NeedMoreInput: the stage absorbed the chunk into its own buffer and has
//     nothing for downstream; the pipeline stops this round at this stage.
//   - Produced(b): the stage consumed the chunk and emits b, which may be
//     empty; the pipeline forwards b to the next stage.
//
// Errors are the third outcome and travel on the error return.
//
// Lifecycle: Process any number of times, then Flush exactly once. Flush
// signals end of input and must return everything the stage still buffers.
// A stage rejects Process and Flush after Flush with ErrStageFinished.
//
// Chunks passed to Process are only valid for the duration of the call.
// Stages copy what they retain; output may alias the input chunk.
package stage

import (
	"errors"
	"fmt"
)

// ErrStageFinished is returned when a stage is used after Flush.
var ErrStageFinished = errors.New("stage already received end of input")

// Kind discriminates Result values.
type Kind uint8

// Result kinds. The zero Kind is invalid and only appears alongside an error.
const (
	// KindNeedMoreInput means the stage buffered the chunk and emitted nothing.
	KindNeedMoreInput Kind = iota + 1
	// KindProduced means the stage consumed the chunk and emitted Bytes.
	KindProduced
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNeedMoreInput:
		return "need_more_input"
	case KindProduced:
		return "produced"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Result is the outcome of feeding a chunk to a stage.
type Result struct {
	kind Kind
	data []byte
}

// NeedMore returns a NeedMoreInput result.
func NeedMore() Result {
	return Result{kind: KindNeedMoreInput}
}

// Output returns a Produced result carrying data. data may be empty.
func Output(data []byte) Result {
	return Result{kind: KindProduced, data: data}
}

// Kind returns the result kind.
func (r Result) Kind() Kind { return r.kind }

// NeedsMoreInput reports whether the stage asked for more input.
func (r Result) NeedsMoreInput() bool { return r.kind == KindNeedMoreInput }

// Bytes returns the produced bytes. Nil for NeedMoreInput.
func (r Result) Bytes() []byte { return r.data }

// String formats the result for logs and test failures.
func (r Result) String() string {
	if r.kind == KindProduced {
		return fmt.Sprintf("produced(%d bytes)", len(r.data))
	}
	return r.kind.String()
}

// Stage is a stateful chunk transform. See the package comment for the contract.
type Stage interface {
	// Process feeds one chunk.
	Process(chunk []byte) (Result, error)
	// Flush signals end of input and returns whatever remains buffered.
	Flush() (Result, error)
}

// Namer is implemented by stages that report a display name.
type Namer interface {
	Name() string
}

// NameOf returns the stage's name, or its Go type when it has none.
func NameOf(s Stage) string {
	if n, ok := s.(Namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// named attaches a display name to a stage.
type named struct {
	Stage
	name string
}

func (n named) Name() string { return n.name }

// WithName returns s reporting name from NameOf. Renaming a named stage
// replaces its name rather than wrapping it again.
func WithName(name string, s Stage) Stage {
	return named{Stage: unwrap(s), name: name}
}

// unwrap returns the stage underneath a WithName wrapper.
func unwrap(s Stage) Stage {
	if n, ok := s.(named); ok {
		return n.Stage
	}
	return s
}
