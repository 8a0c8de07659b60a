package stage

// Handler is a per-chunk function wrapped by chunking and framing stages.
// The input slice is only valid during the call.
type Handler interface {
	Handle(chunk []byte) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(chunk []byte) ([]byte, error)

// Handle calls f(chunk).
func (f HandlerFunc) Handle(chunk []byte) ([]byte, error) {
	return f(chunk)
}

// Flusher is implemented by handlers that emit output at end of input.
type Flusher interface {
	FlushHandler() ([]byte, error)
}

// Pure adapts an infallible function to Handler.
func Pure(fn func([]byte) []byte) Handler {
	return HandlerFunc(func(chunk []byte) ([]byte, error) {
		return fn(chunk), nil
	})
}

// Identity returns a handler that passes chunks through unchanged.
func Identity() Handler {
	return HandlerFunc(func(chunk []byte) ([]byte, error) {
		return chunk, nil
	})
}

// flushHandler calls h's Flusher, if any.
func flushHandler(h Handler) ([]byte, error) {
	if f, ok := h.(Flusher); ok {
		return f.FlushHandler()
	}
	return nil, nil
}

// funcStage applies a handler to every chunk with no state of its own.
type funcStage struct {
	Lifecycle
	handler Handler
}

// Func returns a stateless stage that applies h to each chunk.
// Flush returns the output of h's Flusher, or nothing.
func Func(h Handler) Stage {
	return &funcStage{handler: h}
}

func (s *funcStage) Process(chunk []byte) (Result, error) {
	if err := s.Enter(); err != nil {
		return Result{}, err
	}
	out, err := s.handler.Handle(chunk)
	if err != nil {
		return Result{}, err
	}
	return Output(out), nil
}

func (s *funcStage) Flush() (Result, error) {
	if err := s.Finish(); err != nil {
		return Result{}, err
	}
	out, err := flushHandler(s.handler)
	if err != nil {
		return Result{}, err
	}
	return Output(out), nil
}
