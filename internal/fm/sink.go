package fm

import "io"

// Sink is the byte-consuming endpoint a Writer streams encoded records
// into. Chunks arrive in output order and must not be reordered. Close is
// called exactly once by the owning Writer and is terminal: a failed Close
// does not re-open the sink.
//
// The sink is the only place real I/O happens. The Writer never retries a
// failed Write; retry policy, if any, belongs to whoever owns the sink.
type Sink interface {
	Write(p []byte) error
	Close() error
}

// CallbackSink adapts a chunk callback to the Sink interface. This is the
// shape used when the consumer lives across a foreign-function or process
// boundary: the callback receives each encoded chunk and returns nil to
// accept it.
type CallbackSink struct {
	OnWrite func(p []byte) error
	OnClose func() error
}

func (s *CallbackSink) Write(p []byte) error {
	return s.OnWrite(p)
}

func (s *CallbackSink) Close() error {
	if s.OnClose == nil {
		return nil
	}
	return s.OnClose()
}

// WriterSink adapts an io.Writer to the Sink interface. If the writer also
// implements io.Closer, Close forwards to it; otherwise Close is a no-op.
type WriterSink struct {
	W io.Writer
}

func (s *WriterSink) Write(p []byte) error {
	_, err := s.W.Write(p)
	return err
}

func (s *WriterSink) Close() error {
	if c, ok := s.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// sinkWriter exposes a Sink as an io.Writer so the compressing encoder can
// layer on top of it.
type sinkWriter struct {
	sink Sink
}

func (w sinkWriter) Write(p []byte) (int, error) {
	if err := w.sink.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
