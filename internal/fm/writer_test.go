package fm

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// countingSink records every chunk and counts Close calls.
type countingSink struct {
	buf        bytes.Buffer
	writeCalls int
	closeCalls int
}

func (s *countingSink) Write(p []byte) error {
	s.writeCalls++
	s.buf.Write(p)
	return nil
}

func (s *countingSink) Close() error {
	s.closeCalls++
	return nil
}

// failingSink fails on the nth Write call (1-based). failAt == 0 never
// fails writes.
type failingSink struct {
	failAt     int
	writeCalls int
	closeCalls int
	closeErr   error
}

func (s *failingSink) Write(p []byte) error {
	s.writeCalls++
	if s.failAt > 0 && s.writeCalls >= s.failAt {
		return fmt.Errorf("injected write failure at call %d", s.writeCalls)
	}
	return nil
}

func (s *failingSink) Close() error {
	s.closeCalls++
	return s.closeErr
}

func validScan() *Scan {
	return &Scan{
		Name:            "s1",
		AngleOfView:     1.0,
		ViewElevation:   0.8,
		AngularVelocity: 0.5,
		InitialPosition: Point3{X: 1},
		ImageWidth:      4,
		ImageHeight:     4,
		DepthWidth:      2,
		DepthHeight:     2,
	}
}

func validFrame() *ScanFrame {
	return &ScanFrame{
		Scan:   "s1",
		Time:   0,
		Depths: []float32{1.0, 2.0, 3.0, 4.0},
		DepthConfidences: []DepthConfidence{
			ConfidenceHigh, ConfidenceHigh, ConfidenceMedium, ConfidenceLow,
		},
	}
}

func mustWriter(t *testing.T, sink Sink, opts ...WriterOption) Writer {
	t.Helper()
	w, err := NewWriter(sink, opts...)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestWriterRoundTripOrder(t *testing.T) {
	sink := &countingSink{}
	w := mustWriter(t, sink, WithCompression(CompressionNone))

	if err := w.WriteScan(validScan()); err != nil {
		t.Fatalf("WriteScan: %v", err)
	}
	if err := w.WriteScanFrame(validFrame()); err != nil {
		t.Fatalf("WriteScanFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if sink.closeCalls != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closeCalls)
	}
	// Header, then size+body per record.
	if sink.writeCalls != 5 {
		t.Errorf("sink saw %d writes, want 5", sink.writeCalls)
	}

	scans, frames, err := ReadAll(bytes.NewReader(sink.buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(scans) != 1 || len(frames) != 1 {
		t.Fatalf("got %d scans, %d frames, want 1 and 1", len(scans), len(frames))
	}
	if frames[0].Scan != "s1" {
		t.Errorf("frame scan = %q, want s1", frames[0].Scan)
	}
}

func TestWriteScanValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scan)
	}{
		{"empty name", func(s *Scan) { s.Name = "" }},
		{"zero image width", func(s *Scan) { s.ImageWidth = 0 }},
		{"negative image height", func(s *Scan) { s.ImageHeight = -1 }},
		{"zero depth width", func(s *Scan) { s.DepthWidth = 0 }},
		{"zero depth height", func(s *Scan) { s.DepthHeight = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mustWriter(t, &countingSink{})
			s := validScan()
			tt.mutate(s)
			err := w.WriteScan(s)
			if KindOf(err) != KindMalformedData {
				t.Errorf("got %v, want KindMalformedData", err)
			}
		})
	}
}

func TestWriteScanFrameValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*ScanFrame)
		wantKind ErrorKind
	}{
		{
			"unknown scan reference",
			func(f *ScanFrame) { f.Scan = "nope" },
			KindMalformedData,
		},
		{
			"depth length mismatch",
			func(f *ScanFrame) { f.Depths = f.Depths[:3] },
			KindMalformedData,
		},
		{
			"confidence length mismatch",
			func(f *ScanFrame) { f.DepthConfidences = f.DepthConfidences[:2] },
			KindMalformedData,
		},
		{
			"confidence out of range",
			func(f *ScanFrame) { f.DepthConfidences[0] = 9 },
			KindMalformedData,
		},
		{
			"image data without codec tag",
			func(f *ScanFrame) { f.Image = Image{Type: ImageNone, Data: []byte{1}} },
			KindMalformedData,
		},
		{
			"tagged image without data",
			func(f *ScanFrame) { f.Image = Image{Type: ImagePNG} },
			KindMalformedData,
		},
		{
			"unknown image codec",
			func(f *ScanFrame) { f.Image = Image{Type: 7, Data: []byte{1}} },
			KindUnsupportedFeature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mustWriter(t, &countingSink{})
			if err := w.WriteScan(validScan()); err != nil {
				t.Fatalf("WriteScan: %v", err)
			}
			f := validFrame()
			tt.mutate(f)
			if err := w.WriteScanFrame(f); KindOf(err) != tt.wantKind {
				t.Errorf("got %v, want kind %v", err, tt.wantKind)
			}
			// A validation failure must leave the writer usable.
			if err := w.WriteScanFrame(validFrame()); err != nil {
				t.Errorf("valid frame after rejection failed: %v", err)
			}
		})
	}
}

func TestFrameBeforeScan(t *testing.T) {
	w := mustWriter(t, &countingSink{})
	err := w.WriteScanFrame(validFrame())
	if KindOf(err) != KindMalformedData {
		t.Errorf("got %v, want KindMalformedData", err)
	}
}

func TestFrameTimeMustNotRegress(t *testing.T) {
	w := mustWriter(t, &countingSink{})
	if err := w.WriteScan(validScan()); err != nil {
		t.Fatalf("WriteScan: %v", err)
	}
	f := validFrame()
	f.Time = 100
	if err := w.WriteScanFrame(f); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	f2 := validFrame()
	f2.Time = 99
	if err := w.WriteScanFrame(f2); KindOf(err) != KindMalformedData {
		t.Errorf("got %v, want KindMalformedData", err)
	}
	// Equal times are allowed: non-decreasing, not strictly increasing.
	f3 := validFrame()
	f3.Time = 100
	if err := w.WriteScanFrame(f3); err != nil {
		t.Errorf("equal-time frame rejected: %v", err)
	}
}

func TestSinkFailureInjection(t *testing.T) {
	// Fail on the second sink write: the header goes through, the first
	// record's size prefix does not.
	sink := &failingSink{failAt: 2}
	w := mustWriter(t, sink, WithCompression(CompressionNone))

	err := w.WriteScan(validScan())
	if KindOf(err) != KindIoError {
		t.Fatalf("got %v, want KindIoError", err)
	}
	writesAfterFailure := sink.writeCalls

	// The stream is poisoned: no further record bytes may be attempted.
	if err := w.WriteScanFrame(validFrame()); KindOf(err) != KindIoError {
		t.Errorf("got %v, want KindIoError", err)
	}
	if sink.writeCalls != writesAfterFailure {
		t.Errorf("writer attempted %d more sink writes after failure", sink.writeCalls-writesAfterFailure)
	}

	// Close still releases the sink, exactly once.
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if sink.closeCalls != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closeCalls)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	sink := &countingSink{}
	w := mustWriter(t, sink)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := w.WriteScan(validScan()); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("WriteScan after close: %v, want ErrWriterClosed", err)
	}
	if err := w.WriteScanFrame(validFrame()); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("WriteScanFrame after close: %v, want ErrWriterClosed", err)
	}
	if err := w.Close(); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("second Close: %v, want ErrWriterClosed", err)
	}
	if sink.closeCalls != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closeCalls)
	}
}

func TestCloseReportsSinkError(t *testing.T) {
	sink := &failingSink{closeErr: errors.New("disk gone")}
	w := mustWriter(t, sink)
	err := w.Close()
	if KindOf(err) != KindIoError {
		t.Errorf("got %v, want KindIoError", err)
	}
	// Closing is terminal regardless of outcome.
	if err := w.Close(); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("second Close: %v, want ErrWriterClosed", err)
	}
	if sink.closeCalls != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closeCalls)
	}
}

func TestVersion1Restrictions(t *testing.T) {
	t.Run("confidences unsupported", func(t *testing.T) {
		w := mustWriter(t, &countingSink{}, WithVersion(Version1))
		if err := w.WriteScan(validScan()); err != nil {
			t.Fatalf("WriteScan: %v", err)
		}
		err := w.WriteScanFrame(validFrame())
		if KindOf(err) != KindUnsupportedFeature {
			t.Errorf("got %v, want KindUnsupportedFeature", err)
		}
	})

	t.Run("jpeg unsupported", func(t *testing.T) {
		w := mustWriter(t, &countingSink{}, WithVersion(Version1))
		if err := w.WriteScan(validScan()); err != nil {
			t.Fatalf("WriteScan: %v", err)
		}
		f := validFrame()
		f.DepthConfidences = nil
		f.Image = Image{Type: ImageJPEG, Data: []byte{0xff, 0xd8}}
		err := w.WriteScanFrame(f)
		if KindOf(err) != KindUnsupportedFeature {
			t.Errorf("got %v, want KindUnsupportedFeature", err)
		}
	})

	t.Run("new scan rebinds current", func(t *testing.T) {
		sink := &countingSink{}
		w := mustWriter(t, sink, WithVersion(Version1), WithCompression(CompressionNone))
		s1 := validScan()
		s2 := validScan()
		s2.Name = "s2"
		if err := w.WriteScan(s1); err != nil {
			t.Fatalf("WriteScan s1: %v", err)
		}
		if err := w.WriteScan(s2); err != nil {
			t.Fatalf("WriteScan s2: %v", err)
		}
		// A frame naming the stale scan is a malformed reference.
		f := validFrame()
		f.DepthConfidences = nil
		f.Scan = "s1"
		if err := w.WriteScanFrame(f); KindOf(err) != KindMalformedData {
			t.Errorf("stale scan reference: got %v, want KindMalformedData", err)
		}
		// Unnamed frames attach to the current scan.
		f.Scan = ""
		if err := w.WriteScanFrame(f); err != nil {
			t.Errorf("frame for current scan rejected: %v", err)
		}
	})
}

func TestNewWriterOptionValidation(t *testing.T) {
	if _, err := NewWriter(&countingSink{}, WithVersion(9)); KindOf(err) != KindUnsupportedFeature {
		t.Errorf("unknown version: got %v, want KindUnsupportedFeature", err)
	}
	if _, err := NewWriter(&countingSink{}, WithGzipLevel(12)); KindOf(err) != KindMalformedData {
		t.Errorf("bad gzip level: got %v, want KindMalformedData", err)
	}
	if _, err := NewWriter(&countingSink{}, WithCompression(5)); KindOf(err) != KindMalformedData {
		t.Errorf("bad compression: got %v, want KindMalformedData", err)
	}
}

func TestNoIOBeforeFirstWrite(t *testing.T) {
	sink := &countingSink{}
	if _, err := NewWriter(sink); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if sink.writeCalls != 0 {
		t.Errorf("NewWriter performed %d sink writes, want 0", sink.writeCalls)
	}
}
