package fm

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Magic identifies an .fm container. Little-endian at offset 0.
const Magic uint32 = 0xD0932177

// Version selects one of the closed set of wire revisions. Every version
// implements the same Writer contract with its own field layout and
// validation rules.
type Version uint32

const (
	// Version1 is the minimal revision: angular-velocity camera model, a
	// single implicit "current" scan, raw PNG frame images, no depth
	// confidences.
	Version1 Version = 1
	// Version2 adds the pixel grid to the scan header, typed images,
	// per-frame scan references and depth confidences.
	Version2 Version = 2
	// Version3 carries the full camera model (angle of view, landscape
	// angle, elevation, angular velocity, initial position).
	Version3 Version = 3

	// LatestVersion is what NewWriter produces unless told otherwise.
	LatestVersion = Version3
)

func (v Version) valid() bool {
	return v >= Version1 && v <= Version3
}

// Compression is the container's stream codec tag.
type Compression int32

const (
	CompressionNone Compression = 0
	CompressionGzip Compression = 1
)

// DefaultGzipLevel matches the original tooling default.
const DefaultGzipLevel = 6

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// ParseCompression parses the CLI spelling of a compression mode.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	default:
		return CompressionNone, malformed("unknown compression %q (can be 'none' or 'gzip')", s)
	}
}

// ErrWriterClosed is returned by any Writer operation after Close. Reusing
// a closed Writer is a programming error, not a recoverable condition.
var ErrWriterClosed = errors.New("fm: writer is closed")

// Writer appends scan and frame records to a sink-backed container.
//
// A Writer is single-producer: it is not safe for concurrent calls without
// external serialization. Encoded bytes reach the sink in exact call
// order. Validation failures (KindMalformedData, KindUnsupportedFeature)
// abort only the offending call and leave the Writer usable; a sink
// failure poisons the stream and every later write returns KindIoError.
type Writer interface {
	WriteScan(s *Scan) error
	WriteScanFrame(f *ScanFrame) error
	Close() error
}

type writerConfig struct {
	version     Version
	compression Compression
	gzipLevel   int
}

// WriterOption configures NewWriter.
type WriterOption func(*writerConfig)

// WithVersion selects the container wire revision.
func WithVersion(v Version) WriterOption {
	return func(c *writerConfig) { c.version = v }
}

// WithCompression selects the record stream codec.
func WithCompression(comp Compression) WriterOption {
	return func(c *writerConfig) { c.compression = comp }
}

// WithGzipLevel sets the gzip level (0-9) used when compression is gzip.
func WithGzipLevel(level int) WriterOption {
	return func(c *writerConfig) { c.gzipLevel = level }
}

type writer struct {
	sink   Sink
	config writerConfig

	enc           io.Writer
	gz            *gzip.Writer
	headerWritten bool
	closed        bool
	corrupt       bool

	scans    map[string]*Scan
	lastTime map[string]int64
	current  string // Version1 implicit scan binding
}

// NewWriter binds a Writer to a not-yet-used sink. No I/O happens until
// the first record is written (or Close, which emits the header so that
// even an empty container is well formed). The Writer owns the sink from
// here on: Close closes it exactly once.
func NewWriter(sink Sink, opts ...WriterOption) (Writer, error) {
	config := writerConfig{
		version:     LatestVersion,
		compression: CompressionGzip,
		gzipLevel:   DefaultGzipLevel,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if !config.version.valid() {
		return nil, unsupported("unknown container version %d", config.version)
	}
	if config.compression != CompressionNone && config.compression != CompressionGzip {
		return nil, malformed("unknown compression %d", config.compression)
	}
	if config.gzipLevel < 0 || config.gzipLevel > 9 {
		return nil, malformed("unsupported gzip level %d (can be from 0 to 9)", config.gzipLevel)
	}
	return &writer{
		sink:     sink,
		config:   config,
		scans:    make(map[string]*Scan),
		lastTime: make(map[string]int64),
	}, nil
}

func (w *writer) ensureHeader() error {
	if w.headerWritten {
		return nil
	}
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(w.config.version))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(int32(w.config.compression)))
	if err := w.sink.Write(hdr[:]); err != nil {
		w.corrupt = true
		return ioErr(err, "failed to write container header")
	}
	w.headerWritten = true

	switch w.config.compression {
	case CompressionGzip:
		gz, err := gzip.NewWriterLevel(sinkWriter{w.sink}, w.config.gzipLevel)
		if err != nil {
			w.corrupt = true
			return ioErr(err, "failed to initialise gzip stream")
		}
		w.gz = gz
		w.enc = gz
	default:
		w.enc = sinkWriter{w.sink}
	}
	return nil
}

func (w *writer) emit(body []byte) error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(body)))
	if _, err := w.enc.Write(size[:]); err != nil {
		w.corrupt = true
		return ioErr(err, "failed to write record size")
	}
	if _, err := w.enc.Write(body); err != nil {
		w.corrupt = true
		return ioErr(err, "failed to write record")
	}
	return nil
}

func (w *writer) checkOpen() error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.corrupt {
		return &Error{Kind: KindIoError, Message: "stream corrupted by earlier sink failure; close and discard the writer"}
	}
	return nil
}

func (w *writer) WriteScan(s *Scan) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if s.Name == "" {
		return malformed("scan name must not be empty")
	}
	if s.ImageWidth <= 0 || s.ImageHeight <= 0 {
		return malformed("scan %q: image dimensions %dx%d must be positive", s.Name, s.ImageWidth, s.ImageHeight)
	}
	if s.DepthWidth <= 0 || s.DepthHeight <= 0 {
		return malformed("scan %q: depth dimensions %dx%d must be positive", s.Name, s.DepthWidth, s.DepthHeight)
	}

	var body []byte
	switch w.config.version {
	case Version1:
		body = encodeScanV1(s)
	case Version2:
		body = encodeScanV2(s)
	default:
		body = encodeScanV3(s)
	}

	if err := w.emit(encodeRecord(fieldRecordScan, body)); err != nil {
		return err
	}

	copied := *s
	w.scans[s.Name] = &copied
	w.current = s.Name
	return nil
}

func (w *writer) WriteScanFrame(f *ScanFrame) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	scan, err := w.resolveScan(f)
	if err != nil {
		return err
	}
	if len(f.Depths) != scan.DepthLen() {
		return malformed("frame for scan %q: %d depths, want %d (%dx%d)",
			scan.Name, len(f.Depths), scan.DepthLen(), scan.DepthWidth, scan.DepthHeight)
	}
	if err := w.validateConfidences(scan, f); err != nil {
		return err
	}
	if err := w.validateImage(f); err != nil {
		return err
	}
	if last, ok := w.lastTime[scan.Name]; ok && f.Time < last {
		return malformed("frame for scan %q: time %d precedes previous frame time %d", scan.Name, f.Time, last)
	}

	var body []byte
	if w.config.version == Version1 {
		body = encodeFrameV1(f)
	} else {
		body = encodeFrameV2(f)
	}

	if err := w.emit(encodeRecord(fieldRecordFrame, body)); err != nil {
		return err
	}
	w.lastTime[scan.Name] = f.Time
	return nil
}

// resolveScan maps the frame to its owning scan header. Version1 has no
// per-frame reference on the wire: frames attach to the most recently
// written scan, and a populated Scan field must agree with it.
func (w *writer) resolveScan(f *ScanFrame) (*Scan, error) {
	if w.config.version == Version1 {
		if w.current == "" {
			return nil, malformed("frame written before any scan")
		}
		if f.Scan != "" && f.Scan != w.current {
			return nil, malformed("unknown scan reference %q (current scan is %q)", f.Scan, w.current)
		}
		return w.scans[w.current], nil
	}
	scan, ok := w.scans[f.Scan]
	if !ok {
		if f.Scan == "" {
			return nil, malformed("frame missing scan reference")
		}
		return nil, malformed("unknown scan reference %q", f.Scan)
	}
	return scan, nil
}

func (w *writer) validateConfidences(scan *Scan, f *ScanFrame) error {
	if len(f.DepthConfidences) == 0 {
		return nil
	}
	if w.config.version == Version1 {
		return unsupported("depth confidences require container version 2 or later")
	}
	if len(f.DepthConfidences) != len(f.Depths) {
		return malformed("frame for scan %q: %d depth confidences, want %d",
			scan.Name, len(f.DepthConfidences), len(f.Depths))
	}
	for i, c := range f.DepthConfidences {
		if c < ConfidenceNone || c > ConfidenceHigh {
			return malformed("frame for scan %q: depth confidence %d out of range at index %d", scan.Name, c, i)
		}
	}
	return nil
}

func (w *writer) validateImage(f *ScanFrame) error {
	img := f.Image
	switch img.Type {
	case ImageNone:
		if len(img.Data) > 0 {
			return malformed("image data present without a codec tag")
		}
		return nil
	case ImagePNG:
	case ImageJPEG:
		if w.config.version == Version1 {
			return unsupported("jpeg images require container version 2 or later")
		}
	default:
		return unsupported("image type %d", img.Type)
	}
	if len(img.Data) == 0 {
		return malformed("%s image has no data", img.Type)
	}
	return nil
}

// Close flushes the record stream and closes the sink. It is terminal: the
// sink is closed exactly once even when earlier writes failed, and every
// later call on the Writer returns ErrWriterClosed.
func (w *writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	var flushErr error
	if !w.corrupt {
		if err := w.ensureHeader(); err != nil {
			flushErr = err
		}
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil && flushErr == nil {
			flushErr = ioErr(err, "failed to flush gzip stream")
		}
	}
	if err := w.sink.Close(); err != nil {
		if flushErr == nil {
			flushErr = ioErr(err, "failed to close sink")
		}
	}
	return flushErr
}
