package fm

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Reader decodes an .fm container from an io.Reader.
type Reader struct {
	r           io.Reader
	version     Version
	compression Compression
	buf         []byte
}

// NewReader consumes and validates the container header. It returns
// KindMalformedData for a bad magic or compression tag and
// KindUnsupportedFeature for a version this build does not decode.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, malformed("failed to read container header: %v", err)
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != Magic {
		return nil, malformed("bad container magic %#x", magic)
	}
	version := Version(binary.LittleEndian.Uint32(hdr[4:8]))
	if !version.valid() {
		return nil, unsupported("unsupported container version %d", version)
	}
	compression := Compression(int32(binary.LittleEndian.Uint32(hdr[8:12])))

	var rec io.Reader
	switch compression {
	case CompressionNone:
		rec = r
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, malformed("failed to open gzip stream: %v", err)
		}
		rec = gz
	default:
		return nil, malformed("unknown compression %d", compression)
	}

	return &Reader{r: rec, version: version, compression: compression}, nil
}

// Version reports the container's wire revision.
func (r *Reader) Version() Version { return r.version }

// Compression reports the container's stream codec.
func (r *Reader) Compression() Compression { return r.compression }

// ReadRecord returns the next record, or io.EOF at a clean end of stream.
// A truncated or undecodable record is KindMalformedData.
func (r *Reader) ReadRecord() (*Record, error) {
	var size [4]byte
	if _, err := io.ReadFull(r.r, size[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, malformed("failed to read record size: %v", err)
	}
	n := binary.LittleEndian.Uint32(size[:])
	if cap(r.buf) < int(n) {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return nil, malformed("failed to read record body: %v", err)
	}
	return decodeRecord(r.version, r.buf)
}

// ReadAll drains the container, returning scans by name and frames in
// stream order. The writer-side referential invariants are re-checked:
// every frame must follow its scan header, and depth array lengths must
// match the scan's grid.
func ReadAll(r io.Reader) (map[string]*Scan, []*ScanFrame, error) {
	fr, err := NewReader(r)
	if err != nil {
		return nil, nil, err
	}

	scans := make(map[string]*Scan)
	var frames []*ScanFrame
	current := ""
	for {
		rec, err := fr.ReadRecord()
		if errors.Is(err, io.EOF) {
			return scans, frames, nil
		}
		if err != nil {
			return nil, nil, err
		}
		switch {
		case rec.Scan != nil:
			scans[rec.Scan.Name] = rec.Scan
			current = rec.Scan.Name
		case rec.Frame != nil:
			f := rec.Frame
			if f.Scan == "" {
				// Version1 frames carry no reference; attach to the
				// current scan.
				f.Scan = current
			}
			scan, ok := scans[f.Scan]
			if !ok {
				return nil, nil, malformed("frame references unknown scan %q", f.Scan)
			}
			if want := scan.DepthLen(); want > 0 && len(f.Depths) != want {
				return nil, nil, malformed("frame for scan %q: %d depths, want %d", f.Scan, len(f.Depths), want)
			}
			frames = append(frames, f)
		}
	}
}
