package fm

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// The record schema is a closed protobuf message set, hand-encoded on
// protowire because the field layout is fixed per container version and
// small enough to keep in one place.
//
// Record (all versions):
//
//	oneof type { Scan scan = 1; ScanFrame scan_frame = 2; }
//
// Version1 Scan:
//
//	string name = 1; float angular_velocity = 2;
//	Point3 eye_position = 3; float view_elevation = 4;
//
// Version2 Scan:
//
//	string name = 1; Point3 camera_position = 2; float camera_velocity = 3;
//	float view_elevation = 4; uint32 image_width = 5; uint32 image_height = 6;
//	uint32 depth_width = 7; uint32 depth_height = 8;
//
// Version3 Scan:
//
//	string name = 1; float camera_angle_of_view = 2;
//	float camera_landscape_angle = 3; float camera_view_elevation = 4;
//	float camera_angular_velocity = 5; Point3 camera_initial_position = 6;
//	uint32 image_width = 7; uint32 image_height = 8;
//	uint32 depth_width = 9; uint32 depth_height = 10;
//
// Version1 ScanFrame:
//
//	int64 time = 1; bytes png = 2; repeated float depths = 3 [packed];
//
// Version2/3 ScanFrame:
//
//	string scan = 1; int64 time = 2; Image image = 3;
//	repeated float depths = 4 [packed];
//	repeated DepthConfidence depth_confidences = 5 [packed];
//
// Image: int32 type = 1; bytes data = 2;
// Point3: float x = 1; float y = 2; float z = 3;
const (
	fieldRecordScan  = 1
	fieldRecordFrame = 2
)

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendPoint3(b []byte, num protowire.Number, p Point3) []byte {
	var sub []byte
	sub = appendFloat(sub, 1, p.X)
	sub = appendFloat(sub, 2, p.Y)
	sub = appendFloat(sub, 3, p.Z)
	return appendBytesField(b, num, sub)
}

func appendPackedFloats(b []byte, num protowire.Number, vs []float32) []byte {
	if len(vs) == 0 {
		return b
	}
	sub := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		sub = protowire.AppendFixed32(sub, math.Float32bits(v))
	}
	return appendBytesField(b, num, sub)
}

func appendPackedConfidences(b []byte, num protowire.Number, vs []DepthConfidence) []byte {
	if len(vs) == 0 {
		return b
	}
	sub := make([]byte, 0, len(vs))
	for _, v := range vs {
		sub = protowire.AppendVarint(sub, uint64(v))
	}
	return appendBytesField(b, num, sub)
}

func appendImage(b []byte, num protowire.Number, img Image) []byte {
	var sub []byte
	if img.Type != ImageNone {
		sub = appendUint(sub, 1, uint64(img.Type))
	}
	if len(img.Data) > 0 {
		sub = appendBytesField(sub, 2, img.Data)
	}
	return appendBytesField(b, num, sub)
}

func encodeScanV1(s *Scan) []byte {
	var b []byte
	b = appendStringField(b, 1, s.Name)
	b = appendFloat(b, 2, s.AngularVelocity)
	b = appendPoint3(b, 3, s.InitialPosition)
	b = appendFloat(b, 4, s.ViewElevation)
	return b
}

func encodeScanV2(s *Scan) []byte {
	var b []byte
	b = appendStringField(b, 1, s.Name)
	b = appendPoint3(b, 2, s.InitialPosition)
	b = appendFloat(b, 3, s.AngularVelocity)
	b = appendFloat(b, 4, s.ViewElevation)
	b = appendUint(b, 5, uint64(s.ImageWidth))
	b = appendUint(b, 6, uint64(s.ImageHeight))
	b = appendUint(b, 7, uint64(s.DepthWidth))
	b = appendUint(b, 8, uint64(s.DepthHeight))
	return b
}

func encodeScanV3(s *Scan) []byte {
	var b []byte
	b = appendStringField(b, 1, s.Name)
	b = appendFloat(b, 2, s.AngleOfView)
	b = appendFloat(b, 3, s.LandscapeAngle)
	b = appendFloat(b, 4, s.ViewElevation)
	b = appendFloat(b, 5, s.AngularVelocity)
	b = appendPoint3(b, 6, s.InitialPosition)
	b = appendUint(b, 7, uint64(s.ImageWidth))
	b = appendUint(b, 8, uint64(s.ImageHeight))
	b = appendUint(b, 9, uint64(s.DepthWidth))
	b = appendUint(b, 10, uint64(s.DepthHeight))
	return b
}

func encodeFrameV1(f *ScanFrame) []byte {
	var b []byte
	b = appendUint(b, 1, uint64(f.Time))
	if len(f.Image.Data) > 0 {
		b = appendBytesField(b, 2, f.Image.Data)
	}
	b = appendPackedFloats(b, 3, f.Depths)
	return b
}

func encodeFrameV2(f *ScanFrame) []byte {
	var b []byte
	b = appendStringField(b, 1, f.Scan)
	b = appendUint(b, 2, uint64(f.Time))
	b = appendImage(b, 3, f.Image)
	b = appendPackedFloats(b, 4, f.Depths)
	b = appendPackedConfidences(b, 5, f.DepthConfidences)
	return b
}

func encodeRecord(num protowire.Number, body []byte) []byte {
	out := make([]byte, 0, len(body)+8)
	return appendBytesField(out, num, body)
}

// --- decoding ---

type fieldIter struct {
	buf []byte
}

// next returns the next field's number, type, and value bytes. Returns
// num == 0 when the buffer is exhausted.
func (it *fieldIter) next() (protowire.Number, protowire.Type, []byte, error) {
	if len(it.buf) == 0 {
		return 0, 0, nil, nil
	}
	num, typ, n := protowire.ConsumeTag(it.buf)
	if n < 0 {
		return 0, 0, nil, malformed("invalid record field tag")
	}
	it.buf = it.buf[n:]
	m := protowire.ConsumeFieldValue(num, typ, it.buf)
	if m < 0 {
		return 0, 0, nil, malformed("invalid record field value")
	}
	val := it.buf[:m]
	it.buf = it.buf[m:]
	return num, typ, val, nil
}

func consumeString(val []byte) (string, error) {
	s, n := protowire.ConsumeString(val)
	if n < 0 {
		return "", malformed("invalid string field")
	}
	return s, nil
}

func consumeBytes(val []byte) ([]byte, error) {
	b, n := protowire.ConsumeBytes(val)
	if n < 0 {
		return nil, malformed("invalid bytes field")
	}
	return b, nil
}

func consumeFloat(val []byte) (float32, error) {
	v, n := protowire.ConsumeFixed32(val)
	if n < 0 {
		return 0, malformed("invalid float field")
	}
	return math.Float32frombits(v), nil
}

func consumeUint(val []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(val)
	if n < 0 {
		return 0, malformed("invalid varint field")
	}
	return v, nil
}

func decodePoint3(val []byte) (Point3, error) {
	var p Point3
	body, err := consumeBytes(val)
	if err != nil {
		return p, err
	}
	it := fieldIter{buf: body}
	for {
		num, _, fv, err := it.next()
		if err != nil {
			return p, err
		}
		if num == 0 {
			return p, nil
		}
		f, err := consumeFloat(fv)
		if err != nil {
			return p, err
		}
		switch num {
		case 1:
			p.X = f
		case 2:
			p.Y = f
		case 3:
			p.Z = f
		}
	}
}

func decodeImage(val []byte) (Image, error) {
	var img Image
	body, err := consumeBytes(val)
	if err != nil {
		return img, err
	}
	it := fieldIter{buf: body}
	for {
		num, _, fv, err := it.next()
		if err != nil {
			return img, err
		}
		if num == 0 {
			return img, nil
		}
		switch num {
		case 1:
			v, err := consumeUint(fv)
			if err != nil {
				return img, err
			}
			img.Type = ImageType(v)
		case 2:
			b, err := consumeBytes(fv)
			if err != nil {
				return img, err
			}
			// Copy: the input buffer is reused across records.
			img.Data = append([]byte(nil), b...)
		}
	}
}

func decodePackedFloats(typ protowire.Type, val []byte, dst []float32) ([]float32, error) {
	if typ == protowire.Fixed32Type {
		f, err := consumeFloat(val)
		if err != nil {
			return nil, err
		}
		return append(dst, f), nil
	}
	body, err := consumeBytes(val)
	if err != nil {
		return nil, err
	}
	if len(body)%4 != 0 {
		return nil, malformed("packed float field length %d not a multiple of 4", len(body))
	}
	if dst == nil {
		dst = make([]float32, 0, len(body)/4)
	}
	for len(body) > 0 {
		v, n := protowire.ConsumeFixed32(body)
		if n < 0 {
			return nil, malformed("invalid packed float element")
		}
		dst = append(dst, math.Float32frombits(v))
		body = body[n:]
	}
	return dst, nil
}

func decodePackedConfidences(typ protowire.Type, val []byte, dst []DepthConfidence) ([]DepthConfidence, error) {
	if typ == protowire.VarintType {
		v, err := consumeUint(val)
		if err != nil {
			return nil, err
		}
		return append(dst, DepthConfidence(v)), nil
	}
	body, err := consumeBytes(val)
	if err != nil {
		return nil, err
	}
	if dst == nil {
		dst = make([]DepthConfidence, 0, len(body))
	}
	for len(body) > 0 {
		v, n := protowire.ConsumeVarint(body)
		if n < 0 {
			return nil, malformed("invalid packed confidence element")
		}
		dst = append(dst, DepthConfidence(v))
		body = body[n:]
	}
	return dst, nil
}

func decodeScan(version Version, body []byte) (*Scan, error) {
	s := &Scan{}
	it := fieldIter{buf: body}
	for {
		num, _, fv, err := it.next()
		if err != nil {
			return nil, err
		}
		if num == 0 {
			return s, nil
		}
		if err := decodeScanField(version, s, num, fv); err != nil {
			return nil, err
		}
	}
}

func decodeScanField(version Version, s *Scan, num protowire.Number, fv []byte) error {
	if num == 1 {
		name, err := consumeString(fv)
		if err != nil {
			return err
		}
		s.Name = name
		return nil
	}
	switch version {
	case Version1:
		switch num {
		case 2:
			return setFloat(&s.AngularVelocity, fv)
		case 3:
			return setPoint(&s.InitialPosition, fv)
		case 4:
			return setFloat(&s.ViewElevation, fv)
		}
	case Version2:
		switch num {
		case 2:
			return setPoint(&s.InitialPosition, fv)
		case 3:
			return setFloat(&s.AngularVelocity, fv)
		case 4:
			return setFloat(&s.ViewElevation, fv)
		case 5:
			return setDim(&s.ImageWidth, fv)
		case 6:
			return setDim(&s.ImageHeight, fv)
		case 7:
			return setDim(&s.DepthWidth, fv)
		case 8:
			return setDim(&s.DepthHeight, fv)
		}
	case Version3:
		switch num {
		case 2:
			return setFloat(&s.AngleOfView, fv)
		case 3:
			return setFloat(&s.LandscapeAngle, fv)
		case 4:
			return setFloat(&s.ViewElevation, fv)
		case 5:
			return setFloat(&s.AngularVelocity, fv)
		case 6:
			return setPoint(&s.InitialPosition, fv)
		case 7:
			return setDim(&s.ImageWidth, fv)
		case 8:
			return setDim(&s.ImageHeight, fv)
		case 9:
			return setDim(&s.DepthWidth, fv)
		case 10:
			return setDim(&s.DepthHeight, fv)
		}
	}
	// Unknown fields are skipped, matching protobuf semantics.
	return nil
}

func setFloat(dst *float32, fv []byte) error {
	f, err := consumeFloat(fv)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setPoint(dst *Point3, fv []byte) error {
	p, err := decodePoint3(fv)
	if err != nil {
		return err
	}
	*dst = p
	return nil
}

func setDim(dst *int, fv []byte) error {
	v, err := consumeUint(fv)
	if err != nil {
		return err
	}
	*dst = int(v)
	return nil
}

func decodeFrame(version Version, body []byte) (*ScanFrame, error) {
	f := &ScanFrame{}
	it := fieldIter{buf: body}
	for {
		num, typ, fv, err := it.next()
		if err != nil {
			return nil, err
		}
		if num == 0 {
			return f, nil
		}
		if version == Version1 {
			switch num {
			case 1:
				v, err := consumeUint(fv)
				if err != nil {
					return nil, err
				}
				f.Time = int64(v)
			case 2:
				b, err := consumeBytes(fv)
				if err != nil {
					return nil, err
				}
				f.Image = Image{Type: ImagePNG, Data: append([]byte(nil), b...)}
			case 3:
				f.Depths, err = decodePackedFloats(typ, fv, f.Depths)
				if err != nil {
					return nil, err
				}
			}
			continue
		}
		switch num {
		case 1:
			name, err := consumeString(fv)
			if err != nil {
				return nil, err
			}
			f.Scan = name
		case 2:
			v, err := consumeUint(fv)
			if err != nil {
				return nil, err
			}
			f.Time = int64(v)
		case 3:
			img, err := decodeImage(fv)
			if err != nil {
				return nil, err
			}
			f.Image = img
		case 4:
			f.Depths, err = decodePackedFloats(typ, fv, f.Depths)
			if err != nil {
				return nil, err
			}
		case 5:
			f.DepthConfidences, err = decodePackedConfidences(typ, fv, f.DepthConfidences)
			if err != nil {
				return nil, err
			}
		}
	}
}

func decodeRecord(version Version, body []byte) (*Record, error) {
	it := fieldIter{buf: body}
	for {
		num, _, fv, err := it.next()
		if err != nil {
			return nil, err
		}
		if num == 0 {
			return nil, malformed("record has no scan or frame payload")
		}
		switch num {
		case fieldRecordScan:
			sub, err := consumeBytes(fv)
			if err != nil {
				return nil, err
			}
			s, err := decodeScan(version, sub)
			if err != nil {
				return nil, err
			}
			return &Record{Scan: s}, nil
		case fieldRecordFrame:
			sub, err := consumeBytes(fv)
			if err != nil {
				return nil, err
			}
			f, err := decodeFrame(version, sub)
			if err != nil {
				return nil, err
			}
			return &Record{Frame: f}, nil
		}
	}
}
