package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	projectionFormatVersionCurrent = 2
	projectionFormatVersionV1      = 1
)

// ErrCorruptProjection reports a blob that could not be decoded. Stores
// translate it into "no prior session" rather than surfacing it.
var ErrCorruptProjection = errors.New("corrupt projection")

// Encode serializes p in the current schema version.
func Encode(p Projection) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(projectionFormatVersionCurrent)

	if err := writeString8(&buf, "userID", p.UserID); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "email", p.Email); err != nil {
		return nil, err
	}
	if err := writeString8(&buf, "name", p.Name); err != nil {
		return nil, err
	}

	var extra []byte
	if len(p.Extra) > 0 {
		var err error
		extra, err = json.Marshal(p.Extra)
		if err != nil {
			return nil, err
		}
	}
	if len(extra) > 0xFFFF {
		return nil, errors.New("extra attributes too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(extra))); err != nil {
		return nil, err
	}
	buf.Write(extra)

	if p.Authenticated {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, p.SavedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by any supported schema version. v1 blobs
// predate the Name and Extra fields, which decode as empty.
func Decode(data []byte) (Projection, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Projection{}, corrupt(err)
	}
	if version != projectionFormatVersionCurrent &&
		version != projectionFormatVersionV1 {
		return Projection{}, corrupt(fmt.Errorf("unknown schema version %d", version))
	}

	p := Projection{}

	if p.UserID, err = readString8(reader); err != nil {
		return Projection{}, corrupt(err)
	}
	if p.Email, err = readString8(reader); err != nil {
		return Projection{}, corrupt(err)
	}

	if version >= projectionFormatVersionCurrent {
		if p.Name, err = readString8(reader); err != nil {
			return Projection{}, corrupt(err)
		}

		var extraLen uint16
		if err := binary.Read(reader, binary.BigEndian, &extraLen); err != nil {
			return Projection{}, corrupt(err)
		}
		if extraLen > 0 {
			raw := make([]byte, extraLen)
			if _, err := io.ReadFull(reader, raw); err != nil {
				return Projection{}, corrupt(err)
			}
			if err := json.Unmarshal(raw, &p.Extra); err != nil {
				return Projection{}, corrupt(err)
			}
		}
	}

	flag, err := reader.ReadByte()
	if err != nil {
		return Projection{}, corrupt(err)
	}
	p.Authenticated = flag == 1

	if err := binary.Read(reader, binary.BigEndian, &p.SavedAt); err != nil {
		return Projection{}, corrupt(err)
	}

	if reader.Len() != 0 {
		return Projection{}, corrupt(errors.New("trailing bytes"))
	}

	return p, nil
}

func writeString8(buf *bytes.Buffer, field, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("%s too long", field)
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readString8(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %w", ErrCorruptProjection, err)
}
