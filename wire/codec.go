package wire

import (
	"encoding/binary"

	bridgeerrors "github.com/quiclink/quicbridge/errors"
)

// Encode serializes a message into its fixed 32-byte frame. Unused payload
// bytes are zero. Encode does not validate magic or version; the
// constructors in this package always produce valid headers, and tests that
// need a corrupt frame can build one by hand.
func Encode(m Message) [Size]byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	buf[4] = m.Version
	buf[5] = byte(m.Payload.Type())
	binary.LittleEndian.PutUint16(buf[6:8], uint16(m.Status))
	binary.LittleEndian.PutUint64(buf[8:16], m.TaskID)

	switch p := m.Payload.(type) {
	case None:
		// payload stays zero
	case Bool:
		if p.Value {
			buf[16] = 1
		}
	case U64:
		binary.LittleEndian.PutUint64(buf[16:24], p.Value)
	case BytesRef:
		binary.LittleEndian.PutUint64(buf[16:24], p.Addr)
		binary.LittleEndian.PutUint64(buf[24:32], p.Len)
	case StringRef:
		binary.LittleEndian.PutUint64(buf[16:24], p.Addr)
		binary.LittleEndian.PutUint64(buf[24:32], p.Len)
	}
	return buf
}

// Decode parses a 32-byte frame. It rejects short input, a magic or version
// mismatch, and unknown DataType or TaskStatus discriminants; a rejected
// frame yields the zero Message and a typed decode error, never a guess.
func Decode(data []byte) (Message, error) {
	if len(data) < Size {
		return Message{}, bridgeerrors.ShortMessage(len(data), Size)
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != Magic {
		return Message{}, bridgeerrors.BadMagic(magic, Magic)
	}
	version := data[4]
	if version != Version {
		return Message{}, bridgeerrors.VersionMismatch(version, Version)
	}

	dataType := DataType(data[5])
	if !dataType.Known() {
		return Message{}, bridgeerrors.UnknownDiscriminant(bridgeerrors.KindUnknownDataType, uint64(dataType))
	}
	status := TaskStatus(binary.LittleEndian.Uint16(data[6:8]))
	if !status.Known() {
		return Message{}, bridgeerrors.UnknownDiscriminant(bridgeerrors.KindUnknownStatus, uint64(status))
	}

	m := Message{
		Magic:   magic,
		Version: version,
		Status:  status,
		TaskID:  binary.LittleEndian.Uint64(data[8:16]),
	}

	switch dataType {
	case TypeNone:
		m.Payload = None{}
	case TypeBool:
		m.Payload = Bool{Value: data[16] != 0}
	case TypeU64:
		m.Payload = U64{Value: binary.LittleEndian.Uint64(data[16:24])}
	case TypeBytes:
		m.Payload = BytesRef{
			Addr: binary.LittleEndian.Uint64(data[16:24]),
			Len:  binary.LittleEndian.Uint64(data[24:32]),
		}
	case TypeString:
		m.Payload = StringRef{
			Addr: binary.LittleEndian.Uint64(data[16:24]),
			Len:  binary.LittleEndian.Uint64(data[24:32]),
		}
	}
	return m, nil
}

// PeekTaskID extracts the task identifier from a frame whose header passed
// magic and version checks but whose discriminants did not. It lets a
// decode failure be attributed to the pending operation that caused it.
// The second return is false when the header itself cannot be trusted.
func PeekTaskID(data []byte) (uint64, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic || data[4] != Version {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[8:16]), true
}
