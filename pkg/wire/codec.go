package wire

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed 8-byte frame header: u16 magic, u16 msg_id, u32 body_len.
const headerSize = 8

// Encode serializes m into a complete frame (header plus body). It returns an
// error if any variable-length field exceeds the width of its length prefix.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case MsgServerGreet:
		return frame(ServerGreet, []byte{0}), nil
	case *MsgServerGreet:
		return frame(ServerGreet, []byte{0}), nil
	case MsgClientGreet:
		return encodeClientGreet(v), nil
	case *MsgClientGreet:
		return encodeClientGreet(*v), nil
	case MsgPing:
		return encodePing(v), nil
	case *MsgPing:
		return encodePing(*v), nil
	case MsgPong:
		return encodePong(v), nil
	case *MsgPong:
		return encodePong(*v), nil
	case MsgAddRecord:
		return encodeAddRecord(v)
	case *MsgAddRecord:
		return encodeAddRecord(*v)
	case MsgDelRecord:
		return encodeDelRecord(v), nil
	case *MsgDelRecord:
		return encodeDelRecord(*v), nil
	case MsgUploadDone:
		return frame(UploadDone, []byte{0, 0, 0, 0}), nil
	case *MsgUploadDone:
		return frame(UploadDone, []byte{0, 0, 0, 0}), nil
	case MsgAddInfo:
		return encodeAddInfo(v)
	case *MsgAddInfo:
		return encodeAddInfo(*v)
	default:
		return nil, fmt.Errorf("wire: encode: unsupported message type %T", m)
	}
}

func frame(id MsgID, body []byte) []byte {
	b := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint16(b[0:2], Magic)
	binary.BigEndian.PutUint16(b[2:4], uint16(id))
	binary.BigEndian.PutUint32(b[4:8], uint32(len(body)))
	copy(b[headerSize:], body)
	return b
}

func encodeClientGreet(m MsgClientGreet) []byte {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], 0)
	binary.BigEndian.PutUint32(body[4:8], m.ServKey)
	return frame(ClientGreet, body)
}

func encodePing(m MsgPing) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, m.Nonce)
	return frame(Ping, body)
}

func encodePong(m MsgPong) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, m.Nonce)
	return frame(Pong, body)
}

func encodeDelRecord(m MsgDelRecord) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, m.RecID)
	return frame(DelRecord, body)
}

func encodeAddRecord(m MsgAddRecord) ([]byte, error) {
	if len(m.RType) > 255 {
		return nil, fmt.Errorf("wire: encode AddRecord: rtype too long (%d > 255)", len(m.RType))
	}
	if len(m.RName) > 65535 {
		return nil, fmt.Errorf("wire: encode AddRecord: rname too long (%d > 65535)", len(m.RName))
	}
	body := make([]byte, 8+len(m.RType)+len(m.RName))
	binary.BigEndian.PutUint32(body[0:4], m.RecID)
	body[4] = byte(m.Atype)
	body[5] = byte(len(m.RType))
	binary.BigEndian.PutUint16(body[6:8], uint16(len(m.RName)))
	copy(body[8:], m.RType)
	copy(body[8+len(m.RType):], m.RName)
	return frame(AddRecord, body), nil
}

func encodeAddInfo(m MsgAddInfo) ([]byte, error) {
	if len(m.Key) > 255 {
		return nil, fmt.Errorf("wire: encode AddInfo: key too long (%d > 255)", len(m.Key))
	}
	if len(m.Value) > 65535 {
		return nil, fmt.Errorf("wire: encode AddInfo: value too long (%d > 65535)", len(m.Value))
	}
	body := make([]byte, 8+len(m.Key)+len(m.Value))
	binary.BigEndian.PutUint32(body[0:4], m.RecID)
	body[4] = byte(len(m.Key))
	body[5] = 0
	binary.BigEndian.PutUint16(body[6:8], uint16(len(m.Value)))
	copy(body[8:], m.Key)
	copy(body[8+len(m.Key):], m.Value)
	return frame(AddInfo, body), nil
}

// Decode attempts to parse one frame from the front of buf.
//
// If buf holds fewer than 8 bytes, or fewer than 8+body_len bytes, it returns
// (nil, 0, nil): "need more data", and buf is left untouched. If the magic
// word doesn't match, it likewise returns (nil, 0, nil) without consuming
// anything; callers treat this as a desynchronized transport and tear down
// the session rather than resyncing byte-by-byte. Otherwise it returns the
// decoded message and the number of bytes consumed (always 8+body_len),
// or a non-nil error for a malformed body the framer nonetheless accepted
// (unknown msg_id, or a body too short for its message type).
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < headerSize {
		return nil, 0, nil
	}

	magic := binary.BigEndian.Uint16(buf[0:2])
	if magic != Magic {
		return nil, 0, nil
	}

	id := MsgID(binary.BigEndian.Uint16(buf[2:4]))
	bodyLen := binary.BigEndian.Uint32(buf[4:8])

	total := headerSize + int(bodyLen)
	if len(buf) < total {
		return nil, 0, nil
	}
	body := buf[headerSize:total]

	m, err := decodeBody(id, body)
	return m, total, err
}

func decodeBody(id MsgID, body []byte) (Message, error) {
	switch id {
	case ServerGreet:
		if len(body) < 1 {
			return nil, fmt.Errorf("wire: decode ServerGreet: body too short (%d < 1)", len(body))
		}
		return MsgServerGreet{}, nil
	case Ping:
		if len(body) != 4 {
			return nil, fmt.Errorf("wire: decode Ping: body length %d != 4", len(body))
		}
		return MsgPing{Nonce: binary.BigEndian.Uint32(body)}, nil
	case ClientGreet:
		if len(body) != 8 {
			return nil, fmt.Errorf("wire: decode ClientGreet: body length %d != 8", len(body))
		}
		return MsgClientGreet{ServKey: binary.BigEndian.Uint32(body[4:8])}, nil
	case Pong:
		if len(body) != 4 {
			return nil, fmt.Errorf("wire: decode Pong: body length %d != 4", len(body))
		}
		return MsgPong{Nonce: binary.BigEndian.Uint32(body)}, nil
	case AddRecord:
		if len(body) < 8 {
			return nil, fmt.Errorf("wire: decode AddRecord: body too short (%d < 8)", len(body))
		}
		rtlen := int(body[5])
		rnlen := int(binary.BigEndian.Uint16(body[6:8]))
		if len(body) != 8+rtlen+rnlen {
			return nil, fmt.Errorf("wire: decode AddRecord: body length %d != 8+%d+%d", len(body), rtlen, rnlen)
		}
		return MsgAddRecord{
			RecID: binary.BigEndian.Uint32(body[0:4]),
			Atype: AddRecordType(body[4]),
			RType: string(body[8 : 8+rtlen]),
			RName: string(body[8+rtlen : 8+rtlen+rnlen]),
		}, nil
	case DelRecord:
		if len(body) != 4 {
			return nil, fmt.Errorf("wire: decode DelRecord: body length %d != 4", len(body))
		}
		return MsgDelRecord{RecID: binary.BigEndian.Uint32(body)}, nil
	case UploadDone:
		if len(body) != 4 {
			return nil, fmt.Errorf("wire: decode UploadDone: body length %d != 4", len(body))
		}
		return MsgUploadDone{}, nil
	case AddInfo:
		if len(body) < 8 {
			return nil, fmt.Errorf("wire: decode AddInfo: body too short (%d < 8)", len(body))
		}
		keylen := int(body[4])
		valen := int(binary.BigEndian.Uint16(body[6:8]))
		if len(body) != 8+keylen+valen {
			return nil, fmt.Errorf("wire: decode AddInfo: body length %d != 8+%d+%d", len(body), keylen, valen)
		}
		return MsgAddInfo{
			RecID: binary.BigEndian.Uint32(body[0:4]),
			Key:   string(body[8 : 8+keylen]),
			Value: string(body[8+keylen : 8+keylen+valen]),
		}, nil
	default:
		return nil, fmt.Errorf("wire: decode: unknown msg_id 0x%04x", uint16(id))
	}
}
