package moq

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// ReadControlMsg reads a single MoQ control message from the control stream.
// Wire format: [message_type (varint)] [message_length (uint16 big-endian)] [payload].
func ReadControlMsg(r io.Reader) (uint64, []byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		buffered := bufio.NewReader(r)
		br = buffered
		r = buffered
	}
	msgType, err := quicvarint.Read(br)
	if err != nil {
		return 0, nil, fmt.Errorf("read message type: %w", err)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("read message length: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf[:])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("read message payload: %w", err)
		}
	}

	return msgType, payload, nil
}

// WriteControlMsg writes a MoQ control message to the control stream as a
// single Write call so it stays atomic on a stream shared without external
// synchronization.
func WriteControlMsg(w io.Writer, msgType uint64, payload []byte) error {
	if len(payload) > 0xffff {
		return fmt.Errorf("moq: control message payload too large: %d bytes", len(payload))
	}

	var buf []byte
	buf = quicvarint.Append(buf, msgType)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)

	_, err := w.Write(buf)
	return err
}

// messageName maps a control message type to its human-readable name, used
// in ParseError and MalformedMessageError.
func messageName(msgType uint64) string {
	switch msgType {
	case TypeClientSetup:
		return "CLIENT_SETUP"
	case TypeServerSetup:
		return "SERVER_SETUP"
	case TypeSubscribe:
		return "SUBSCRIBE"
	case TypeSubscribeOK:
		return "SUBSCRIBE_OK"
	case TypeSubscribeError:
		return "SUBSCRIBE_ERROR"
	case TypeSubscribeUpdate:
		return "SUBSCRIBE_UPDATE"
	case TypeUnsubscribe:
		return "UNSUBSCRIBE"
	case TypePublishDone:
		return "PUBLISH_DONE"
	case TypePublishNamespace:
		return "PUBLISH_NAMESPACE"
	case TypePublishNamespaceOK:
		return "PUBLISH_NAMESPACE_OK"
	case TypePublishNamespaceErr:
		return "PUBLISH_NAMESPACE_ERROR"
	case TypePublishNamespaceDone:
		return "PUBLISH_NAMESPACE_DONE"
	case TypeSubscribeNamespace:
		return "SUBSCRIBE_NAMESPACE"
	case TypeSubscribeNamespaceOK:
		return "SUBSCRIBE_NAMESPACE_OK"
	case TypeUnsubscribeNamespace:
		return "UNSUBSCRIBE_NAMESPACE"
	case TypeFetch:
		return "FETCH"
	case TypeFetchCancel:
		return "FETCH_CANCEL"
	case TypeGoAway:
		return "GOAWAY"
	case TypeMaxRequestID:
		return "MAX_REQUEST_ID"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", msgType)
	}
}
