// Package dbusframe splits an inbound byte stream into whole D-Bus
// messages and assembles outbound ones. It never hands a partial message
// to its caller: an incomplete read just buffers until the next read
// makes the frame whole.
//
// Grounded on the teacher's NFS fragment-header reader
// (internal/adapter/nfs ReadFragmentHeader/ReadRPCMessage): peek a fixed
// prefix, compute the total frame size, then read exactly that many
// bytes.
package dbusframe

import (
	"bufio"
	"io"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/dbuswire"
)

// align8 rounds n up to the next multiple of 8.
func align8(n int) int { return (n + 7) &^ 7 }

// Reader reads whole messages off r, one at a time. It is not safe for
// concurrent use; the Connection core binds one Reader to one I/O
// worker for the life of a transport.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 16*1024)}
}

// ReadMessage blocks until a whole message is available, decodes its
// header and body, and returns it. It returns io.EOF if the peer closed
// the stream cleanly before any bytes of the next message arrived.
func (r *Reader) ReadMessage() (*dbusmsg.Message, error) {
	head, err := r.peek(16)
	if err != nil {
		return nil, err
	}

	order, err := dbuswire.ParseByteOrder(head[0])
	if err != nil {
		return nil, err
	}

	bodyLen, headerLen, err := decodeFrameSizeFields(head, order)
	if err != nil {
		return nil, err
	}

	total := align8(dbuswire.HeaderPrefixLength+4+headerLen) + bodyLen
	if total > dbuswire.MaxMessageBytes {
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, "frame size exceeds limit")
	}

	buf, err := r.readExactly(total)
	if err != nil {
		return nil, err
	}

	msg, bodyStart, err := dbusmsg.DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if err := dbusmsg.DecodeBody(msg, buf, bodyStart); err != nil {
		return nil, err
	}
	return msg, nil
}

// decodeFrameSizeFields reads the body-length (offset 4) and header
// field array length (offset 12) out of the first 16 bytes of a frame,
// without consuming the reader's position — the caller reads the
// computed total separately once it knows how many bytes that is.
func decodeFrameSizeFields(head []byte, order dbuswire.ByteOrder) (bodyLen, headerLen int, err error) {
	if len(head) < 16 {
		return 0, 0, dbuserr.New(dbuserr.KindMalformedMessage, "truncated frame head")
	}
	ord := order.Binary()
	bl := ord.Uint32(head[4:8])
	hl := ord.Uint32(head[12:16])
	if hl > dbuswire.MaxArrayBytes {
		return 0, 0, dbuserr.New(dbuserr.KindMalformedMessage, "header field array length exceeds limit")
	}
	if bl > dbuswire.MaxMessageBytes {
		return 0, 0, dbuserr.New(dbuserr.KindMalformedMessage, "body length exceeds limit")
	}
	return int(bl), int(hl), nil
}

func (r *Reader) peek(n int) ([]byte, error) {
	b, err := r.br.Peek(n)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	return b, nil
}

func (r *Reader) readExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Writer assembles a Message into wire bytes and writes it to w. Like
// Reader, a Writer is bound to one I/O worker; outbound writes for a
// connection are serialized by that worker.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteMessage(m *dbusmsg.Message) error {
	buf, err := m.Encode()
	if err != nil {
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		return dbuserr.Wrap(dbuserr.KindTransportFailure, "write frame", err)
	}
	return nil
}
