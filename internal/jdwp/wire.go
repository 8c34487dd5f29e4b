package jdwp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// handshake is exchanged byte-for-byte right after the TCP connect.
const handshake = "JDWP-Handshake"

const headerSize = 11

const flagReply = 0x80

// Command sets used by the agent.
const (
	setVirtualMachine  = 1
	setReferenceType   = 2
	setStringReference = 10
	setThreadReference = 11
	setEventRequest    = 15
	setEvent           = 64
)

// VirtualMachine commands.
const (
	vmVersion        = 1
	vmDispose        = 6
	vmIDSizes        = 7
	vmCapabilities   = 12
	vmDisposeObjects = 14
)

// ReferenceType commands.
const (
	refTypeSignature = 1
	refTypeFields    = 4
	refTypeMethods   = 5
)

// ThreadReference commands.
const (
	threadRefName       = 1
	threadRefResume     = 3
	threadRefFrames     = 6
	threadRefFrameCount = 7
)

// StringReference commands.
const stringRefValue = 1

// EventRequest commands.
const eventRequestSet = 1

// Event commands.
const eventComposite = 100

// Event kinds the agent subscribes to.
const (
	eventKindClassPrepare      = 8
	eventKindFieldModification = 21
)

// Suspend policies for event requests.
const (
	suspendPolicyNone        = 0
	suspendPolicyEventThread = 1
)

// Event request modifier kinds.
const modKindFieldOnly = 9

// Value tags.
const tagString = 's'

// IDSizes holds the wire widths, in bytes, of the VM-specific
// identifier types. Reported by the VM at attach time; every later
// encode and decode depends on them.
type IDSizes struct {
	FieldID         int
	MethodID        int
	ObjectID        int
	ReferenceTypeID int
	FrameID         int
}

// Error is a JDWP error code carried by a reply packet.
type Error struct {
	Code uint16
}

func (e *Error) Error() string {
	return fmt.Sprintf("jdwp error %d", e.Code)
}

// packet is one JDWP packet, command or reply.
type packet struct {
	id      uint32
	flags   byte
	cmdSet  byte
	cmd     byte
	errCode uint16
	data    []byte
}

func (p *packet) isReply() bool {
	return p.flags&flagReply != 0
}

// writePacket frames and writes one packet.
func writePacket(w io.Writer, p *packet) error {
	buf := make([]byte, headerSize+len(p.data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.BigEndian.PutUint32(buf[4:8], p.id)
	buf[8] = p.flags
	if p.isReply() {
		binary.BigEndian.PutUint16(buf[9:11], p.errCode)
	} else {
		buf[9] = p.cmdSet
		buf[10] = p.cmd
	}
	copy(buf[headerSize:], p.data)
	_, err := w.Write(buf)
	return err
}

// readPacket reads one framed packet.
func readPacket(r io.Reader) (*packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length < headerSize {
		return nil, fmt.Errorf("malformed packet length %d", length)
	}

	p := &packet{
		id:    binary.BigEndian.Uint32(header[4:8]),
		flags: header[8],
	}
	if p.isReply() {
		p.errCode = binary.BigEndian.Uint16(header[9:11])
	} else {
		p.cmdSet = header[9]
		p.cmd = header[10]
	}

	p.data = make([]byte, length-headerSize)
	if _, err := io.ReadFull(r, p.data); err != nil {
		return nil, err
	}
	return p, nil
}

// encoder builds big-endian JDWP command data.
type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeInt32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

// writeID appends an identifier of the given wire size.
func (e *encoder) writeID(size int, v uint64) {
	for i := size - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

func (e *encoder) writeString(s string) {
	e.writeInt32(int32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) bytes() []byte {
	return e.buf
}

// decoder consumes big-endian JDWP reply or event data. The first
// decode error sticks; later reads return zero values.
type decoder struct {
	sizes IDSizes
	data  []byte
	off   int
	err   error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.data) {
		d.err = fmt.Errorf("truncated packet data at offset %d", d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) readByte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) readInt32() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// readID reads an identifier of the given wire size.
func (d *decoder) readID(size int) uint64 {
	b := d.take(size)
	if b == nil {
		return 0
	}
	var v uint64
	for _, octet := range b {
		v = v<<8 | uint64(octet)
	}
	return v
}

func (d *decoder) readString() string {
	n := d.readInt32()
	if d.err != nil {
		return ""
	}
	if n < 0 {
		d.err = fmt.Errorf("negative string length %d", n)
		return ""
	}
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

// skipLocation skips an executable location: type tag, class, method
// and an 8-byte code index.
func (d *decoder) skipLocation() {
	d.readByte()
	d.readID(d.sizes.ReferenceTypeID)
	d.readID(d.sizes.MethodID)
	d.take(8)
}

// readTaggedObjectID reads a tag byte followed by an object ID.
func (d *decoder) readTaggedObjectID() uint64 {
	d.readByte()
	return d.readID(d.sizes.ObjectID)
}

// readValue reads a tagged value and returns its tag and, for
// object-kind tags, the object ID. Primitive payloads are consumed and
// reported as zero.
func (d *decoder) readValue() (byte, uint64) {
	tag := d.readByte()
	switch tag {
	case 'V':
		return tag, 0
	case 'B', 'Z':
		d.take(1)
		return tag, 0
	case 'C', 'S':
		d.take(2)
		return tag, 0
	case 'I', 'F':
		d.take(4)
		return tag, 0
	case 'J', 'D':
		d.take(8)
		return tag, 0
	default:
		// Object-kind tags carry an object ID.
		return tag, d.readID(d.sizes.ObjectID)
	}
}
