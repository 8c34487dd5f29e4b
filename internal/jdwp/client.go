package jdwp

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"threadcatch/internal/host"
)

// ErrClosed is returned by queries issued after the connection to the
// VM is gone.
var ErrClosed = errors.New("jdwp: connection closed")

// methodInfo is one entry of a class's method table.
type methodInfo struct {
	name      string
	signature string
}

// Client is a JDWP connection to a live VM. It implements host.Host.
// Safe for concurrent use.
type Client struct {
	conn  net.Conn
	sizes IDSizes

	writeMu sync.Mutex
	nextID  atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan *packet

	// Replies and events share one TCP stream, so the read loop must
	// never stall on event delivery: a stalled read loop stops routing
	// replies and wedges every in-flight query. Parsed events go into
	// the unbounded queue; a pump goroutine feeds the channel.
	eventMu    sync.Mutex
	eventQueue []host.Event
	eventReady chan struct{}

	events chan host.Event
	done   chan struct{}

	// Method tables are immutable once fetched; cached per class so a
	// ten-frame capture does not refetch the same table per frame.
	methodsMu sync.Mutex
	methods   map[host.ClassID]map[host.MethodID]methodInfo

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to a VM's JDWP endpoint and attaches.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	c, err := Attach(conn)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // Best-effort cleanup in error path
		return nil, err
	}
	return c, nil
}

// Attach performs the protocol handshake and the IDSizes exchange on an
// established connection, then starts the read loop.
func Attach(conn net.Conn) (*Client, error) {
	if _, err := conn.Write([]byte(handshake)); err != nil {
		return nil, fmt.Errorf("sending handshake: %w", err)
	}
	reply := make([]byte, len(handshake))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return nil, fmt.Errorf("reading handshake: %w", err)
	}
	if string(reply) != handshake {
		return nil, fmt.Errorf("unexpected handshake reply %q", reply)
	}

	c := &Client{
		conn:       conn,
		pending:    make(map[uint32]chan *packet),
		eventReady: make(chan struct{}, 1),
		events:     make(chan host.Event, 64),
		done:       make(chan struct{}),
		methods:    make(map[host.ClassID]map[host.MethodID]methodInfo),
	}

	// The IDSizes exchange runs before the read loop starts so every
	// later parse sees the sizes.
	sizes, err := c.idSizesSync()
	if err != nil {
		return nil, fmt.Errorf("querying ID sizes: %w", err)
	}
	c.sizes = sizes

	go c.readLoop()
	go c.pumpEvents()
	return c, nil
}

// idSizesSync performs the VirtualMachine.IDSizes round trip directly on
// the connection, without the read loop.
func (c *Client) idSizesSync() (IDSizes, error) {
	id := c.nextID.Add(1)
	if err := writePacket(c.conn, &packet{id: id, cmdSet: setVirtualMachine, cmd: vmIDSizes}); err != nil {
		return IDSizes{}, err
	}

	for {
		p, err := readPacket(c.conn)
		if err != nil {
			return IDSizes{}, err
		}
		if !p.isReply() || p.id != id {
			// The VM does not emit events before we request any;
			// anything else here is noise we can drop.
			continue
		}
		if p.errCode != 0 {
			return IDSizes{}, &Error{Code: p.errCode}
		}
		d := &decoder{data: p.data}
		sizes := IDSizes{
			FieldID:         int(d.readInt32()),
			MethodID:        int(d.readInt32()),
			ObjectID:        int(d.readInt32()),
			ReferenceTypeID: int(d.readInt32()),
			FrameID:         int(d.readInt32()),
		}
		return sizes, d.err
	}
}

// readLoop routes replies to their waiting callers and queues composite
// events for the pump. It owns the done channel, closed when the loop
// exits. Nothing in this loop may block on a consumer.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		p, err := readPacket(c.conn)
		if err != nil {
			return
		}

		if p.isReply() {
			c.pendingMu.Lock()
			ch := c.pending[p.id]
			delete(c.pending, p.id)
			c.pendingMu.Unlock()
			if ch != nil {
				ch <- p
			}
			continue
		}

		if p.cmdSet == setEvent && p.cmd == eventComposite {
			if parsed := c.parseComposite(p.data); len(parsed) > 0 {
				c.eventMu.Lock()
				c.eventQueue = append(c.eventQueue, parsed...)
				c.eventMu.Unlock()
				select {
				case c.eventReady <- struct{}{}:
				default:
				}
			}
		}
		// Other VM-initiated commands are not in our subscription set.
	}
}

// pumpEvents drains the event queue onto the event channel, in arrival
// order. It owns the events channel, closed when the connection is
// gone; queued events left at that point go undelivered, since nothing
// downstream can act on a dead VM.
func (c *Client) pumpEvents() {
	defer close(c.events)

	for {
		c.eventMu.Lock()
		batch := c.eventQueue
		c.eventQueue = nil
		c.eventMu.Unlock()

		for _, ev := range batch {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}

		select {
		case <-c.eventReady:
		case <-c.done:
			return
		}
	}
}

// roundTrip sends one command and waits for its reply.
func (c *Client) roundTrip(cmdSet, cmd byte, data []byte) ([]byte, error) {
	id := c.nextID.Add(1)
	ch := make(chan *packet, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := writePacket(c.conn, &packet{id: id, cmdSet: cmdSet, cmd: cmd, data: data})
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.errCode != 0 {
			return nil, &Error{Code: reply.errCode}
		}
		return reply.data, nil
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) decoder(data []byte) *decoder {
	return &decoder{sizes: c.sizes, data: data}
}

// Events returns the inbound event channel. It closes when the
// connection to the VM is gone.
func (c *Client) Events() <-chan host.Event {
	return c.events
}

// Done is closed when the connection to the VM is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tells the VM we are gone (which cancels all our event requests)
// and closes the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = writePacket(c.conn, &packet{ //nolint:errcheck // Best-effort goodbye during shutdown
			id:     c.nextID.Add(1),
			cmdSet: setVirtualMachine,
			cmd:    vmDispose,
		})
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Version holds the VM's identification, logged at attach time.
type Version struct {
	Description string
	JDWPMajor   int
	JDWPMinor   int
	VMVersion   string
	VMName      string
}

// Version queries the VM's version information.
func (c *Client) Version() (*Version, error) {
	data, err := c.roundTrip(setVirtualMachine, vmVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("querying VM version: %w", err)
	}
	d := c.decoder(data)
	v := &Version{
		Description: d.readString(),
		JDWPMajor:   int(d.readInt32()),
		JDWPMinor:   int(d.readInt32()),
		VMVersion:   d.readString(),
		VMName:      d.readString(),
	}
	return v, d.err
}

// capability is one entry of the negotiation table.
type capability struct {
	name     string
	required bool
}

// The seven booleans of VirtualMachine.Capabilities, in wire order.
// Only field-modification watching is load-bearing for this agent.
var capabilityTable = []capability{
	{name: "canWatchFieldModification", required: true},
	{name: "canWatchFieldAccess", required: false},
	{name: "canGetBytecodes", required: false},
	{name: "canGetSyntheticAttribute", required: false},
	{name: "canGetOwnedMonitorInfo", required: false},
	{name: "canGetCurrentContendedMonitor", required: false},
	{name: "canGetMonitorInfo", required: false},
}

// Negotiate checks the VM's capability set against the table. A missing
// required capability fails the attach; missing optional ones are
// logged.
func (c *Client) Negotiate() error {
	data, err := c.roundTrip(setVirtualMachine, vmCapabilities, nil)
	if err != nil {
		return fmt.Errorf("querying capabilities: %w", err)
	}
	d := c.decoder(data)
	for _, cap := range capabilityTable {
		have := d.readByte() != 0
		if d.err != nil {
			return d.err
		}
		if have {
			continue
		}
		if cap.required {
			return fmt.Errorf("VM lacks required capability %s", cap.name)
		}
		log.Printf("VM lacks optional capability %s", cap.name)
	}
	return nil
}

// RequestClassPrepare subscribes to class-prepare events for all
// classes, without suspending anything.
func (c *Client) RequestClassPrepare() error {
	var e encoder
	e.writeByte(eventKindClassPrepare)
	e.writeByte(suspendPolicyNone)
	e.writeInt32(0) // no modifiers
	if _, err := c.roundTrip(setEventRequest, eventRequestSet, e.bytes()); err != nil {
		return fmt.Errorf("requesting class-prepare events: %w", err)
	}
	return nil
}

// ClassSignature implements host.Host.
func (c *Client) ClassSignature(class host.ClassID) (string, error) {
	var e encoder
	e.writeID(c.sizes.ReferenceTypeID, uint64(class))
	data, err := c.roundTrip(setReferenceType, refTypeSignature, e.bytes())
	if err != nil {
		return "", fmt.Errorf("querying class signature: %w", err)
	}
	d := c.decoder(data)
	sig := d.readString()
	return sig, d.err
}

// methodTable returns the cached method table of class, fetching it on
// first use.
func (c *Client) methodTable(class host.ClassID) (map[host.MethodID]methodInfo, error) {
	c.methodsMu.Lock()
	table, ok := c.methods[class]
	c.methodsMu.Unlock()
	if ok {
		return table, nil
	}

	var e encoder
	e.writeID(c.sizes.ReferenceTypeID, uint64(class))
	data, err := c.roundTrip(setReferenceType, refTypeMethods, e.bytes())
	if err != nil {
		return nil, fmt.Errorf("querying methods: %w", err)
	}

	d := c.decoder(data)
	count := d.readInt32()
	table = make(map[host.MethodID]methodInfo, count)
	for i := int32(0); i < count && d.err == nil; i++ {
		id := host.MethodID(d.readID(c.sizes.MethodID))
		info := methodInfo{
			name:      d.readString(),
			signature: d.readString(),
		}
		d.readInt32() // modifier bits
		table[id] = info
	}
	if d.err != nil {
		return nil, d.err
	}

	c.methodsMu.Lock()
	c.methods[class] = table
	c.methodsMu.Unlock()
	return table, nil
}

// MethodName implements host.Host.
func (c *Client) MethodName(class host.ClassID, method host.MethodID) (string, error) {
	table, err := c.methodTable(class)
	if err != nil {
		return "", err
	}
	info, ok := table[method]
	if !ok {
		return "", fmt.Errorf("method %#x not declared by class %#x", uint64(method), uint64(class))
	}
	return info.name, nil
}

// MethodByName implements host.Host.
func (c *Client) MethodByName(class host.ClassID, name, signature string) (host.MethodID, error) {
	table, err := c.methodTable(class)
	if err != nil {
		return 0, err
	}
	for id, info := range table {
		if info.name == name && info.signature == signature {
			return id, nil
		}
	}
	return 0, fmt.Errorf("class %#x has no method %s%s", uint64(class), name, signature)
}

// FieldByName implements host.Host.
func (c *Client) FieldByName(class host.ClassID, name, signature string) (host.FieldID, error) {
	var e encoder
	e.writeID(c.sizes.ReferenceTypeID, uint64(class))
	data, err := c.roundTrip(setReferenceType, refTypeFields, e.bytes())
	if err != nil {
		return 0, fmt.Errorf("querying fields: %w", err)
	}

	d := c.decoder(data)
	count := d.readInt32()
	for i := int32(0); i < count && d.err == nil; i++ {
		id := host.FieldID(d.readID(c.sizes.FieldID))
		fieldName := d.readString()
		fieldSig := d.readString()
		d.readInt32() // modifier bits
		if fieldName == name && fieldSig == signature {
			return id, nil
		}
	}
	if d.err != nil {
		return 0, d.err
	}
	return 0, fmt.Errorf("class %#x has no field %s %s", uint64(class), name, signature)
}

// WatchField implements host.Host. The event thread is suspended for
// every delivered modification so its stack can be walked; the stream
// resumes it after dispatch.
func (c *Client) WatchField(class host.ClassID, field host.FieldID) error {
	var e encoder
	e.writeByte(eventKindFieldModification)
	e.writeByte(suspendPolicyEventThread)
	e.writeInt32(1) // one modifier
	e.writeByte(modKindFieldOnly)
	e.writeID(c.sizes.ReferenceTypeID, uint64(class))
	e.writeID(c.sizes.FieldID, uint64(field))
	if _, err := c.roundTrip(setEventRequest, eventRequestSet, e.bytes()); err != nil {
		return fmt.Errorf("requesting field-modification events: %w", err)
	}
	return nil
}

// ThreadName implements host.Host.
func (c *Client) ThreadName(thread host.ThreadID) (string, error) {
	var e encoder
	e.writeID(c.sizes.ObjectID, uint64(thread))
	data, err := c.roundTrip(setThreadReference, threadRefName, e.bytes())
	if err != nil {
		return "", fmt.Errorf("querying thread name: %w", err)
	}
	d := c.decoder(data)
	name := d.readString()
	return name, d.err
}

// StackFrames implements host.Host. The thread must be suspended, which
// holds for event threads of our field-modification requests.
func (c *Client) StackFrames(thread host.ThreadID, skip, max int) ([]host.Frame, error) {
	var e encoder
	e.writeID(c.sizes.ObjectID, uint64(thread))
	data, err := c.roundTrip(setThreadReference, threadRefFrameCount, e.bytes())
	if err != nil {
		return nil, fmt.Errorf("querying frame count: %w", err)
	}
	d := c.decoder(data)
	count := int(d.readInt32())
	if d.err != nil {
		return nil, d.err
	}
	if skip >= count {
		return nil, nil
	}
	length := count - skip
	if length > max {
		length = max
	}

	e = encoder{}
	e.writeID(c.sizes.ObjectID, uint64(thread))
	e.writeInt32(int32(skip))
	e.writeInt32(int32(length))
	data, err = c.roundTrip(setThreadReference, threadRefFrames, e.bytes())
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}

	d = c.decoder(data)
	n := d.readInt32()
	frames := make([]host.Frame, 0, n)
	for i := int32(0); i < n && d.err == nil; i++ {
		d.readID(c.sizes.FrameID)
		d.readByte() // location type tag
		class := host.ClassID(d.readID(c.sizes.ReferenceTypeID))
		method := host.MethodID(d.readID(c.sizes.MethodID))
		d.take(8) // code index
		frames = append(frames, host.Frame{Class: class, Method: method})
	}
	return frames, d.err
}

// Resume resumes a thread the VM suspended for event delivery.
func (c *Client) Resume(thread host.ThreadID) error {
	var e encoder
	e.writeID(c.sizes.ObjectID, uint64(thread))
	if _, err := c.roundTrip(setThreadReference, threadRefResume, e.bytes()); err != nil {
		return fmt.Errorf("resuming thread: %w", err)
	}
	return nil
}

// StringValue implements host.Host.
func (c *Client) StringValue(s host.StringID) (string, error) {
	var e encoder
	e.writeID(c.sizes.ObjectID, uint64(s))
	data, err := c.roundTrip(setStringReference, stringRefValue, e.bytes())
	if err != nil {
		return "", fmt.Errorf("decoding string value: %w", err)
	}
	d := c.decoder(data)
	value := d.readString()
	return value, d.err
}

// ReleaseString implements host.Host: the string reference is returned
// to the VM via DisposeObjects so it can be collected.
func (c *Client) ReleaseString(s host.StringID) {
	var e encoder
	e.writeInt32(1) // one object
	e.writeID(c.sizes.ObjectID, uint64(s))
	e.writeInt32(1) // reference count
	if _, err := c.roundTrip(setVirtualMachine, vmDisposeObjects, e.bytes()); err != nil {
		log.Printf("releasing string reference: %v", err)
	}
}
