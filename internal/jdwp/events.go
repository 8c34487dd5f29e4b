package jdwp

import (
	"log"

	"threadcatch/internal/host"
)

// parseComposite translates one Event.Composite packet into host
// events. Kinds outside our subscription set end the parse: their
// payload layout is unknown, so nothing after them can be framed.
func (c *Client) parseComposite(data []byte) []host.Event {
	d := c.decoder(data)
	d.readByte() // suspend policy; our requests suspend at most the event thread
	count := d.readInt32()

	var events []host.Event
	for i := int32(0); i < count && d.err == nil; i++ {
		kind := d.readByte()
		d.readInt32() // request ID

		switch kind {
		case eventKindClassPrepare:
			d.readID(c.sizes.ObjectID) // preparing thread
			d.readByte()               // refTypeTag
			class := host.ClassID(d.readID(c.sizes.ReferenceTypeID))
			d.readString() // signature; the core re-resolves it
			d.readInt32()  // class status
			if d.err == nil {
				events = append(events, &host.ClassLoadEvent{Class: class})
			}

		case eventKindFieldModification:
			thread := host.ThreadID(d.readID(c.sizes.ObjectID))
			d.skipLocation()
			d.readByte() // refTypeTag
			class := host.ClassID(d.readID(c.sizes.ReferenceTypeID))
			field := host.FieldID(d.readID(c.sizes.FieldID))
			d.readTaggedObjectID() // object being written
			tag, value := d.readValue()
			if d.err != nil {
				break
			}
			if tag != tagString {
				// Only string-typed fields are ever watched.
				value = 0
			}
			// Delivered even with a null value: dispatch is what resumes
			// the suspended event thread.
			events = append(events, &host.FieldModificationEvent{
				Thread:   thread,
				Class:    class,
				Field:    field,
				NewValue: host.StringID(value),
			})

		default:
			log.Printf("dropping composite remainder at unknown event kind %d", kind)
			return events
		}
	}

	if d.err != nil {
		log.Printf("parsing composite event: %v", d.err)
	}
	return events
}
