package sse

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// keepAlive is a comment frame. Clients ignore it but proxies see traffic.
var keepAlive = []byte(": ping\n\n")

// encode renders ev in text/event-stream framing with a sequence id.
func encode(seq uint64, ev Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(ev.Type) + len(data) + 32)
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(seq, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(ev.Type)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// clientSet is owned by the broker loop goroutine.
type clientSet map[chan []byte]struct{}

func (c clientSet) add(ch chan []byte) { c[ch] = struct{}{} }

func (c clientSet) remove(ch chan []byte) {
	if _, ok := c[ch]; ok {
		delete(c, ch)
		close(ch)
	}
}

func (c clientSet) closeAll() {
	for ch := range c {
		delete(c, ch)
		close(ch)
	}
}

// send writes frame to every client, skipping those whose buffer is full.
// It returns how many were skipped.
func (c clientSet) send(frame []byte) int {
	dropped := 0
	for ch := range c {
		select {
		case ch <- frame:
		default:
			dropped++
		}
	}
	return dropped
}
