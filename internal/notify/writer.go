package notify

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrWriterClosed = errors.New("websocket writer closed")
var ErrWriterBackpressure = errors.New("websocket writer backpressure")

const defaultWriteTimeout = 5 * time.Second

// writer serializes JSON writes to one websocket connection. A subscriber
// that cannot keep up with its queue is disconnected instead of blocking
// the publisher.
type writer struct {
	writeFn  func(Message) error
	closeFn  func()
	queue    chan Message
	stop     chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	stopOnce sync.Once
}

func newConnWriter(conn *websocket.Conn, writeTimeout time.Duration, queueSize int) *writer {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return newWriter(func(msg Message) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			_ = conn.Close()
			return err
		}
		if err := conn.WriteJSON(msg); err != nil {
			_ = conn.Close()
			return err
		}
		return nil
	}, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}, queueSize)
}

func newWriter(writeFn func(Message) error, closeFn func(), queueSize int) *writer {
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &writer{
		writeFn: writeFn,
		closeFn: closeFn,
		queue:   make(chan Message, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Send queues msg without blocking.
func (w *writer) Send(msg Message) error {
	if w.closed.Load() {
		return ErrWriterClosed
	}
	select {
	case <-w.stop:
		return ErrWriterClosed
	case w.queue <- msg:
		return nil
	default:
		w.shutdown()
		return ErrWriterBackpressure
	}
}

// Close stops the writer and closes the connection.
func (w *writer) Close() {
	w.shutdown()
	<-w.done
}

// Done is closed once the writer has stopped.
func (w *writer) Done() <-chan struct{} { return w.done }

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case msg := <-w.queue:
			if err := w.writeFn(msg); err != nil {
				w.shutdown()
				return
			}
		}
	}
}

func (w *writer) shutdown() {
	if w.closed.Swap(true) {
		return
	}
	w.stopOnce.Do(func() { close(w.stop) })
	if w.closeFn != nil {
		w.closeFn()
	}
}
