// Package tipnotify watches the chain node's ZMQ publisher socket for new
// block announcements and turns them into a simple wake-up signal. It is a
// push-based accelerant for the indexer's poll loop, never its only source
// of truth: a missed or delayed ZMQ message just means the next poll tick
// catches up instead.
package tipnotify

import (
	"time"

	"github.com/lightninglabs/gozmq"

	"github.com/zordprotocol/zord/pkg/logging"
)

// Notifier signals the indexer whenever a new block is announced over ZMQ.
type Notifier struct {
	client *gozmq.Client
	signal chan struct{}
	quit   chan struct{}
	logger *logging.Logger
}

// Start connects to a "rawblock"/"hashblock" ZMQ publisher at addr and
// begins forwarding a signal on the Signal channel for every announcement.
// The channel has capacity 1: a pending signal is never duplicated, and a
// slow consumer never blocks the listener goroutine.
func Start(addr string, logger *logging.Logger) (*Notifier, error) {
	client, err := gozmq.NewSubscriber(addr, []string{"rawblock", "hashblock"}, 100, 5*time.Second)
	if err != nil {
		return nil, err
	}

	n := &Notifier{
		client: client,
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		logger: logger,
	}
	go n.run()
	return n, nil
}

// Signal delivers one empty struct per coalesced batch of block
// announcements received since the last receive from this channel.
func (n *Notifier) Signal() <-chan struct{} {
	return n.signal
}

// Stop closes the underlying ZMQ connection and stops the listener goroutine.
func (n *Notifier) Stop() error {
	close(n.quit)
	return n.client.Close()
}

func (n *Notifier) run() {
	for {
		msg, err := n.client.Receive(n.quit)
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
			}
			n.logger.Warn("zmq receive failed", "error", err)
			continue
		}
		if len(msg) == 0 {
			continue
		}

		select {
		case n.signal <- struct{}{}:
		default:
			// A signal is already pending; the indexer hasn't drained it
			// yet, so this announcement is redundant.
		}
	}
}
