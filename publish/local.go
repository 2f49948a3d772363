package publish

import (
	"context"
	"strings"
	"sync"

	"github.com/mklimuk/lightsense"
)

var _ lightsense.Publisher = &Local{}

// Message is a publication delivered to local subscribers.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription receives the messages published under one topic.
type Subscription struct {
	topic []string
	ch    chan Message
	local *Local
	once  sync.Once
}

func (s *Subscription) Channel() <-chan Message { return s.ch }

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.local.unsubscribe(s)
		close(s.ch)
	})
}

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

// Local is an in-process topic broker. Topics are slash separated and
// matched exactly. Each subscription has a bounded queue; when a slow
// subscriber's queue is full the oldest message is dropped.
type Local struct {
	mx     sync.Mutex
	root   *node
	qLen   int
	retain bool
}

type LocalOpt func(*Local)

// WithRetain keeps the last payload of every topic and hands it to new
// subscribers.
func WithRetain(retain bool) LocalOpt {
	return func(l *Local) {
		l.retain = retain
	}
}

func NewLocal(queueLen int, opts ...LocalOpt) *Local {
	if queueLen <= 0 {
		queueLen = 8
	}
	l := &Local{root: &node{}, qLen: queueLen}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func split(topic string) []string {
	return strings.Split(strings.Trim(topic, "/"), "/")
}

// walk returns the node of topic, creating the path when create is set.
func (l *Local) walk(topic []string, create bool) *node {
	n := l.root
	for _, tok := range topic {
		child, ok := n.children[tok]
		if !ok {
			if !create {
				return nil
			}
			if n.children == nil {
				n.children = make(map[string]*node)
			}
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	return n
}

func (l *Local) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: split(topic),
		ch:    make(chan Message, l.qLen),
		local: l,
	}
	l.mx.Lock()
	defer l.mx.Unlock()
	n := l.walk(sub.topic, true)
	n.subs = append(n.subs, sub)
	if n.retained != nil {
		sub.ch <- *n.retained
	}
	return sub
}

// Publish delivers payload to the subscribers of topic. It never blocks on
// subscribers and reports completion before returning.
func (l *Local) Publish(ctx context.Context, topic string, payload []byte, done lightsense.PublishCallback) {
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	l.mx.Lock()
	n := l.walk(split(topic), l.retain)
	if n != nil {
		for _, sub := range n.subs {
			deliver(sub.ch, msg)
		}
		if l.retain {
			n.retained = &msg
		}
	}
	l.mx.Unlock()
	if done != nil {
		done(topic, nil)
	}
}

func deliver(ch chan Message, msg Message) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

func (l *Local) unsubscribe(sub *Subscription) {
	l.mx.Lock()
	defer l.mx.Unlock()
	stack := []*node{l.root}
	n := l.root
	for _, tok := range sub.topic {
		child, ok := n.children[tok]
		if !ok {
			return
		}
		n = child
		stack = append(stack, n)
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	for i := len(sub.topic) - 1; i >= 0; i-- {
		child := stack[i+1]
		if len(child.subs) > 0 || len(child.children) > 0 || child.retained != nil {
			break
		}
		delete(stack[i].children, sub.topic[i])
	}
}
