// Package events ingests modem signals: incoming SMS and voice-call
// lifecycle. Each listener owns a private D-Bus connection so its signal
// stream is isolated from request traffic, persists what it sees, and hands
// finalized rows to the configured sinks.
package events

import (
	"github.com/soyea/cpe-manager/pkg/storage"
)

// Sink receives persisted events for fan-out (webhook, live UI push).
// Sinks must never mutate the rows they receive.
type Sink interface {
	ForwardSms(msg *storage.SmsMessage) error
	ForwardCall(call *storage.CallRecord) error
}

// MultiSink fans one event out to several sinks; each sink's error is
// independent and does not stop the others.
type MultiSink struct {
	sinks []Sink
	onErr func(error)
}

// NewMultiSink builds a fan-out sink. onErr may be nil.
func NewMultiSink(onErr func(error), sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, onErr: onErr}
}

// ForwardSms delivers to every sink.
func (m *MultiSink) ForwardSms(msg *storage.SmsMessage) error {
	for _, sink := range m.sinks {
		if err := sink.ForwardSms(msg); err != nil && m.onErr != nil {
			m.onErr(err)
		}
	}
	return nil
}

// ForwardCall delivers to every sink.
func (m *MultiSink) ForwardCall(call *storage.CallRecord) error {
	for _, sink := range m.sinks {
		if err := sink.ForwardCall(call); err != nil && m.onErr != nil {
			m.onErr(err)
		}
	}
	return nil
}
