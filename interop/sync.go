package interop

import (
	"time"

	"github.com/sirupsen/logrus"
)

type SyncState int

const (
	SyncIdle SyncState = iota
	SyncSubmitted
)

func (s SyncState) String() string {
	if s == SyncSubmitted {
		return "submitted"
	}
	return "idle"
}

// FrameSynchronizer orders producer writes and consumer reads of the shared
// image. One frame is in flight at most; the consumer's copy is fenced too
// and waited on before the producer writes again.
type FrameSynchronizer struct {
	producer Fence
	consumer Fence
	timeout  time.Duration
	log      logrus.FieldLogger

	state           SyncState
	consumerPending bool
}

// NewFrameSynchronizer takes ownership of neither fence. A timeout <= 0
// waits forever.
func NewFrameSynchronizer(producer, consumer Fence, timeout time.Duration, log logrus.FieldLogger) *FrameSynchronizer {
	return &FrameSynchronizer{
		producer: producer,
		consumer: consumer,
		timeout:  timeout,
		log:      log.WithField("component", "sync"),
	}
}

func (s *FrameSynchronizer) State() SyncState { return s.state }

// Submit runs submit, which must signal the producer fence. Legal only when
// Idle. Any pending consumer copy is waited on first.
func (s *FrameSynchronizer) Submit(submit func() error) error {
	if s.state != SyncIdle {
		return preconditionf("submit frame", "synchronizer is %s", s.state)
	}
	if err := s.waitConsumer(); err != nil {
		return err
	}
	if err := submit(); err != nil {
		return wrap(KindSubmission, "submit frame", err)
	}
	s.state = SyncSubmitted
	return nil
}

// Complete waits for the producer fence and resets it. After Complete the
// shared image is safe to read.
func (s *FrameSynchronizer) Complete() error {
	if s.state != SyncSubmitted {
		return preconditionf("complete frame", "synchronizer is %s", s.state)
	}
	if err := s.wait(s.producer, "wait producer fence"); err != nil {
		return err
	}
	s.state = SyncIdle
	return nil
}

// ConsumerIssued records that the consumer's copy was submitted with the
// consumer fence.
func (s *FrameSynchronizer) ConsumerIssued() { s.consumerPending = true }

// Drain waits every outstanding fence.
func (s *FrameSynchronizer) Drain() error {
	if s.state == SyncSubmitted {
		if err := s.Complete(); err != nil {
			return err
		}
	}
	return s.waitConsumer()
}

func (s *FrameSynchronizer) waitConsumer() error {
	if !s.consumerPending {
		return nil
	}
	if err := s.wait(s.consumer, "wait consumer fence"); err != nil {
		return err
	}
	s.consumerPending = false
	return nil
}

func (s *FrameSynchronizer) wait(f Fence, op string) error {
	start := time.Now()
	if err := f.Wait(s.timeout); err != nil {
		s.log.WithError(err).WithField("op", op).Error("fence wait failed")
		return wrap(KindSubmission, op, err)
	}
	if err := f.Reset(); err != nil {
		return wrap(KindSubmission, op, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "elapsed": time.Since(start)}).Trace("fence signaled")
	return nil
}
