package interop

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualFence signals immediately unless told otherwise.
type manualFence struct {
	waits, resets int
	err           error
}

func (f *manualFence) Wait(time.Duration) error {
	f.waits++
	return f.err
}

func (f *manualFence) Reset() error {
	f.resets++
	return nil
}

func (f *manualFence) Destroy() {}

func newTestSync(producer, consumer Fence) *FrameSynchronizer {
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)
	return NewFrameSynchronizer(producer, consumer, time.Second, log)
}

func TestSynchronizerStates(t *testing.T) {
	pf, cf := &manualFence{}, &manualFence{}
	s := newTestSync(pf, cf)
	assert.Equal(t, SyncIdle, s.State())

	err := s.Complete()
	assert.ErrorIs(t, err, ErrPrecondition)

	submits := 0
	require.NoError(t, s.Submit(func() error { submits++; return nil }))
	assert.Equal(t, SyncSubmitted, s.State())

	err = s.Submit(func() error { submits++; return nil })
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, 1, submits)

	require.NoError(t, s.Complete())
	assert.Equal(t, SyncIdle, s.State())
	assert.Equal(t, 1, pf.waits)
	assert.Equal(t, 1, pf.resets)
}

func TestSynchronizerWaitsConsumerBeforeNextSubmit(t *testing.T) {
	pf, cf := &manualFence{}, &manualFence{}
	s := newTestSync(pf, cf)

	require.NoError(t, s.Submit(func() error { return nil }))
	require.NoError(t, s.Complete())
	s.ConsumerIssued()
	assert.Zero(t, cf.waits)

	require.NoError(t, s.Submit(func() error {
		assert.Equal(t, 1, cf.waits, "consumer copy must finish before the producer writes again")
		return nil
	}))
	require.NoError(t, s.Drain())
	assert.Equal(t, SyncIdle, s.State())
	assert.Equal(t, 1, cf.waits)
}

func TestSynchronizerTimeoutAndDeviceLost(t *testing.T) {
	pf := &manualFence{err: NewError(KindTimeout, "wait fence", 0, nil)}
	s := newTestSync(pf, &manualFence{})
	require.NoError(t, s.Submit(func() error { return nil }))
	err := s.Complete()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, SyncSubmitted, s.State())

	pf.err = NewError(KindDeviceLost, "wait fence", -4, nil)
	err = s.Complete()
	assert.ErrorIs(t, err, ErrDeviceLost)
}

func TestSynchronizerSubmitFailure(t *testing.T) {
	s := newTestSync(&manualFence{}, &manualFence{})
	err := s.Submit(func() error { return statusErr(-3) })
	assert.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, SyncIdle, s.State())
}
