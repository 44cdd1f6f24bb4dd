package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/flamezoom/internal/profile"
	"github.com/tobert/flamezoom/internal/span"
)

func TestSessionRequiresProfile(t *testing.T) {
	s := New(1000)
	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrNoProfile)
	assert.ErrorIs(t, s.Reset(), ErrNoProfile)
	_, err = s.Back()
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestSessionLoadAndSelect(t *testing.T) {
	s := New(1000)
	require.NoError(t, s.Load("sample", span.Sample()))

	st, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "sample", st.TraceID)
	assert.Equal(t, 5, st.Spans)
	assert.Equal(t, st.Root, st.Selected)
	require.Len(t, st.Path, 1)
	assert.Equal(t, profile.RootLabel, st.Path[0].Label)

	require.NoError(t, s.SelectPath("all", "inside2"))
	st, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "inside2", st.View.Label)
	assert.Equal(t, uint16(1000), st.View.Width)
	assert.Equal(t, []string{"root", "all", "inside2"}, crumbLabels(st.Path))

	moved, err := s.Back()
	require.NoError(t, err)
	assert.True(t, moved)
	st, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, st.Root, st.Selected)
}

func TestSessionFailedLoadKeepsProfile(t *testing.T) {
	s := New(1000)
	require.NoError(t, s.Load("sample", span.Sample()))
	assert.ErrorIs(t, s.Load("empty", nil), profile.ErrEmptyForest)

	st, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "sample", st.TraceID)
}

func TestSessionStaleIDAfterReload(t *testing.T) {
	s := New(1000)
	require.NoError(t, s.Load("one", span.Sample()))
	st, err := s.Snapshot()
	require.NoError(t, err)

	require.NoError(t, s.Load("two", span.Sample()))
	assert.ErrorIs(t, s.Select(st.Root), profile.ErrUnknownNode)
}

func TestSessionNotifiesSubscribers(t *testing.T) {
	s := New(1000)
	ch, unsubscribe := s.Subscribe()

	require.NoError(t, s.Load("sample", span.Sample()))
	select {
	case <-ch:
	default:
		t.Fatal("expected notification after load")
	}

	unsubscribe()
	require.NoError(t, s.Reset())
	select {
	case <-ch:
		t.Fatal("unexpected notification after unsubscribe")
	default:
	}
}

func TestSessionBackWithoutHistoryIsSilent(t *testing.T) {
	s := New(1000)
	require.NoError(t, s.Load("sample", span.Sample()))

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	moved, err := s.Back()
	require.NoError(t, err)
	assert.False(t, moved)
	select {
	case <-ch:
		t.Fatal("Back with empty history must not notify")
	default:
	}

	require.NoError(t, s.SelectPath("all", "inside2"))
	<-ch

	moved, err = s.Back()
	require.NoError(t, err)
	assert.True(t, moved)
	select {
	case <-ch:
	default:
		t.Fatal("expected notification after Back moved")
	}
}

func TestSessionConcurrentSelect(t *testing.T) {
	s := New(1000)
	require.NoError(t, s.Load("sample", span.Sample()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = s.SelectPath("all", "inside2")
			} else {
				_ = s.Reset()
			}
			_, _ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	_, err := s.Snapshot()
	assert.NoError(t, err)
}

func crumbLabels(path []Crumb) []string {
	out := make([]string, len(path))
	for i, c := range path {
		out[i] = c.Label
	}
	return out
}

type fakeSource map[string][]span.Span

func (f fakeSource) Forest(traceID string) ([]span.Span, error) {
	forest, ok := f[traceID]
	if !ok {
		return nil, errors.New("missing " + traceID)
	}
	return forest, nil
}

func (f fakeSource) Latest() (string, bool) {
	if _, ok := f["latest"]; ok {
		return "latest", true
	}
	return "", false
}

func TestSessionLoadFrom(t *testing.T) {
	s := New(1000)

	_, err := s.LoadFrom(fakeSource{}, "")
	assert.ErrorIs(t, err, ErrNoTraces)
	assert.Empty(t, s.TraceID())

	src := fakeSource{"latest": span.Sample(), "other": span.Sample()[:1]}
	id, err := s.LoadFrom(src, "")
	require.NoError(t, err)
	assert.Equal(t, "latest", id)
	assert.Equal(t, "latest", s.TraceID())

	id, err = s.LoadFrom(src, "other")
	require.NoError(t, err)
	assert.Equal(t, "other", id)

	_, err = s.LoadFrom(src, "gone")
	assert.Error(t, err)
	assert.Equal(t, "other", s.TraceID())
}
