package orchestrator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/pkg/models"
)

func TestNearBottom(t *testing.T) {
	tests := []struct {
		name                            string
		offset, visible, total, thresh int
		want                            bool
	}{
		{"top of long content", 0, 20, 200, 5, false},
		{"just outside threshold", 175, 20, 200, 5, false},
		{"inside threshold", 176, 20, 200, 5, true},
		{"at bottom", 180, 20, 200, 5, true},
		{"content shorter than viewport", 0, 20, 10, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NearBottom(tt.offset, tt.visible, tt.total, tt.thresh))
		})
	}
}

func openSession(t *testing.T, s *Store, ref models.SessionRef) {
	t.Helper()
	drive(t, s, s.SelectProject(ref.ProjectID))
	drive(t, s, s.SelectSession(ref))
	require.True(t, s.Messages().Loaded())
}

func TestPaginationScenario(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f, WithPageSize(50))

	drive(t, s, s.LoadProjects())
	drive(t, s, s.SelectProject(refS1.ProjectID))
	require.Len(t, s.Sessions(), 3)

	drive(t, s, s.SelectSession(refS1))
	pager := s.Messages()
	assert.Len(t, pager.Items(), 50)
	assert.Equal(t, 120, pager.Total())
	assert.True(t, pager.HasMore())

	drive(t, s, s.LoadNextPage())
	assert.Len(t, pager.Items(), 100)
	assert.True(t, pager.HasMore())

	drive(t, s, s.LoadNextPage())
	assert.Len(t, pager.Items(), 120)
	assert.False(t, pager.HasMore())
	assert.True(t, pager.Exhausted())
	assert.Equal(t, 2, pager.Page())

	for i, msg := range pager.Items() {
		assert.Equal(t, fmt.Sprintf("s1-%03d", i), msg.UUID)
	}

	calls := f.callCount("messages")
	assert.Nil(t, s.LoadNextPage(), "no request once every page is loaded")
	assert.Equal(t, calls, f.callCount("messages"))
}

func TestFirstPageIsIdempotent(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f)
	openSession(t, s, refS1)

	first := append([]models.Message(nil), s.Messages().Items()...)
	drive(t, s, s.LoadFirstPage())
	assert.Equal(t, first, s.Messages().Items())

	drive(t, s, s.LoadNextPage())
	require.Len(t, s.Messages().Items(), 100)

	drive(t, s, s.LoadFirstPage())
	assert.Equal(t, first, s.Messages().Items(), "first page replaces rather than appends")
	assert.Equal(t, 0, s.Messages().Page())
}

func TestLoadNextPageIsNoopWhileLoading(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f)
	openSession(t, s, refS1)

	cmd := s.LoadNextPage()
	require.NotNil(t, cmd)
	assert.True(t, s.Messages().Loading())
	assert.Nil(t, s.LoadNextPage())

	drive(t, s, cmd)
	assert.Len(t, s.Messages().Items(), 100)
	assert.Equal(t, 2, f.callCount("messages"))
}

func TestLoadNextPageBeforeFirstPage(t *testing.T) {
	s := newTestStore(t, newFakeProvider())
	assert.Nil(t, s.LoadNextPage())
	assert.Nil(t, s.LoadFirstPage())

	drive(t, s, s.SelectProject(refS1.ProjectID))
	cmd := s.SelectSession(refS1)
	require.NotNil(t, cmd)
	assert.Nil(t, s.LoadNextPage(), "next page waits for the first one")
	drive(t, s, cmd)
}

func TestStalePageFromPreviousSessionIsDropped(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f)
	drive(t, s, s.SelectProject(refS1.ProjectID))

	cmd1 := s.SelectSession(refS1)
	cmd2 := s.SelectSession(refS2)

	drive(t, s, apply(s, collect(cmd2)))
	drive(t, s, apply(s, collect(cmd1)))

	assert.Equal(t, refS2, s.Messages().Ref())
	require.Len(t, s.Messages().Items(), 10)
	for _, msg := range s.Messages().Items() {
		assert.True(t, strings.HasPrefix(msg.UUID, "s2-"), msg.UUID)
	}
}

func TestStaleNextPageAfterReload(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f)
	openSession(t, s, refS1)

	next := s.LoadNextPage()
	first := s.LoadFirstPage()

	drive(t, s, apply(s, collect(first)))
	drive(t, s, apply(s, collect(next)))

	assert.Len(t, s.Messages().Items(), 50)
	assert.Equal(t, 0, s.Messages().Page())
	assert.False(t, s.Messages().Loading())
}

func TestPageFailureKeepsItems(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f)
	openSession(t, s, refS1)

	f.setErr("messages", fmt.Errorf("read transcript: %w", ErrIO))
	drive(t, s, s.LoadNextPage())

	pager := s.Messages()
	require.Error(t, pager.Err())
	assert.ErrorIs(t, pager.Err(), ErrIO)
	assert.False(t, pager.Loading())
	assert.Len(t, pager.Items(), 50)
	assert.True(t, pager.HasMore())

	f.setErr("messages", nil)
	drive(t, s, s.LoadNextPage())
	assert.NoError(t, pager.Err())
	assert.Len(t, pager.Items(), 100)
	assert.Equal(t, 1, pager.Page())
}

func TestCancelledPageIsNotSurfaced(t *testing.T) {
	f := newFakeProvider()
	s := newTestStore(t, f)
	openSession(t, s, refS1)

	f.setErr("messages", ErrCancelled)
	drive(t, s, s.LoadNextPage())
	assert.NoError(t, s.Messages().Err())
	assert.False(t, s.Messages().Loading())
	assert.Len(t, s.Messages().Items(), 50)
}

func TestPagerEmptyPageEndsPagination(t *testing.T) {
	p := NewPager(10)
	ref := refS3
	p.reset(ref)

	req, ok := p.beginFirst()
	require.True(t, ok)
	require.True(t, p.apply(PageLoadedMsg{
		Gen: req.Gen, Ref: ref, Page: 0,
		Result: models.MessagePage{Messages: transcript(ref, 10), Total: 20, HasMore: true},
	}))
	assert.True(t, p.HasMore())

	req, ok = p.beginNext()
	require.True(t, ok)
	require.True(t, p.apply(PageLoadedMsg{
		Gen: req.Gen, Ref: ref, Page: 1,
		Result: models.MessagePage{Total: 20, HasMore: true},
	}))
	assert.False(t, p.HasMore(), "an empty page is terminal")
	assert.Len(t, p.Items(), 10)

	_, ok = p.beginNext()
	assert.False(t, ok)
}

func TestPagerSkipsUndecodablePage(t *testing.T) {
	p := NewPager(10)
	ref := refS3
	p.reset(ref)

	req, ok := p.beginFirst()
	require.True(t, ok)
	require.True(t, p.apply(PageLoadedMsg{
		Gen: req.Gen, Ref: ref, Page: 0,
		Result: models.MessagePage{Messages: transcript(ref, 10), Total: 30, HasMore: true},
	}))

	req, ok = p.beginNext()
	require.True(t, ok)
	require.True(t, p.apply(PageLoadedMsg{
		Gen: req.Gen, Ref: ref, Page: 1,
		Result: models.MessagePage{Total: 30, HasMore: true},
	}))
	assert.True(t, p.HasMore(), "rows remain after the empty page")
	assert.Equal(t, 1, p.Page())

	req, ok = p.beginNext()
	require.True(t, ok)
	assert.Equal(t, 2, req.Page)
	require.True(t, p.apply(PageLoadedMsg{
		Gen: req.Gen, Ref: ref, Page: 2,
		Result: models.MessagePage{Messages: transcript(ref, 10), Total: 30, HasMore: false},
	}))
	assert.Len(t, p.Items(), 20)
	assert.False(t, p.HasMore())
}

func TestPagerRejectsUnexpectedPage(t *testing.T) {
	p := NewPager(10)
	p.reset(refS3)
	req, ok := p.beginFirst()
	require.True(t, ok)

	assert.False(t, p.apply(PageLoadedMsg{Gen: req.Gen, Ref: refS3, Page: 1}))
	assert.False(t, p.apply(PageLoadedMsg{Gen: req.Gen, Ref: refS2, Page: 0}))
	assert.False(t, p.apply(PageLoadedMsg{Gen: req.Gen + 1, Ref: refS3, Page: 0}))
	assert.True(t, p.Loading())
}
