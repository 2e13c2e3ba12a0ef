package tui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gator/domain"
)

func posts(n, from int) []domain.PostView {
	out := make([]domain.PostView, n)
	for i := range out {
		published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Duration(from+i) * time.Hour)
		out[i] = domain.PostView{
			ID:          fmt.Sprintf("p%d", from+i),
			Title:       fmt.Sprintf("Post %d", from+i),
			URL:         fmt.Sprintf("https://example.com/%d", from+i),
			FeedName:    "Example",
			PublishedAt: &published,
		}
	}
	return out
}

// pagedLoader serves total posts in pages and records the requested offsets.
func pagedLoader(total int, offsets *[]int) Loader {
	return func(_ context.Context, o domain.PostQueryOptions) (domain.PostPage, error) {
		*offsets = append(*offsets, o.Offset)
		n := max(min(o.Limit, total-o.Offset), 0)
		return domain.PostPage{
			Posts:      posts(n, o.Offset),
			TotalCount: total,
			HasMore:    o.Offset+n < total,
		}, nil
	}
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// loaded returns a model with its first page already delivered.
func loaded(t *testing.T, load Loader, opts domain.PostQueryOptions) Model {
	t.Helper()
	m := New(context.Background(), load, opts)
	m.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	msg := m.fetch()()
	m, _ = update(t, m, msg)
	return m
}

func TestInitialLoad(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(25, &offsets), domain.PostQueryOptions{Limit: 10})

	assert.False(t, m.loading)
	assert.Equal(t, []int{0}, offsets)
	assert.Len(t, m.page.Posts, 10)

	out := m.View()
	assert.Contains(t, out, "page 1/3")
	assert.Contains(t, out, "25 posts")
	assert.Contains(t, out, "Post 0")
}

func TestDefaultLimitApplied(t *testing.T) {
	m := New(context.Background(), nil, domain.PostQueryOptions{})
	assert.Equal(t, domain.DefaultPostLimit, m.opts.Limit)
	assert.True(t, m.loading)
	assert.Contains(t, m.View(), "Loading posts")
}

func TestCursorMovement(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(3, &offsets), domain.PostQueryOptions{Limit: 10})

	m, _ = update(t, m, keyPress("k"))
	assert.Equal(t, 0, m.cursor)

	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress("j"))
	assert.Equal(t, 2, m.cursor)

	m, _ = update(t, m, keyPress("k"))
	assert.Equal(t, 1, m.cursor)
}

func TestPaging(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(25, &offsets), domain.PostQueryOptions{Limit: 10})

	m, cmd := update(t, m, keyPress("n"))
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	assert.Equal(t, 10, m.opts.Offset)

	m, _ = update(t, m, m.fetch()())
	assert.Equal(t, "Post 10", m.page.Posts[0].Title)
	assert.Contains(t, m.View(), "page 2/3")

	m, _ = update(t, m, keyPress("n"))
	m, _ = update(t, m, m.fetch()())
	assert.Len(t, m.page.Posts, 5)
	assert.False(t, m.page.HasMore)

	m, cmd = update(t, m, keyPress("n"))
	assert.Nil(t, cmd)
	assert.Equal(t, 20, m.opts.Offset)

	m, _ = update(t, m, keyPress("p"))
	assert.Equal(t, 10, m.opts.Offset)
	m, _ = update(t, m, m.fetch()())
	m, _ = update(t, m, keyPress("p"))
	assert.Equal(t, 0, m.opts.Offset)
	m, _ = update(t, m, m.fetch()())

	m, cmd = update(t, m, keyPress("p"))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, m.opts.Offset)
}

func TestPagingIgnoredWhileLoading(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(25, &offsets), domain.PostQueryOptions{Limit: 10})

	m, _ = update(t, m, keyPress("n"))
	m, cmd := update(t, m, keyPress("n"))
	assert.Nil(t, cmd)
	assert.Equal(t, 10, m.opts.Offset)
}

func TestDetailView(t *testing.T) {
	var offsets []int
	load := func(ctx context.Context, o domain.PostQueryOptions) (domain.PostPage, error) {
		page, err := pagedLoader(2, &offsets)(ctx, o)
		desc := "<p>Hello &amp; <b>welcome</b></p>"
		page.Posts[1].Description = &desc
		return page, err
	}
	m := loaded(t, load, domain.PostQueryOptions{Limit: 10})

	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress("enter"))
	assert.Equal(t, detailView, m.view)
	out := m.View()
	assert.Contains(t, out, "Post 1")
	assert.Contains(t, out, "Hello & welcome")
	assert.NotContains(t, out, "<b>")

	m, _ = update(t, m, keyPress("esc"))
	assert.Equal(t, listView, m.view)
}

func TestOpenInBrowser(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(2, &offsets), domain.PostQueryOptions{Limit: 10})
	var opened []string
	m.openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}

	m, cmd := update(t, m, keyPress("o"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, []string{"https://example.com/0"}, opened)
	assert.Contains(t, m.View(), "Opened https://example.com/0")

	m.openURL = func(string) error { return errors.New("no display") }
	m, cmd = update(t, m, keyPress("o"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "Could not open browser: no display")
}

func TestLoadError(t *testing.T) {
	load := func(context.Context, domain.PostQueryOptions) (domain.PostPage, error) {
		return domain.PostPage{}, errors.New("database is locked")
	}
	m := loaded(t, load, domain.PostQueryOptions{})
	assert.Contains(t, m.View(), "Error: database is locked")
}

func TestEmptyResult(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(0, &offsets), domain.PostQueryOptions{})
	assert.Contains(t, m.View(), "No posts found")

	m, _ = update(t, m, keyPress("enter"))
	assert.Equal(t, listView, m.view)
}

func TestQuitAndHelp(t *testing.T) {
	var offsets []int
	m := loaded(t, pagedLoader(1, &offsets), domain.PostQueryOptions{})

	m, _ = update(t, m, keyPress("?"))
	assert.True(t, m.help.ShowAll)

	_, cmd := update(t, m, keyPress("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = update(t, m, keyPress("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestOpenBrowserRejectsNonHTTP(t *testing.T) {
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "ftp://example.com", ""} {
		assert.Error(t, openBrowser(u), u)
	}
}
