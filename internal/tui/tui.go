// Package tui is the interactive post browser behind `gator browse --tui`.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"gator/domain"
	"gator/internal/helper"
)

// Loader fetches one page of posts for the given options.
type Loader func(ctx context.Context, opts domain.PostQueryOptions) (domain.PostPage, error)

type view int

const (
	listView view = iota
	detailView
)

type pageLoadedMsg struct {
	page domain.PostPage
	err  error
}

type browserOpenedMsg struct {
	url string
	err error
}

type Model struct {
	ctx  context.Context
	load Loader
	opts domain.PostQueryOptions

	page    domain.PostPage
	cursor  int
	view    view
	loading bool
	err     error
	status  string

	width    int
	height   int
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	openURL func(string) error
	now     func() time.Time
}

func New(ctx context.Context, load Loader, opts domain.PostQueryOptions) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = itemSelectedStyle
	if opts.Limit <= 0 {
		opts.Limit = domain.DefaultPostLimit
	}
	return Model{
		ctx:      ctx,
		load:     load,
		opts:     opts,
		loading:  true,
		width:    80,
		height:   24,
		viewport: viewport.New(80, 18),
		spinner:  s,
		help:     help.New(),
		keys:     defaultKeys(),
		openURL:  openBrowser,
		now:      time.Now,
	}
}

// Run starts the browser in the alternate screen and blocks until the user quits.
func Run(ctx context.Context, load Loader, opts domain.PostQueryOptions) error {
	p := tea.NewProgram(New(ctx, load, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	ctx, load, opts := m.ctx, m.load, m.opts
	return func() tea.Msg {
		page, err := load(ctx, opts)
		return pageLoadedMsg{page: page, err: err}
	}
}

func (m Model) open(url string) tea.Cmd {
	opener := m.openURL
	return func() tea.Msg {
		return browserOpenedMsg{url: url, err: opener(url)}
	}
}

func (m Model) selected() (domain.PostView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.page.Posts) {
		return domain.PostView{}, false
	}
	return m.page.Posts[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 1)
		return m, nil

	case pageLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.page = msg.page
		m.cursor = 0
		m.view = listView
		return m, nil

	case browserOpenedMsg:
		if msg.err != nil {
			m.status = "Could not open browser: " + msg.err.Error()
		} else {
			m.status = "Opened " + msg.url
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.view == detailView {
		switch {
		case key.Matches(msg, m.keys.Back):
			m.view = listView
			return m, nil
		case key.Matches(msg, m.keys.Browser):
			if p, ok := m.selected(); ok {
				return m, m.open(p.URL)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.page.Posts)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if p, ok := m.selected(); ok {
			m.view = detailView
			m.viewport.SetContent(m.renderDetail(p))
			m.viewport.GotoTop()
		}
	case key.Matches(msg, m.keys.Browser):
		if p, ok := m.selected(); ok {
			return m, m.open(p.URL)
		}
	case key.Matches(msg, m.keys.Next):
		if m.loading || !m.page.HasMore {
			return m, nil
		}
		m.opts.Offset += m.opts.Limit
		return m.startLoading()
	case key.Matches(msg, m.keys.Prev):
		if m.loading || m.opts.Offset == 0 {
			return m, nil
		}
		m.opts.Offset = max(m.opts.Offset-m.opts.Limit, 0)
		return m.startLoading()
	}
	return m, nil
}

func (m Model) startLoading() (tea.Model, tea.Cmd) {
	m.loading = true
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.header()))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(fmt.Sprintf(" %s Loading posts...\n", m.spinner.View()))
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.view == detailView:
		b.WriteString(m.viewport.View() + "\n")
	case m.page.TotalCount == 0:
		b.WriteString(statusStyle.Render("No posts found. Make sure you're following some feeds!") + "\n")
	case len(m.page.Posts) == 0:
		b.WriteString(statusStyle.Render(fmt.Sprintf("No posts at offset %d", m.opts.Offset)) + "\n")
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) header() string {
	if m.page.TotalCount == 0 {
		return "gator"
	}
	pages := (m.page.TotalCount + m.opts.Limit - 1) / m.opts.Limit
	current := m.opts.Offset/m.opts.Limit + 1
	return fmt.Sprintf("gator · page %d/%d · %d posts", current, pages, m.page.TotalCount)
}

func (m Model) renderList() string {
	var b strings.Builder
	now := m.now()
	for i, p := range m.page.Posts {
		marker, title := "  ", itemTitleStyle.Render(p.Title)
		if i == m.cursor {
			marker, title = "> ", itemSelectedStyle.Render(p.Title)
		}
		b.WriteString(marker + title + "\n")
		meta := itemFeedStyle.Render(p.FeedName)
		if p.PublishedAt != nil {
			meta += " " + itemTimeStyle.Render(humanize.RelTime(*p.PublishedAt, now, "ago", "from now"))
		}
		b.WriteString("    " + meta + "\n")
	}
	return b.String()
}

func (m Model) renderDetail(p domain.PostView) string {
	var b strings.Builder
	b.WriteString(detailTitleStyle.Render(p.Title) + "\n")
	b.WriteString(itemFeedStyle.Render(p.FeedName) + "\n")
	if p.PublishedAt != nil {
		b.WriteString(itemTimeStyle.Render(p.PublishedAt.Local().Format("2006-01-02 15:04")) + "\n")
	}
	b.WriteString(p.URL + "\n\n")
	if p.Description != nil {
		b.WriteString(lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(helper.PlainText(*p.Description)))
	}
	return b.String()
}
