package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/media"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/theme"
	"github.com/nhle/agora/internal/ui"
)

// Source is the part of the backend client the library reads from.
type Source interface {
	Products(ctx context.Context) ([]model.Product, error)
	Posts(ctx context.Context) ([]model.Post, error)
}

var (
	productsKey = cache.Key{"products"}
	postsKey    = cache.Key{"posts"}
)

type tab int

const (
	tabProducts tab = iota
	tabPosts
)

// LoadedMsg carries the catalog lists.
type LoadedMsg struct {
	Products []model.Product
	Posts    []model.Post
	Err      error
}

// Model is the library view: the book/product catalog and the community
// posts.
type Model struct {
	cache       *cache.Cache
	src         Source
	media       *media.Resolver
	keys        *keys.KeyMap
	tab         tab
	products    []model.Product
	posts       []model.Post
	selectedIdx int
	focusPost   string
	loading     bool
	err         error
	width       int
	height      int
}

// New creates the library view.
func New(c *cache.Cache, src Source, r *media.Resolver, k *keys.KeyMap, width, height int) Model {
	return Model{cache: c, src: src, media: r, keys: k, width: width, height: height}
}

// Load returns a command that queries both lists through the cache.
func (m *Model) Load() tea.Cmd {
	c, src := m.cache, m.src
	m.loading = true
	return func() tea.Msg {
		ctx := context.Background()
		pr := c.Query(ctx, productsKey, func(ctx context.Context) (any, error) {
			return src.Products(ctx)
		})
		po := c.Query(ctx, postsKey, func(ctx context.Context) (any, error) {
			return src.Posts(ctx)
		})

		products, _ := cache.Value[[]model.Product](pr)
		posts, _ := cache.Value[[]model.Post](po)

		err := pr.Err
		if err == nil {
			err = po.Err
		}
		return LoadedMsg{Products: products, Posts: posts, Err: err}
	}
}

// Update handles messages for the library view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.err = msg.Err
		m.products = msg.Products
		m.posts = msg.Posts
		m.selectFocused()
		m.selectedIdx = ui.Clamp(m.selectedIdx, m.count())
		return m, nil

	case tea.KeyMsg:
		switch {
		case msg.String() == "tab":
			if m.tab == tabProducts {
				m.tab = tabPosts
			} else {
				m.tab = tabProducts
			}
			m.selectedIdx = 0
		case key.Matches(msg, m.keys.Down):
			if n := m.count(); n > 0 {
				m.selectedIdx = (m.selectedIdx + 1) % n
			}
		case key.Matches(msg, m.keys.Up):
			if n := m.count(); n > 0 {
				m.selectedIdx--
				if m.selectedIdx < 0 {
					m.selectedIdx = n - 1
				}
			}
		}
	}
	return m, nil
}

// ShowPost switches to the posts tab and selects the post with id once
// the list is loaded.
func (m *Model) ShowPost(id string) tea.Cmd {
	m.tab = tabPosts
	m.focusPost = id
	m.selectFocused()
	return m.Load()
}

func (m *Model) selectFocused() {
	if m.focusPost == "" {
		return
	}
	for i, p := range m.posts {
		if p.ID == m.focusPost {
			m.selectedIdx = i
			m.focusPost = ""
			return
		}
	}
}

func (m Model) count() int {
	if m.tab == tabPosts {
		return len(m.posts)
	}
	return len(m.products)
}

// View renders the library.
func (m Model) View() string {
	var b strings.Builder

	productsTab, postsTab := theme.DimmedStyle.Render("Library"), theme.DimmedStyle.Render("Posts")
	if m.tab == tabProducts {
		productsTab = theme.TitleStyle.UnsetMarginBottom().Render("Library")
	} else {
		postsTab = theme.TitleStyle.UnsetMarginBottom().Render("Posts")
	}
	b.WriteString(productsTab + "  " + postsTab + "  " + theme.HelpStyle.Render("tab switch"))
	b.WriteString("\n\n")

	switch {
	case m.loading && m.count() == 0:
		b.WriteString(theme.DimmedStyle.Render("Loading..."))
	case m.err != nil && m.count() == 0:
		b.WriteString(theme.DimmedStyle.Render("Could not load the library: " + m.err.Error()))
	case m.count() == 0:
		b.WriteString(theme.DimmedStyle.Render("Nothing here yet."))
	case m.tab == tabProducts:
		b.WriteString(m.viewProducts())
	default:
		b.WriteString(m.viewPosts())
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(b.String())
}

func (m Model) viewProducts() string {
	var rows []string
	for i, p := range m.products {
		price := "$" + p.Price.StringFixed(2)
		stock := theme.DimmedStyle.Render("out of stock")
		if p.InStock() {
			stock = theme.DimmedStyle.Render(fmt.Sprintf("%d in stock", p.Stock))
		}
		line := fmt.Sprintf("%s  %s  %s", p.Title, lipgloss.NewStyle().Bold(true).Render(price), stock)
		if i == m.selectedIdx {
			rows = append(rows, theme.SelectedItemStyle.Render(line))
		} else {
			rows = append(rows, theme.ListItemStyle.Render(line))
		}
	}

	if m.selectedIdx < len(m.products) {
		p := m.products[m.selectedIdx]
		rows = append(rows, "", m.productDetail(p))
	}
	return strings.Join(rows, "\n")
}

func (m Model) productDetail(p model.Product) string {
	var lines []string
	if p.Author != "" {
		lines = append(lines, "by "+p.Author)
	}
	if p.Category != "" {
		lines = append(lines, theme.DimmedStyle.Render(p.Category))
	}
	if p.Description != "" {
		lines = append(lines, lipgloss.NewStyle().Width(max(m.width-10, 20)).Render(p.Description))
	}
	if m.media != nil && p.Image != "" {
		lines = append(lines, theme.DimmedStyle.Render(m.media.ProductImage(p.Image)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewPosts() string {
	var rows []string
	for i, p := range m.posts {
		meta := fmt.Sprintf("%s · %d reactions · %d comments · %s",
			p.Author.Name, p.Reactions, p.Comments, ui.RelativeTime(p.CreatedAt))
		line := p.Title + "  " + theme.DimmedStyle.Render(meta)
		if i == m.selectedIdx {
			rows = append(rows, theme.SelectedItemStyle.Render(line))
		} else {
			rows = append(rows, theme.ListItemStyle.Render(line))
		}
	}

	if m.selectedIdx < len(m.posts) {
		p := m.posts[m.selectedIdx]
		body := lipgloss.NewStyle().Width(max(m.width-10, 20)).Render(ui.Truncate(p.Content, 600))
		rows = append(rows, "", body)
	}
	return strings.Join(rows, "\n")
}

// SetSize updates the library dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
