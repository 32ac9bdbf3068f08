package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agora/internal/analytics"
	"github.com/nhle/agora/internal/cache"
	"github.com/nhle/agora/internal/contact"
	"github.com/nhle/agora/internal/keys"
	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/session"
	"github.com/nhle/agora/internal/theme"
	"github.com/nhle/agora/internal/ui"
)

// Source is the part of the backend client the dashboards read from.
type Source interface {
	DashboardStats(ctx context.Context, role model.Role) (*model.DashboardStats, error)
	PendingModeration(ctx context.Context) ([]model.ModerationItem, error)
	DecideModeration(ctx context.Context, id, decision string) error
	SubmitApplication(ctx context.Context, app model.Application) (*model.Application, error)
	Settings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) error
}

// StatsKey is the cache key of a role's dashboard summary.
func StatsKey(role model.Role, userID string) cache.Key {
	return cache.Key{"dashboard", strings.ToLower(string(role)), userID}
}

// ModerationKey is the cache key of the moderation queue.
var ModerationKey = cache.Key{"moderation", "pending"}

// SettingsKey is the cache key of the account settings.
func SettingsKey(userID string) cache.Key {
	return cache.Key{"settings", userID}
}

// LoadedMsg carries the dashboard data.
type LoadedMsg struct {
	Stats      *model.DashboardStats
	Moderation []model.ModerationItem
	Settings   *model.Settings
	Err        error
}

// ActionDoneMsg reports the outcome of a dashboard action.
type ActionDoneMsg struct {
	Action string
	Err    error
}

type mode int

const (
	modeOverview mode = iota
	modeApply
)

type applicationBindings struct {
	motivation string
	expertise  string
}

// Model renders the highest-privilege dashboard the session may open.
type Model struct {
	cache       *cache.Cache
	src         Source
	keys        *keys.KeyMap
	session     model.Session
	board       session.Dashboard
	allowed     bool
	mode        mode
	form        *huh.Form
	ab          *applicationBindings
	stats       *model.DashboardStats
	moderation  []model.ModerationItem
	settings    *model.Settings
	selectedIdx int
	loading     bool
	err         error
	now         func() time.Time
	width       int
	height      int
}

// New creates the dashboard view for s.
func New(c *cache.Cache, src Source, k *keys.KeyMap, s model.Session, width, height int) Model {
	m := Model{
		cache:  c,
		src:    src,
		keys:   k,
		ab:     &applicationBindings{},
		now:    time.Now,
		width:  width,
		height: height,
	}
	m.SetSession(s)
	return m
}

// SetSession re-resolves which dashboard to show.
func (m *Model) SetSession(s model.Session) {
	m.session = s
	m.board, m.allowed = session.DashboardFor(s)
	m.stats = nil
	m.moderation = nil
	m.settings = nil
	m.err = nil
	m.mode = modeOverview
}

// Load returns a command that fetches the dashboard through the cache.
func (m *Model) Load() tea.Cmd {
	if !m.allowed {
		return nil
	}
	m.loading = true

	c, src, s, board := m.cache, m.src, m.session, m.board
	return func() tea.Msg {
		ctx := context.Background()
		var msg LoadedMsg

		res := c.Query(ctx, StatsKey(board.Role, s.UserID), func(ctx context.Context) (any, error) {
			return src.DashboardStats(ctx, board.Role)
		})
		msg.Stats, _ = cache.Value[*model.DashboardStats](res)
		msg.Err = res.Err

		if session.Can(s, session.ModerateContent) {
			res := c.Query(ctx, ModerationKey, func(ctx context.Context) (any, error) {
				return src.PendingModeration(ctx)
			})
			msg.Moderation, _ = cache.Value[[]model.ModerationItem](res)
			if msg.Err == nil {
				msg.Err = res.Err
			}
		}

		res = c.Query(ctx, SettingsKey(s.UserID), func(ctx context.Context) (any, error) {
			return src.Settings(ctx)
		})
		msg.Settings, _ = cache.Value[*model.Settings](res)
		if msg.Err == nil {
			msg.Err = res.Err
		}

		return msg
	}
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Stats != nil {
			m.stats = msg.Stats
		}
		m.moderation = msg.Moderation
		sort.SliceStable(m.moderation, func(i, j int) bool {
			return m.moderation[i].CreatedAt.Before(m.moderation[j].CreatedAt)
		})
		if msg.Settings != nil {
			m.settings = msg.Settings
		}
		m.selectedIdx = ui.Clamp(m.selectedIdx, len(m.moderation))
		return m, nil

	case ActionDoneMsg:
		if msg.Err == nil {
			return m, m.Load()
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeApply {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}

	if m.mode == modeApply {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.moderation) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.moderation)
		}
	case key.Matches(msg, m.keys.Up):
		if len(m.moderation) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.moderation) - 1
			}
		}
	case key.Matches(msg, m.keys.Approve):
		return m, m.decide(model.DecisionApprove)
	case key.Matches(msg, m.keys.Reject):
		return m, m.decide(model.DecisionReject)
	case key.Matches(msg, m.keys.Apply):
		if err := session.Guard(m.session, session.ApplyContributor); err != nil {
			return m, done("apply", err)
		}
		m.ab.motivation = ""
		m.ab.expertise = ""
		m.form = m.buildForm()
		m.mode = modeApply
		return m, m.form.Init()
	case msg.String() == "s":
		return m, m.toggleEmailNotifications()
	}
	return m, nil
}

func (m Model) decide(decision string) tea.Cmd {
	if err := session.Guard(m.session, session.ModerateContent); err != nil {
		return done(decision, err)
	}
	if len(m.moderation) == 0 {
		return nil
	}

	item := m.moderation[m.selectedIdx]
	c, src := m.cache, m.src
	return func() tea.Msg {
		ctx := context.Background()
		err := c.Mutate(ctx, func(ctx context.Context) error {
			return src.DecideModeration(ctx, item.ID, decision)
		})
		if err == nil {
			c.Invalidate(ctx, ModerationKey)
			c.Invalidate(ctx, cache.Key{"dashboard"})
		}
		return ActionDoneMsg{Action: decision + " " + item.Title, Err: err}
	}
}

func (m Model) toggleEmailNotifications() tea.Cmd {
	if m.settings == nil {
		return nil
	}
	next := *m.settings
	next.EmailNotifications = !next.EmailNotifications

	c, src, userID := m.cache, m.src, m.session.UserID
	return func() tea.Msg {
		ctx := context.Background()
		err := c.Mutate(ctx, func(ctx context.Context) error {
			return src.UpdateSettings(ctx, next)
		})
		if err == nil {
			c.Invalidate(ctx, SettingsKey(userID))
		}
		return ActionDoneMsg{Action: "update settings", Err: err}
	}
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Why do you want to contribute?").
				Value(&m.ab.motivation).
				Validate(func(s string) error {
					if len(strings.TrimSpace(s)) < 20 {
						return fmt.Errorf("tell us a little more (20 characters at least)")
					}
					return nil
				}),
			huh.NewInput().
				Title("Areas of expertise").
				Placeholder("Stoicism, meditation, ...").
				Value(&m.ab.expertise),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		m.mode = modeOverview
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.mode = modeOverview
		return m, m.submitApplication()
	case huh.StateAborted:
		m.mode = modeOverview
		return m, nil
	}
	return m, cmd
}

func (m Model) submitApplication() tea.Cmd {
	app := model.Application{
		Motivation: strings.TrimSpace(m.ab.motivation),
		Expertise:  strings.TrimSpace(m.ab.expertise),
	}
	src := m.src
	return func() tea.Msg {
		_, err := src.SubmitApplication(context.Background(), app)
		if fields := contact.FieldErrors(err); len(fields) > 0 {
			err = fmt.Errorf("%s", joinFieldErrors(fields))
		}
		return ActionDoneMsg{Action: "apply", Err: err}
	}
}

func joinFieldErrors(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func done(action string, err error) tea.Cmd {
	return func() tea.Msg { return ActionDoneMsg{Action: action, Err: err} }
}

// View renders the dashboard.
func (m Model) View() string {
	if m.mode == modeApply && m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}

	var b strings.Builder

	if !m.allowed {
		b.WriteString(theme.TitleStyle.Render("Dashboard"))
		b.WriteString("\n")
		b.WriteString(theme.DimmedStyle.Render("Sign in to open your dashboard. Press 'L'."))
		return m.panel(b.String())
	}

	b.WriteString(theme.TitleStyle.Render(string(m.board.Role)+" dashboard") + " ")
	for _, r := range m.session.Roles {
		b.WriteString(theme.RoleStyle(r).Render(string(r)))
	}
	b.WriteString("\n")

	switch {
	case m.loading && m.stats == nil:
		b.WriteString(theme.DimmedStyle.Render("Loading..."))
	case m.err != nil && m.stats == nil:
		b.WriteString(theme.DimmedStyle.Render("Could not load the dashboard: " + m.err.Error()))
	case m.stats != nil:
		b.WriteString(m.viewStats())
	}

	if session.Can(m.session, session.ModerateContent) {
		b.WriteString("\n\n")
		b.WriteString(m.viewModeration())
	}

	if m.settings != nil {
		state := "off"
		if m.settings.EmailNotifications {
			state = "on"
		}
		b.WriteString("\n\n")
		b.WriteString(theme.DimmedStyle.Render("Email notifications: " + state + "  (s to toggle)"))
	}

	if session.Can(m.session, session.ApplyContributor) && !m.session.HasRole(model.RoleContributor) {
		b.WriteString("\n")
		b.WriteString(theme.HelpStyle.Render("n apply to become a contributor"))
	}

	return m.panel(b.String())
}

func (m Model) viewStats() string {
	s := m.stats
	var lines []string

	switch m.board.Role {
	case model.RoleAdmin:
		lines = append(lines,
			fmt.Sprintf("Users %d   Posts %d   Products %d   Orders %d", s.Users, s.Posts, s.Products, s.Orders),
			fmt.Sprintf("Awaiting review: %d", s.PendingReview),
		)
	case model.RoleContributor:
		lines = append(lines, fmt.Sprintf("Published posts %d   Followers %d", s.Posts, s.Followers))
	default:
		lines = append(lines, fmt.Sprintf("Following activity: %d posts", s.Posts))
	}

	if s.ReadingGoal != nil {
		lines = append(lines, "", m.viewReading(analytics.Compute(*s.ReadingGoal, s.ReadingLogs, m.now())))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewReading(p analytics.Progress) string {
	unit := p.Goal.Unit
	if unit == "" {
		unit = analytics.UnitPages
	}

	barWidth := max(min(m.width-30, 40), 10)
	filled := int(p.Percent.IntPart()) * barWidth / 100
	bar := lipgloss.NewStyle().Foreground(theme.ColorSage).Render(strings.Repeat("█", filled)) +
		theme.DimmedStyle.Render(strings.Repeat("░", barWidth-filled))

	status := lipgloss.NewStyle().Foreground(theme.ColorSage).Render("on track")
	if !p.OnTrack {
		status = lipgloss.NewStyle().Foreground(theme.ColorSand).Render("behind")
	}

	return strings.Join([]string{
		theme.TitleStyle.UnsetMarginBottom().Render("Reading goal"),
		fmt.Sprintf("%s %s%%", bar, p.Percent.String()),
		fmt.Sprintf("%d of %d %s · %d to go · %d day streak · %d days left · %s",
			p.Done, p.Goal.Target, unit, p.Remaining, p.Streak, p.DaysLeft, status),
	}, "\n")
}

func (m Model) viewModeration() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.UnsetMarginBottom().Render("Moderation queue"))
	b.WriteString("\n")

	if len(m.moderation) == 0 {
		b.WriteString(theme.DimmedStyle.Render("Nothing waiting for review."))
		return b.String()
	}

	for i, item := range m.moderation {
		line := fmt.Sprintf("[%s] %s", item.EntityType, item.Title)
		if item.Reason != "" {
			line += theme.DimmedStyle.Render(" · " + item.Reason)
		}
		if i == m.selectedIdx {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(theme.HelpStyle.Render("p approve | d reject"))
	return b.String()
}

func (m Model) panel(content string) string {
	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// InForm reports whether the application form has focus.
func (m Model) InForm() bool {
	return m.mode == modeApply
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
