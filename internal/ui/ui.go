package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/secwatch-console/internal/bus"
	"github.com/Ashfaaq98/secwatch-console/internal/daterange"
	"github.com/Ashfaaq98/secwatch-console/internal/engine"
	"github.com/Ashfaaq98/secwatch-console/internal/facet"
	"github.com/Ashfaaq98/secwatch-console/internal/record"
)

// Options configures NewUI.
type Options struct {
	Logger *log.Logger
	// Bus delivers ingest notifications; nil disables live refresh.
	Bus bus.Bus
	// Theme is one of ThemeNames; empty picks neon.
	Theme string
}

// UI is the terminal dashboard: one engine per view, a shared date range and
// a filter form that drives the active engine.
type UI struct {
	app    *tview.Application
	logger *log.Logger

	engines map[string]*engine.Engine
	order   []string
	active  string
	rc      *daterange.Context
	bus     bus.Bus

	// Layout components
	layout    *tview.Flex
	header    *tview.TextView
	sidebar   *tview.List
	filters   *tview.Form
	indicator *tview.TextView
	table     *tview.Table
	statusBar *tview.TextView

	// Theme state
	theme        Theme
	themeName    string
	hasTrueColor bool

	// Runtime
	running    atomic.Bool
	building   bool
	helpActive bool
	lastFocus  tview.Primitive
	rows       record.Collection
	lastMsg    string

	globalInputCapture func(*tcell.EventKey) *tcell.EventKey

	unsubs []func()
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// NewUI builds the dashboard. engines is keyed by view name; rc is the date
// range every engine is bound to.
func NewUI(ctx context.Context, engines map[string]*engine.Engine, rc *daterange.Context, opts Options) (*UI, error) {
	if len(engines) == 0 {
		return nil, errors.New("ui: no views configured")
	}
	if rc == nil {
		return nil, errors.New("ui: date range context is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[UI] ", log.LstdFlags)
	}

	uiCtx, cancel := context.WithCancel(ctx)
	ui := &UI{
		app:          tview.NewApplication(),
		logger:       logger,
		engines:      engines,
		order:        viewOrder(engines),
		rc:           rc,
		bus:          opts.Bus,
		hasTrueColor: detectTrueColor(),
		ctx:          uiCtx,
		cancel:       cancel,
		now:          time.Now,
	}
	ui.active = ui.order[0]

	name := opts.Theme
	if _, ok := themes[name]; !ok {
		name = "neon"
	}
	ui.themeName = name
	ui.theme = themes[name]()

	ui.setupLayout()
	ui.setupKeybindings()
	ui.applyTheme()

	for _, v := range ui.order {
		v := v
		ui.unsubs = append(ui.unsubs, engines[v].Subscribe(func(c engine.Change) {
			ui.queue(func() { ui.onEngineChange(v, c) })
		}))
	}
	ui.unsubs = append(ui.unsubs, rc.Subscribe(func(daterange.Range) {
		ui.queue(ui.renderHeader)
	}))
	return ui, nil
}

// viewOrder keeps the built-in display order and appends custom views sorted.
func viewOrder(engines map[string]*engine.Engine) []string {
	var order []string
	seen := map[string]bool{}
	for _, n := range facet.ViewNames() {
		if _, ok := engines[n]; ok {
			order = append(order, n)
			seen[n] = true
		}
	}
	var extra []string
	for n := range engines {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// Start binds every engine to the date range, starts the update listener and
// runs the application until it exits or ctx is cancelled.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Println("Starting TUI application")
	ui.running.Store(true)
	for _, v := range ui.order {
		ui.unsubs = append(ui.unsubs, ui.engines[v].Bind(ui.ctx, ui.rc))
	}
	if ui.bus != nil {
		go ui.listenUpdates()
	}

	go func() {
		select {
		case <-ctx.Done():
			ui.logger.Println("External context cancelled, stopping TUI")
		case <-ui.ctx.Done():
		}
		ui.cancel()
		ui.app.Stop()
	}()

	err := ui.app.Run()
	ui.running.Store(false)
	ui.release()
	return err
}

// Stop stops the TUI application
func (ui *UI) Stop() {
	ui.logger.Println("Stopping TUI application")
	ui.cancel()
	ui.app.Stop()
}

func (ui *UI) release() {
	for _, fn := range ui.unsubs {
		fn()
	}
	ui.unsubs = nil
}

// queue runs fn on the UI goroutine when the app is running, or inline
// otherwise (tests construct a UI without a screen).
func (ui *UI) queue(fn func()) {
	if ui.running.Load() {
		ui.app.QueueUpdateDraw(fn)
		return
	}
	fn()
}

// listenUpdates refreshes a view whenever the ingest side announces new
// records of its kind. Each console gets its own consumer group so every
// console sees every update.
func (ui *UI) listenUpdates() {
	group := "console-" + uuid.NewString()
	err := ui.bus.ReadUpdates(ui.ctx, group, "tui", func(ctx context.Context, msg bus.UpdateMessage) error {
		return ui.handleUpdate(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		ui.logger.Printf("update listener stopped: %v", err)
	}
	if rb, ok := ui.bus.(*bus.RedisBus); ok {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rb.DeleteConsumerGroup(cctx, bus.RecordsStream, group); err != nil {
			ui.logger.Printf("delete consumer group %s: %v", group, err)
		}
	}
}

func (ui *UI) handleUpdate(_ context.Context, msg bus.UpdateMessage) error {
	e, ok := ui.engines[msg.Kind]
	if !ok {
		return nil
	}
	r := ui.rc.Get()
	if !r.IsSet() {
		return nil
	}
	ui.logger.Printf("update: %d %s records from %s", msg.Count, msg.Kind, msg.Source)
	ui.setStatus("[%s]%d new %s records from %s[-]", ui.theme.TagAccent, msg.Count, msg.Kind, msg.Source)
	go func() {
		if err := e.Refresh(ui.ctx, r); err != nil {
			ui.logger.Printf("%s: live refresh: %v", msg.Kind, err)
		}
	}()
	return nil
}

// setupLayout creates the main layout
func (ui *UI) setupLayout() {
	ui.header = tview.NewTextView().SetDynamicColors(true)

	ui.sidebar = tview.NewList().ShowSecondaryText(false)
	ui.sidebar.SetTitle(" Views ")
	ui.sidebar.SetBorder(true)
	ui.sidebar.SetTitleAlign(tview.AlignLeft)
	for i, v := range ui.order {
		title := ui.engines[v].View().Title
		if title == "" {
			title = v
		}
		shortcut := rune(0)
		if i < 9 {
			shortcut = rune('1' + i)
		}
		ui.sidebar.AddItem(title, v, shortcut, nil)
	}
	ui.sidebar.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		ui.switchView(ui.order[index])
	})

	ui.filters = tview.NewForm()
	ui.filters.SetTitle(" Filters ")
	ui.filters.SetBorder(true)
	ui.filters.SetTitleAlign(tview.AlignLeft)
	ui.filters.SetItemPadding(0)

	ui.indicator = tview.NewTextView().SetDynamicColors(true).SetWrap(true)

	ui.table = tview.NewTable()
	ui.table.SetBorder(true)
	ui.table.SetTitleAlign(tview.AlignLeft)
	ui.table.SetSelectable(true, false)
	ui.table.SetFixed(1, 0)
	ui.table.SetSelectedFunc(func(row, _ int) { ui.showRecordDetails(row) })

	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.sidebar, len(ui.order)+2, 0, false).
		AddItem(ui.filters, 0, 1, false)
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.indicator, 2, 0, false).
		AddItem(ui.table, 0, 1, true)
	body := tview.NewFlex().
		AddItem(left, 36, 0, false).
		AddItem(right, 0, 1, true)
	ui.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.header, 1, 0, false).
		AddItem(body, 0, 1, true)

	ui.rebuildFilters()
	ui.renderAll()
	ui.app.SetRoot(ui.rootLayout(), true).SetFocus(ui.table)
}

func (ui *UI) rootLayout() tview.Primitive {
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.layout, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)
}

func (ui *UI) setupKeybindings() {
	ui.globalInputCapture = func(event *tcell.EventKey) *tcell.EventKey {
		if ui.helpActive {
			return event
		}
		switch event.Key() {
		case tcell.KeyTab:
			ui.cycleFocus()
			return nil
		case tcell.KeyBacktab:
			ui.nextView(-1)
			return nil
		case tcell.KeyCtrlC:
			ui.Stop()
			return nil
		case tcell.KeyEsc:
			if ui.filters.HasFocus() {
				ui.app.SetFocus(ui.table)
				ui.highlightFocus(ui.table)
				return nil
			}
			return event
		case tcell.KeyRune:
		default:
			return event
		}

		// Text entry owns runes.
		if _, typing := ui.app.GetFocus().(*tview.InputField); typing {
			return event
		}
		switch r := event.Rune(); r {
		case 'q':
			ui.Stop()
		case 'r':
			ui.refreshActive()
		case 'c':
			ui.clearAll()
		case 'x':
			ui.dismissBadge(-1)
		case '[':
			ui.shiftRange(-1)
		case ']':
			ui.shiftRange(1)
		case 'd':
			ui.showRangeModal()
		case 'f':
			ui.app.SetFocus(ui.filters)
			ui.highlightFocus(ui.filters)
		case 'v':
			ui.nextView(1)
		case 't':
			ui.cycleTheme()
		case '?':
			ui.showHelp()
		default:
			if r >= '1' && r <= '9' && ui.app.GetFocus() == ui.table {
				ui.dismissBadge(int(r - '1'))
				return nil
			}
			return event
		}
		return nil
	}
	ui.app.SetInputCapture(ui.globalInputCapture)
}

func (ui *UI) engine() *engine.Engine { return ui.engines[ui.active] }

func (ui *UI) onEngineChange(view string, c engine.Change) {
	if view != ui.active {
		if c.Kind == engine.RefreshFailed {
			ui.setStatusDirect("[%s]%s refresh failed: %v[-]", ui.theme.TagError, view, c.Err)
		}
		return
	}
	switch c.Kind {
	case engine.DataRefreshed:
		ui.rebuildFilters()
		ui.setStatusDirect("[%s]%s refreshed[-]", ui.theme.TagSuccess, view)
	case engine.RefreshFailed:
		ui.setStatusDirect("[%s]Refresh failed, showing previous data: %v[-]", ui.theme.TagError, c.Err)
	case engine.FiltersChanged:
		// Rebuilding while the form has focus would reset the cursor.
		if !ui.filters.HasFocus() {
			ui.rebuildFilters()
		}
	}
	ui.renderAll()
}

// rebuildFilters recreates the form so each control shows the engine's
// current operand and domain.
func (ui *UI) rebuildFilters() {
	e := ui.engine()
	state := e.State()
	ui.building = true
	defer func() { ui.building = false }()

	ui.filters.Clear(true)
	for _, d := range e.View().Facets {
		d := d
		switch d.Kind {
		case facet.Keyword:
			ui.filters.AddInputField(d.DisplayLabel(), inputText(d, state), 22, nil, func(text string) {
				ui.applyFacet(d.ID, text)
			})
		case facet.Categorical, facet.Boolean:
			options := dropdownOptions(d.Kind, e.Options(d.ID))
			ui.filters.AddDropDown(d.DisplayLabel(), options, currentOption(d, state, options), func(option string, _ int) {
				ui.applyFacet(d.ID, operandForOption(option))
			})
		case facet.DateRange:
			field := tview.NewInputField().
				SetLabel(d.DisplayLabel()).
				SetText(inputText(d, state)).
				SetFieldWidth(23).
				SetPlaceholder("MM/DD/YYYY - MM/DD/YYYY")
			field.SetDoneFunc(func(key tcell.Key) {
				if key == tcell.KeyEnter {
					ui.applyFacet(d.ID, field.GetText())
				}
			})
			ui.filters.AddFormItem(field)
		}
	}
	ui.filters.AddButton("Clear", ui.clearAll)
	ui.applyFormTheme()
}

func (ui *UI) applyFacet(id string, operand any) {
	if ui.building {
		return
	}
	if err := ui.engine().SetFacet(id, operand); err != nil {
		ui.resetControl(id)
		ui.setStatusDirect("[%s]%v[-]", ui.theme.TagWarning, err)
	}
}

// resetControl puts a text control back to the operand the engine holds.
func (ui *UI) resetControl(id string) {
	e := ui.engine()
	d, ok := e.View().Facets.Lookup(id)
	if !ok {
		return
	}
	field, ok := ui.filters.GetFormItemByLabel(d.DisplayLabel()).(*tview.InputField)
	if !ok {
		return
	}
	ui.building = true
	field.SetText(inputText(d, e.State()))
	ui.building = false
}

func (ui *UI) clearAll() {
	ui.engine().ClearAll()
	ui.rebuildFilters()
	ui.renderAll()
	ui.setStatusDirect("[%s]Filters cleared[-]", ui.theme.TagAccent)
}

// dismissBadge removes badge i; a negative i means the last one.
func (ui *UI) dismissBadge(i int) {
	badges := ui.engine().ActiveBadges()
	if len(badges) == 0 {
		ui.setStatusDirect("[%s]No active filters[-]", ui.theme.TagMuted)
		return
	}
	if i < 0 {
		i = len(badges) - 1
	}
	if i >= len(badges) {
		return
	}
	b := badges[i]
	b.Dismiss()
	ui.rebuildFilters()
	ui.renderAll()
	ui.setStatusDirect("[%s]Removed %s[-]", ui.theme.TagAccent, b.Label)
}

func (ui *UI) switchView(name string) {
	if _, ok := ui.engines[name]; !ok || name == ui.active {
		return
	}
	ui.active = name
	for i, v := range ui.order {
		if v == name {
			ui.sidebar.SetCurrentItem(i)
		}
	}
	ui.rebuildFilters()
	ui.renderAll()
	ui.table.Select(1, 0)
	ui.setStatusDirect("[%s]View: %s[-]", ui.theme.TagAccent, ui.engine().View().Title)
}

func (ui *UI) nextView(step int) {
	idx := 0
	for i, v := range ui.order {
		if v == ui.active {
			idx = i
		}
	}
	n := len(ui.order)
	ui.switchView(ui.order[((idx+step)%n+n)%n])
}

func (ui *UI) refreshActive() {
	r := ui.rc.Get()
	if !r.IsSet() {
		ui.setStatusDirect("[%s]Select a date range first (d)[-]", ui.theme.TagWarning)
		return
	}
	e := ui.engine()
	ui.setStatusDirect("[%s]Refreshing %s...[-]", ui.theme.TagMuted, ui.active)
	go func() {
		if err := e.Refresh(ui.ctx, r); err != nil {
			ui.logger.Printf("%s: refresh: %v", ui.active, err)
		}
	}()
}

// shiftRange moves the global range by one span in direction dir.
func (ui *UI) shiftRange(dir int) {
	r := ui.rc.Get()
	if !r.IsSet() {
		r = daterange.LastDays(ui.now(), 7)
	} else {
		r = r.Shift(time.Duration(dir) * r.Span())
	}
	if err := ui.rc.Set(r); err != nil {
		ui.setStatusDirect("[%s]%v[-]", ui.theme.TagError, err)
	}
}

// renderAll redraws header, indicator and table from the active engine.
func (ui *UI) renderAll() {
	ui.renderHeader()
	ui.renderIndicator()
	ui.renderTable()
}

func (ui *UI) renderHeader() {
	e := ui.engine()
	ui.header.SetText(fmt.Sprintf(" [%s]SecWatch[-]  [%s]%s[-]  [%s]%s[-]  [%s]%d of %d[-]",
		ui.theme.TagAccent,
		ui.theme.TagTextPrimary, e.View().Title,
		ui.theme.TagMuted, rangeLabel(ui.rc.Get()),
		ui.theme.TagTextPrimary, len(e.CurrentView()), e.Total()))
}

func (ui *UI) renderIndicator() {
	e := ui.engine()
	badges := e.ActiveBadges()
	if len(badges) == 0 {
		ui.indicator.SetText(fmt.Sprintf(" [%s]No active filters[-]", ui.theme.TagMuted))
		return
	}
	ui.indicator.SetText(fmt.Sprintf(" [%s]%s[-]\n [%s]%s  (1-9 or x to remove)[-]",
		ui.theme.TagAccent, tview.Escape(e.Indicator()),
		ui.theme.TagMuted, tview.Escape(numberedBadges(badges))))
}

func (ui *UI) renderTable() {
	e := ui.engine()
	v := e.View()
	ui.rows = e.CurrentView()
	cols := columnsFor(v, ui.rows)

	ui.table.Clear()
	ui.table.SetTitle(fmt.Sprintf(" %s (%d) ", v.Title, len(ui.rows)))
	for col, field := range cols {
		ui.table.SetCell(0, col, tview.NewTableCell(headerTitle(field)).
			SetTextColor(ui.theme.TableHeader).
			SetBackgroundColor(ui.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	if len(ui.rows) == 0 {
		msg := "No records"
		if err := e.LastError(); err != nil {
			msg = "Fetch failed: " + err.Error()
		} else if e.Total() > 0 {
			msg = "No records match the active filters"
		}
		ui.table.SetCell(1, 0, tview.NewTableCell(msg).SetTextColor(ui.theme.TextMuted).SetSelectable(false))
		return
	}
	for i, r := range ui.rows {
		bg := ui.theme.TableZebra1
		if i%2 == 1 {
			bg = ui.theme.TableZebra2
		}
		for col, field := range cols {
			text := cellText(r, field, v.TimeField)
			color := ui.theme.TableRow
			if field == "severity_type" || field == "risk_score" {
				color = ui.theme.riskColor(text)
			}
			ui.table.SetCell(i+1, col, tview.NewTableCell(tview.Escape(text)).
				SetTextColor(color).
				SetBackgroundColor(bg).
				SetMaxWidth(maxCellRune))
		}
	}
}

func (ui *UI) showRecordDetails(row int) {
	if row < 1 || row > len(ui.rows) {
		return
	}
	out, err := yaml.Marshal(map[string]any(ui.rows[row-1]))
	if err != nil {
		ui.setStatusDirect("[%s]%v[-]", ui.theme.TagError, err)
		return
	}
	ui.showModal("Record", strings.TrimSpace(string(out)))
}

// showRangeModal edits the global range. Inputs accept anything ParseFlexible
// does: RFC3339, YYYY-MM-DD, now, today, or relative offsets like -2h.
func (ui *UI) showRangeModal() {
	r := ui.rc.Get()
	from, to := "", ""
	if r.IsSet() {
		from = r.From.Local().Format(time.RFC3339)
		to = r.To.Local().Format(time.RFC3339)
	}
	form := tview.NewForm()
	form.AddInputField("From", from, 28, nil, nil)
	form.AddInputField("To", to, 28, nil, nil)
	form.AddButton("Apply", func() {
		now := ui.now()
		start, err := daterange.ParseFlexible(form.GetFormItemByLabel("From").(*tview.InputField).GetText(), now)
		if err != nil {
			ui.setStatusDirect("[%s]From: %v[-]", ui.theme.TagError, err)
			return
		}
		end, err := daterange.ParseFlexible(form.GetFormItemByLabel("To").(*tview.InputField).GetText(), now)
		if err != nil {
			ui.setStatusDirect("[%s]To: %v[-]", ui.theme.TagError, err)
			return
		}
		if end.IsZero() {
			end = now
		}
		if err := ui.rc.Set(daterange.Range{From: start, To: end}); err != nil {
			ui.setStatusDirect("[%s]%v[-]", ui.theme.TagError, err)
			return
		}
		ui.restoreMainLayout()
	})
	form.AddButton("Last 24h", func() {
		_ = ui.rc.Set(daterange.LastDays(ui.now(), 1))
		ui.restoreMainLayout()
	})
	form.AddButton("Last 7d", func() {
		_ = ui.rc.Set(daterange.LastDays(ui.now(), 7))
		ui.restoreMainLayout()
	})
	form.AddButton("Cancel", ui.restoreMainLayout)
	form.SetCancelFunc(ui.restoreMainLayout)
	form.SetBorder(true).SetTitle(" Date Range ").SetTitleAlign(tview.AlignLeft)
	ui.styleForm(form)

	ui.helpActive = true
	ui.lastFocus = ui.app.GetFocus()
	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(form, 9, 0, true).
			AddItem(nil, 0, 1, false), 60, 0, true).
		AddItem(nil, 0, 1, false)
	ui.app.SetRoot(modal, true).SetFocus(form)
}

func (ui *UI) showHelp() {
	ui.showModal("Help", strings.Join([]string{
		"Tab        cycle focus      Shift-Tab / v  switch view",
		"f          edit filters     Esc            back to table",
		"r          refresh view     c              clear all filters",
		"x          remove last      1-9            remove filter N",
		"[ / ]      shift range      d              set date range",
		"Enter      record details   t              cycle theme",
		"q          quit",
		"",
		"Date filters take MM/DD/YYYY - MM/DD/YYYY and apply on Enter.",
	}, "\n"))
}

func (ui *UI) showModal(title, text string) {
	modal := tview.NewModal()
	modal.SetText(text)
	modal.SetTitle(fmt.Sprintf(" %s ", title))
	modal.AddButtons([]string{"Close"})

	modal.SetBackgroundColor(ui.theme.Surface)
	modal.SetTextColor(ui.theme.TextPrimary)
	modal.SetBorderColor(ui.theme.FocusBorder)
	modal.SetButtonBackgroundColor(ui.theme.SelectionBg)
	modal.SetButtonTextColor(ui.theme.SelectionFg)

	modal.SetDoneFunc(func(int, string) { ui.restoreMainLayout() })
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyRune:
			ui.restoreMainLayout()
			return nil
		}
		return event
	})

	ui.helpActive = true
	ui.lastFocus = ui.app.GetFocus()
	ui.app.SetRoot(modal, true)
	ui.app.SetFocus(modal)
}

// restoreMainLayout restores the main layout after a modal closes.
func (ui *UI) restoreMainLayout() {
	ui.helpActive = false
	ui.app.SetRoot(ui.rootLayout(), true)
	if ui.globalInputCapture != nil {
		ui.app.SetInputCapture(ui.globalInputCapture)
	}
	target := ui.lastFocus
	if target == nil {
		target = ui.table
	}
	ui.app.SetFocus(target)
	ui.highlightFocus(target)
	ui.renderAll()
}

func (ui *UI) cycleFocus() {
	var next tview.Primitive
	switch {
	case ui.sidebar.HasFocus():
		next = ui.filters
	case ui.filters.HasFocus():
		next = ui.table
	default:
		next = ui.sidebar
	}
	ui.app.SetFocus(next)
	ui.highlightFocus(next)
}

func (ui *UI) highlightFocus(focused tview.Primitive) {
	for _, b := range []*tview.Box{ui.sidebar.Box, ui.filters.Box, ui.table.Box} {
		b.SetBorderColor(ui.theme.Border)
	}
	switch focused {
	case ui.sidebar:
		ui.sidebar.SetBorderColor(ui.theme.FocusBorder)
	case ui.table:
		ui.table.SetBorderColor(ui.theme.FocusBorder)
	default:
		if ui.filters.HasFocus() {
			ui.filters.SetBorderColor(ui.theme.FocusBorder)
		}
	}
}

// setStatus updates the status bar from any goroutine.
func (ui *UI) setStatus(format string, args ...interface{}) {
	ui.queue(func() { ui.setStatusDirect(format, args...) })
}

// setStatusDirect updates the status bar; call only on the UI goroutine.
func (ui *UI) setStatusDirect(format string, args ...interface{}) {
	ui.lastMsg = fmt.Sprintf(format, args...)
	ui.statusBar.SetText(fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]| updated %s | ? help  q quit[-]",
		ui.theme.TagMuted, ui.now().Format("15:04:05"),
		ui.theme.TagMuted, ui.lastMsg,
		ui.theme.TagMuted, sinceLabel(ui.engine().FetchedAt(), ui.now())))
}

func (ui *UI) applyTheme() {
	ui.sidebar.SetMainTextColor(ui.theme.TextPrimary)
	ui.sidebar.SetSecondaryTextColor(ui.theme.TextMuted)
	ui.sidebar.SetSelectedTextColor(ui.theme.SelectionFg)
	ui.sidebar.SetSelectedBackgroundColor(ui.theme.SelectionBg)
	ui.sidebar.SetShortcutColor(ui.theme.Header)
	ui.sidebar.SetBackgroundColor(ui.theme.Surface)

	ui.table.SetSelectedStyle(tcell.StyleDefault.Background(ui.theme.SelectionBg).Foreground(ui.theme.SelectionFg))
	ui.table.SetBackgroundColor(ui.theme.Surface)

	for _, tv := range []*tview.TextView{ui.header, ui.indicator, ui.statusBar} {
		tv.SetTextColor(ui.theme.TextPrimary)
		tv.SetBackgroundColor(ui.theme.Surface)
	}
	ui.applyFormTheme()
	ui.highlightFocus(ui.app.GetFocus())
	ui.renderAll()
}

func (ui *UI) applyFormTheme() {
	ui.styleForm(ui.filters)
}

func (ui *UI) styleForm(f *tview.Form) {
	f.SetBackgroundColor(ui.theme.Surface)
	f.SetLabelColor(ui.theme.Header)
	f.SetFieldBackgroundColor(ui.theme.SelectionBg)
	f.SetFieldTextColor(ui.theme.TextPrimary)
	f.SetButtonBackgroundColor(ui.theme.SelectionBg)
	f.SetButtonTextColor(ui.theme.SelectionFg)
}

func (ui *UI) cycleTheme() {
	next := themeOrder[0]
	for i, n := range themeOrder {
		if n == ui.themeName {
			next = themeOrder[(i+1)%len(themeOrder)]
		}
	}
	ui.setTheme(next)
}

func (ui *UI) setTheme(name string) {
	mk, ok := themes[name]
	if !ok {
		name, mk = "dark", themeDark
	}
	ui.themeName = name
	ui.theme = mk()
	ui.applyTheme()
	ui.setStatusDirect("[%s]Theme: %s[-]", ui.theme.TagAccent, name)
}
