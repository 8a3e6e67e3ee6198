// Command rescue-tui is the interactive terminal front end for disk rescue.
//
// The wizard probes the chosen source before anything runs: container kind
// (raw image or EWF evidence file with its acquisition metadata), detected
// filesystem and size all shape which recovery modes are offered. While a
// carve runs, the engine's progress feed drives a live byte/percentage
// readout instead of a bare spinner.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/shubham/diskrescue/internal/carve"
	"github.com/shubham/diskrescue/internal/device"
	"github.com/shubham/diskrescue/internal/disk"
	"github.com/shubham/diskrescue/internal/ewf"
	"github.com/shubham/diskrescue/internal/fat32"
	"github.com/shubham/diskrescue/internal/ntfs"
	"github.com/shubham/diskrescue/internal/sink"
	"github.com/shubham/diskrescue/internal/source"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#00B39B")).
			Padding(0, 1)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00B39B")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E4E4E4"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB454")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FD75F")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3A3A3A")).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5F5F5F"))
)

// step is the wizard's position.
type step int

const (
	stepSource step = iota
	stepProbing
	stepMode
	stepOptions
	stepRunning
	stepDone
)

// recovery modes offered once the probe knows what the source is.
type runMode int

const (
	modeCarve runMode = iota
	modeDeleted
)

// sourceInfo is what the probe learned about the source.
type sourceInfo struct {
	path      string
	size      int64
	isEWF     bool
	ewfMeta   map[string]string
	fsType    string // "", "ntfs", "fat32", "fat16"
}

// job is the fully assembled run request.
type job struct {
	info       sourceInfo
	mode       runMode
	scanOnly   bool
	extensions []string
	nameFilter string
	maxSize    int64
	chunkMB    int
	stopAtMdat bool
	outputDir  string
}

// counters are shared between the run goroutine and the render loop.
type counters struct {
	scanned atomic.Int64
	carved  atomic.Uint64
}

// engineProgress adapts the carving engine's observer to the shared counter.
type engineProgress struct {
	c *counters
}

func (p engineProgress) Advance(n int64) { p.c.scanned.Add(n) }

// countingSink wraps the directory sink so the UI can show carves landing.
type countingSink struct {
	inner carve.Sink
	c     *counters
}

func (s *countingSink) Emit(name string, data []byte) error {
	if err := s.inner.Emit(name, data); err != nil {
		return err
	}
	s.c.carved.Add(1)
	return nil
}

// option-form field indexes; chunk size and the mdat toggle only apply to
// carving.
const (
	fieldExtensions = iota
	fieldName
	fieldMaxMB
	fieldOutput
	fieldChunkMB
	fieldMdatToggle
	fieldCount
)

type model struct {
	step   step
	width  int
	height int

	devices []device.Device
	devErr  error

	pathInput textinput.Model
	srcErr    error

	info sourceInfo

	mode     runMode
	scanOnly bool

	inputs     [fieldChunkMB + 1]textinput.Model
	fieldIdx   int
	stopAtMdat bool

	spin    spinner.Model
	cancel  context.CancelFunc
	count   *counters
	started time.Time

	result int
	runErr error
}

type devicesMsg struct {
	devices []device.Device
	err     error
}

type probeMsg struct {
	info sourceInfo
	err  error
}

type tickMsg time.Time

type doneMsg struct {
	count int
	err   error
}

func newModel() model {
	path := textinput.New()
	path.Placeholder = "/dev/sdb1, disk.img or evidence.E01"
	path.Width = 56
	path.Focus()

	var inputs [fieldChunkMB + 1]textinput.Model
	mk := func(idx int, placeholder, value string, width int) {
		in := textinput.New()
		in.Placeholder = placeholder
		in.SetValue(value)
		in.Width = width
		inputs[idx] = in
	}
	mk(fieldExtensions, "jpg, pdf, docx (empty = all)", "", 40)
	mk(fieldName, "substring of the output name", "", 40)
	mk(fieldMaxMB, "no limit", "", 12)
	mk(fieldOutput, "output directory", "./recovered", 40)
	mk(fieldChunkMB, "64", "64", 12)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = stepStyle

	return model{
		pathInput: path,
		inputs:    inputs,
		spin:      sp,
		count:     &counters{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadDevices)
}

func loadDevices() tea.Msg {
	devices, err := device.List()
	return devicesMsg{devices: devices, err: err}
}

// probeSource opens the path once, before any mode is chosen, and reports
// what kind of source it is.
func probeSource(path string) tea.Cmd {
	return func() tea.Msg {
		r, err := source.Open(path)
		if err != nil {
			return probeMsg{err: err}
		}
		defer r.Close()

		info := sourceInfo{path: path, size: r.Size()}
		if img, ok := r.(*ewf.Image); ok {
			info.isEWF = true
			info.ewfMeta = img.Metadata()
		}
		if fs, err := disk.DetectFilesystem(r); err == nil {
			info.fsType = fs
		}
		return probeMsg{info: info}
	}
}

// runJob executes the recovery in the background while ticks repaint the
// counters.
func runJob(ctx context.Context, j job, c *counters) tea.Cmd {
	return func() tea.Msg {
		// The alternate screen belongs to the UI; engine chatter goes nowhere.
		log := logrus.New()
		log.SetOutput(io.Discard)

		r, err := source.Open(j.info.path)
		if err != nil {
			return doneMsg{err: err}
		}
		defer r.Close()

		filter := carve.NewFilterOptions(j.extensions, j.nameFilter, j.maxSize)
		var active carve.Filter
		if !filter.Empty() {
			active = filter
		}

		if j.mode == modeCarve {
			cfg := carve.Config{
				Filter:     active,
				Progress:   engineProgress{c: c},
				ChunkSize:  j.chunkMB * 1024 * 1024,
				StopAtMdat: j.stopAtMdat,
				Logger:     log,
			}
			if !j.scanOnly {
				out, err := sink.NewDirSink(filepath.Join(j.outputDir, "carved_files"))
				if err != nil {
					return doneMsg{err: err}
				}
				cfg.Sink = &countingSink{inner: out, c: c}
			}
			n, err := carve.New(r, cfg).Run(ctx)
			return doneMsg{count: int(n), err: err}
		}

		outDir := filepath.Join(j.outputDir, "deleted_files")
		var count int
		switch j.info.fsType {
		case "ntfs":
			count, err = ntfs.Recover(r, outDir, active, j.scanOnly, log)
		case "fat32":
			count, err = fat32.Recover(r, outDir, active, j.scanOnly, log)
		default:
			err = fmt.Errorf("metadata recovery needs a supported filesystem, found %q", j.info.fsType)
		}
		return doneMsg{count: count, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case devicesMsg:
		m.devices = msg.devices
		m.devErr = msg.err
		sort.Slice(m.devices, func(i, j int) bool { return m.devices[i].Path < m.devices[j].Path })
		return m, nil

	case probeMsg:
		if msg.err != nil {
			m.step = stepSource
			m.srcErr = msg.err
			return m, nil
		}
		m.info = msg.info
		m.step = stepMode
		if m.info.fsType == "" {
			m.mode = modeCarve
		}
		return m, nil

	case tickMsg:
		if m.step == stepRunning {
			return m, tick()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case doneMsg:
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.step = stepDone
		m.result = msg.count
		m.runErr = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		if m.step == stepRunning && m.cancel != nil {
			m.cancel()
			return m, nil
		}
		return m, tea.Quit
	case "q":
		// Plain q only quits outside text entry.
		if m.step == stepMode || m.step == stepDone {
			return m, tea.Quit
		}
	case "esc":
		switch m.step {
		case stepMode:
			m.step = stepSource
			m.pathInput.Focus()
			return m, textinput.Blink
		case stepOptions:
			m.blurOptions()
			m.step = stepMode
			return m, nil
		case stepRunning:
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	}

	switch m.step {
	case stepSource:
		return m.keySource(key)
	case stepMode:
		return m.keyMode(key)
	case stepOptions:
		return m.keyOptions(key)
	case stepDone:
		return m.keyDone(key)
	}
	return m, nil
}

func (m model) keySource(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := key.String()

	// Digit shortcuts pick from the enumerated devices.
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		if idx := int(s[0] - '1'); idx < len(m.devices) {
			m.pathInput.SetValue(m.devices[idx].Path)
			m.pathInput.CursorEnd()
			return m, nil
		}
	}

	if s == "enter" {
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			m.srcErr = fmt.Errorf("a source path is required")
			return m, nil
		}
		if strings.HasPrefix(path, "~") {
			home, _ := os.UserHomeDir()
			path = filepath.Join(home, path[1:])
		}
		m.srcErr = nil
		m.step = stepProbing
		return m, tea.Batch(m.spin.Tick, probeSource(path))
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(key)
	return m, cmd
}

func (m model) keyMode(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "c":
		m.mode = modeCarve
	case "d":
		if m.info.recoverable() {
			m.mode = modeDeleted
		}
	case "s":
		m.scanOnly = !m.scanOnly
	case "left", "right", "tab":
		if m.mode == modeCarve && m.info.recoverable() {
			m.mode = modeDeleted
		} else {
			m.mode = modeCarve
		}
	case "enter":
		m.step = stepOptions
		m.fieldIdx = fieldExtensions
		m.focusField()
	}
	return m, textinput.Blink
}

// visibleFields lists the option rows for the current mode, in order.
func (m model) visibleFields() []int {
	fields := []int{fieldExtensions, fieldName, fieldMaxMB, fieldOutput}
	if m.mode == modeCarve {
		fields = append(fields, fieldChunkMB, fieldMdatToggle)
	}
	return fields
}

func (m *model) focusField() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	if m.fieldIdx < fieldMdatToggle {
		m.inputs[m.fieldIdx].Focus()
	}
}

func (m *model) blurOptions() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m model) keyOptions(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	fields := m.visibleFields()
	pos := 0
	for i, f := range fields {
		if f == m.fieldIdx {
			pos = i
		}
	}

	switch key.String() {
	case "up", "shift+tab":
		if pos > 0 {
			m.fieldIdx = fields[pos-1]
			m.focusField()
		}
		return m, textinput.Blink
	case "down", "tab":
		if pos < len(fields)-1 {
			m.fieldIdx = fields[pos+1]
			m.focusField()
		}
		return m, textinput.Blink
	case " ":
		if m.fieldIdx == fieldMdatToggle {
			m.stopAtMdat = !m.stopAtMdat
			return m, nil
		}
	case "enter":
		if pos == len(fields)-1 {
			return m.startRun()
		}
		m.fieldIdx = fields[pos+1]
		m.focusField()
		return m, textinput.Blink
	case "ctrl+r":
		return m.startRun()
	}

	if m.fieldIdx < fieldMdatToggle {
		var cmd tea.Cmd
		m.inputs[m.fieldIdx], cmd = m.inputs[m.fieldIdx].Update(key)
		return m, cmd
	}
	return m, nil
}

func (m model) keyDone(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "enter", "q":
		return m, tea.Quit
	case "r":
		fresh := newModel()
		fresh.devices = m.devices
		fresh.devErr = m.devErr
		return fresh, textinput.Blink
	}
	return m, nil
}

// startRun assembles the job from the form and launches it.
func (m model) startRun() (tea.Model, tea.Cmd) {
	j := job{
		info:       m.info,
		mode:       m.mode,
		scanOnly:   m.scanOnly,
		nameFilter: strings.TrimSpace(m.inputs[fieldName].Value()),
		stopAtMdat: m.stopAtMdat,
		chunkMB:    64,
		outputDir:  strings.TrimSpace(m.inputs[fieldOutput].Value()),
	}
	for _, e := range strings.Split(m.inputs[fieldExtensions].Value(), ",") {
		if e = strings.TrimSpace(e); e != "" {
			j.extensions = append(j.extensions, e)
		}
	}
	if mb, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldMaxMB].Value())); err == nil && mb > 0 {
		j.maxSize = int64(mb) * 1024 * 1024
	}
	if mb, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldChunkMB].Value())); err == nil && mb > 0 {
		j.chunkMB = mb
	}
	if j.outputDir == "" {
		j.outputDir = "./recovered"
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.count = &counters{}
	m.started = time.Now()
	m.blurOptions()
	m.step = stepRunning
	return m, tea.Batch(m.spin.Tick, tick(), runJob(ctx, j, m.count))
}

func (m model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepSource:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case stepOptions:
		if m.fieldIdx < fieldMdatToggle {
			m.inputs[m.fieldIdx], cmd = m.inputs[m.fieldIdx].Update(msg)
		}
	}
	return m, cmd
}

// recoverable reports whether metadata recovery is on the table.
func (i sourceInfo) recoverable() bool {
	return i.fsType == "ntfs" || i.fsType == "fat32"
}

func fmtBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for x := n / unit; x >= unit; x /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" disk rescue "))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(m.stepTitle()))
	b.WriteString("\n\n")

	switch m.step {
	case stepSource:
		b.WriteString(m.viewSource())
	case stepProbing:
		b.WriteString(fmt.Sprintf("%s probing %s ...\n", m.spin.View(), valueStyle.Render(m.pathInput.Value())))
	case stepMode:
		b.WriteString(m.viewMode())
	case stepOptions:
		b.WriteString(m.viewOptions())
	case stepRunning:
		b.WriteString(m.viewRunning())
	case stepDone:
		b.WriteString(m.viewDone())
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.footer()))
	return b.String()
}

func (m model) stepTitle() string {
	switch m.step {
	case stepSource:
		return "1/4 choose source"
	case stepProbing:
		return "probing source"
	case stepMode:
		return "2/4 choose mode"
	case stepOptions:
		return "3/4 options"
	case stepRunning:
		return "4/4 running"
	case stepDone:
		return "finished"
	}
	return ""
}

func (m model) footer() string {
	switch m.step {
	case stepSource:
		return "enter continue · 1-9 pick a device · ctrl+c quit"
	case stepMode:
		return "c carve · d deleted · s toggle scan-only · enter continue · esc back"
	case stepOptions:
		return "tab/↑↓ move · space toggle · enter next/start · ctrl+r start · esc back"
	case stepRunning:
		return "esc cancel (keeps what was already recovered)"
	case stepDone:
		return "r run again · q quit"
	}
	return ""
}

func (m model) viewSource() string {
	var b strings.Builder
	b.WriteString(stepStyle.Render("Where should recovery read from?"))
	b.WriteString("\n\n")

	if m.devErr != nil {
		b.WriteString(labelStyle.Render("device listing unavailable: " + m.devErr.Error()))
		b.WriteString("\n")
	}
	for i, d := range m.devices {
		if i >= 9 {
			break
		}
		line := fmt.Sprintf("  %d. %-18s %-10s %s", i+1, d.Path, d.SizeHuman, d.Name)
		if d.Mountpoint != "" {
			line += labelStyle.Render("  (mounted at " + d.Mountpoint + ")")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.devices) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("Path: ")
	b.WriteString(m.pathInput.View())
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("Raw devices, flat images (.img/.dd/.raw) and EWF evidence files\n(.E01 with its whole segment chain) are all opened read-only."))
	if m.srcErr != nil {
		b.WriteString("\n\n")
		b.WriteString(warnStyle.Render("✗ " + m.srcErr.Error()))
	}
	return b.String()
}

func (m model) viewMode() string {
	var b strings.Builder

	// Probe summary box.
	var sum strings.Builder
	sum.WriteString(labelStyle.Render("source     ") + valueStyle.Render(m.info.path) + "\n")
	sum.WriteString(labelStyle.Render("size       ") + valueStyle.Render(fmtBytes(m.info.size)) + "\n")
	container := "raw device / flat image"
	if m.info.isEWF {
		container = "EWF evidence container"
	}
	sum.WriteString(labelStyle.Render("container  ") + valueStyle.Render(container) + "\n")
	fs := m.info.fsType
	if fs == "" {
		fs = "not recognised"
	}
	sum.WriteString(labelStyle.Render("filesystem ") + valueStyle.Render(fs))
	if m.info.isEWF {
		for _, k := range []string{"c", "n", "e", "m"} {
			if v := m.info.ewfMeta[k]; v != "" {
				sum.WriteString("\n" + labelStyle.Render("evidence:"+k+"  ") + valueStyle.Render(v))
			}
		}
	}
	b.WriteString(boxStyle.Render(sum.String()))
	b.WriteString("\n\n")

	mark := func(mode runMode) string {
		if m.mode == mode {
			return cursorStyle.Render("●")
		}
		return labelStyle.Render("○")
	}
	b.WriteString(fmt.Sprintf("  %s carve      signature scan of every byte, works without a filesystem\n", mark(modeCarve)))
	if m.info.recoverable() {
		b.WriteString(fmt.Sprintf("  %s deleted    walk %s metadata for deleted entries, keeps names\n", mark(modeDeleted), m.info.fsType))
	} else {
		b.WriteString(labelStyle.Render("  - deleted    needs an NTFS or FAT32 filesystem\n"))
	}

	b.WriteString("\n")
	check := "[ ]"
	if m.scanOnly {
		check = "[x]"
	}
	b.WriteString(fmt.Sprintf("  %s scan only - list what is recoverable, write nothing\n", check))
	return b.String()
}

func (m model) viewOptions() string {
	var b strings.Builder
	b.WriteString(stepStyle.Render("Filters and tuning"))
	b.WriteString("\n\n")

	row := func(field int, label, rendered string) {
		marker := "  "
		if m.fieldIdx == field {
			marker = cursorStyle.Render("> ")
		}
		b.WriteString(marker + labelStyle.Render(fmt.Sprintf("%-16s", label)) + rendered + "\n")
	}

	row(fieldExtensions, "extensions", m.inputs[fieldExtensions].View())
	row(fieldName, "name contains", m.inputs[fieldName].View())
	row(fieldMaxMB, "max size (MB)", m.inputs[fieldMaxMB].View())
	row(fieldOutput, "output dir", m.inputs[fieldOutput].View())

	if m.mode == modeCarve {
		row(fieldChunkMB, "chunk (MB)", m.inputs[fieldChunkMB].View())
		check := "[ ]"
		if m.stopAtMdat {
			check = "[x]"
		}
		row(fieldMdatToggle, "stop at mdat", check+hintStyle.Render("  end MP4/MOV carves at the media box (legacy)"))
	}
	return b.String()
}

func (m model) viewRunning() string {
	var b strings.Builder
	elapsed := time.Since(m.started).Round(time.Second)

	if m.mode == modeCarve {
		scanned := m.count.scanned.Load()
		pct := 0.0
		if m.info.size > 0 {
			pct = float64(scanned) / float64(m.info.size) * 100
			if pct > 100 {
				pct = 100
			}
		}
		b.WriteString(fmt.Sprintf("%s carving  %s\n\n", m.spin.View(), valueStyle.Render(m.info.path)))
		b.WriteString(fmt.Sprintf("  %s  %s / %s (%.1f%%)\n",
			renderBar(pct, 40), fmtBytes(scanned), fmtBytes(m.info.size), pct))
		b.WriteString(fmt.Sprintf("  %s files carved · %s elapsed\n",
			okStyle.Render(strconv.FormatUint(m.count.carved.Load(), 10)), elapsed))
	} else {
		b.WriteString(fmt.Sprintf("%s walking %s metadata on %s\n", m.spin.View(), m.info.fsType, valueStyle.Render(m.info.path)))
		b.WriteString(fmt.Sprintf("\n  %s elapsed\n", elapsed))
	}
	return b.String()
}

// renderBar draws a fixed-width percentage bar.
func renderBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return stepStyle.Render(strings.Repeat("█", filled)) +
		labelStyle.Render(strings.Repeat("░", width-filled))
}

func (m model) viewDone() string {
	var b strings.Builder
	switch {
	case m.runErr == context.Canceled:
		b.WriteString(warnStyle.Render("Cancelled."))
		b.WriteString(fmt.Sprintf(" %d files were recovered before the stop.\n", m.result))
	case m.runErr != nil:
		b.WriteString(warnStyle.Render("✗ Recovery failed"))
		b.WriteString("\n\n" + m.runErr.Error() + "\n")
	case m.scanOnly:
		b.WriteString(okStyle.Render("✓ Scan complete."))
		b.WriteString(fmt.Sprintf(" %d recoverable files found (nothing written).\n", m.result))
	default:
		b.WriteString(okStyle.Render("✓ Recovery complete."))
		b.WriteString(fmt.Sprintf(" %d files recovered.\n", m.result))
		b.WriteString(labelStyle.Render("Saved under " + strings.TrimSpace(m.inputs[fieldOutput].Value())))
		b.WriteString("\n")
	}
	return b.String()
}

func main() {
	p := tea.NewProgram(newModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
