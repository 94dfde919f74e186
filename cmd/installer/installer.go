// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gpusetup/internal/cli"
	"github.com/jeranaias/gpusetup/internal/detect"
	"github.com/jeranaias/gpusetup/internal/install"
	"github.com/jeranaias/gpusetup/internal/plan"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Colors
	brandPrimary   = lipgloss.Color("#7C3AED") // Purple
	brandSecondary = lipgloss.Color("#06B6D4") // Cyan
	brandAccent    = lipgloss.Color("#10B981") // Emerald
	brandWarning   = lipgloss.Color("#F59E0B") // Amber
	brandError     = lipgloss.Color("#EF4444") // Red
	textMuted      = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(brandWarning)

	highlightStyle = lipgloss.NewStyle().
			Foreground(brandSecondary).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(1, 2)
)

const tagline = "Detects your GPU and installs the matching PyTorch build"

// minFreeGB is the free space below which the review screen warns. CUDA
// wheels alone are several gigabytes.
const minFreeGB = 10

// =============================================================================
// INSTALLER MODEL
// =============================================================================

// Phase represents the current installation phase
type Phase int

const (
	PhaseWelcome Phase = iota
	PhaseDetecting
	PhaseReview
	PhaseInstalling
	PhaseComplete
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseWelcome:
		return "welcome"
	case PhaseDetecting:
		return "detecting"
	case PhaseReview:
		return "review"
	case PhaseInstalling:
		return "installing"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Installer is the main installer model
type Installer struct {
	phase    Phase
	width    int
	height   int
	spinner  spinner.Model
	progress progress.Model

	env  *cli.Env
	args cli.Args
	// pipOut receives installer progress text and pip output.
	pipOut io.Writer
	// diskFree reports free space for the review screen.
	diskFree func(path string) (uint64, error)

	// CANCELLATION: ctx is cancelled on Ctrl+C and stops pip
	ctx    context.Context
	cancel context.CancelFunc

	// Detection results
	rec        detect.HardwareRecord
	plan       plan.InstallPlan
	root       string
	rootExists bool
	freeBytes  uint64
	diskErr    error

	// Install progress
	steps  <-chan stepMsg
	step   int
	total  int
	status string
	report *install.Report

	aborted bool
}

// NewInstaller creates a new installer instance
func NewInstaller(env *cli.Env, args cli.Args, pipOut io.Writer) *Installer {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brandPrimary)

	ctx, cancel := context.WithCancel(context.Background())
	return &Installer{
		phase:    PhaseWelcome,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		env:      env,
		args:     args,
		pipOut:   pipOut,
		diskFree: freeDiskSpace,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init initializes the installer
func (i *Installer) Init() tea.Cmd {
	return i.spinner.Tick
}

// Report returns the install report, or nil when nothing was installed.
func (i *Installer) Report() *install.Report {
	return i.report
}

// Aborted reports whether the user quit before the install finished.
func (i *Installer) Aborted() bool {
	return i.aborted
}

// =============================================================================
// UPDATE
// =============================================================================

// detectDoneMsg carries the detection results
type detectDoneMsg struct {
	rec        detect.HardwareRecord
	plan       plan.InstallPlan
	root       string
	rootExists bool
	freeBytes  uint64
	diskErr    error
}

// stepMsg signals the installer started a step
type stepMsg struct {
	step   int
	total  int
	status string
}

// installDoneMsg signals installation is complete
type installDoneMsg struct {
	report *install.Report
}

// Update handles messages
func (i *Installer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return i.handleKey(msg)

	case tea.WindowSizeMsg:
		i.width = msg.Width
		i.height = msg.Height
		// Clamp progress bar width to a reasonable range
		progressWidth := msg.Width - 20
		if progressWidth < 20 {
			progressWidth = 20
		}
		if progressWidth > 100 {
			progressWidth = 100
		}
		i.progress.Width = progressWidth

		boxWidth := msg.Width - 16
		if boxWidth < 40 {
			boxWidth = 40
		}
		if boxWidth > 70 {
			boxWidth = 70
		}
		boxStyle = boxStyle.Width(boxWidth)
		return i, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		i.spinner, cmd = i.spinner.Update(msg)
		return i, cmd

	case progress.FrameMsg:
		progressModel, cmd := i.progress.Update(msg)
		i.progress = progressModel.(progress.Model)
		return i, cmd

	case detectDoneMsg:
		i.rec = msg.rec
		i.plan = msg.plan
		i.root = msg.root
		i.rootExists = msg.rootExists
		i.freeBytes = msg.freeBytes
		i.diskErr = msg.diskErr
		i.phase = PhaseReview
		return i, nil

	case stepMsg:
		i.step = msg.step
		i.total = msg.total
		i.status = msg.status
		done := float64(msg.step-1) / float64(msg.total)
		return i, tea.Batch(i.progress.SetPercent(done), waitForStep(i.steps))

	case installDoneMsg:
		i.report = msg.report
		i.phase = PhaseComplete
		return i, i.progress.SetPercent(1.0)
	}

	return i, nil
}

// handleKey processes key presses
func (i *Installer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		i.quit()
		return i, tea.Quit

	case "q", "esc":
		// pip is not interrupted by q; Ctrl+C is the abort
		if i.phase == PhaseInstalling {
			return i, nil
		}
		i.quit()
		return i, tea.Quit

	case "enter", " ":
		return i.handleSelect()
	}

	return i, nil
}

func (i *Installer) quit() {
	if i.phase != PhaseComplete {
		i.aborted = true
	}
	i.cancel()
}

// handleSelect processes selection/enter
func (i *Installer) handleSelect() (tea.Model, tea.Cmd) {
	switch i.phase {
	case PhaseWelcome:
		i.phase = PhaseDetecting
		return i, tea.Batch(i.spinner.Tick, i.runDetect())

	case PhaseReview:
		i.phase = PhaseInstalling
		return i, tea.Batch(i.spinner.Tick, i.runInstall())

	case PhaseComplete:
		return i, tea.Quit
	}

	return i, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// runDetect detects the GPU and checks the project root
func (i *Installer) runDetect() tea.Cmd {
	env, args, ctx, diskFree := i.env, i.args, i.ctx, i.diskFree
	return func() tea.Msg {
		rec, p := env.Analyze(ctx)
		msg := detectDoneMsg{rec: rec, plan: p, root: env.ProjectRoot(args)}
		msg.rootExists = install.ProjectRootExists(msg.root)
		if msg.rootExists {
			msg.freeBytes, msg.diskErr = diskFree(msg.root)
		}
		return msg
	}
}

// runInstall runs the installer in the background. Step notifications
// arrive through a channel that waitForStep drains one message at a time.
func (i *Installer) runInstall() tea.Cmd {
	steps := make(chan stepMsg, 8)
	i.steps = steps

	in := i.env.NewInstaller(i.args, i.pipOut)
	in.OnProgress = func(step, total int, status string) {
		steps <- stepMsg{step: step, total: total, status: status}
	}
	ctx, p := i.ctx, i.plan

	run := func() tea.Msg {
		report := in.Run(ctx, p)
		close(steps)
		return installDoneMsg{report: report}
	}
	return tea.Batch(run, waitForStep(steps))
}

// waitForStep returns the next step notification, or nil once the channel
// is closed.
func waitForStep(steps <-chan stepMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-steps
		if !ok {
			return nil
		}
		return msg
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the installer
func (i *Installer) View() string {
	switch i.phase {
	case PhaseWelcome:
		return i.viewWelcome()
	case PhaseDetecting:
		return i.viewDetecting()
	case PhaseReview:
		return i.viewReview()
	case PhaseInstalling:
		return i.viewInstalling()
	case PhaseComplete:
		return i.viewComplete()
	}
	return ""
}

func (i *Installer) viewWelcome() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  " + cli.InstallerTitle))
	s.WriteString("\n")
	s.WriteString(subtitleStyle.Render("  " + tagline))
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render(fmt.Sprintf("  Version %s", cli.Version)))
	s.WriteString("\n\n")

	welcomeText := `This installer will:

  [1] Detect your GPU hardware
  [2] Install PyTorch for your backend
  [3] Install the project's dependencies`
	if i.args.DryRun {
		welcomeText += "\n\n" + warningStyle.Render("Dry run: pip commands are shown, not run.")
	}
	s.WriteString(boxStyle.Render(welcomeText))
	s.WriteString("\n\n")

	s.WriteString(highlightStyle.Render("  Press ENTER to begin"))
	s.WriteString(dimStyle.Render("  |  Press Q to quit"))

	return i.center(s.String())
}

func (i *Installer) viewDetecting() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("  [1/3] Detecting GPU hardware"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("  %s Probing drivers and toolkits...\n", i.spinner.View()))
	return i.center(s.String())
}

func (i *Installer) viewReview() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Install Plan"))
	s.WriteString("\n\n")

	label := i.rec.Vendor.Label()
	if i.rec.Vendor == detect.VendorNone {
		label = detect.CPUOnlyName
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Detected: %s\n", highlightStyle.Render(label+" - "+i.rec.Name))
	if i.rec.VRAMMB > 0 {
		fmt.Fprintf(&body, "VRAM:     %.1f GB\n", i.rec.VRAMGB())
	}
	fmt.Fprintf(&body, "Backend:  %s\n", i.rec.Backend)
	fmt.Fprintf(&body, "Device:   %s (%s)\n\n", i.plan.DeviceConfig.Device, i.plan.DeviceConfig.MixedPrecision)
	body.WriteString(dimStyle.Render("$ " + i.plan.TorchInstall))
	if len(i.plan.SkipPackages) > 0 {
		fmt.Fprintf(&body, "\nSkip:     %s", strings.Join(i.plan.SkipPackages, ", "))
	}
	if len(i.plan.ExtraPackages) > 0 {
		fmt.Fprintf(&body, "\nExtras:   %s", strings.Join(i.plan.ExtraPackages, ", "))
	}
	s.WriteString(boxStyle.Render(body.String()))
	s.WriteString("\n\n")

	for _, w := range i.plan.Warnings {
		s.WriteString(warningStyle.Render("  [!!] " + w))
		s.WriteString("\n")
	}
	for _, w := range i.checkWarnings() {
		s.WriteString(warningStyle.Render("  [!!] " + w))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	action := "  Press ENTER to install"
	if i.args.DryRun {
		action = "  Press ENTER to preview the pip commands"
	}
	s.WriteString(highlightStyle.Render(action))
	s.WriteString(dimStyle.Render("  |  Press Q to quit"))

	return i.center(s.String())
}

// checkWarnings lists problems with the project root found during detection.
func (i *Installer) checkWarnings() []string {
	if !i.rootExists {
		return []string{fmt.Sprintf("Project root %s does not exist; requirement files will be skipped", i.root)}
	}
	if i.diskErr == nil && i.freeBytes < minFreeGB<<30 {
		return []string{fmt.Sprintf("Only %.1f GB free under %s; PyTorch needs about %d GB",
			float64(i.freeBytes)/(1<<30), i.root, minFreeGB)}
	}
	return nil
}

func (i *Installer) viewInstalling() string {
	var s strings.Builder

	title := phaseTitles[0]
	if i.step > 1 {
		title = phaseTitles[1]
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")

	status := i.status
	if status == "" {
		status = "Starting..."
	}
	s.WriteString(fmt.Sprintf("  %s %s\n", i.spinner.View(), status))
	if i.total > 0 {
		s.WriteString(dimStyle.Render(fmt.Sprintf("     step %d of %d", i.step, i.total)))
		s.WriteString("\n")
	}
	s.WriteString("\n  ")
	s.WriteString(i.progress.View())
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render("  This may take several minutes  |  Ctrl+C to abort"))

	return i.center(s.String())
}

// phaseTitles holds the runtime step title, then the title for every later step.
var phaseTitles = []string{
	"  [2/3] Installing PyTorch",
	"  [3/3] Installing project dependencies",
}

func (i *Installer) viewComplete() string {
	var s strings.Builder

	r := i.report
	if r.OK() {
		s.WriteString(successStyle.Render("  *** Installation Complete! ***"))
	} else {
		s.WriteString(errorStyle.Render(fmt.Sprintf("  Installation finished with %d failed step(s)", r.Failed())))
	}
	s.WriteString("\n\n")

	for _, step := range r.Steps {
		icon, style := "[OK]", successStyle
		switch step.Status {
		case install.StepFailed:
			icon, style = "[FAIL]", errorStyle
		case install.StepSkipped:
			icon, style = "[--]", dimStyle
		}
		s.WriteString(fmt.Sprintf("  %s %s", style.Render(icon), step.Name))
		if step.Note != "" {
			s.WriteString(dimStyle.Render(" - " + step.Note))
		}
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(fmt.Sprintf("  Device config: %s\n", highlightStyle.Render(i.plan.DeviceConfig.Device)))
	if r.DryRun {
		s.WriteString(dimStyle.Render("  (dry run: nothing was installed)"))
		s.WriteString("\n")
	}
	s.WriteString("\n")
	s.WriteString(dimStyle.Render("  Verify with: gpusetup check"))
	s.WriteString("\n\n")
	s.WriteString(highlightStyle.Render("  Press ENTER to exit"))

	return i.center(s.String())
}

// center pads content down a third of the screen
func (i *Installer) center(content string) string {
	if i.width == 0 || i.height == 0 {
		return content
	}

	height := strings.Count(content, "\n") + 1
	topPadding := (i.height - height) / 3
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}
