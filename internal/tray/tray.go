// Package tray provides the system tray menu for formcoach.
package tray

import (
	"fmt"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/alignify/formcoach/internal/pose"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onExercise func(kind pose.Kind)
	onReset    func()
	onHistory  func()
	onQuit     func()

	enabled  bool
	exercise pose.Kind
	count    int
	tip      string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuCount     *systray.MenuItem
	menuTip       *systray.MenuItem
	menuExercises map[pose.Kind]*systray.MenuItem
}

// New creates a Tray for the given exercise, enabled by default.
func New(exercise pose.Kind) *Tray {
	return &Tray{
		enabled:  true,
		exercise: exercise,
	}
}

// OnToggle sets the callback for pausing and resuming coaching.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnExercise sets the callback for switching exercises.
func (t *Tray) OnExercise(fn func(kind pose.Kind)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExercise = fn
}

// OnReset sets the callback for the reset count menu item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnHistory sets the callback for the history menu item.
func (t *Tray) OnHistory(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onHistory = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("formcoach")
	systray.SetTooltip("formcoach exercise form coach")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume coaching")
	systray.AddSeparator()

	menuExercise := systray.AddMenuItem("Exercise", "Choose the exercise")
	t.menuExercises = make(map[pose.Kind]*systray.MenuItem)
	for _, kind := range pose.Kinds() {
		item := menuExercise.AddSubMenuItemCheckbox(Title(kind), "Coach "+Title(kind), kind == t.exercise)
		t.menuExercises[kind] = item
	}

	t.menuCount = systray.AddMenuItem(countLabel(t.exercise, t.count), "Current count")
	t.menuCount.Disable()
	t.menuTip = systray.AddMenuItem(tipLabel(t.tip), "Last form tip")
	t.menuTip.Disable()
	systray.AddSeparator()

	menuReset := systray.AddMenuItem("Reset Count", "Start counting from zero")
	menuHistory := systray.AddMenuItem("Open History...", "Open session history in the browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit formcoach")
	exercises := t.menuExercises
	t.mu.Unlock()

	for kind, item := range exercises {
		go func(kind pose.Kind, item *systray.MenuItem) {
			for range item.ClickedCh {
				t.handleExercise(kind)
			}
		}(kind, item)
	}

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-menuHistory.ClickedCh:
				t.call(func() func() { return t.onHistory })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleExercise switches the checked exercise and notifies the callback.
func (t *Tray) handleExercise(kind pose.Kind) {
	t.mu.Lock()
	if kind == t.exercise {
		t.mu.Unlock()
		return
	}
	t.exercise = kind
	t.count = 0
	for k, item := range t.menuExercises {
		if k == kind {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
	t.refreshLocked()
	callback := t.onExercise
	t.mu.Unlock()

	if callback != nil {
		callback(kind)
	}
}

func (t *Tray) handleReset() {
	t.mu.Lock()
	t.count = 0
	t.tip = ""
	t.refreshLocked()
	callback := t.onReset
	t.mu.Unlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetCount updates the displayed count.
func (t *Tray) SetCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == count {
		return
	}
	t.count = count
	t.refreshLocked()
}

// SetTip updates the displayed form tip. Empty clears it.
func (t *Tray) SetTip(tip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tip == tip {
		return
	}
	t.tip = tip
	t.refreshLocked()
}

func (t *Tray) refreshLocked() {
	if t.menuCount != nil {
		t.menuCount.SetTitle(countLabel(t.exercise, t.count))
	}
	if t.menuTip != nil {
		t.menuTip.SetTitle(tipLabel(t.tip))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Exercise returns the selected exercise.
func (t *Tray) Exercise() pose.Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exercise
}

// CountLabel returns the count line as shown in the menu.
func (t *Tray) CountLabel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return countLabel(t.exercise, t.count)
}

// TipLabel returns the tip line as shown in the menu.
func (t *Tray) TipLabel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return tipLabel(t.tip)
}

// Title returns a display name such as "Bicep Curl".
func Title(kind pose.Kind) string {
	words := strings.Split(string(kind), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Coaching"
	}
	return "○ Paused"
}

func countLabel(kind pose.Kind, count int) string {
	if kind == pose.Plank {
		return fmt.Sprintf("Hold: %ds", count)
	}
	return fmt.Sprintf("Reps: %d", count)
}

func tipLabel(tip string) string {
	if tip == "" {
		return "Tip: none"
	}
	return "Tip: " + tip
}
