package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/Alijeyrad/gorecite/internal/config"
	"github.com/Alijeyrad/gorecite/internal/protocol"
)

// feedbackModes is the ordered list shown in the mode dropdown.
var feedbackModes = []struct {
	mode  protocol.FeedbackMode
	label string
}{
	{protocol.ModeHighlight, "Highlight mistakes"},
	{protocol.ModeBeep, "Beep on mistake"},
	{protocol.ModeSpoken, "Play spoken correction"},
}

func showSettingsWindow(fyneApp fyne.App, cfg *config.Config, onSave func(*config.Config)) fyne.Window {
	w := fyneApp.NewWindow("GoRecite — Settings")
	w.Resize(fyne.NewSize(460, 340))
	w.SetFixedSize(true)

	// ---- Feedback mode dropdown ----
	modeLabels := make([]string, len(feedbackModes))
	labelToMode := make(map[string]protocol.FeedbackMode, len(feedbackModes))
	modeToLabel := make(map[protocol.FeedbackMode]string, len(feedbackModes))
	for i, m := range feedbackModes {
		modeLabels[i] = m.label
		labelToMode[m.label] = m.mode
		modeToLabel[m.mode] = m.label
	}
	modeSelect := widget.NewSelect(modeLabels, nil)
	modeSelect.SetSelected(modeToLabel[cfg.FeedbackMode])

	// ---- Endpoints ----
	socketEntry := widget.NewEntry()
	socketEntry.SetText(cfg.SocketURL)
	socketEntry.SetPlaceHolder("ws://host:port/session")

	apiEntry := widget.NewEntry()
	apiEntry.SetText(cfg.APIBaseURL)
	apiEntry.SetPlaceHolder("http://host:port")

	// ---- Hotkey capture ----
	// currentHotkey holds the value that will be written on Save.
	currentHotkey := cfg.Hotkey
	capturing := false

	// updateSaveBtn is declared here so hotkeyBtn's closure can reference it
	// before the body is assigned below (Go closures capture the variable).
	var updateSaveBtn func()

	hotkeyBtn := widget.NewButton(cfg.Hotkey, nil)

	stopCapture := func() {
		capturing = false
		if dc, ok := w.Canvas().(desktop.Canvas); ok {
			dc.SetOnKeyDown(nil)
		}
	}

	hotkeyBtn.OnTapped = func() {
		if capturing {
			// Second tap cancels capture.
			stopCapture()
			hotkeyBtn.SetText(currentHotkey)
			return
		}

		capturing = true
		hotkeyBtn.SetText("Press key combination…")

		dc, ok := w.Canvas().(desktop.Canvas)
		if !ok {
			capturing = false
			hotkeyBtn.SetText(currentHotkey)
			return
		}

		dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			if !capturing {
				return
			}

			var mods fyne.KeyModifier
			if drv, ok := fyne.CurrentApp().Driver().(desktop.Driver); ok {
				mods = drv.CurrentKeyModifiers()
			}

			// Require at least one of Alt/Ctrl/Super; Shift alone is too
			// easy to trip while typing.
			meaningful := mods & (fyne.KeyModifierAlt | fyne.KeyModifierControl | fyne.KeyModifierSuper)
			if meaningful == 0 {
				return
			}

			var parts []string
			if mods&fyne.KeyModifierControl != 0 {
				parts = append(parts, "Ctrl")
			}
			if mods&fyne.KeyModifierAlt != 0 {
				parts = append(parts, "Alt")
			}
			if mods&fyne.KeyModifierShift != 0 {
				parts = append(parts, "Shift")
			}
			if mods&fyne.KeyModifierSuper != 0 {
				parts = append(parts, "Super")
			}
			parts = append(parts, strings.ToLower(string(ev.Name)))
			hotkey := strings.Join(parts, "-")

			stopCapture()
			currentHotkey = hotkey
			hotkeyBtn.SetText(hotkey)
			updateSaveBtn()
		})
	}

	// ---- Buttons ----
	saveBtn := widget.NewButton("Save", nil)
	saveBtn.Importance = widget.HighImportance
	saveBtn.Disable()

	closeBtn := widget.NewButton("Close", nil)

	currentMode := func() protocol.FeedbackMode {
		if m, ok := labelToMode[modeSelect.Selected]; ok {
			return m
		}
		return cfg.FeedbackMode
	}

	hasChanges := func() bool {
		return currentMode() != cfg.FeedbackMode ||
			socketEntry.Text != cfg.SocketURL ||
			apiEntry.Text != cfg.APIBaseURL ||
			currentHotkey != cfg.Hotkey
	}

	updateSaveBtn = func() {
		if hasChanges() {
			saveBtn.Enable()
		} else {
			saveBtn.Disable()
		}
	}

	modeSelect.OnChanged = func(_ string) { updateSaveBtn() }
	socketEntry.OnChanged = func(_ string) { updateSaveBtn() }
	apiEntry.OnChanged = func(_ string) { updateSaveBtn() }

	doSave := func() {
		newCfg := &config.Config{
			Hotkey:       currentHotkey,
			SocketURL:    socketEntry.Text,
			APIBaseURL:   apiEntry.Text,
			FeedbackMode: currentMode(),
		}
		onSave(newCfg)
		// Update the baseline so Save disables again.
		*cfg = *newCfg
		saveBtn.Disable()
	}
	saveBtn.OnTapped = func() { doSave() }

	tryClose := func() {
		if !hasChanges() {
			stopCapture()
			w.Close()
			return
		}
		d := dialog.NewCustomConfirm(
			"Unsaved changes",
			"Save", "Discard",
			widget.NewLabel("You have unsaved changes."),
			func(save bool) {
				if save {
					doSave()
				}
				stopCapture()
				w.Close()
			},
			w,
		)
		d.Show()
	}
	closeBtn.OnTapped = tryClose
	w.SetCloseIntercept(tryClose)

	// ---- Layout ----
	form := container.New(layout.NewFormLayout(),
		widget.NewLabelWithStyle("Feedback", fyne.TextAlignTrailing, fyne.TextStyle{Bold: true}),
		modeSelect,

		widget.NewLabelWithStyle("Session socket", fyne.TextAlignTrailing, fyne.TextStyle{Bold: true}),
		socketEntry,

		widget.NewLabelWithStyle("API base URL", fyne.TextAlignTrailing, fyne.TextStyle{Bold: true}),
		apiEntry,

		widget.NewSeparator(), widget.NewSeparator(),

		widget.NewLabelWithStyle("Hotkey", fyne.TextAlignTrailing, fyne.TextStyle{Bold: true}),
		hotkeyBtn,
	)

	buttons := container.NewHBox(layout.NewSpacer(), closeBtn, saveBtn)
	content := container.NewBorder(nil, buttons, nil, nil, container.NewVScroll(form))

	w.SetContent(content)
	w.Show()
	return w
}
