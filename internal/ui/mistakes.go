package ui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/Alijeyrad/gorecite/internal/mistakes"
	"github.com/Alijeyrad/gorecite/internal/upload"
)

// MistakeActions is what the review window needs from the rest of the app.
type MistakeActions struct {
	Records          func() []mistakes.Record
	Verify           func(id string, status mistakes.Status) error
	NewSampleSession func(rec mistakes.Record) *upload.SampleSession
}

func showMistakesWindow(fyneApp fyne.App, actions MistakeActions) fyne.Window {
	w := fyneApp.NewWindow("GoRecite — Mistakes")
	w.Resize(fyne.NewSize(560, 480))

	// One correction recording at a time, keyed by the mistake it belongs to.
	var activeSample *upload.SampleSession
	var activeID string

	list := container.NewVBox()
	var refresh func()

	rowFor := func(rec mistakes.Record) fyne.CanvasObject {
		title := widget.NewLabelWithStyle(
			fmt.Sprintf("%s, ayah %s — %s", rec.Sura, rec.Aya, rec.MistakeType),
			fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
		detail := widget.NewLabel(fmt.Sprintf("recited %q, expected %q", rec.TranscribedSegment, rec.ReferenceSegment))
		status := widget.NewLabel(fmt.Sprintf("status: %s, synced: %v", rec.Status, rec.Synced))

		var buttons []fyne.CanvasObject
		if rec.Status == mistakes.StatusPending {
			verify := func(s mistakes.Status) {
				if err := actions.Verify(rec.ID, s); err != nil {
					dialog.ShowError(err, w)
					return
				}
				refresh()
			}
			buttons = append(buttons,
				widget.NewButton("Correct", func() { verify(mistakes.StatusCorrect) }),
				widget.NewButton("Incorrect", func() { verify(mistakes.StatusIncorrect) }),
			)
		}

		switch {
		case activeSample != nil && activeID == rec.ID:
			buttons = append(buttons,
				widget.NewButton("Stop & Upload", func() {
					sess := activeSample
					activeSample, activeID = nil, ""
					go func() {
						if _, err := sess.Stop(context.Background()); err != nil {
							fyne.Do(func() { dialog.ShowError(err, w) })
						}
						fyne.Do(refresh)
					}()
					refresh()
				}),
				widget.NewButton("Cancel", func() {
					activeSample.Cancel()
					activeSample, activeID = nil, ""
					refresh()
				}),
			)
		case activeSample == nil && actions.NewSampleSession != nil:
			buttons = append(buttons, widget.NewButton("Record correct sample", func() {
				sess := actions.NewSampleSession(rec)
				if err := sess.Start(context.Background()); err != nil {
					dialog.ShowError(err, w)
					return
				}
				activeSample, activeID = sess, rec.ID
				refresh()
			}))
		}

		return container.NewVBox(title, detail, status,
			container.NewHBox(buttons...), widget.NewSeparator())
	}

	refresh = func() {
		list.RemoveAll()
		recs := actions.Records()
		if len(recs) == 0 {
			list.Add(widget.NewLabel("No mistakes recorded yet."))
		}
		for _, rec := range recs {
			list.Add(rowFor(rec))
		}
		list.Refresh()
	}
	refresh()

	w.SetCloseIntercept(func() {
		// Closing the window must not leave the microphone held.
		if activeSample != nil {
			activeSample.Cancel()
			activeSample, activeID = nil, ""
		}
		w.Close()
	})

	w.SetContent(container.NewVScroll(list))
	w.Show()
	return w
}
