package ui

import (
	"strings"

	"github.com/nextlevelbuilder/codexpanel/internal/logsink"
	"github.com/nextlevelbuilder/codexpanel/internal/panel"
	"github.com/nextlevelbuilder/codexpanel/internal/registry"
)

// viewDataFrom projects a registry snapshot onto the subset of fields
// the panel view renderers need (§4.5).
func viewDataFrom(snap registry.Snapshot) panel.ViewData {
	return panel.ViewData{
		Name:            snap.Name,
		Path:            snap.Path,
		Model:           snap.Model,
		ReasoningEffort: snap.ReasoningEffort,
		ElapsedOrTotal:  snap.LastRunDuration,
	}
}

func renderRunningBody(vd panel.ViewData) string {
	return panel.RenderRunningView(vd)
}

func renderNeverRunBody(vd panel.ViewData) string {
	return panel.RenderNeverRunView(vd)
}

func renderFinishedBody(vd panel.ViewData, snap registry.Snapshot) string {
	if snap.LastStdoutLog != "" {
		if tail, err := logsink.TailBytes(snap.LastStdoutLog, logsink.UITailMaxBytesDefault); err == nil {
			vd.StdoutPreview = tail
		}
	}
	if snap.LastStderrLog != "" {
		if tail, err := logsink.TailBytes(snap.LastStderrLog, logsink.UITailMaxBytesDefault); err == nil {
			vd.StderrPreview = tail
		}
	}
	if vd.StderrPreview == "" && len(snap.LastStderrTail) > 0 {
		// Fall back to the in-memory ring when the log file isn't
		// readable yet (e.g. right after a failed run), per §3 "Run".
		vd.StderrPreview = strings.Join(snap.LastStderrTail, "\n")
	}
	return panel.RenderFinishedView(vd)
}
