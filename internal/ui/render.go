package ui

import (
	"context"
	"strings"
)

// renderCurrent re-renders whatever screen s.mode currently names,
// dispatching to the matching render* helper (§4.8 "re-render the
// panel for the resulting screen").
func (c *Controller) renderCurrent(ctx context.Context, chatID int64, s *navState) error {
	switch s.mode {
	case ModeSessions:
		return c.renderSessions(ctx, chatID, s)
	case ModeSession:
		return c.renderSession(ctx, chatID, s)
	case ModeNewName:
		return c.renderNewName(ctx, chatID, s)
	case ModeNewPath:
		return c.renderNewPath(ctx, chatID, s)
	case ModePaths:
		return c.renderPaths(ctx, chatID, s)
	case ModePathsAdd:
		return c.renderPathsAdd(ctx, chatID, s)
	case ModeConfirmMkdir:
		return c.renderConfirmMkdir(ctx, chatID, s)
	case ModeConfirmDelete:
		return c.renderConfirmDelete(ctx, chatID, s)
	case ModeConfirmStop:
		return c.renderConfirmStop(ctx, chatID, s)
	case ModeModel:
		return c.renderModel(ctx, chatID, s)
	case ModeModelCustom:
		return c.renderModelCustom(ctx, chatID, s)
	default:
		return c.renderSessions(ctx, chatID, s)
	}
}

func (c *Controller) withNotice(body string, s *navState) string {
	if s.notice == "" {
		return body
	}
	notice := "<i>" + s.notice + "</i>"
	s.notice = ""
	if body == "" {
		return notice
	}
	return body + "\n\n" + notice
}

func (c *Controller) renderSessions(ctx context.Context, chatID int64, s *navState) error {
	names := c.reg.List()
	s.sessList = names

	var b strings.Builder
	b.WriteString("<b>Sessions</b>")
	if len(names) == 0 {
		b.WriteString("\n<i>No sessions yet. Create one to get started.</i>")
	} else {
		for _, name := range names {
			e, ok := c.reg.Get(name)
			if !ok {
				continue
			}
			snap := e.Snapshot()
			status := "idle"
			if snap.Running {
				status = "running"
			}
			line := "\n" + name + " — " + status
			if last := formatTimestamp(snap.LastActive); last != "" {
				line += " (last active " + last + ")"
			}
			b.WriteString(line)
		}
	}
	body := c.withNotice(b.String(), s)
	return c.panel.Render(ctx, chatID, body, sessionsKeyboard(names))
}

func (c *Controller) renderSession(ctx context.Context, chatID int64, s *navState) error {
	if s.focus == "" {
		return c.renderSessions(ctx, chatID, s)
	}
	e, ok := c.reg.Get(s.focus)
	if !ok {
		s.focus = ""
		s.mode = ModeSessions
		return c.renderSessions(ctx, chatID, s)
	}
	snap := e.Snapshot()
	vd := viewDataFrom(snap)

	var body string
	switch {
	case snap.Running:
		body = renderRunningBody(vd)
	case snap.LastResult == "" || snap.LastResult == "never":
		body = renderNeverRunBody(vd)
	default:
		vd.Outcome = outcomeLabel(snap.LastResult)
		body = renderFinishedBody(vd, snap)
	}
	body = c.withNotice(body, s)
	return c.panel.Render(ctx, chatID, body, sessionKeyboard(snap.Running))
}

func (c *Controller) renderNewName(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("<b>New session</b>\n<i>Send a name for the new session.</i>", s)
	return c.panel.Render(ctx, chatID, body, cancelKeyboard("back_sessions"))
}

func (c *Controller) renderNewPath(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("<b>New session: "+s.draft.name+"</b>\n<i>Send a working directory path.</i>", s)
	presets := c.reg.PathPresets()
	return c.panel.Render(ctx, chatID, body, pathsKeyboard(presets))
}

func (c *Controller) renderPaths(ctx context.Context, chatID int64, s *navState) error {
	presets := c.reg.PathPresets()
	body := c.withNotice("<b>Saved paths</b>", s)
	return c.panel.Render(ctx, chatID, body, pathsKeyboard(presets))
}

func (c *Controller) renderPathsAdd(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("<b>Add path</b>\n<i>Send a directory path to save.</i>", s)
	return c.panel.Render(ctx, chatID, body, cancelKeyboard("paths"))
}

func (c *Controller) renderConfirmMkdir(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("<b>"+s.draft.pendingMkdir+"</b> does not exist.\nCreate it?", s)
	return c.panel.Render(ctx, chatID, body, confirmKeyboard("mkdir_yes", "mkdir_no"))
}

func (c *Controller) renderConfirmDelete(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("Delete session <b>"+s.focus+"</b>? This removes its logs and state.", s)
	return c.panel.Render(ctx, chatID, body, confirmKeyboard("delete_yes", "delete_no"))
}

func (c *Controller) renderConfirmStop(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("Stop the running agent in <b>"+s.focus+"</b>?", s)
	return c.panel.Render(ctx, chatID, body, confirmKeyboard("stop_yes", "stop_no"))
}

func (c *Controller) renderModel(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("<b>Model</b>\nChoose a model or reasoning level for <b>"+s.focus+"</b>.", s)
	return c.panel.Render(ctx, chatID, body, modelKeyboard([]string(c.cfg.Agent.ModelPresets)))
}

func (c *Controller) renderModelCustom(ctx context.Context, chatID int64, s *navState) error {
	body := c.withNotice("<i>Send a custom model name.</i>", s)
	return c.panel.Render(ctx, chatID, body, cancelKeyboard("model"))
}
