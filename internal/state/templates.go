package state

import (
	"claudia/internal/errs"
	"claudia/internal/types"
)

// TemplateByID returns the template with the given id.
func (s *State) TemplateByID(id string) (*types.Template, error) {
	for _, tpl := range s.Templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return nil, errs.NotFoundf("template %s not found", id)
}

// SaveTemplate stores a template definition, assigning the first free
// template id.
func (s *State) SaveTemplate(tpl *types.Template, sessionID string) (*types.Template, error) {
	if err := tpl.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, "invalid template", err)
	}

	used := make(map[string]bool, len(s.Templates))
	for _, existing := range s.Templates {
		if existing.Name == tpl.Name {
			return nil, errs.Conflictf("template named %q already exists", tpl.Name)
		}
		used[existing.ID] = true
	}
	n := 1
	for used[types.FormatTemplateID(n)] {
		n++
	}

	now := s.now()
	stored := &types.Template{
		ID:              types.FormatTemplateID(n),
		Name:            tpl.Name,
		Description:     tpl.Description,
		DefaultPriority: tpl.DefaultPriority,
		DefaultLabels:   append([]string(nil), tpl.DefaultLabels...),
		Subtasks:        append([]types.TemplateSubtask(nil), tpl.Subtasks...),
		CreatedAt:       now,
	}
	s.Templates = append(s.Templates, stored)
	s.templatesDirty = true

	ev := types.NewEvent(now, types.EventTemplateSaved, sessionID)
	ev.TemplateID = stored.ID
	ev.Title = stored.Name
	s.logEvent(ev)
	return stored, nil
}

// DeleteTemplate removes a template definition. Tasks already created from
// it are unaffected.
func (s *State) DeleteTemplate(id, sessionID string) error {
	for i, tpl := range s.Templates {
		if tpl.ID != id {
			continue
		}
		s.Templates = append(s.Templates[:i], s.Templates[i+1:]...)
		s.templatesDirty = true

		now := s.now()
		ev := types.NewEvent(now, types.EventTemplateErased, sessionID)
		ev.TemplateID = id
		ev.Title = tpl.Name
		s.logEvent(ev)
		return nil
	}
	return errs.NotFoundf("template %s not found", id)
}

// InstantiateTemplateArgs names the template to expand and optional
// overrides for the parent task.
type InstantiateTemplateArgs struct {
	TemplateID  string   `json:"template_id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	SessionID   string   `json:"session_id,omitempty"`
}

// InstantiateTemplate expands a template into a parent task with one
// subtask per template entry. Overrides fall back to the template's
// defaults.
func (s *State) InstantiateTemplate(args InstantiateTemplateArgs) (*types.Task, error) {
	tpl, err := s.TemplateByID(args.TemplateID)
	if err != nil {
		return nil, err
	}

	title := args.Title
	if title == "" {
		title = tpl.Name
	}
	description := args.Description
	if description == "" {
		description = tpl.Description
	}
	priority := tpl.DefaultPriority
	if args.Priority != nil {
		priority = *args.Priority
	}
	labels := append([]string(nil), tpl.DefaultLabels...)
	for _, l := range args.Labels {
		if !contains(labels, l) {
			labels = append(labels, l)
		}
	}

	parent, err := s.CreateTask(CreateTaskArgs{
		Title:       title,
		Description: description,
		Priority:    &priority,
		Labels:      labels,
		Branch:      args.Branch,
		SessionID:   args.SessionID,
	})
	if err != nil {
		return nil, err
	}
	for _, st := range tpl.Subtasks {
		if _, err := s.CreateSubtask(CreateSubtaskArgs{
			ParentID:    parent.ID,
			Title:       st.Title,
			Description: st.Description,
			SessionID:   args.SessionID,
		}); err != nil {
			return nil, err
		}
	}
	return parent, nil
}
