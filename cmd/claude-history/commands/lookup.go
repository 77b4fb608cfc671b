package commands

import (
	"context"
	"fmt"

	"github.com/strrl/claude-history/internal/orchestrator"
	"github.com/strrl/claude-history/internal/sessions"
	"github.com/strrl/claude-history/pkg/models"
)

// findProject loads the project list and matches name against the project
// id, its path, its short name or the encoded form of a path
func (a *app) findProject(ctx context.Context, name string) (models.Project, error) {
	if err := orchestrator.Drive(ctx, a.store, a.store.LoadProjects()); err != nil {
		return models.Project{}, err
	}
	if err := a.store.ProjectsErr(); err != nil {
		return models.Project{}, err
	}

	encoded := sessions.EncodeProjectPath(name)
	for _, project := range a.store.Projects() {
		if project.ID == name || project.DisplayPath == name || project.ShortName == name || project.ID == encoded {
			return project, nil
		}
	}
	return models.Project{}, fmt.Errorf("project '%s' not found", name)
}

// openProject selects a project and waits for its sessions
func (a *app) openProject(ctx context.Context, name string) (models.Project, error) {
	project, err := a.findProject(ctx, name)
	if err != nil {
		return models.Project{}, err
	}
	if err := orchestrator.Drive(ctx, a.store, a.store.SelectProject(project.ID)); err != nil {
		return models.Project{}, err
	}
	if err := a.store.SessionsErr(); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

// findSession resolves a project name and session id into a ref
func (a *app) findSession(ctx context.Context, projectName, sessionID string) (models.SessionRef, error) {
	project, err := a.openProject(ctx, projectName)
	if err != nil {
		return models.SessionRef{}, err
	}
	if _, ok := a.store.Session(sessionID); !ok {
		return models.SessionRef{}, fmt.Errorf("session '%s' not found in project '%s'", sessionID, projectName)
	}
	return models.SessionRef{ProjectID: project.ID, SessionID: sessionID}, nil
}
