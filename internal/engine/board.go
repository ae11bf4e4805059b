package engine

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
)

// Board returns the project's board, served from the cache when one is
// configured.
func (e Engine) Board(ctx context.Context, actor auth.Principal, projectID string) (b domain.Board, err error) {
	ctx, span := startSpan(ctx, "engine.Board", attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()

	if _, err := e.projectFor(ctx, nil, actor, projectID); err != nil {
		return domain.Board{}, err
	}
	if e.Cache != nil {
		return e.Cache.Get(ctx, projectID, func(ctx context.Context, id string) (domain.Board, error) {
			return e.BuildBoard(ctx, actor, id)
		})
	}
	return e.BuildBoard(ctx, actor, projectID)
}

// BuildBoard assembles sections, tasks and assignee identities in a fixed
// number of queries. Tasks without a section, or whose section no longer
// exists, are shown in the first section.
func (e Engine) BuildBoard(ctx context.Context, actor auth.Principal, projectID string) (domain.Board, error) {
	sections, err := e.ensureSections(ctx, actor, projectID)
	if err != nil {
		return domain.Board{}, err
	}
	tasks, err := e.Repo.ListTasksByProject(ctx, nil, projectID)
	if err != nil {
		return domain.Board{}, err
	}
	history, err := e.Repo.StatusHistoryByProject(ctx, nil, projectID)
	if err != nil {
		return domain.Board{}, err
	}

	var ids []string
	seen := map[string]struct{}{}
	for _, t := range tasks {
		for _, id := range t.Assignee {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	users, err := e.Repo.UsersByIDs(ctx, nil, ids)
	if err != nil {
		log.WithError(err).WithField("project_id", projectID).Warn("assignee lookup failed, board served without identities")
		users = nil
	}

	index := make(map[string]int, len(sections))
	for i, s := range sections {
		index[s.ID] = i
	}
	grouped := make([][]domain.TaskCard, len(sections))
	var orphans []domain.TaskCard
	for _, t := range tasks {
		if h, ok := history[t.ID]; ok {
			t.StatusHistory = h
		}
		c := toCard(t, users)
		if t.SectionID != nil && *t.SectionID != "" {
			if i, ok := index[*t.SectionID]; ok {
				grouped[i] = append(grouped[i], c)
				continue
			}
			log.WithFields(log.Fields{"project_id": projectID, "task_id": t.ID, "section_id": *t.SectionID}).
				Warn("task references a missing section, showing it in the first section")
		}
		orphans = append(orphans, c)
	}
	if len(sections) > 0 {
		grouped[0] = append(grouped[0], orphans...)
	}

	board := domain.Board{ProjectID: projectID, Sections: make([]domain.BoardSection, 0, len(sections))}
	for i, s := range sections {
		cards := grouped[i]
		if cards == nil {
			cards = []domain.TaskCard{}
		}
		sort.SliceStable(cards, func(a, b int) bool { return cards[a].Order < cards[b].Order })
		board.Sections = append(board.Sections, domain.BoardSection{Section: s, Tasks: cards})
	}
	return board, nil
}
