package service

import (
	"context"

	"github.com/google/uuid"

	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/models"
	"example.com/backstage/services/events/internal/repository"
)

// applyContent writes patch to the detail shown by subset. base is edited in
// place only when subset covers every occurrence referencing it and no event
// other than owner points at it; otherwise the patch lands on a copy of base
// that subset is moved to. A nil owner means no event follows the edit.
func (u *seriesUpdate) applyContent(ctx context.Context, subset []*models.EventRepetition, base *models.EventDetail, owner *models.Event, patch detailPatch) (*models.EventDetail, error) {
	tx, updatedBy := u.tx, u.req.UpdatedBy

	shared, err := u.sharedOutside(ctx, subset, base, owner)
	if err != nil {
		return nil, err
	}

	detail := base
	if shared {
		detail = base.Clone()
		detail.ID = uuid.New()
		detail.CreatedBy = updatedBy
		detail.CreatedAt = u.now
		detail.UpdatedAt = u.now
		patch.apply(detail, updatedBy)
		if err := tx.Details().Create(ctx, detail); err != nil {
			return nil, err
		}
		u.svc.metrics.IncrementCounter(metrics.DetailsForked)

		if owner != nil && owner.EventDetailID != detail.ID {
			if err := tx.Events().UpdateDetail(ctx, owner.ID, detail.ID, updatedBy); err != nil {
				return nil, err
			}
			owner.EventDetailID = detail.ID
		}
	} else {
		detail.UpdatedAt = u.now
		patch.apply(detail, updatedBy)
		if err := tx.Details().Save(ctx, detail); err != nil {
			return nil, err
		}
	}

	var (
		move     []uuid.UUID
		previous []uuid.UUID
	)
	for _, rep := range subset {
		if rep.EventDetailID != detail.ID {
			move = append(move, rep.ID)
			previous = append(previous, rep.EventDetailID)
		}
	}
	if len(move) > 0 {
		patch := repository.RepetitionPatch{EventDetailID: &detail.ID, UpdatedBy: updatedBy}
		n, err := tx.Repetitions().Update(ctx, repository.RepetitionFilter{IDs: move}, patch)
		if err != nil {
			return nil, err
		}
		for _, rep := range subset {
			patch.Apply(rep)
		}
		u.result.RepointedOccurrences += n
	}

	if shared && owner != nil {
		previous = append(previous, base.ID)
	}
	if err := u.deleteOrphans(ctx, previous...); err != nil {
		return nil, err
	}
	return detail, nil
}

// sharedOutside reports whether base is referenced by an occurrence outside
// subset or by an event other than owner.
func (u *seriesUpdate) sharedOutside(ctx context.Context, subset []*models.EventRepetition, base *models.EventDetail, owner *models.Event) (bool, error) {
	inSubset := int64(0)
	for _, rep := range subset {
		if rep.EventDetailID == base.ID {
			inSubset++
		}
	}
	refs, err := u.tx.Repetitions().Count(ctx, repository.RepetitionFilter{EventDetailID: base.ID})
	if err != nil {
		return false, err
	}
	if refs != inSubset {
		return true, nil
	}

	events, err := u.tx.Events().CountByDetail(ctx, base.ID)
	if err != nil {
		return false, err
	}
	owned := int64(0)
	if owner != nil && owner.EventDetailID == base.ID {
		owned = 1
	}
	return events != owned, nil
}

// deleteOrphans removes the given details once nothing references them.
func (u *seriesUpdate) deleteOrphans(ctx context.Context, ids ...uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var orphans []uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		reps, err := u.tx.Repetitions().Count(ctx, repository.RepetitionFilter{EventDetailID: id})
		if err != nil {
			return err
		}
		events, err := u.tx.Events().CountByDetail(ctx, id)
		if err != nil {
			return err
		}
		if reps == 0 && events == 0 {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return nil
	}
	_, err := u.tx.Details().Delete(ctx, orphans...)
	return err
}
