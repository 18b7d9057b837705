package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

// attachIndexCandidates sets the candidates of each job from the candidate index.
// Jobs without candidates end up with a nil slice so the field is omitted. A
// failed lookup degrades the whole read.
func (s *Service) attachIndexCandidates(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}

	byJob, err := s.index.CandidatesByJobIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: candidates: %v", errDegraded, err)
	}

	for _, j := range jobs {
		j.Candidates = nil
		if c := byJob[j.ID]; len(c) > 0 {
			j.Candidates = c
		}
	}
	return nil
}
