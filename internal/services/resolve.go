package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

const (
	ResolveFound           = "found"
	ResolvePendingApproval = "pending_approval"
	ResolveNewlyQueued     = "newly_queued"
	ResolveNotFound        = "not_found"
)

// minRefLength guards against junk identifiers creating stub rows.
const minRefLength = 3

// ResolveResult always carries a concrete Kind; callers never have to
// interpret a nil result.
type ResolveResult struct {
	Kind      string    `json:"kind"`
	StartupID uuid.UUID `json:"startup_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

type ResolveService interface {
	Resolve(ctx context.Context, ref string) (*ResolveResult, error)
}

type resolveService struct {
	log      *logger.Logger
	startups repos.StartupProfileRepo
}

func NewResolveService(baseLog *logger.Logger, startups repos.StartupProfileRepo) ResolveService {
	return &resolveService{
		log:      baseLog.With("service", "ResolveService"),
		startups: startups,
	}
}

// Resolve maps an external identifier to a startup profile. An unknown but
// plausible ref creates a pending stub so the approval pipeline picks it up.
func (s *resolveService) Resolve(ctx context.Context, ref string) (*ResolveResult, error) {
	ref = strings.TrimSpace(ref)
	if len(ref) < minRefLength {
		return &ResolveResult{Kind: ResolveNotFound, Detail: "identifier too short"}, nil
	}

	startup, err := s.startups.GetByExternalRef(ctx, nil, ref)
	if err != nil {
		return nil, err
	}
	if startup != nil {
		switch startup.Status {
		case types.StartupStatusApproved:
			return &ResolveResult{Kind: ResolveFound, StartupID: startup.ID}, nil
		case types.StartupStatusPending:
			return &ResolveResult{Kind: ResolvePendingApproval, StartupID: startup.ID, Detail: "awaiting approval"}, nil
		default:
			return &ResolveResult{Kind: ResolveNotFound, Detail: "profile rejected"}, nil
		}
	}

	stub := &types.StartupProfile{
		ExternalRef: ref,
		Name:        ref,
		Status:      types.StartupStatusPending,
	}
	if err := s.startups.Create(ctx, nil, stub); err != nil {
		// A concurrent resolve may have created the stub first; re-read
		// before giving up.
		existing, lookupErr := s.startups.GetByExternalRef(ctx, nil, ref)
		if lookupErr == nil && existing != nil {
			return &ResolveResult{Kind: ResolvePendingApproval, StartupID: existing.ID, Detail: "awaiting approval"}, nil
		}
		return nil, err
	}
	s.log.Info("Queued new startup stub from resolve", "external_ref", ref, "startup_id", stub.ID)
	return &ResolveResult{Kind: ResolveNewlyQueued, StartupID: stub.ID, Detail: "queued for approval"}, nil
}
