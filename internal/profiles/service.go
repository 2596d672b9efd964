package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foodsafe-backend/internal/analysis"
)

// Service manages profiles and merges them into analysis requests.
type Service struct {
	Repo Repo
}

// Get returns the stored profile, or an empty one if none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, errors.New("userID is required")
	}
	profile, err := s.Repo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Profile{UserID: userID, Allergies: []string{}, Medications: []string{}}, nil
	}
	return profile, err
}

// Save normalizes and stores the profile.
func (s *Service) Save(ctx context.Context, userID string, allergies, medications []string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, errors.New("userID is required")
	}
	profile := Profile{
		UserID:      userID,
		Allergies:   analysis.NormalizeSet(allergies),
		Medications: analysis.NormalizeSet(medications),
	}
	if err := s.Repo.Upsert(ctx, profile); err != nil {
		return Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return s.Repo.GetByUserID(ctx, userID)
}

// Enrich adds the requester's stored allergies and medications to req. A
// requester without a profile is passed through unchanged.
func (s *Service) Enrich(ctx context.Context, req analysis.Request) (analysis.Request, error) {
	profile, err := s.Repo.GetByUserID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return req, nil
		}
		return analysis.Request{}, err
	}
	return req.WithProfile(profile.Allergies, profile.Medications), nil
}
