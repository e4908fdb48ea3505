package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"partyquest/internal/model"
	"partyquest/internal/repository"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// resolveTimeout bounds a shared Resolve flight, which outlives any single
// caller's context.
const resolveTimeout = 5 * time.Second

type ScanKind string

const (
	ScanCombat   ScanKind = "combat"
	ScanTreasure ScanKind = "treasure"
)

// ParseScanPath reduces a scanned QR payload to its kind and identifier.
// Accepted forms are /combat/{slug} and /treasure/{token}, bare or inside a
// full URL.
func ParseScanPath(raw string) (ScanKind, string, error) {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		raw = u.Path
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) != 2 || parts[1] == "" {
		return "", "", ErrInvalidScan
	}

	switch kind := ScanKind(strings.ToLower(parts[0])); kind {
	case ScanCombat, ScanTreasure:
		return kind, parts[1], nil
	default:
		return "", "", ErrInvalidScan
	}
}

// EncounterService resolves scanned codes to navigation events. Combat scans
// share one Encounter per (session, enemy slug).
type EncounterService struct {
	sessions   repository.SessionRepo
	encounters repository.EncounterRepo
	enemies    repository.EnemyRepo
	logger     *zap.SugaredLogger
	group      singleflight.Group
}

func NewEncounterService(
	sessions repository.SessionRepo,
	encounters repository.EncounterRepo,
	enemies repository.EnemyRepo,
	logger *zap.SugaredLogger,
) *EncounterService {
	return &EncounterService{
		sessions:   sessions,
		encounters: encounters,
		enemies:    enemies,
		logger:     logger,
	}
}

func (s *EncounterService) Scan(ctx context.Context, caller Caller, req model.QRCodeScannedRequest) ([]Delivery, error) {
	kind, id, err := ParseScanPath(req.Path)
	if err != nil || req.SessionID == "" {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Invalid QR code")}, ErrInvalidScan
	}

	scannedBy := caller.UserID
	if scannedBy == "" {
		scannedBy = caller.ConnID
	}

	if kind == ScanTreasure {
		// Treasure scans are independent; nothing is stored.
		return []Delivery{navigate(req.SessionID, "/treasure/"+id, scannedBy)}, nil
	}

	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return s.unavailable(caller, err)
	}
	if session == nil {
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Session not found")}, ErrSessionNotFound
	}

	enc, err := s.Resolve(ctx, req.SessionID, id)
	switch {
	case errors.Is(err, ErrUnknownEnemy):
		return []Delivery{Notify(caller.ConnID, model.NotifyError, "Unknown enemy: "+id)}, err
	case err != nil:
		return s.unavailable(caller, err)
	}

	if !enc.IsAlive {
		return []Delivery{Notify(caller.ConnID, model.NotifyInfo, "This enemy has already been defeated")}, nil
	}
	return []Delivery{navigate(req.SessionID, "/combat/"+enc.ID, scannedBy)}, nil
}

// Resolve returns the single Encounter for (sessionID, slug), creating it
// from the enemy template if none exists. Concurrent calls for the same pair
// inside this process share one store round trip; across processes the
// store's atomic find-or-create keeps the pair unique. A caller that gives up
// early does not fail the others waiting on the same flight.
func (s *EncounterService) Resolve(ctx context.Context, sessionID, slug string) (*model.Encounter, error) {
	key := sessionID + "/" + slug
	ch := s.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		existing, err := s.encounters.GetBySessionAndSlug(ctx, sessionID, slug)
		if err != nil {
			return nil, fmt.Errorf("lookup encounter: %w", err)
		}
		if existing != nil {
			return existing, nil
		}

		tmpl, err := s.enemies.GetBySlug(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("lookup enemy template: %w", err)
		}
		if tmpl == nil {
			return nil, ErrUnknownEnemy
		}

		enc, created, err := s.encounters.FindOrCreate(ctx, &model.Encounter{
			SessionID: sessionID,
			EnemySlug: slug,
			EnemyID:   tmpl.ID,
			CurrentHP: tmpl.BaseHP,
			MaxHP:     tmpl.BaseHP,
			IsAlive:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("create encounter: %w", err)
		}
		if created {
			s.logger.Infow("encounter created", "sessionId", sessionID, "enemySlug", slug, "encounterId", enc.ID)
		}
		return enc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Encounter), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *EncounterService) unavailable(caller Caller, err error) ([]Delivery, error) {
	return []Delivery{Notify(caller.ConnID, model.NotifyError, "Could not open this encounter, please try again")},
		fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func navigate(sessionID, path, scannedBy string) Delivery {
	return ToRoom(sessionID, model.EventNavigateToPage, model.NavigateToPage{Path: path, ScannedBy: scannedBy})
}
