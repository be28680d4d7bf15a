package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fitDietAPI/internal/achievement"
	"fitDietAPI/internal/catalog"
	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/internal/notification"
	"fitDietAPI/internal/store"
)

type DietService struct {
	engine *Engine
	// supersede lets a new diet replace the active program of another diet.
	supersede bool
	newID     func() string
}

func NewDietService(engine *Engine, supersede bool) *DietService {
	return &DietService{
		engine:    engine,
		supersede: supersede,
		newID:     uuid.NewString,
	}
}

type StartDietResponse struct {
	Program    *dietprogram.Program `json:"program"`
	Superseded *string              `json:"superseded_program_id,omitempty"`
}

type CompleteDayResponse struct {
	Day              int                       `json:"day"`
	NextDay          *int                      `json:"next_day"`
	Finished         bool                      `json:"finished"`
	AlreadyCompleted bool                      `json:"already_completed"`
	Program          *dietprogram.Program      `json:"program"`
	XPAwarded        int64                     `json:"xp_awarded"`
	PointsAwarded    int64                     `json:"points_awarded"`
	Rewards          Rewards                   `json:"rewards"`
	NewAchievements  []achievement.Achievement `json:"new_achievements"`
}

func (s *DietService) GetCatalog() []catalog.Diet {
	return s.engine.catalog.Diets()
}

// StartDiet creates a program for dietID with day 1 unlocked.
func (s *DietService) StartDiet(ctx context.Context, userID, dietID string) (*StartDietResponse, error) {
	diet, ok := s.engine.catalog.Diet(dietID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dietprogram.ErrUnknownDiet, dietID)
	}
	now := s.engine.now()

	resp := &StartDietResponse{}
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		active, err := tx.ActiveProgram(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		case active.DietID == dietID || !s.supersede:
			return fmt.Errorf("%w: program %s (%s)", dietprogram.ErrAlreadyActive, active.ID, active.DietID)
		default:
			active.Abandon(now)
			if err := tx.SaveProgram(ctx, active); err != nil {
				return err
			}
			id := active.ID
			resp.Superseded = &id
		}

		p, err := dietprogram.Start(s.newID(), userID, diet.ID, diet.Days, now)
		if err != nil {
			return err
		}
		if err := tx.InsertProgram(ctx, p); err != nil {
			return err
		}
		resp.Program = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Superseded != nil {
		log.Printf("DietService: user %s abandoned program %s for %s", userID, *resp.Superseded, dietID)
	}
	return resp, nil
}

// CompleteDay completes day n and grants the day reward, plus the program
// bonus when it was the last open day. Repeating a completed day returns the
// current state without awarding anything.
func (s *DietService) CompleteDay(ctx context.Context, userID, programID string, n int) (*CompleteDayResponse, error) {
	now := s.engine.now()

	resp := &CompleteDayResponse{NewAchievements: []achievement.Achievement{}}
	var out *Outcome
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		p, err := tx.Program(ctx, programID)
		if err != nil {
			return err
		}

		res, err := p.CompleteDay(n, now)
		if errors.Is(err, dietprogram.ErrAlreadyCompleted) {
			resp.Day, resp.NextDay, resp.Finished = res.Day, res.NextDay, res.Finished
			resp.AlreadyCompleted = true
			resp.Program = p
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.SaveProgram(ctx, p); err != nil {
			return err
		}

		dayReward := s.engine.catalog.DietDayReward()
		awards := []Award{{
			Key: dietDayKey(p.ID, n), Kind: store.EventDietDay,
			XP: dayReward.XP, Points: dayReward.Points,
		}}
		if res.Finished {
			bonus := s.engine.catalog.DietProgramReward()
			awards = append(awards, Award{
				Key: dietProgramKey(p.ID), Kind: store.EventDietProgram,
				XP: bonus.XP, Points: bonus.Points,
			})
		}

		rec, err := tx.Progression(ctx)
		if err != nil {
			return err
		}
		out, err = s.engine.apply(ctx, tx, rec, awards, now)
		if err != nil {
			return err
		}

		resp.Day, resp.NextDay, resp.Finished = res.Day, res.NextDay, res.Finished
		resp.Program = p
		resp.XPAwarded = out.XPAwarded
		resp.PointsAwarded = out.PointsAwarded
		resp.Rewards = out.Rewards
		resp.NewAchievements = out.NewAchievements
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		dietDaysCompleted.Inc()
		s.engine.announce(userID, out)
	}
	if out != nil && resp.Finished {
		s.engine.notifier.Notify(notification.Message{
			UserID: userID,
			Type:   notification.MessageProgramCompleted,
			Title:  "Program complete",
			Body:   fmt.Sprintf("You finished all %d days", resp.Program.TotalDays),
			Data:   map[string]string{"program_id": programID},
		})
	}
	return resp, nil
}

// GetActiveProgram returns nil when the user has no active program.
func (s *DietService) GetActiveProgram(ctx context.Context, userID string) (*dietprogram.Program, error) {
	var p *dietprogram.Program
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		var err error
		p, err = tx.ActiveProgram(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPrograms lists every program of the user, newest first.
func (s *DietService) GetPrograms(ctx context.Context, userID string) ([]*dietprogram.Program, error) {
	var programs []*dietprogram.Program
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		var err error
		programs, err = tx.Programs(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return programs, nil
}

func (s *DietService) GetProgram(ctx context.Context, userID, programID string) (*dietprogram.Program, error) {
	var p *dietprogram.Program
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		var err error
		p, err = tx.Program(ctx, programID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
