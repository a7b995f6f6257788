package capacity

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/models"
)

const (
	DefaultMinLevel              = 3
	DefaultDesiredHoursPerWeek   = 20.0
	DefaultHeavyBookingThreshold = 90.0
	DefaultRecommendationLimit   = 10
)

// Weights are the relative importance of each scoring factor.
type Weights struct {
	SkillCoverage float64 `json:"skill_coverage"`
	SkillLevelFit float64 `json:"skill_level_fit"`
	FreeCapacity  float64 `json:"free_capacity"`
	Utilization   float64 `json:"utilization"`
}

func DefaultWeights() Weights {
	return Weights{SkillCoverage: 0.45, SkillLevelFit: 0.25, FreeCapacity: 0.20, Utilization: 0.10}
}

// Normalize scales the weights to sum to one. A non-positive total puts
// all weight on free capacity.
func (w Weights) Normalize() Weights {
	total := w.SkillCoverage + w.SkillLevelFit + w.FreeCapacity + w.Utilization
	if total <= 0 {
		return Weights{FreeCapacity: 1}
	}
	return Weights{
		SkillCoverage: w.SkillCoverage / total,
		SkillLevelFit: w.SkillLevelFit / total,
		FreeCapacity:  w.FreeCapacity / total,
		Utilization:   w.Utilization / total,
	}
}

// Requirement is a skill a project needs at a minimum level.
type Requirement struct {
	SkillID  uuid.UUID `json:"skill_id"`
	MinLevel int       `json:"min_level,omitempty"`
}

func (r Requirement) minLevel() int {
	if r.MinLevel <= 0 {
		return DefaultMinLevel
	}
	return r.MinLevel
}

// SkillPresence describes one required skill an employee has.
type SkillPresence struct {
	SkillID     uuid.UUID `json:"skill_id"`
	Level       int       `json:"level"`
	MinRequired int       `json:"min_required"`
	MeetsMin    bool      `json:"meets_min"`
}

// SkillMatch compares an employee's skill levels with the requirements.
// Coverage is the share of required skills present; level fit is the mean
// of min(1, level/min_level) over the covered skills.
func SkillMatch(reqs []Requirement, levels map[uuid.UUID]int) (coverage, levelFit float64, present []SkillPresence) {
	if len(reqs) == 0 {
		return 0, 0, nil
	}

	present = []SkillPresence{}
	fit := 0.0
	for _, r := range reqs {
		level, ok := levels[r.SkillID]
		if !ok {
			continue
		}
		min := r.minLevel()
		if min < 1 {
			min = 1
		}
		lvl := level
		if lvl < 1 {
			lvl = 1
		}
		fit += math.Min(1, float64(lvl)/float64(min))
		present = append(present, SkillPresence{
			SkillID:     r.SkillID,
			Level:       level,
			MinRequired: r.minLevel(),
			MeetsMin:    level >= r.minLevel(),
		})
	}

	coverage = float64(len(present)) / float64(len(reqs))
	if len(present) > 0 {
		levelFit = fit / float64(len(present))
	}
	return coverage, levelFit, present
}

// ScoreInput holds the factors of one candidate.
type ScoreInput struct {
	Coverage            float64
	LevelFit            float64
	FreeCapacityHours   float64
	DesiredHoursPerWeek float64
	UtilPercent         float64
}

// Score is the weighted sum of skill coverage, level fit, free capacity
// (relative to the desired weekly hours, capped at 1) and inverse
// utilization. Weights are normalized first.
func Score(in ScoreInput, w Weights) float64 {
	w = w.Normalize()

	free := 0.0
	if in.DesiredHoursPerWeek > 0 {
		free = math.Min(1, math.Max(0, in.FreeCapacityHours)/in.DesiredHoursPerWeek)
	}
	util := math.Max(0, math.Min(1, (100-in.UtilPercent)/100))

	return w.SkillCoverage*in.Coverage +
		w.SkillLevelFit*in.LevelFit +
		w.FreeCapacity*free +
		w.Utilization*util
}

// RecommendRequest asks for candidates for a project.
type RecommendRequest struct {
	ProjectID                    uint          `json:"project_id"`
	Requirements                 []Requirement `json:"requirements"`
	Start                        time.Time     `json:"start"`
	End                          time.Time     `json:"end"`
	Limit                        int           `json:"limit"`
	Weights                      *Weights      `json:"weights,omitempty"`
	DesiredHoursPerWeek          float64       `json:"desired_hours_per_week"`
	ExcludeHeavilyBooked         bool          `json:"exclude_heavily_booked"`
	HeavyBookingThresholdPercent float64       `json:"heavy_booking_threshold_percent"`
	// OrganizationID limits candidates to one organization when set.
	OrganizationID string `json:"-"`
}

// Recommendation is a scored candidate.
type Recommendation struct {
	EmployeeID        uuid.UUID       `json:"employee_id"`
	Name              string          `json:"name"`
	EmployeeCode      string          `json:"employee_code"`
	SkillCoverage     float64         `json:"skill_coverage"`
	SkillLevelFit     float64         `json:"skill_level_fit"`
	FreeCapacityHours float64         `json:"free_capacity_hours"`
	UtilPercent       float64         `json:"util_percent"`
	Score             float64         `json:"score"`
	WeightsUsed       Weights         `json:"weights_used"`
	Details           RecommendDetail `json:"details"`
}

type RecommendDetail struct {
	DesiredHoursPerWeek         float64         `json:"desired_hours_per_week"`
	AvgPlannedAllocationPercent float64         `json:"avg_planned_allocation_percent"`
	SkillsPresent               []SkillPresence `json:"skills_present"`
}

// Recommend ranks employees holding at least one required skill. When
// the request has no requirements the project's stored skill
// requirements are used; if there are none either, nothing is returned.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	if err := checkRange(req.Start, req.End); err != nil {
		return nil, err
	}

	metrics.RecommendationsTotal.Inc()

	reqs := req.Requirements
	if len(reqs) == 0 && req.ProjectID != 0 {
		stored, err := s.ProjectRequirements(ctx, req.ProjectID)
		if err != nil {
			return nil, err
		}
		reqs = stored
	}
	if len(reqs) == 0 {
		return []Recommendation{}, nil
	}

	weights := DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	weights = weights.Normalize()

	desired := req.DesiredHoursPerWeek
	if desired <= 0 {
		desired = DefaultDesiredHoursPerWeek
	}
	threshold := req.HeavyBookingThresholdPercent
	if threshold <= 0 {
		threshold = DefaultHeavyBookingThreshold
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}

	skillIDs := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		skillIDs = append(skillIDs, r.SkillID)
	}

	var held []models.EmployeeSkill
	if err := s.db.WithContext(ctx).Where("skill_id IN ?", skillIDs).Find(&held).Error; err != nil {
		return nil, err
	}

	levels := map[uuid.UUID]map[uuid.UUID]int{}
	candidateIDs := []uuid.UUID{}
	for _, h := range held {
		if _, ok := levels[h.EmployeeID]; !ok {
			levels[h.EmployeeID] = map[uuid.UUID]int{}
			candidateIDs = append(candidateIDs, h.EmployeeID)
		}
		levels[h.EmployeeID][h.SkillID] = h.Level
	}
	if len(candidateIDs) == 0 {
		return []Recommendation{}, nil
	}

	q := s.db.WithContext(ctx).Where("id IN ? AND is_active = ?", candidateIDs, true)
	if req.OrganizationID != "" {
		q = q.Where("organization_id = ?", req.OrganizationID)
	}
	var employees []models.Employee
	if err := q.Find(&employees).Error; err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, len(employees))
	for _, emp := range employees {
		load, err := s.AssignmentLoad(ctx, emp.ID, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		if req.ExcludeHeavilyBooked && load >= threshold {
			continue
		}

		u, err := s.Utilization(ctx, emp.ID, req.Start, req.End, 0)
		if err != nil {
			return nil, err
		}

		coverage, fit, present := SkillMatch(reqs, levels[emp.ID])
		free := math.Max(0, u.Capacity-u.Hours)

		score := Score(ScoreInput{
			Coverage:            coverage,
			LevelFit:            fit,
			FreeCapacityHours:   free,
			DesiredHoursPerWeek: desired,
			UtilPercent:         u.UtilPercent,
		}, weights)

		out = append(out, Recommendation{
			EmployeeID:        emp.ID,
			Name:              emp.Name,
			EmployeeCode:      emp.Code,
			SkillCoverage:     round(coverage, 4),
			SkillLevelFit:     round(fit, 4),
			FreeCapacityHours: Round2(free),
			UtilPercent:       Round2(u.UtilPercent),
			Score:             round(score, 6),
			WeightsUsed:       weights,
			Details: RecommendDetail{
				DesiredHoursPerWeek:         desired,
				AvgPlannedAllocationPercent: load,
				SkillsPresent:               present,
			},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EmployeeCode < out[j].EmployeeCode
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProjectRequirements returns the skill requirements stored for a project.
func (s *Service) ProjectRequirements(ctx context.Context, projectID uint) ([]Requirement, error) {
	var rows []models.ProjectSkillRequirement
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Requirement, 0, len(rows))
	for _, r := range rows {
		out = append(out, Requirement{SkillID: r.SkillID, MinLevel: r.MinLevel})
	}
	return out, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
