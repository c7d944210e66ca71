package score

import (
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/provenance/internal/model"
)

// lowQualityThreshold is the mean source quality below which a warning is raised
const lowQualityThreshold = 0.5

// SourceInfo pairs a stored source with its authority tier
type SourceInfo struct {
	Source model.Source
	Tier   model.AuthorityTier
}

// Input is everything known about one entity at report time
type Input struct {
	EntityID string
	Claims   int
	Facts    []model.FactResult
	Sources  []SourceInfo
	Assets   []model.MediaAsset
	Eligible int // Assets the selection policy would accept
	Selected *model.MediaAsset
}

// Scorer calculates the support index and generates signals
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Report builds the entity report. It never changes resolution or selection.
func (s *Scorer) Report(in Input) model.EntityReport {
	report := model.EntityReport{
		EntityID:    in.EntityID,
		GeneratedAt: s.now().UTC(),
		Facts:       countFacts(in.Facts, in.Claims),
		Sources:     countSources(in.Sources),
		Assets:      countAssets(in.Assets, in.Eligible),
		Selected:    in.Selected,
	}
	report.Score = s.Calculate(report, in.Facts)
	return report
}

// Calculate calculates the support index and generates diagnostic signals
func (s *Scorer) Calculate(report model.EntityReport, facts []model.FactResult) model.Score {
	var signals []model.Signal

	// 1. Verified coverage (0-40 points)
	coverageScore, coverageSignal := s.calculateCoverage(report.Facts)
	signals = append(signals, coverageSignal)

	// 2. Authority distribution (0-30 points)
	authorityScore, authoritySignal := s.calculateAuthority(report.Sources)
	signals = append(signals, authoritySignal)

	// 3. Source quality (0-20 points)
	qualityScore, qualitySignal := s.calculateQuality(report.Sources)
	if qualitySignal.Type != "" {
		signals = append(signals, qualitySignal)
	}

	// 4. Selection state (0-10 points)
	selectionScore, selectionSignals := s.calculateSelection(report.Assets, report.Selected)
	signals = append(signals, selectionSignals...)

	// 5. Single domain
	if report.Sources.Domains == 1 {
		signals = append(signals, model.Signal{
			Type:        model.SignalSingleSource,
			Severity:    model.SeverityWarning,
			Description: "All sources come from a single domain",
			Data:        map[string]any{"sources": report.Sources.Total},
		})
	}

	// 6. Conflicts (penalty)
	conflictDetected, conflictSignal := s.detectConflict(facts)
	if conflictDetected {
		signals = append(signals, conflictSignal)
	}

	totalScore := coverageScore + authorityScore + qualityScore + selectionScore
	if conflictDetected {
		totalScore -= 10
		if totalScore < 0 {
			totalScore = 0
		}
	}

	return model.Score{
		Index:      totalScore,
		Confidence: s.determineConfidence(totalScore, report.Sources.Total, conflictDetected),
		Conflict:   conflictDetected,
		Signals:    signals,
	}
}

func countFacts(facts []model.FactResult, claims int) model.FactCounts {
	counts := model.FactCounts{Claims: claims}
	for _, f := range facts {
		switch v := f.(type) {
		case model.ValidFact:
			if v.Status == model.FactStatusVerified {
				counts.Verified++
			} else {
				counts.Unverified++
			}
		case model.ConflictingFact:
			counts.Conflicting++
		case model.UnverifiedFact:
			counts.Unverified++
		}
	}
	return counts
}

func countSources(sources []SourceInfo) model.SourceCounts {
	counts := model.SourceCounts{Total: len(sources)}
	domains := make(map[string]bool)
	var quality float64
	for _, s := range sources {
		switch s.Tier {
		case model.TierPrimary:
			counts.Primary++
		case model.TierSecondary:
			counts.Secondary++
		case model.TierTertiary:
			counts.Tertiary++
		default:
			counts.Unknown++
		}
		domains[s.Source.Name()] = true
		quality += s.Source.Quality
	}
	counts.Domains = len(domains)
	if len(sources) > 0 {
		counts.MeanQuality = quality / float64(len(sources))
	}
	return counts
}

func countAssets(assets []model.MediaAsset, eligible int) model.AssetCounts {
	counts := model.AssetCounts{Total: len(assets), Eligible: eligible}
	for _, a := range assets {
		switch a.Status {
		case model.AssetScored:
			counts.Scored++
		case model.AssetRejected:
			counts.Rejected++
		}
	}
	return counts
}

// calculateCoverage calculates verified coverage score (0-40 points)
func (s *Scorer) calculateCoverage(facts model.FactCounts) (int, model.Signal) {
	resolved := facts.Verified + facts.Unverified + facts.Conflicting
	if resolved == 0 {
		return 0, model.Signal{
			Type:        model.SignalVerifiedCoverage,
			Severity:    model.SeverityCritical,
			Description: "No facts resolved",
			Data:        map[string]any{"claims": facts.Claims, "facts": 0},
		}
	}

	ratio := float64(facts.Verified) / float64(resolved)
	score := int(ratio * 40)

	severity := model.SeverityInfo
	if ratio < 0.25 {
		severity = model.SeverityCritical
	} else if ratio < 0.5 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalVerifiedCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Verified facts: %d/%d", facts.Verified, resolved),
		Data: map[string]any{
			"verified":    facts.Verified,
			"unverified":  facts.Unverified,
			"conflicting": facts.Conflicting,
			"ratio":       ratio,
			"score":       score,
			"formula":     "verified / resolved * 40",
		},
	}
}

// calculateAuthority calculates authority distribution score (0-30 points)
func (s *Scorer) calculateAuthority(sources model.SourceCounts) (int, model.Signal) {
	if sources.Total == 0 {
		return 0, model.Signal{
			Type:        model.SignalAuthorityDistribution,
			Severity:    model.SeverityWarning,
			Description: "No sources recorded",
			Data:        map[string]any{"total": 0},
		}
	}

	weightedSum := sources.Primary*3 + sources.Secondary*2 + sources.Tertiary
	maxPossible := sources.Total * 3
	score := weightedSum * 30 / maxPossible

	severity := model.SeverityInfo
	if sources.Primary == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:     model.SignalAuthorityDistribution,
		Severity: severity,
		Description: fmt.Sprintf("Authority distribution: %d primary, %d secondary, %d tertiary, %d unknown",
			sources.Primary, sources.Secondary, sources.Tertiary, sources.Unknown),
		Data: map[string]any{
			"primary":   sources.Primary,
			"secondary": sources.Secondary,
			"tertiary":  sources.Tertiary,
			"unknown":   sources.Unknown,
			"total":     sources.Total,
			"score":     score,
			"formula":   "(primary*3 + secondary*2 + tertiary*1) / (total*3) * 30",
		},
	}
}

// calculateQuality scores mean source quality (0-20 points).
// A signal is only emitted when quality is low.
func (s *Scorer) calculateQuality(sources model.SourceCounts) (int, model.Signal) {
	if sources.Total == 0 {
		return 0, model.Signal{}
	}
	score := int(Clamp01(sources.MeanQuality) * 20)
	if sources.MeanQuality >= lowQualityThreshold {
		return score, model.Signal{}
	}
	return score, model.Signal{
		Type:        model.SignalLowQuality,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Mean source quality %.2f is below %.2f", sources.MeanQuality, lowQualityThreshold),
		Data: map[string]any{
			"mean_quality": sources.MeanQuality,
			"threshold":    lowQualityThreshold,
			"score":        score,
			"formula":      "mean_quality * 20",
		},
	}
}

// calculateSelection scores the asset selection state (0-10 points)
func (s *Scorer) calculateSelection(assets model.AssetCounts, selected *model.MediaAsset) (int, []model.Signal) {
	var signals []model.Signal
	score := 0

	switch {
	case selected != nil:
		score = 10
	case assets.Eligible > 0:
		score = 5
		signals = append(signals, model.Signal{
			Type:        model.SignalNoSelectedAsset,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("No image selected although %d candidates are eligible", assets.Eligible),
			Data:        map[string]any{"eligible": assets.Eligible},
		})
	default:
		signals = append(signals, model.Signal{
			Type:        model.SignalNoSelectedAsset,
			Severity:    model.SeverityInfo,
			Description: "No eligible image candidates",
			Data:        map[string]any{"total": assets.Total, "rejected": assets.Rejected},
		})
	}

	if backlog := assets.Total - assets.Scored - assets.Rejected; backlog > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalAssetBacklog,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d image candidates await verification", backlog),
			Data:        map[string]any{"unscored": backlog},
		})
	}

	return score, signals
}

// detectConflict reports predicates with competing values
func (s *Scorer) detectConflict(facts []model.FactResult) (bool, model.Signal) {
	var predicates []string
	for _, f := range facts {
		if c, ok := f.(model.ConflictingFact); ok {
			predicates = append(predicates, string(c.Type))
		}
	}
	if len(predicates) == 0 {
		return false, model.Signal{}
	}
	sort.Strings(predicates)

	return true, model.Signal{
		Type:        model.SignalConflict,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Competing values for %d predicates", len(predicates)),
		Data: map[string]any{
			"predicates": predicates,
			"penalty":    10,
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, sourceCount int, conflict bool) string {
	if conflict {
		return "low-medium"
	}

	if sourceCount < 3 {
		return "low"
	}

	if score >= 80 {
		return "high"
	} else if score >= 60 {
		return "medium"
	}
	return "low"
}
