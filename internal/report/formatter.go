// Package report turns aggregate snapshots into sorted presentation models
// and renders them as tables, JSON or YAML.
package report

import (
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/src-d/enry/v2"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

// DefaultHighImpactThreshold is the churn above which a file row is flagged.
const DefaultHighImpactThreshold = 500

// OtherLanguage labels files whose language could not be detected.
const OtherLanguage = "Other"

const p90 = 90

// FileRow is one file of the report.
type FileRow struct {
	FileName   string `json:"fileName" yaml:"fileName"`
	Added      int    `json:"added" yaml:"added"`
	Removed    int    `json:"removed" yaml:"removed"`
	Churn      int    `json:"churn" yaml:"churn"`
	HighImpact bool   `json:"highImpact" yaml:"highImpact"`
	Language   string `json:"language,omitempty" yaml:"language,omitempty"`
	Vendored   bool   `json:"vendored,omitempty" yaml:"vendored,omitempty"`
}

// LanguageRow sums the rows of one language.
type LanguageRow struct {
	Language string `json:"language" yaml:"language"`
	Files    int    `json:"files" yaml:"files"`
	Added    int    `json:"added" yaml:"added"`
	Removed  int    `json:"removed" yaml:"removed"`
}

// Distribution summarises per-file churn.
type Distribution struct {
	MedianChurn float64 `json:"medianChurn" yaml:"medianChurn"`
	P90Churn    float64 `json:"p90Churn" yaml:"p90Churn"`
}

// PresentationModel is what the presentation layer displays.
type PresentationModel struct {
	Status            string                 `json:"status" yaml:"status"`
	Title             string                 `json:"title" yaml:"title"`
	TotalFilesChanged int                    `json:"totalFilesChanged" yaml:"totalFilesChanged"`
	TotalAdded        int                    `json:"totalAdded" yaml:"totalAdded"`
	TotalRemoved      int                    `json:"totalRemoved" yaml:"totalRemoved"`
	RefreshedAt       time.Time              `json:"refreshedAt" yaml:"refreshedAt"`
	Files             []FileRow              `json:"files" yaml:"files"`
	Authors           []domain.AuthorChange  `json:"authors" yaml:"authors"`
	Commits           []domain.CommitSummary `json:"commits" yaml:"commits"`
	Languages         []LanguageRow          `json:"languages" yaml:"languages"`
	Distribution      Distribution           `json:"distribution" yaml:"distribution"`
}

// Formatter builds presentation models. It holds no state besides its settings.
type Formatter struct {
	threshold int
}

// NewFormatter creates a Formatter flagging rows whose churn exceeds
// threshold. A non-positive threshold selects DefaultHighImpactThreshold.
func NewFormatter(threshold int) *Formatter {
	if threshold <= 0 {
		threshold = DefaultHighImpactThreshold
	}
	return &Formatter{threshold: threshold}
}

// Threshold returns the high-impact threshold.
func (f *Formatter) Threshold() int {
	return f.threshold
}

// Format builds the presentation model of s. File rows are sorted by churn,
// largest first, keeping snapshot order among equal churn. Authors and
// commits keep snapshot order.
func (f *Formatter) Format(s domain.AggregateSnapshot) PresentationModel {
	rows := make([]FileRow, 0, len(s.Files))
	for _, fc := range s.Files {
		rows = append(rows, FileRow{
			FileName:   fc.FileName,
			Added:      fc.Added,
			Removed:    fc.Removed,
			Churn:      fc.Churn(),
			HighImpact: fc.Churn() > f.threshold,
			Language:   detectLanguage(fc.FileName),
			Vendored:   enry.IsVendor(fc.FileName),
		})
	}
	// Language rollup follows snapshot order before the rows are sorted.
	languages := languageRollup(rows)

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Churn > rows[j].Churn
	})

	return PresentationModel{
		Status:            domain.StatusLine(s),
		Title:             fmt.Sprintf("Diffs on last %d commits", len(s.Commits)),
		TotalFilesChanged: s.TotalFilesChanged,
		TotalAdded:        s.TotalAdded,
		TotalRemoved:      s.TotalRemoved,
		RefreshedAt:       s.RefreshedAt,
		Files:             rows,
		Authors:           append(make([]domain.AuthorChange, 0, len(s.Authors)), s.Authors...),
		Commits:           append(make([]domain.CommitSummary, 0, len(s.Commits)), s.Commits...),
		Languages:         languages,
		Distribution:      churnDistribution(rows),
	}
}

func detectLanguage(name string) string {
	base := path.Base(name)
	if lang, _ := enry.GetLanguageByExtension(base); lang != "" {
		return lang
	}
	lang, _ := enry.GetLanguageByFilename(base)
	return lang
}

func languageRollup(rows []FileRow) []LanguageRow {
	index := make(map[string]int)
	var out []LanguageRow
	for _, r := range rows {
		lang := r.Language
		if lang == "" {
			lang = OtherLanguage
		}
		i, ok := index[lang]
		if !ok {
			i = len(out)
			index[lang] = i
			out = append(out, LanguageRow{Language: lang})
		}
		out[i].Files++
		out[i].Added += r.Added
		out[i].Removed += r.Removed
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Added+out[i].Removed > out[j].Added+out[j].Removed
	})
	if out == nil {
		out = []LanguageRow{}
	}
	return out
}

func churnDistribution(rows []FileRow) Distribution {
	if len(rows) == 0 {
		return Distribution{}
	}
	data := make(stats.Float64Data, 0, len(rows))
	for _, r := range rows {
		data = append(data, float64(r.Churn))
	}

	var d Distribution
	if median, err := stats.Median(data); err == nil {
		d.MedianChurn = median
	}
	if p, err := stats.Percentile(data, p90); err == nil {
		d.P90Churn = p
	} else if maxChurn, err := stats.Max(data); err == nil {
		d.P90Churn = maxChurn
	}
	return d
}
