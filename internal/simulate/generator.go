package simulate

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/example/wanistats/internal/domain/model"
)

// Record IDs live in one global namespace, so every account draws from
// its own block.
const idBlockSize = 1 << 20

const maxAccountLevel = 10

// stageLadder is the SRS stage reference data every dataset shares.
var stageLadder = []model.Stage{
	{ID: 0, Name: "Initiate"},
	{ID: 1, Name: "Apprentice I"},
	{ID: 2, Name: "Apprentice II"},
	{ID: 3, Name: "Apprentice III"},
	{ID: 4, Name: "Apprentice IV"},
	{ID: 5, Name: "Guru I"},
	{ID: 6, Name: "Guru II"},
	{ID: 7, Name: "Master"},
	{ID: 8, Name: "Enlightened"},
	{ID: 9, Name: "Burned"},
}

var glyphs = []string{
	"一", "二", "三", "人", "日", "月", "火", "水", "木", "金",
	"土", "山", "川", "口", "目", "田", "力", "大", "小", "上",
}

// dataset is the synthetic record set for one account. The subject
// catalogue and stage ladder are shared across the whole run.
type dataset struct {
	account      model.Account
	subjects     []model.Subject
	subjectByID  map[int64]model.Subject
	stages       []model.Stage
	progressions []model.LevelProgression
	assignments  []model.Assignment
	reviews      []model.Review
}

func (d *dataset) recordCount() int {
	return len(d.progressions) + len(d.assignments) + len(d.reviews)
}

// buildCatalogue generates the run-wide subject reference data. Types
// follow a rough 1:2:2 radical/kanji/vocabulary split and a few
// radicals are image-only.
func buildCatalogue(count int, rng *rand.Rand) []model.Subject {
	subjects := make([]model.Subject, count)
	for i := range subjects {
		s := model.Subject{
			ID:         int64(i + 1),
			Level:      1 + rng.Intn(maxAccountLevel),
			Characters: glyphs[rng.Intn(len(glyphs))],
		}
		switch rng.Intn(5) {
		case 0:
			s.Type = model.TypeRadical
		case 1, 2:
			s.Type = model.TypeKanji
		default:
			s.Type = model.TypeVocabulary
		}
		if s.Type == model.TypeRadical && rng.Intn(4) == 0 {
			s.Characters = ""
			s.ImageURL = fmt.Sprintf("https://cdn.wanikani.com/radicals/%d.png", s.ID)
		}
		subjects[i] = s
	}
	return subjects
}

// buildDataset generates one account's records against the shared
// catalogue. index selects the account's record ID block.
func buildDataset(username string, index int, catalogue []model.Subject, cfg *Config, rng *rand.Rand) *dataset {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idBase := int64(index+1) * idBlockSize
	level := 1 + rng.Intn(maxAccountLevel)

	d := &dataset{
		account: model.Account{
			Username:  username,
			Level:     level,
			StartedAt: base,
		},
		subjects:    catalogue,
		subjectByID: make(map[int64]model.Subject, len(catalogue)),
		stages:      stageLadder,
	}
	for _, s := range catalogue {
		d.subjectByID[s.ID] = s
	}

	// One progression per reached level. Past levels were passed, most
	// of them completed; the current level stays open.
	cursor := base
	for lvl := 1; lvl <= level; lvl++ {
		started := cursor
		p := model.LevelProgression{
			ID:        idBase + int64(lvl),
			Level:     lvl,
			StartedAt: timePtr(started),
		}
		if lvl < level {
			passed := started.Add(time.Duration(1+rng.Intn(10)) * 24 * time.Hour)
			p.PassedAt = timePtr(passed)
			if rng.Intn(10) < 7 {
				p.CompletedAt = timePtr(passed.Add(time.Duration(rng.Intn(5)) * 24 * time.Hour))
			}
			cursor = passed
		}
		d.progressions = append(d.progressions, p)
	}

	// Assignments walk the catalogue in order so every subject the
	// account studies exists. Milestones accumulate: most are started,
	// many passed, some burned.
	for i := 0; i < cfg.Assignments && i < len(catalogue); i++ {
		subject := catalogue[i]
		a := model.Assignment{
			ID:        idBase + int64(i+1),
			SubjectID: subject.ID,
			StageID:   1 + rng.Intn(8),
		}
		if rng.Intn(10) > 0 {
			started := base.Add(time.Duration(rng.Intn(60*24)) * time.Hour)
			a.StartedAt = timePtr(started)
			if rng.Intn(10) < 6 {
				passed := started.Add(time.Duration(1+rng.Intn(20*24)) * time.Hour)
				a.PassedAt = timePtr(passed)
				if rng.Intn(10) < 3 {
					a.BurnedAt = timePtr(passed.Add(time.Duration(30*24+rng.Intn(90*24)) * time.Hour))
					a.StageID = 9
				}
			}
		}
		d.assignments = append(d.assignments, a)
	}

	// Reviews sample the catalogue at random. Roughly one in five
	// fails, dropping stages and recording incorrect answers; radicals
	// never fail on reading.
	for i := 0; i < cfg.Reviews; i++ {
		subject := catalogue[rng.Intn(len(catalogue))]
		starting := 1 + rng.Intn(8)
		r := model.Review{
			ID:              idBase + int64(i+1),
			SubjectID:       subject.ID,
			StartingStageID: starting,
			EndingStageID:   starting + 1,
			CreatedAt:       base.Add(time.Duration(rng.Intn(30*24)) * time.Hour),
		}
		if rng.Intn(5) == 0 {
			r.EndingStageID = max(1, starting-1-rng.Intn(2))
			r.IncorrectMeaning = 1 + rng.Intn(3)
			if subject.Type != model.TypeRadical {
				r.IncorrectReading = rng.Intn(3)
			}
		}
		d.reviews = append(d.reviews, r)
	}

	return d
}

func timePtr(t time.Time) *time.Time { return &t }
