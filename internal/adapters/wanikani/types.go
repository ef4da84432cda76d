package wanikani

import (
	"encoding/json"
	"time"
)

// collectionPage is the generic WaniKani collection envelope. The
// next_url chain in pages drives pagination; null marks the last page.
type collectionPage struct {
	Object string   `json:"object"`
	Pages  pageInfo `json:"pages"`
	Data   []item   `json:"data"`
}

type pageInfo struct {
	NextURL *string `json:"next_url"`
	PerPage int     `json:"per_page"`
}

// item wraps every collection entry: the id and resource kind live on
// the envelope, the payload under data.
type item struct {
	ID     int64           `json:"id"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type userEnvelope struct {
	Object string      `json:"object"`
	Data   userPayload `json:"data"`
}

type userPayload struct {
	Username  string     `json:"username"`
	Level     int        `json:"level"`
	StartedAt *time.Time `json:"started_at"`
}

type progressionPayload struct {
	Level       int        `json:"level"`
	StartedAt   *time.Time `json:"started_at"`
	PassedAt    *time.Time `json:"passed_at"`
	CompletedAt *time.Time `json:"completed_at"`
	AbandonedAt *time.Time `json:"abandoned_at"`
}

type assignmentPayload struct {
	SubjectID int64      `json:"subject_id"`
	SRSStage  int        `json:"srs_stage"`
	StartedAt *time.Time `json:"started_at"`
	PassedAt  *time.Time `json:"passed_at"`
	BurnedAt  *time.Time `json:"burned_at"`
}

// subjectPayload carries the display attributes; the subject type is
// the item-level object field. Image-only radicals have null
// characters and a character_images list instead.
type subjectPayload struct {
	Level           int              `json:"level"`
	Characters      string           `json:"characters"`
	CharacterImages []characterImage `json:"character_images"`
}

type characterImage struct {
	URL string `json:"url"`
}

// stageReport is the srs_stages envelope: a report object whose data
// is a bare payload array without per-item envelopes.
type stageReport struct {
	Object string         `json:"object"`
	Data   []stagePayload `json:"data"`
}

type stagePayload struct {
	Stage int    `json:"srs_stage"`
	Name  string `json:"srs_stage_name"`
}

type reviewPayload struct {
	SubjectID               int64     `json:"subject_id"`
	StartingSRSStage        int       `json:"starting_srs_stage"`
	EndingSRSStage          int       `json:"ending_srs_stage"`
	IncorrectMeaningAnswers int       `json:"incorrect_meaning_answers"`
	IncorrectReadingAnswers int       `json:"incorrect_reading_answers"`
	CreatedAt               time.Time `json:"created_at"`
}
