// Package wanikani is an authenticated client for the WaniKani v2 REST
// API. One client serves one api key; collection endpoints follow the
// pages.next_url chain until the server reports no further page.
package wanikani

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/pkg/logger"
	"github.com/example/wanistats/pkg/metrics"
)

const (
	defaultBaseURL  = "https://api.wanikani.com/v2"
	defaultTimeout  = 30 * time.Second
	defaultMaxPages = 50
)

// Client queries the WaniKani API on behalf of a single api key. It is
// safe for concurrent use.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	maxPages int

	logger logger.Logger
}

// New creates a client for the given api key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: defaultTimeout},
		maxPages: defaultMaxPages,
		logger:   logger.Get().Named("wanikani"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// User fetches the account owning the api key.
func (c *Client) User(ctx context.Context) (model.Account, error) {
	var env userEnvelope
	if err := c.get(ctx, "user", c.baseURL+"/user", &env); err != nil {
		return model.Account{}, err
	}

	account := model.Account{
		Username: env.Data.Username,
		Level:    env.Data.Level,
	}
	if env.Data.StartedAt != nil {
		account.StartedAt = *env.Data.StartedAt
	}

	return account, nil
}

// LevelProgressions fetches every level progression recorded for the
// account, across all pages.
func (c *Client) LevelProgressions(ctx context.Context) ([]model.LevelProgression, error) {
	var records []model.LevelProgression

	err := c.paginate(ctx, "level_progressions", func(items []item) error {
		for _, it := range items {
			var p progressionPayload
			if err := json.Unmarshal(it.Data, &p); err != nil {
				return fmt.Errorf("decode level progression %d: %w", it.ID, err)
			}
			records = append(records, model.LevelProgression{
				ID:          it.ID,
				Level:       p.Level,
				StartedAt:   p.StartedAt,
				PassedAt:    p.PassedAt,
				CompletedAt: p.CompletedAt,
				AbandonedAt: p.AbandonedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Assignments fetches every assignment for the account. Only the
// normalized attributes are populated; display attributes such as the
// subject characters are resolved from the record store on read.
func (c *Client) Assignments(ctx context.Context) ([]model.Assignment, error) {
	var records []model.Assignment

	err := c.paginate(ctx, "assignments", func(items []item) error {
		for _, it := range items {
			var p assignmentPayload
			if err := json.Unmarshal(it.Data, &p); err != nil {
				return fmt.Errorf("decode assignment %d: %w", it.ID, err)
			}
			records = append(records, model.Assignment{
				ID:        it.ID,
				SubjectID: p.SubjectID,
				StageID:   p.SRSStage,
				StartedAt: p.StartedAt,
				PassedAt:  p.PassedAt,
				BurnedAt:  p.BurnedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Subjects fetches the full subject catalogue. The subject type comes
// from the item envelope; radicals without character glyphs carry the
// first character image URL instead.
func (c *Client) Subjects(ctx context.Context) ([]model.Subject, error) {
	var records []model.Subject

	err := c.paginate(ctx, "subjects", func(items []item) error {
		for _, it := range items {
			var p subjectPayload
			if err := json.Unmarshal(it.Data, &p); err != nil {
				return fmt.Errorf("decode subject %d: %w", it.ID, err)
			}
			records = append(records, model.Subject{
				ID:         it.ID,
				Level:      p.Level,
				Type:       it.Object,
				Characters: p.Characters,
				ImageURL:   imageURL(p),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// SRSStages fetches the stage catalogue. The endpoint returns a report
// object rather than a paginated collection.
func (c *Client) SRSStages(ctx context.Context) ([]model.Stage, error) {
	var report stageReport
	if err := c.get(ctx, "srs_stages", c.baseURL+"/srs_stages", &report); err != nil {
		return nil, err
	}

	stages := make([]model.Stage, 0, len(report.Data))
	for _, p := range report.Data {
		stages = append(stages, model.Stage{ID: p.Stage, Name: p.Name})
	}

	return stages, nil
}

// Reviews fetches every review for the account, across all pages.
func (c *Client) Reviews(ctx context.Context) ([]model.Review, error) {
	var records []model.Review

	err := c.paginate(ctx, "reviews", func(items []item) error {
		for _, it := range items {
			var p reviewPayload
			if err := json.Unmarshal(it.Data, &p); err != nil {
				return fmt.Errorf("decode review %d: %w", it.ID, err)
			}
			records = append(records, model.Review{
				ID:               it.ID,
				SubjectID:        p.SubjectID,
				StartingStageID:  p.StartingSRSStage,
				EndingStageID:    p.EndingSRSStage,
				IncorrectMeaning: p.IncorrectMeaningAnswers,
				IncorrectReading: p.IncorrectReadingAnswers,
				CreatedAt:        p.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// paginate walks a collection endpoint page by page, handing each
// page's items to fn. It stops after maxPages hops to keep a buggy or
// hostile next_url chain from looping forever.
func (c *Client) paginate(ctx context.Context, resource string, fn func(items []item) error) error {
	url := c.baseURL + "/" + resource

	for page := 0; page < c.maxPages; page++ {
		var envelope collectionPage
		if err := c.get(ctx, resource, url, &envelope); err != nil {
			return err
		}

		if err := fn(envelope.Data); err != nil {
			return err
		}

		if envelope.Pages.NextURL == nil || *envelope.Pages.NextURL == "" {
			return nil
		}
		url = *envelope.Pages.NextURL
	}

	return fmt.Errorf("%s: %w after %d pages", resource, ErrTooManyPages, c.maxPages)
}

// get performs a single authenticated GET and decodes the response
// body into out.
func (c *Client) get(ctx context.Context, resource, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", resource, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordUpstreamLatency(resource, time.Since(start))
	if err != nil {
		metrics.RecordUpstreamRequest(resource, "error")
		return fmt.Errorf("get %s: %w", resource, err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamRequest(resource, strconv.Itoa(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", resource, ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn(ctx, "unexpected upstream status",
			logger.String("resource", resource),
			logger.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%s: unexpected status %s", resource, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}

	return nil
}

// imageURL picks a rendition for subjects that have no characters.
func imageURL(p subjectPayload) string {
	if p.Characters != "" || len(p.CharacterImages) == 0 {
		return ""
	}
	return p.CharacterImages[0].URL
}
