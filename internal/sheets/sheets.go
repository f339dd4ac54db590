// Package sheets loads campaign rows from a Google spreadsheet and writes
// delivery status back.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"blastbot/internal/campaign"
	"blastbot/internal/config"
	logx "blastbot/pkg/logx"
)

// Column header aliases, matched case-insensitively. The first column whose
// header matches an alias wins.
var (
	dateAliases    = []string{"date"}
	textAliases    = []string{"message_principal", "message", "texte"}
	timeAliases    = []string{"heure", "time"}
	imageAliases   = []string{"id_drive_image", "media_id", "image"}
	captionAliases = []string{"legende_image", "legende", "caption"}
	videoAliases   = []string{"id_drive_video", "video"}
	statusAliases  = []string{"statut", "status"}
)

const sentMarker = "ENVOYÉ"

// Source reads campaigns from one spreadsheet tab.
type Source struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	sheetName     string
	retryMax      int
	retryDelay    time.Duration
	log           logx.Logger

	mu        sync.Mutex
	statusCol int // 0-based column of the status header, -1 when absent
}

// New builds a Source from the service-account key in credJSON.
func New(ctx context.Context, cfg config.SheetsConfig, credJSON []byte, log logx.Logger) (*Source, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet_id is required")
	}
	if len(credJSON) == 0 {
		return nil, errors.New("sheets: service account credentials are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsJSON(credJSON),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 3
	}

	return &Source{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     strings.TrimSpace(cfg.SheetName),
		retryMax:      retryMax,
		retryDelay:    2 * time.Second,
		log:           log,
		statusCol:     -1,
	}, nil
}

func (s *Source) rangeRef(cells string) string {
	if s.sheetName == "" {
		return cells
	}
	return "'" + strings.ReplaceAll(s.sheetName, "'", "''") + "'!" + cells
}

// FetchAll reads the whole sheet and returns campaigns in row order.
// Rows with an unparseable date are skipped with a warning; a campaign with a
// bad optional time cell degrades to "any time that day".
func (s *Source) FetchAll(ctx context.Context) ([]campaign.Campaign, error) {
	var resp *sheetsapi.ValueRange
	err := s.withRetry(ctx, "values.get", func() error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.
			Get(s.spreadsheetID, s.rangeRef("A1:Z")).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sheets: fetch rows: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	cols := mapHeader(resp.Values[0])
	if cols.date < 0 || cols.text < 0 {
		return nil, errors.New("sheets: header row is missing a date or message column")
	}

	s.mu.Lock()
	s.statusCol = cols.status
	s.mu.Unlock()

	out := make([]campaign.Campaign, 0, len(resp.Values)-1)
	for i, row := range resp.Values[1:] {
		rowNum := i + 2 // 1-based, after the header

		date := campaign.ParseDate(cell(row, cols.date))
		text := strings.TrimSpace(cell(row, cols.text))
		if date == "" {
			if text != "" {
				s.log.Warn("campaign row skipped: bad date",
					logx.Int("row", rowNum),
					logx.String("date", cell(row, cols.date)))
			}
			continue
		}
		imageID := strings.TrimSpace(cell(row, cols.image))
		videoID := strings.TrimSpace(cell(row, cols.video))
		if text == "" && imageID == "" && videoID == "" {
			continue
		}

		c := campaign.Campaign{
			ID:           campaign.DeriveID(text, imageID, videoID, date),
			Row:          rowNum,
			Date:         date,
			TimeMinutes:  campaign.ParseTimeOfDay(cell(row, cols.time)),
			Text:         text,
			ImageID:      imageID,
			ImageCaption: strings.TrimSpace(cell(row, cols.caption)),
			VideoID:      videoID,
			Status:       campaign.StatusPending,
		}
		if strings.EqualFold(strings.TrimSpace(cell(row, cols.status)), sentMarker) {
			c.Status = campaign.StatusSent
		}
		out = append(out, c)
	}
	return out, nil
}

// MarkSent writes the sent marker into the campaign's status cell.
func (s *Source) MarkSent(ctx context.Context, c campaign.Campaign) error {
	s.mu.Lock()
	col := s.statusCol
	s.mu.Unlock()
	if col < 0 {
		return errors.New("sheets: no status column in header, cannot write back")
	}
	if c.Row < 2 {
		return fmt.Errorf("sheets: invalid row %d for write-back", c.Row)
	}

	target := s.rangeRef(fmt.Sprintf("%s%d", columnLetter(col), c.Row))
	vr := &sheetsapi.ValueRange{Values: [][]any{{sentMarker}}}

	return s.withRetry(ctx, "values.update", func() error {
		_, err := s.svc.Spreadsheets.Values.
			Update(s.spreadsheetID, target, vr).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
}

// withRetry runs fn up to retryMax times with a growing delay between tries.
func (s *Source) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	delay := s.retryDelay
	for attempt := 1; attempt <= s.retryMax; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == s.retryMax {
			break
		}
		s.log.Warn("sheets call failed, retrying",
			logx.String("op", op),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

type headerCols struct {
	date, text, time, image, caption, video, status int
}

func mapHeader(header []any) headerCols {
	cols := headerCols{date: -1, text: -1, time: -1, image: -1, caption: -1, video: -1, status: -1}
	for i := range header {
		h := strings.ToLower(strings.TrimSpace(fmt.Sprint(header[i])))
		switch {
		case cols.date < 0 && matches(h, dateAliases):
			cols.date = i
		case cols.text < 0 && matches(h, textAliases):
			cols.text = i
		case cols.time < 0 && matches(h, timeAliases):
			cols.time = i
		case cols.image < 0 && matches(h, imageAliases):
			cols.image = i
		case cols.caption < 0 && matches(h, captionAliases):
			cols.caption = i
		case cols.video < 0 && matches(h, videoAliases):
			cols.video = i
		case cols.status < 0 && matches(h, statusAliases):
			cols.status = i
		}
	}
	return cols
}

func matches(h string, aliases []string) bool {
	for _, a := range aliases {
		if h == a {
			return true
		}
	}
	return false
}

func cell(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return fmt.Sprint(row[idx])
}

// columnLetter converts a 0-based column index to its A1 letter(s).
func columnLetter(idx int) string {
	s := ""
	for idx >= 0 {
		s = string(rune('A'+idx%26)) + s
		idx = idx/26 - 1
	}
	return s
}
