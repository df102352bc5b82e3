package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sheetsv4 "google.golang.org/api/sheets/v4"

	"club-events/internal/store"
)

// Collection -> sheet title.
var sheetNames = map[string]string{
	store.Events:         "Events",
	store.Participations: "Participations",
	store.Participants:   "Participants",
	store.Payments:       "Payments",
	store.Teams:          "Teams",
	store.Attendances:    "Attendances",
}

// Store adapts a Client to store.DocumentStore. Writes are read-modify-write
// against the sheet, so they are serialised within the process.
type Store struct {
	c  *Client
	mu sync.Mutex
}

var _ store.DocumentStore = (*Store)(nil)

func NewStore(c *Client) *Store { return &Store{c: c} }

func sheetFor(collection string) string {
	if name, ok := sheetNames[collection]; ok {
		return name
	}
	return collection
}

func (c *Client) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:B").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:B", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *Client) updateRow(ctx context.Context, sheet string, rowNum int, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	a1 := fmt.Sprintf("%s!A%d:B%d", sheet, rowNum, rowNum)
	_, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, a1, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (c *Client) clearRow(ctx context.Context, sheet string, rowNum int) error {
	a1 := fmt.Sprintf("%s!A%d:B%d", sheet, rowNum, rowNum)
	_, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, a1, &sheetsv4.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

// EnsureSheets creates a sheet with an id/data header for every collection
// that does not have one yet.
func (c *Client) EnsureSheets(ctx context.Context) error {
	ss, err := c.srv.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			have[sh.Properties.Title] = true
		}
	}
	var reqs []*sheetsv4.Request
	var created []string
	for _, title := range sheetNames {
		if have[title] {
			continue
		}
		reqs = append(reqs, &sheetsv4.Request{AddSheet: &sheetsv4.AddSheetRequest{
			Properties: &sheetsv4.SheetProperties{Title: title},
		}})
		created = append(created, title)
	}
	if len(reqs) == 0 {
		return nil
	}
	if _, err := c.srv.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsv4.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do(); err != nil {
		return err
	}
	for _, title := range created {
		if err := c.appendRow(ctx, title, []interface{}{"id", "data"}); err != nil {
			return err
		}
	}
	slog.Info("sheets_event", "event", "sheets_created", "sheets", strings.Join(created, ","))
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	values, err := s.c.readAll(ctx, sheetFor(collection))
	if err != nil {
		return nil, err
	}
	rowNum := findRow(values, id)
	if rowNum == 0 {
		return nil, store.ErrNotFound
	}
	return decodeRow(values[rowNum-1])
}

func (s *Store) List(ctx context.Context, collection string, filters ...store.Filter) ([]store.Doc, error) {
	values, err := s.c.readAll(ctx, sheetFor(collection))
	if err != nil {
		return nil, err
	}
	out := []store.Doc{}
	for _, d := range decodeRows(values, collection) {
		if store.Matches(d, filters) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data store.Doc, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := sheetFor(collection)
	values, err := s.c.readAll(ctx, sheet)
	if err != nil {
		return err
	}
	rowNum := findRow(values, id)
	doc := data
	if merge && rowNum > 0 {
		existing, err := decodeRow(values[rowNum-1])
		if err != nil {
			return err
		}
		doc = store.Merge(existing, data)
	}
	row, err := encodeRow(id, doc)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return s.c.appendRow(ctx, sheet, row)
	}
	return s.c.updateRow(ctx, sheet, rowNum, row)
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := sheetFor(collection)
	values, err := s.c.readAll(ctx, sheet)
	if err != nil {
		return err
	}
	rowNum := findRow(values, id)
	if rowNum == 0 {
		return store.ErrNotFound
	}
	existing, err := decodeRow(values[rowNum-1])
	if err != nil {
		return err
	}
	row, err := encodeRow(id, store.Merge(existing, patch))
	if err != nil {
		return err
	}
	return s.c.updateRow(ctx, sheet, rowNum, row)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := sheetFor(collection)
	values, err := s.c.readAll(ctx, sheet)
	if err != nil {
		return err
	}
	rowNum := findRow(values, id)
	if rowNum == 0 {
		return nil
	}
	return s.c.clearRow(ctx, sheet, rowNum)
}

// ---------- helpers ----------

// findRow returns the 1-indexed sheet row holding id, or 0. Row 1 is the
// header.
func findRow(values [][]interface{}, id string) int {
	for i := 1; i < len(values); i++ {
		if get(values[i], 0) == id {
			return i + 1
		}
	}
	return 0
}

func decodeRow(row []interface{}) (store.Doc, error) {
	raw := get(row, 1)
	if raw == "" {
		return nil, errors.New("empty document cell")
	}
	var d store.Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return d, nil
}

// decodeRows skips the header, blank (deleted) rows and rows whose JSON does
// not parse.
func decodeRows(values [][]interface{}, collection string) []store.Doc {
	out := []store.Doc{}
	for i := 1; i < len(values); i++ {
		if get(values[i], 0) == "" {
			continue
		}
		d, err := decodeRow(values[i])
		if err != nil {
			slog.Warn("sheets_row_skipped", "collection", collection, "row", i+1, "err", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

func encodeRow(id string, d store.Doc) ([]interface{}, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return []interface{}{id, string(b)}, nil
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
