package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const DefaultBatchSize = 200

type tableRows struct {
	table   string
	columns []string
	rows    [][]any
}

func (d *Dataset) tableRows() []tableRows {
	out := []tableRows{
		{table: "Activity", columns: []string{"id", "name", "type", "subtype"}},
		{table: "Artist", columns: []string{"id", "name", "biography"}},
		{table: "Activity_Artist", columns: []string{"activity_id", "artist_id", "fee"}},
		{table: "Venue", columns: []string{"id", "name", "address", "city", "capacity", "rental_price", "features"}},
		{table: "Event", columns: []string{"id", "name", "activity_id", "venue_id", "ticket_price", "starts_at", "description"}},
		{table: "Attendee", columns: []string{"id", "full_name", "phone", "email"}},
		{table: "Ticket", columns: []string{"id", "event_id", "attendee_id", "price_paid", "purchased_at"}},
		{table: "Rating", columns: []string{"id", "event_id", "attendee_id", "score", "comment", "rated_at"}},
	}
	for _, r := range d.Activities {
		out[0].rows = append(out[0].rows, []any{r.ID, r.Name, r.Type, r.Subtype})
	}
	for _, r := range d.Artists {
		out[1].rows = append(out[1].rows, []any{r.ID, r.Name, r.Biography})
	}
	for _, r := range d.ActivityArtists {
		out[2].rows = append(out[2].rows, []any{r.ActivityID, r.ArtistID, r.Fee})
	}
	for _, r := range d.Venues {
		out[3].rows = append(out[3].rows, []any{r.ID, r.Name, r.Address, r.City, r.Capacity, r.RentalPrice, r.Features})
	}
	for _, r := range d.Events {
		out[4].rows = append(out[4].rows, []any{r.ID, r.Name, r.ActivityID, r.VenueID, r.TicketPrice, r.StartsAt, r.Description})
	}
	for _, r := range d.Attendees {
		out[5].rows = append(out[5].rows, []any{r.ID, r.FullName, r.Phone, r.Email})
	}
	for _, r := range d.Tickets {
		out[6].rows = append(out[6].rows, []any{r.ID, r.EventID, r.AttendeeID, r.PricePaid, r.PurchasedAt})
	}
	for _, r := range d.Ratings {
		out[7].rows = append(out[7].rows, []any{r.ID, r.EventID, r.AttendeeID, r.Score, r.Comment, r.RatedAt})
	}
	return out
}

// LoadPostgres replaces the contents of every schema table with the dataset
// inside one transaction, using batched parameterized inserts.
func LoadPostgres(ctx context.Context, db *sql.DB, d *Dataset, batchSize int) (map[string]int, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, truncateSQL()); err != nil {
		return nil, fmt.Errorf("truncate tables: %w", err)
	}

	loaded := make(map[string]int, len(Tables))
	for _, t := range d.tableRows() {
		for start := 0; start < len(t.rows); start += batchSize {
			end := min(start+batchSize, len(t.rows))
			query, args := insertBatch(t.table, t.columns, t.rows[start:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return nil, fmt.Errorf("insert %s rows %d-%d: %w", t.table, start, end, err)
			}
		}
		loaded[t.table] = len(t.rows)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed transaction: %w", err)
	}
	return loaded, nil
}

func truncateSQL() string {
	return "TRUNCATE TABLE " + strings.Join(Tables, ", ") + " RESTART IDENTITY CASCADE"
}

func insertBatch(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, value)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}
