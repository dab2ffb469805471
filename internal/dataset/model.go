package dataset

import "time"

// Tables lists the schema's tables in dependency order.
var Tables = []string{"Activity", "Artist", "Activity_Artist", "Venue", "Event", "Attendee", "Ticket", "Rating"}

type Activity struct {
	ID      int64  `parquet:"id" json:"id"`
	Name    string `parquet:"name" json:"name"`
	Type    string `parquet:"type" json:"type"`
	Subtype string `parquet:"subtype" json:"subtype"`
}

type Artist struct {
	ID        int64  `parquet:"id" json:"id"`
	Name      string `parquet:"name" json:"name"`
	Biography string `parquet:"biography" json:"biography"`
}

type ActivityArtist struct {
	ActivityID int64   `parquet:"activity_id" json:"activity_id"`
	ArtistID   int64   `parquet:"artist_id" json:"artist_id"`
	Fee        float64 `parquet:"fee" json:"fee"`
}

type Venue struct {
	ID          int64   `parquet:"id" json:"id"`
	Name        string  `parquet:"name" json:"name"`
	Address     string  `parquet:"address" json:"address"`
	City        string  `parquet:"city" json:"city"`
	Capacity    int32   `parquet:"capacity" json:"capacity"`
	RentalPrice float64 `parquet:"rental_price" json:"rental_price"`
	Features    string  `parquet:"features" json:"features"`
}

type Event struct {
	ID          int64     `parquet:"id" json:"id"`
	Name        string    `parquet:"name" json:"name"`
	ActivityID  int64     `parquet:"activity_id" json:"activity_id"`
	VenueID     int64     `parquet:"venue_id" json:"venue_id"`
	TicketPrice float64   `parquet:"ticket_price" json:"ticket_price"`
	StartsAt    time.Time `parquet:"starts_at" json:"starts_at"`
	Description string    `parquet:"description" json:"description"`
}

type Attendee struct {
	ID       int64  `parquet:"id" json:"id"`
	FullName string `parquet:"full_name" json:"full_name"`
	Phone    string `parquet:"phone" json:"phone"`
	Email    string `parquet:"email" json:"email"`
}

type Ticket struct {
	ID          int64     `parquet:"id" json:"id"`
	EventID     int64     `parquet:"event_id" json:"event_id"`
	AttendeeID  int64     `parquet:"attendee_id" json:"attendee_id"`
	PricePaid   float64   `parquet:"price_paid" json:"price_paid"`
	PurchasedAt time.Time `parquet:"purchased_at" json:"purchased_at"`
}

type Rating struct {
	ID         int64     `parquet:"id" json:"id"`
	EventID    int64     `parquet:"event_id" json:"event_id"`
	AttendeeID int64     `parquet:"attendee_id" json:"attendee_id"`
	Score      int32     `parquet:"score" json:"score"`
	Comment    string    `parquet:"comment" json:"comment"`
	RatedAt    time.Time `parquet:"rated_at" json:"rated_at"`
}

// Dataset is a complete, referentially consistent copy of the events schema.
type Dataset struct {
	Seed            int64            `json:"seed"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Activities      []Activity       `json:"activities"`
	Artists         []Artist         `json:"artists"`
	ActivityArtists []ActivityArtist `json:"activity_artists"`
	Venues          []Venue          `json:"venues"`
	Events          []Event          `json:"events"`
	Attendees       []Attendee       `json:"attendees"`
	Tickets         []Ticket         `json:"tickets"`
	Ratings         []Rating         `json:"ratings"`
}

// Counts reports rows per table, keyed by table name.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"Activity":        len(d.Activities),
		"Artist":          len(d.Artists),
		"Activity_Artist": len(d.ActivityArtists),
		"Venue":           len(d.Venues),
		"Event":           len(d.Events),
		"Attendee":        len(d.Attendees),
		"Ticket":          len(d.Tickets),
		"Rating":          len(d.Ratings),
	}
}
