package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

type Options struct {
	Seed       int64
	Activities int
	Venues     int
	Events     int
	Attendees  int
	// MaxTicketsPerEvent bounds sales per event; venue capacity also applies.
	MaxTicketsPerEvent int
	// Now anchors event dates: roughly a third of events land in the future.
	Now time.Time
}

func DefaultOptions() Options {
	return Options{
		Seed:               42,
		Activities:         24,
		Venues:             12,
		Events:             80,
		Attendees:          250,
		MaxTicketsPerEvent: 60,
	}
}

type activitySeed struct {
	name    string
	kind    string
	subtype string
}

var activitySeeds = []activitySeed{
	{"Motomami World Tour", "concert", "pop"},
	{"Flamenco Nights", "concert", "flamenco"},
	{"Jazz at the Palace", "concert", "jazz"},
	{"Symphonic Dvořák", "concert", "classical"},
	{"Indie Summer Sessions", "concert", "indie"},
	{"Sabina Unplugged", "concert", "singer-songwriter"},
	{"Hamlet", "theatre", "tragedy"},
	{"La Casa de Bernarda Alba", "theatre", "drama"},
	{"Don Juan Tenorio", "theatre", "classic"},
	{"Golden Age Comedies", "theatre", "comedy"},
	{"Improv Marathon", "theatre", "improv"},
	{"Sorolla: Light of the Sea", "exhibition", "painting"},
	{"Goya's Black Paintings", "exhibition", "painting"},
	{"Gaudí Models", "exhibition", "architecture"},
	{"Contemporary Photography", "exhibition", "photography"},
	{"Golden Age Literature", "lecture", "literature"},
	{"Architecture of Al-Andalus", "lecture", "history"},
	{"Music and Memory", "lecture", "music"},
	{"Cinema After Buñuel", "lecture", "film"},
	{"Opera for Beginners", "lecture", "music"},
	{"Tango Evening", "concert", "tango"},
	{"Electronic Warehouse", "concert", "electronic"},
	{"Cervantes Readings", "lecture", "literature"},
	{"Picasso Ceramics", "exhibition", "ceramics"},
}

var artistNames = []string{
	"Rosalía", "Joaquín Sabina", "Paco de Lucía Tribute Ensemble", "Estrella Morente",
	"C. Tangana", "Silvia Pérez Cruz", "Orquesta Nacional", "Compañía Nacional de Teatro Clásico",
	"Blanca Portillo", "José Sacristán", "Antonio Banderas", "Marta Sánchez",
	"Pablo Alborán", "Vetusta Morla", "Love of Lesbian", "Chucho Valdés",
	"Jorge Drexler", "Alba Molina", "Carmen Linares", "Niño de Elche",
	"María José Llergo", "Dani Martín", "Amaral", "Izal",
	"Ara Malikian", "Sílvia Pérez", "Luz Casal", "Ana Belén",
	"Miguel Poveda", "Leiva",
}

type venueSeed struct {
	name     string
	city     string
	address  string
	capacity int32
}

var venueSeeds = []venueSeed{
	{"Teatro Real", "Madrid", "Plaza de Isabel II", 1750},
	{"WiZink Center", "Madrid", "Av. Felipe II", 15000},
	{"Círculo de Bellas Artes", "Madrid", "Calle de Alcalá 42", 600},
	{"Palau de la Música", "Barcelona", "Carrer Palau de la Música 4", 2200},
	{"Teatre Lliure", "Barcelona", "Passeig de Santa Madrona 40", 700},
	{"Teatro de la Maestranza", "Sevilla", "Paseo de Cristóbal Colón 22", 1800},
	{"Palau de les Arts", "Valencia", "Av. del Professor López Piñero 1", 1400},
	{"Euskalduna Jauregia", "Bilbao", "Abandoibarra Etorb. 4", 2100},
	{"Teatro Cervantes", "Málaga", "Calle Ramos Marín", 1100},
	{"Palexco", "A Coruña", "Muelle de Trasatlánticos", 900},
	{"Auditorio de Zaragoza", "Zaragoza", "Calle Eduardo Ibarra 3", 1990},
	{"Teatro Arriaga", "Bilbao", "Plaza Arriaga 1", 1200},
}

var (
	firstNames = []string{"Lucía", "Hugo", "Martina", "Mateo", "Sofía", "Leo", "Julia", "Daniel", "Paula", "Álvaro", "Carmen", "Pablo"}
	lastNames  = []string{"García", "Rodríguez", "López", "Martínez", "Sánchez", "Pérez", "Gómez", "Fernández", "Ruiz", "Díaz", "Moreno", "Navarro"}
	features   = []string{"accessible", "bar", "parking", "cloakroom", "outdoor", "hearing loop"}
	comments   = []string{"", "Unforgettable", "Great acoustics", "Too crowded", "Worth every euro", "Started late", "Would come again"}
)

// Generate builds a deterministic dataset: the same options always produce
// the same rows.
func Generate(opts Options) *Dataset {
	defaults := DefaultOptions()
	if opts.Activities <= 0 {
		opts.Activities = defaults.Activities
	}
	if opts.Venues <= 0 {
		opts.Venues = defaults.Venues
	}
	if opts.Events <= 0 {
		opts.Events = defaults.Events
	}
	if opts.Attendees <= 0 {
		opts.Attendees = defaults.Attendees
	}
	if opts.MaxTicketsPerEvent <= 0 {
		opts.MaxTicketsPerEvent = defaults.MaxTicketsPerEvent
	}
	if opts.Now.IsZero() {
		opts.Now = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	now := opts.Now.UTC().Truncate(time.Hour)
	rnd := rand.New(rand.NewSource(opts.Seed))

	ds := &Dataset{Seed: opts.Seed, GeneratedAt: now}

	for i := 0; i < opts.Activities; i++ {
		s := activitySeeds[i%len(activitySeeds)]
		name := s.name
		if i >= len(activitySeeds) {
			name = fmt.Sprintf("%s %d", s.name, i/len(activitySeeds)+1)
		}
		ds.Activities = append(ds.Activities, Activity{ID: int64(i + 1), Name: name, Type: s.kind, Subtype: s.subtype})
	}

	for i, name := range artistNames {
		ds.Artists = append(ds.Artists, Artist{
			ID:        int64(i + 1),
			Name:      name,
			Biography: fmt.Sprintf("%s has toured Spain for %d years.", name, 3+rnd.Intn(30)),
		})
	}

	for _, activity := range ds.Activities {
		n := 1 + rnd.Intn(3)
		if activity.Type == "exhibition" {
			n = rnd.Intn(2)
		}
		for _, idx := range rnd.Perm(len(ds.Artists))[:n] {
			ds.ActivityArtists = append(ds.ActivityArtists, ActivityArtist{
				ActivityID: activity.ID,
				ArtistID:   ds.Artists[idx].ID,
				Fee:        round2(500 + rnd.Float64()*14500),
			})
		}
	}

	for i := 0; i < opts.Venues; i++ {
		s := venueSeeds[i%len(venueSeeds)]
		ds.Venues = append(ds.Venues, Venue{
			ID:          int64(i + 1),
			Name:        s.name,
			Address:     s.address,
			City:        s.city,
			Capacity:    s.capacity,
			RentalPrice: round2(float64(s.capacity) * (1.5 + rnd.Float64()*2)),
			Features:    pickFeatures(rnd),
		})
	}

	for i := 0; i < opts.Events; i++ {
		activity := ds.Activities[rnd.Intn(len(ds.Activities))]
		venue := ds.Venues[rnd.Intn(len(ds.Venues))]
		// Days relative to now in [-240, 120): about a third are upcoming.
		startsAt := now.AddDate(0, 0, rnd.Intn(360)-240).Add(time.Duration(17+rnd.Intn(5)) * time.Hour)
		ds.Events = append(ds.Events, Event{
			ID:          int64(i + 1),
			Name:        fmt.Sprintf("%s in %s", activity.Name, venue.City),
			ActivityID:  activity.ID,
			VenueID:     venue.ID,
			TicketPrice: ticketPrice(rnd, activity.Type),
			StartsAt:    startsAt,
			Description: fmt.Sprintf("%s (%s) at %s.", activity.Name, activity.Subtype, venue.Name),
		})
	}

	for i := 0; i < opts.Attendees; i++ {
		first := pickOne(rnd, firstNames)
		last := pickOne(rnd, lastNames)
		ds.Attendees = append(ds.Attendees, Attendee{
			ID:       int64(i + 1),
			FullName: first + " " + last,
			Phone:    fmt.Sprintf("+34 6%02d %03d %03d", rnd.Intn(100), rnd.Intn(1000), rnd.Intn(1000)),
			Email:    fmt.Sprintf("%s.%s%d@example.org", asciiLower(first), asciiLower(last), i+1),
		})
	}

	venueByID := make(map[int64]Venue, len(ds.Venues))
	for _, v := range ds.Venues {
		venueByID[v.ID] = v
	}
	var ticketID, ratingID int64
	for _, event := range ds.Events {
		sold := rnd.Intn(opts.MaxTicketsPerEvent + 1)
		if capacity := int(venueByID[event.VenueID].Capacity); sold > capacity {
			sold = capacity
		}
		buyers := rnd.Perm(len(ds.Attendees))
		if sold > len(buyers) {
			sold = len(buyers)
		}
		for _, idx := range buyers[:sold] {
			ticketID++
			ds.Tickets = append(ds.Tickets, Ticket{
				ID:          ticketID,
				EventID:     event.ID,
				AttendeeID:  ds.Attendees[idx].ID,
				PricePaid:   round2(event.TicketPrice * (0.8 + rnd.Float64()*0.2)),
				PurchasedAt: event.StartsAt.AddDate(0, 0, -1-rnd.Intn(60)),
			})
			if event.StartsAt.Before(now) && rnd.Intn(3) == 0 {
				ratingID++
				ds.Ratings = append(ds.Ratings, Rating{
					ID:         ratingID,
					EventID:    event.ID,
					AttendeeID: ds.Attendees[idx].ID,
					Score:      int32(rnd.Intn(6)),
					Comment:    pickOne(rnd, comments),
					RatedAt:    event.StartsAt.Add(time.Duration(2+rnd.Intn(72)) * time.Hour),
				})
			}
		}
	}
	return ds
}

func ticketPrice(rnd *rand.Rand, kind string) float64 {
	switch kind {
	case "concert":
		return round2(25 + rnd.Float64()*95)
	case "theatre":
		return round2(18 + rnd.Float64()*52)
	case "exhibition":
		return round2(6 + rnd.Float64()*14)
	default:
		return round2(rnd.Float64() * 15)
	}
}

func pickFeatures(rnd *rand.Rand) string {
	var picked []string
	for _, f := range features {
		if rnd.Intn(2) == 0 {
			picked = append(picked, f)
		}
	}
	return strings.Join(picked, ",")
}

func asciiLower(s string) string {
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "Á", "a", "ñ", "n")
	return strings.ToLower(replacer.Replace(s))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
