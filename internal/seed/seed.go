// Package seed loads concert seat maps from a YAML file.  In memory mode
// the catalog is not backed by a database, so concerts and their seats
// are provisioned from the seed at start-up.
package seed

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/concert-seat-reservation/internal/errs"
	"github.com/iliyamo/concert-seat-reservation/internal/model"
)

// File is the top-level seed document.
type File struct {
	Concerts []Concert `yaml:"concerts"`
}

// Concert describes one concert and its seat map.  Seats may be listed
// one by one, generated from blocks, or both.
type Concert struct {
	ID       uint64    `yaml:"id"`
	Title    string    `yaml:"title"`
	Venue    string    `yaml:"venue"`
	StartsAt time.Time `yaml:"starts_at"`
	Seats    []Seat    `yaml:"seats"`
	Blocks   []Block   `yaml:"blocks"`
}

type Seat struct {
	ID         uint64 `yaml:"id"`
	Section    string `yaml:"section"`
	Grade      string `yaml:"grade"`
	Number     string `yaml:"number"`
	PriceCents uint32 `yaml:"price_cents"`
}

// Block generates PerRow seats for each row label.  IDs are assigned
// consecutively from FirstID and seat numbers read "<row>-<n>".
type Block struct {
	Section    string   `yaml:"section"`
	Grade      string   `yaml:"grade"`
	PriceCents uint32   `yaml:"price_cents"`
	Rows       []string `yaml:"rows"`
	PerRow     int      `yaml:"per_row"`
	FirstID    uint64   `yaml:"first_id"`
}

// Provisioner accepts a concert together with its seat map.
// *repository.MemoryStore implements it.
type Provisioner interface {
	Provision(concert model.Concert, seats []model.Seat)
}

// Load reads and validates the seed file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrapf(err, "open seed %s", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed document and validates it.  Unknown keys are
// rejected so that typos do not silently drop seats.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out File
	if err := dec.Decode(&out); err != nil {
		if err == io.EOF {
			return &out, nil
		}
		return nil, errs.Wrap(err, "decode seed")
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Apply provisions every concert of the seed and returns the number of
// seats created.
func (f *File) Apply(p Provisioner) int {
	total := 0
	for _, c := range f.Concerts {
		seats := c.expand()
		p.Provision(model.Concert{
			ID:       c.ID,
			Title:    c.Title,
			Venue:    c.Venue,
			StartsAt: c.StartsAt.UTC(),
		}, seats)
		total += len(seats)
	}
	return total
}

func (c Concert) expand() []model.Seat {
	out := make([]model.Seat, 0, len(c.Seats))
	for _, s := range c.Seats {
		out = append(out, model.Seat{
			ID:         s.ID,
			ConcertID:  c.ID,
			Section:    s.Section,
			Grade:      s.Grade,
			SeatNumber: s.Number,
			PriceCents: s.PriceCents,
		})
	}
	for _, b := range c.Blocks {
		id := b.FirstID
		for _, row := range b.Rows {
			for n := 1; n <= b.PerRow; n++ {
				out = append(out, model.Seat{
					ID:         id,
					ConcertID:  c.ID,
					Section:    b.Section,
					Grade:      b.Grade,
					SeatNumber: fmt.Sprintf("%s-%d", row, n),
					PriceCents: b.PriceCents,
				})
				id++
			}
		}
	}
	return out
}

// validate enforces unique positive IDs for concerts and seats.  Seat IDs
// are global, like in the catalog database.
func (f *File) validate() error {
	concerts := make(map[uint64]bool)
	seats := make(map[uint64]uint64)
	for _, c := range f.Concerts {
		if c.ID == 0 {
			return errs.Newf(errs.ErrValidation, "seed: concert %q has no id", c.Title)
		}
		if concerts[c.ID] {
			return errs.Newf(errs.ErrValidation, "seed: duplicate concert id %d", c.ID)
		}
		concerts[c.ID] = true
		if c.StartsAt.IsZero() {
			return errs.Newf(errs.ErrValidation, "seed: concert %d has no starts_at", c.ID)
		}
		for _, b := range c.Blocks {
			if b.FirstID == 0 || b.PerRow <= 0 || len(b.Rows) == 0 {
				return errs.Newf(errs.ErrValidation, "seed: concert %d has an incomplete block", c.ID)
			}
		}
		numbers := make(map[string]bool)
		for _, s := range c.expand() {
			if s.ID == 0 {
				return errs.Newf(errs.ErrValidation, "seed: concert %d has a seat without id", c.ID)
			}
			if owner, dup := seats[s.ID]; dup {
				return errs.Newf(errs.ErrValidation, "seed: seat id %d used by concerts %d and %d", s.ID, owner, c.ID)
			}
			seats[s.ID] = c.ID
			if s.SeatNumber != "" {
				if numbers[s.SeatNumber] {
					return errs.Newf(errs.ErrValidation, "seed: concert %d repeats seat number %s", c.ID, s.SeatNumber)
				}
				numbers[s.SeatNumber] = true
			}
		}
	}
	return nil
}
