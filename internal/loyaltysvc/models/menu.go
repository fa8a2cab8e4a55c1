package models

import (
	"fmt"
	"sort"
	"strings"
)

type SectionType string

const (
	SectionDrink SectionType = "drink"
	SectionFood  SectionType = "food"
	SectionOther SectionType = "other"
)

const MenuSchemaVersion = 1

type SizeOption struct {
	Label string `bson:"label" json:"label" yaml:"label"`
	Price Money  `bson:"price" json:"price" yaml:"price"`
}

type MenuItem struct {
	ID            string       `bson:"id" json:"id" yaml:"-"`
	Name          string       `bson:"name" json:"name" yaml:"name"`
	Price         *Money       `bson:"price,omitempty" json:"price,omitempty" yaml:"price,omitempty"`
	Sizes         []SizeOption `bson:"sizes,omitempty" json:"sizes,omitempty" yaml:"sizes,omitempty"`
	Ingredients   []string     `bson:"ingredients" json:"ingredients" yaml:"ingredients"`
	Optional      []string     `bson:"optional,omitempty" json:"optional,omitempty" yaml:"optional,omitempty"`
	Note          string       `bson:"note,omitempty" json:"note,omitempty" yaml:"note,omitempty"`
	Available     bool         `bson:"available" json:"available" yaml:"available"`
	Tags          []string     `bson:"tags" json:"tags" yaml:"tags"`
	Highlight     bool         `bson:"highlight" json:"highlight" yaml:"highlight"`
	Seasonal      bool         `bson:"seasonal" json:"seasonal" yaml:"seasonal"`
	Order         int          `bson:"order" json:"order" yaml:"order"`
	SchemaVersion int          `bson:"schemaVersion" json:"schemaVersion" yaml:"-"`
}

// MenuSection embeds its items; a section document owns them.
type MenuSection struct {
	ID            string      `bson:"_id" json:"id" yaml:"-"`
	Title         string      `bson:"title" json:"title" yaml:"title"`
	Description   string      `bson:"description" json:"description" yaml:"description"`
	Type          SectionType `bson:"type" json:"type" yaml:"type"`
	Order         int         `bson:"order" json:"order" yaml:"order"`
	Active        bool        `bson:"active" json:"active" yaml:"active"`
	Items         []MenuItem  `bson:"items" json:"items" yaml:"items"`
	SchemaVersion int         `bson:"schemaVersion" json:"schemaVersion" yaml:"-"`
}

func (s *MenuSection) Validate() error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return fmt.Errorf("section title is required: %w", ErrInvalidInput)
	}
	switch s.Type {
	case SectionDrink, SectionFood, SectionOther:
	case "":
		s.Type = SectionOther
	default:
		return fmt.Errorf("section type %q: %w", s.Type, ErrInvalidInput)
	}
	return nil
}

// Validate requires a name and exactly one pricing scheme: a single price or sizes.
func (it *MenuItem) Validate() error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return fmt.Errorf("item name is required: %w", ErrInvalidInput)
	}
	if it.Price != nil && len(it.Sizes) > 0 {
		return fmt.Errorf("item %q has both price and sizes: %w", it.Name, ErrInvalidInput)
	}
	if it.Price == nil && len(it.Sizes) == 0 {
		return fmt.Errorf("item %q has no price: %w", it.Name, ErrInvalidInput)
	}
	if it.Price != nil && it.Price.IsNegative() {
		return fmt.Errorf("item %q has a negative price: %w", it.Name, ErrInvalidInput)
	}
	for _, s := range it.Sizes {
		if strings.TrimSpace(s.Label) == "" || s.Price.IsNegative() {
			return fmt.Errorf("item %q has an invalid size: %w", it.Name, ErrInvalidInput)
		}
	}
	if it.Ingredients == nil {
		it.Ingredients = []string{}
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	return nil
}

// SortMenu orders sections and their items by their order field.
func SortMenu(sections []MenuSection) {
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	for i := range sections {
		items := sections[i].Items
		sort.SliceStable(items, func(a, b int) bool { return items[a].Order < items[b].Order })
	}
}

// PublicMenu keeps active sections and available items.
func PublicMenu(sections []MenuSection) []MenuSection {
	out := make([]MenuSection, 0, len(sections))
	for _, s := range sections {
		if !s.Active {
			continue
		}
		items := make([]MenuItem, 0, len(s.Items))
		for _, it := range s.Items {
			if it.Available {
				items = append(items, it)
			}
		}
		s.Items = items
		out = append(out, s)
	}
	return out
}
