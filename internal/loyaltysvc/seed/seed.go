// Package seed loads the default reward and menu from a YAML file into a store.
// Seeding is idempotent: existing rewards, sections and items are left alone.
package seed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/service"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

type File struct {
	Reward *models.Reward        `yaml:"reward"`
	Menu   []models.MenuSection `yaml:"menu"`
}

type Report struct {
	RewardCreated   bool
	SectionsCreated int
	ItemsCreated    int
	Skipped         int
}

// Load decodes a seed file, rejecting unknown keys.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

func Apply(ctx context.Context, st store.Store, f *File, now time.Time) (Report, error) {
	var rep Report

	if f.Reward != nil {
		r := *f.Reward
		if r.ID == "" {
			r.ID = models.DefaultRewardID
		}
		if r.RequiredStamps < 1 {
			r.RequiredStamps = models.DefaultMaxStamps
		}
		r.CreatedAt = now
		created, err := st.Rewards().CreateIfMissing(ctx, &r)
		if err != nil {
			return rep, err
		}
		rep.RewardCreated = created
		if !created {
			rep.Skipped++
			log.Infof("reward %s exists, skipped", r.ID)
		}
	}

	menu := service.NewMenuService(st.Menu())
	existing, err := menu.All(ctx)
	if err != nil {
		return rep, err
	}
	byTitle := make(map[string]models.MenuSection, len(existing))
	for _, sec := range existing {
		byTitle[key(sec.Title)] = sec
	}

	for _, sec := range f.Menu {
		current, ok := byTitle[key(sec.Title)]
		if !ok {
			created, err := menu.CreateSection(ctx, sec)
			if err != nil {
				return rep, fmt.Errorf("section %q: %w", sec.Title, err)
			}
			rep.SectionsCreated++
			rep.ItemsCreated += len(created.Items)
			log.Infof("section %q created with %d items", created.Title, len(created.Items))
			continue
		}

		have := make(map[string]bool, len(current.Items))
		for _, it := range current.Items {
			have[key(it.Name)] = true
		}
		for _, it := range sec.Items {
			if have[key(it.Name)] {
				rep.Skipped++
				continue
			}
			if _, err := menu.AddItem(ctx, current.ID, it); err != nil {
				return rep, fmt.Errorf("item %q in %q: %w", it.Name, sec.Title, err)
			}
			rep.ItemsCreated++
		}
	}
	return rep, nil
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
