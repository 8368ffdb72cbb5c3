package models

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/shopspring/decimal"
)

const defaultItemUnit = "unit"

// categoryVocabulary links descriptions that name the same kind of charge in different words.
var categoryVocabulary = []string{"service", "labor", "material", "fee", "cost", "charge", "work", "install", "delivery"}

// ItemModifications are item edits keyed by natural-language references rather than ids.
// Numeric fields arrive as text from the extraction layer.
type ItemModifications struct {
	UpdateItems   []ItemUpdate  `json:"update_items,omitempty" mapstructure:"update_items"`
	RemoveItems   []string      `json:"remove_items,omitempty" mapstructure:"remove_items"`
	AddItems      []NewLineItem `json:"add_items,omitempty" mapstructure:"add_items"`
	TotalOverride string        `json:"total_override,omitempty" mapstructure:"total_override"`
}

type ItemUpdate struct {
	Match       string `json:"match" mapstructure:"match"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Quantity    string `json:"quantity,omitempty" mapstructure:"quantity"`
	Rate        string `json:"rate,omitempty" mapstructure:"rate"`
}

type NewLineItem struct {
	Description string `json:"description" mapstructure:"description"`
	Quantity    string `json:"quantity,omitempty" mapstructure:"quantity"`
	Unit        string `json:"unit,omitempty" mapstructure:"unit"`
	Rate        string `json:"rate,omitempty" mapstructure:"rate"`
	Material    string `json:"material,omitempty" mapstructure:"material"`
	Measurement string `json:"measurement,omitempty" mapstructure:"measurement"`
}

func (m ItemModifications) IsEmpty() bool {
	return len(m.UpdateItems) == 0 && len(m.RemoveItems) == 0 && len(m.AddItems) == 0 && strings.TrimSpace(m.TotalOverride) == ""
}

type ReconciledItems struct {
	Items           []LineItem
	Subtotal        decimal.Decimal
	Total           decimal.Decimal
	TotalOverridden bool
}

// ApplyItemModifications runs the update, remove and add passes in that order over a copy of source.
func ApplyItemModifications(source []LineItem, mods ItemModifications) ReconciledItems {
	items := CopyLineItems(source)

	for _, update := range mods.UpdateItems {
		if strings.TrimSpace(update.Match) == "" {
			continue
		}
		for i := range items {
			if !MatchesKeyword(items[i].Description, update.Match) {
				continue
			}
			if d := strings.TrimSpace(update.Description); d != "" {
				items[i].Description = d
			}
			items[i].Quantity = utils.AmountOr(update.Quantity, items[i].Quantity)
			items[i].Rate = utils.AmountOr(update.Rate, items[i].Rate)
			items[i].Total = items[i].Rate.Mul(items[i].Quantity)
			items[i].IsTotalOverride = false
		}
	}

	if len(mods.RemoveItems) > 0 {
		kept := items[:0]
		for _, item := range items {
			if !matchesAny(item.Description, mods.RemoveItems) {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	for _, add := range mods.AddItems {
		description := strings.TrimSpace(add.Description)
		if description == "" {
			continue
		}
		unit := strings.TrimSpace(add.Unit)
		if unit == "" {
			unit = defaultItemUnit
		}
		quantity := utils.AmountOr(add.Quantity, decimal.NewFromInt(1))
		rate := utils.AmountOr(add.Rate, decimal.Zero)
		items = append(items, LineItem{
			ItemKey:     uuid.NewString(),
			Description: description,
			Quantity:    quantity,
			Unit:        unit,
			Rate:        rate,
			Total:       rate.Mul(quantity),
			Material:    add.Material,
			Measurement: add.Measurement,
		})
	}

	for i := range items {
		items[i].Position = i
	}

	result := ReconciledItems{Items: items, Subtotal: SumLineItems(items)}
	result.Total = result.Subtotal
	if strings.TrimSpace(mods.TotalOverride) != "" {
		if override, err := utils.ParseAmount(mods.TotalOverride); err == nil {
			result.Total = override
			result.TotalOverridden = true
		}
	}
	return result
}

func matchesAny(description string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.TrimSpace(keyword) != "" && MatchesKeyword(description, keyword) {
			return true
		}
	}
	return false
}

// MatchesKeyword reports whether a spoken item reference plausibly names description.
func MatchesKeyword(description, keyword string) bool {
	desc := strings.ToLower(strings.TrimSpace(description))
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if desc == "" || kw == "" {
		return false
	}
	if strings.Contains(desc, kw) {
		return true
	}

	descTokens := tokenize(desc)
	for _, kt := range tokenize(kw) {
		if len([]rune(kt)) <= 2 {
			continue
		}
		for _, dt := range descTokens {
			if strings.HasPrefix(dt, kt) || strings.HasSuffix(dt, kt) {
				return true
			}
			// "tiles" should still find "tile"
			if len([]rune(dt)) > 2 && (strings.HasPrefix(kt, dt) || strings.HasSuffix(kt, dt)) {
				return true
			}
		}
	}

	for _, term := range categoryVocabulary {
		if strings.Contains(desc, term) && strings.Contains(kw, term) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
