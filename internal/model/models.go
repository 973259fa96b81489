// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// Pricing holds per-token prices as reported by the provider. Prices are
// strings on the wire and stay that way until displayed.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelDescriptor is a read-only model entry from the models endpoint.
type ModelDescriptor struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ContextLength int     `json:"context_length"`
	Pricing       Pricing `json:"pricing"`
}

var upper = cases.Upper(language.Und)

// Provider returns the upper-cased vendor prefix of the model ID, or OTHER.
func (m ModelDescriptor) Provider() string {
	prefix, _, found := strings.Cut(m.ID, "/")
	if !found || prefix == "" {
		return "OTHER"
	}
	return upper.String(prefix)
}

// PricingString formats prompt and completion prices for display. Values
// that do not parse as numbers are shown verbatim.
func (m ModelDescriptor) PricingString() string {
	return "$" + formatPrice(m.Pricing.Prompt) + "/1K prompt tokens, $" +
		formatPrice(m.Pricing.Completion) + "/1K completion tokens"
}

func formatPrice(s string) string {
	if s == "" {
		s = "0"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// ProviderGroup is a run of models sharing a provider.
type ProviderGroup struct {
	Provider string
	Models   []ModelDescriptor
}

// GroupByProvider groups models by Provider, keeping the order in which
// providers first appear.
func GroupByProvider(models []ModelDescriptor) []ProviderGroup {
	index := make(map[string]int)
	var groups []ProviderGroup
	for _, m := range models {
		p := m.Provider()
		i, ok := index[p]
		if !ok {
			i = len(groups)
			index[p] = i
			groups = append(groups, ProviderGroup{Provider: p})
		}
		groups[i].Models = append(groups[i].Models, m)
	}
	return groups
}
