package categorization

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEngineIntegration runs a household rule set against statement lines
// as they appear in Portuguese and US bank exports.
func TestEngineIntegration(t *testing.T) {
	const (
		unitEssentials = int64(1)
		unitLeisure    = int64(2)
		unitTransport  = int64(3)
		unitSavings    = int64(4)
	)

	rules := []Rule{
		descRule(1, "TRF P/ POUPANCA", MatchStartsWith, unitSavings, 0),
		descRule(2, "NETFLIX", MatchContains, unitLeisure, 5),
		descRule(3, "SPOTIFY", MatchContains, unitLeisure, 5),
		descRule(4, "PINGO DOCE", MatchContains, unitEssentials, 10),
		descRule(5, "CONTINENTE", MatchContains, unitEssentials, 10),
		descRule(6, `^UBER\s*\*?\s*(TRIP|EATS)`, MatchRegex, unitTransport, 10),
		descRule(7, "GALP", MatchEndsWith, unitTransport, 20),
		{ID: 8, RuleType: RuleTypeSourceCategory, Pattern: "Restaurants", MatchType: MatchExact, TargetID: unitLeisure, Priority: 30, Active: true},
		descRule(9, "COMPRA", MatchStartsWith, unitEssentials, 100),
	}
	engine := NewEngine(rules)
	require.Empty(t, engine.Invalid())

	tests := []struct {
		name     string
		fields   Fields
		expected int64
		matched  bool
	}{
		{"subscription inside card prefix", Fields{Description: "COMPRA 4321 NETFLIX.COM AMSTERDAM"}, unitLeisure, true},
		{"supermarket", Fields{Description: "COMPRA 4321 PINGO DOCE ALVALADE"}, unitEssentials, true},
		{"transfer to savings", Fields{Description: "TRF P/ POUPANCA 0012"}, unitSavings, true},
		{"ride share regex", Fields{Description: "UBER *TRIP HELP.UBER.COM"}, unitTransport, true},
		{"fuel station suffix", Fields{Description: "PAG SERV 0099 GALP"}, unitTransport, true},
		{"bank category", Fields{Description: "TASCA DO CHICO", SourceCategory: "restaurants"}, unitLeisure, true},
		{"generic card purchase falls to catch-all", Fields{Description: "COMPRA 4321 FNAC CHIADO"}, unitEssentials, true},
		{"salary is unassigned", Fields{Description: "TRF DE ACME LDA SALARIO"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := engine.Apply(tt.fields)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.expected, target)
		})
	}
}

func TestEngineIntegration_ConcurrentUse(t *testing.T) {
	rules := make([]Rule, 0, 50)
	for i := 0; i < 50; i++ {
		rules = append(rules, descRule(int64(i), fmt.Sprintf("STORE%02d", i), MatchContains, int64(i), i))
	}
	engine := NewEngine(rules)

	var wg sync.WaitGroup
	errs := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target, ok := engine.Apply(Fields{Description: fmt.Sprintf("PURCHASE STORE%02d LISBON", i)})
			if !ok || target != int64(i) {
				errs <- fmt.Sprintf("store %d resolved to %d", i, target)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}
