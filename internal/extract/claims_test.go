package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

func TestClaimExtractor_ExampleStatement(t *testing.T) {
	extractor := NewClaimExtractor(3)

	claims := extractor.Extract("A fish can fly, a fish can talk, a giraffe has a long neck")

	want := []string{"A fish can fly", "a fish can talk", "a giraffe has a long neck"}
	if len(claims) != len(want) {
		t.Fatalf("expected %d claims, got %d: %+v", len(want), len(claims), claims)
	}
	for i, c := range claims {
		if c.Text != want[i] {
			t.Errorf("claim %d: expected %q, got %q", i, want[i], c.Text)
		}
		if c.Index != i {
			t.Errorf("claim %d: expected index %d, got %d", i, i, c.Index)
		}
		if c.Class != model.ClassFact {
			t.Errorf("claim %d: expected FACT, got %s (%s)", i, c.Class, c.Heuristic)
		}
	}
	if claims[0].ID != "claim-1" || claims[2].ID != "claim-3" {
		t.Errorf("unexpected ids: %s, %s", claims[0].ID, claims[2].ID)
	}
}

func TestClaimExtractor_Deterministic(t *testing.T) {
	extractor := NewClaimExtractor(3)
	text := `The Eiffel Tower is 330 metres tall. I think Paris is the best city, and it will host more events next year.
Maybe the river floods every spring. Is this a question? Um, okay, yeah.`

	first := extractor.Extract(text)
	second := extractor.Extract(text)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction is not deterministic:\n%+v\n%+v", first, second)
	}
	if len(first) == 0 {
		t.Fatal("expected claims")
	}
}

func TestClaimExtractor_EmptyInput(t *testing.T) {
	extractor := NewClaimExtractor(3)

	for _, input := range []string{"", "   ", "\n\t\n"} {
		claims := extractor.Extract(input)
		if claims == nil {
			t.Errorf("expected empty slice for %q, got nil", input)
		}
		if len(claims) != 0 {
			t.Errorf("expected no claims for %q, got %d", input, len(claims))
		}
	}
}

func TestClaimExtractor_Classification(t *testing.T) {
	extractor := NewClaimExtractor(3)

	tests := []struct {
		text string
		want model.ClaimClass
	}{
		{"The Eiffel Tower is 330 metres tall", model.ClassFact},
		{"Water boils at 100 degrees", model.ClassFact},
		{"I think this restaurant is overpriced", model.ClassOpinion},
		{"That movie was absolutely terrible", model.ClassOpinion},
		{"The company will double revenue", model.ClassPrediction},
		{"We are going to win the league", model.ClassPrediction},
		{"Maybe the meeting moved online", model.ClassStatement},
		{"Someone told me something interesting", model.ClassStatement},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			claims := extractor.Extract(tt.text)
			if len(claims) != 1 {
				t.Fatalf("expected 1 claim, got %d: %+v", len(claims), claims)
			}
			if claims[0].Class != tt.want {
				t.Errorf("expected %s, got %s (heuristic %s)", tt.want, claims[0].Class, claims[0].Heuristic)
			}
			if claims[0].Heuristic == "" {
				t.Error("expected heuristic to be recorded")
			}
		})
	}
}

func TestClaimExtractor_KeepsDecimalsAndAbbreviations(t *testing.T) {
	extractor := NewClaimExtractor(3)

	claims := extractor.Extract("Dr. Smith says giraffes grow up to 2.4m tall. Their necks have seven vertebrae.")
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d: %+v", len(claims), claims)
	}
	if !strings.Contains(claims[0].Text, "2.4m") {
		t.Errorf("expected decimal to survive sentence split, got %q", claims[0].Text)
	}
	if !strings.HasPrefix(claims[0].Text, "Dr. Smith") {
		t.Errorf("expected abbreviation to survive sentence split, got %q", claims[0].Text)
	}
}

func TestClaimExtractor_MergesShortFragments(t *testing.T) {
	extractor := NewClaimExtractor(3)

	claims := extractor.Extract("In 2020, the company hired 50 people")
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d: %+v", len(claims), claims)
	}
	if claims[0].Text != "In 2020, the company hired 50 people" {
		t.Errorf("expected verbatim merged text, got %q", claims[0].Text)
	}
}

func TestClaimExtractor_SplitsOnConjunctions(t *testing.T) {
	extractor := NewClaimExtractor(3)

	claims := extractor.Extract("The cat sat on the mat but the dog stayed outside")
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d: %+v", len(claims), claims)
	}
	if claims[1].Text != "the dog stayed outside" {
		t.Errorf("unexpected second clause %q", claims[1].Text)
	}
}

func TestClaimExtractor_SkipsNonClaims(t *testing.T) {
	extractor := NewClaimExtractor(3)

	text := "Is the sky green? Um okay yeah. Let me tell you something. The sky is blue."
	claims := extractor.Extract(text)
	if len(claims) != 1 {
		t.Fatalf("expected 1 claim, got %d: %+v", len(claims), claims)
	}
	if claims[0].Text != "The sky is blue" {
		t.Errorf("unexpected claim %q", claims[0].Text)
	}
}

func TestClaimExtractor_VerbatimSubstrings(t *testing.T) {
	extractor := NewClaimExtractor(3)
	text := "Apples, oranges, and bananas are fruits; tomatoes are technically berries!"

	for _, c := range extractor.Extract(text) {
		if !strings.Contains(text, c.Text) {
			t.Errorf("claim %q is not a substring of the input", c.Text)
		}
	}
}

func TestEntities(t *testing.T) {
	got := Entities("Yesterday Praxis Labs said that Elon Musk visited the Eiffel Tower.")
	want := []string{"Yesterday Praxis Labs", "Elon Musk", "Eiffel Tower"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
