package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicNameFinder(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"honorific", "Mr. Rahul Sharma paid", []string{"Rahul Sharma"}},
		{"indian honorific", "Smt Priya Devi Nair applied", []string{"Priya Devi Nair"}},
		{"name is", "my name is Anil Kumar and", []string{"Anil Kumar"}},
		{"labelled field", "Name: Sunita Rao", []string{"Sunita Rao"}},
		{"two names", "Dr. Mehta met Mrs. Iyer", []string{"Mehta", "Iyer"}},
		{"lowercase after cue", "name is unknown", nil},
		{"no cue", "Rahul Sharma paid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range (HeuristicNameFinder{}).FindNames(tt.text) {
				assert.Equal(t, CategoryPerson, c.Category)
				assert.Equal(t, c.Value, tt.text[c.Span.Start:c.Span.End])
				got = append(got, c.Value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
