package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchValues(m PatternMatcher, text string) []string {
	var out []string
	for _, c := range m.Match(text) {
		out = append(out, c.Value)
	}
	return out
}

func TestAadhaarMatcherBoundaries(t *testing.T) {
	m := NewAadhaarMatcher()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"compact", "id 234123412346 end", []string{"234123412346"}},
		{"spaced", "id 2341 2341 2346.", []string{"2341 2341 2346"}},
		{"hyphenated", "id:2341-2341-2346", []string{"2341-2341-2346"}},
		{"letters are a boundary", "x234123412346y", []string{"234123412346"}},
		{"thirteen digits", "1234123412346", nil},
		{"leading zero never matches", "012341234123", nil},
		{"two numbers", "234123412346 and 499012345678", []string{"234123412346", "499012345678"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValues(m, tt.text))
		})
	}
}

func TestSSNMatcherBoundaries(t *testing.T) {
	m := NewSSNMatcher()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "ssn 123-45-6789 here", []string{"123-45-6789"}},
		{"start of text", "123-45-6789", []string{"123-45-6789"}},
		{"decimal before", "v1.123-45-6789", nil},
		{"decimal after", "123-45-6789.5", nil},
		{"digit after", "123-45-67890", nil},
		{"letter before", "a123-45-6789", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValues(m, tt.text))
		})
	}
}

func TestPhoneMatcherBoundaries(t *testing.T) {
	m := NewPhoneMatcher()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "call 9876543210.", []string{"9876543210"}},
		{"country code space", "call +91 9876543210", []string{"+91 9876543210"}},
		{"country code hyphen", "call +91-9876543210", []string{"+91-9876543210"}},
		{"eleven digits", "98765432101", nil},
		{"low lead digit", "call 5876543210", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValues(m, tt.text))
		})
	}
}

func TestWordBoundedMatchers(t *testing.T) {
	tests := []struct {
		name    string
		matcher PatternMatcher
		text    string
		want    []string
	}{
		{"pan", NewPANMatcher(), "PAN: ABCPE1234F.", []string{"ABCPE1234F"}},
		{"pan inside gstin", NewPANMatcher(), "27ABCPE1234F1Z5", nil},
		{"gstin", NewGSTINMatcher(), "GST 27ABCPE1234F1Z5", []string{"27ABCPE1234F1Z5"}},
		{"passport", NewPassportMatcher(), "passport J8369854", []string{"J8369854"}},
		{"voter id", NewVoterIDMatcher(), "epic ABC1234567", []string{"ABC1234567"}},
		{"licence", NewDrivingLicenceMatcher(), "dl MH12 20110012345", []string{"MH12 20110012345"}},
		{"card", NewCreditCardMatcher(), "cc 4111111111111111", []string{"4111111111111111"}},
		{"amex", NewCreditCardMatcher(), "amex 378282246310005", []string{"378282246310005"}},
		{"ifsc", NewIFSCMatcher(), "ifsc SBIN0001234", []string{"SBIN0001234"}},
		{"email", NewEmailMatcher(), "mail rahul@example.com now", []string{"rahul@example.com"}},
		{"upi", NewUPIMatcher(), "pay rahul@okaxis now", []string{"rahul@okaxis"}},
		{"abha", NewABHAMatcher(), "abha 12-3456-7890-1234", []string{"12-3456-7890-1234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValues(tt.matcher, tt.text))
		})
	}
}

func TestMatchSpansIndexText(t *testing.T) {
	text := "Name: Rahul, PAN ABCPE1234F, phone +91 9876543210, mail rahul@example.com"
	for _, m := range BuiltinMatchers() {
		for _, c := range m.Match(text) {
			require.Less(t, c.Span.Start, c.Span.End)
			assert.Equal(t, c.Value, text[c.Span.Start:c.Span.End])
			assert.Equal(t, m.GetCategory(), c.Category)
		}
	}
}

func TestNewRegexMatcher(t *testing.T) {
	m, err := NewRegexMatcher("custom-emp", "Employee ID", Category("EMPLOYEE_ID"), `\bEMP-\d{6}\b`, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"EMP-123456"}, matchValues(m, "badge EMP-123456"))
	assert.True(t, m.Validate("EMP-123456", ""))

	_, err = NewRegexMatcher("broken", "Broken", Category("X"), `(`, nil)
	assert.Error(t, err)
}

func TestPatternRegistry(t *testing.T) {
	registry := NewDefaultRegistry()
	all := registry.GetAll()
	require.Len(t, all, 13)
	assert.Equal(t, "pii-aadhaar", all[0].GetID())

	m, ok := registry.Get("pii-pan")
	require.True(t, ok)
	assert.Equal(t, CategoryPAN, m.GetCategory())

	_, ok = registry.Get("pii-unknown")
	assert.False(t, ok)

	assert.Len(t, registry.GetByCategory(CategoryEmail), 1)
	assert.Len(t, registry.GetEnabled([]Category{CategoryEmail, CategoryUPI}), 11)

	registry.Register(NewPANMatcher())
	assert.Len(t, registry.GetAll(), 13)
	assert.Equal(t, "pii-pan", registry.GetAll()[1].GetID())
}
