package scan

import (
	"regexp"
)

// RegexMatcher is a category pattern paired with its validator.
type RegexMatcher struct {
	baseMatcher
}

// NewRegexMatcher creates a matcher for a caller-defined category. The
// pattern must not rely on lookaround assertions.
func NewRegexMatcher(id, name string, category Category, pattern string, validator Validator) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{
		baseMatcher: baseMatcher{
			id:        id,
			name:      name,
			category:  category,
			pattern:   re,
			validator: validator,
		},
	}, nil
}

// NewAadhaarMatcher detects 12-digit national ID numbers grouped 4-4-4.
func NewAadhaarMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-aadhaar",
		name:        "Aadhaar Number",
		category:    CategoryAadhaar,
		pattern:     regexp.MustCompile(`[1-9]\d{3}[\s\-]?\d{4}[\s\-]?\d{4}`),
		boundary:    nonDigitBoundary,
		validator:   ValidAadhaar,
		description: "12 digits, optional space or hyphen groups, Verhoeff checksum",
	}}
}

// NewPANMatcher detects Permanent Account Numbers.
func NewPANMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-pan",
		name:        "PAN Card",
		category:    CategoryPAN,
		pattern:     regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`),
		validator:   ValidPAN,
		description: "5 letters, 4 digits, 1 letter with a holder-type letter at position 4",
	}}
}

// NewPassportMatcher detects Indian passport numbers.
func NewPassportMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-passport",
		name:        "Indian Passport",
		category:    CategoryPassport,
		pattern:     regexp.MustCompile(`\b[A-PR-WY][1-9]\d{6}\b`),
		validator:   ValidPassport,
		description: "1 letter excluding Q, X and Z, then 7 digits with a non-zero lead",
	}}
}

// NewVoterIDMatcher detects electoral photo identity card numbers.
func NewVoterIDMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-voter-id",
		name:        "Voter ID",
		category:    CategoryVoterID,
		pattern:     regexp.MustCompile(`\b[A-Z]{3}[0-9]{7}\b`),
		validator:   ValidVoterID,
		description: "3 letters and 7 digits",
	}}
}

// NewDrivingLicenceMatcher detects driving licence numbers.
func NewDrivingLicenceMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-driving-licence",
		name:        "Driving Licence",
		category:    CategoryDrivingLicence,
		pattern:     regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}\s?[0-9]{11}\b`),
		validator:   ValidDrivingLicence,
		description: "state code, RTO code, optional space, 11 digits",
	}}
}

// NewSSNMatcher detects US Social Security Numbers in hyphenated form.
func NewSSNMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-ssn",
		name:        "US SSN",
		category:    CategorySSN,
		pattern:     regexp.MustCompile(`\d{3}-\d{2}-\d{4}`),
		boundary:    wordBoundaryNoDecimal,
		validator:   ValidSSN,
		description: "3-2-4 digit groups not adjacent to a digit or decimal point",
	}}
}

// NewCreditCardMatcher detects Visa, Mastercard, Discover and Amex numbers.
func NewCreditCardMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-credit-card",
		name:        "Credit/Debit Card",
		category:    CategoryCreditCard,
		pattern:     regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|6011[0-9]{12}|3[47][0-9]{13})\b`),
		validator:   ValidCreditCard,
		description: "issuer prefix and length, Luhn checksum",
	}}
}

// NewIFSCMatcher detects bank branch routing codes.
func NewIFSCMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-ifsc",
		name:        "IFSC Code",
		category:    CategoryIFSC,
		pattern:     regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`),
		validator:   ValidIFSC,
		description: "4 letters, literal 0, 6 alphanumerics",
	}}
}

// NewEmailMatcher detects email addresses.
func NewEmailMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-email",
		name:        "Email Address",
		category:    CategoryEmail,
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		validator:   ValidEmail,
		description: "local@domain.tld",
	}}
}

// NewPhoneMatcher detects Indian mobile numbers with an optional +91 prefix.
func NewPhoneMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-phone",
		name:        "Phone Number",
		category:    CategoryPhone,
		pattern:     regexp.MustCompile(`(?:\+91[\-\s]?)?[6-9]\d{9}`),
		boundary:    nonDigitBoundary,
		validator:   ValidPhone,
		description: "optional +91, then 10 digits starting 6-9",
	}}
}

// NewGSTINMatcher detects GST identification numbers.
func NewGSTINMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-gstin",
		name:        "GSTIN",
		category:    CategoryGSTIN,
		pattern:     regexp.MustCompile(`\b[0-3][0-9][A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]\b`),
		validator:   ValidGSTIN,
		description: "state code, embedded PAN, entity number, Z, checksum character",
	}}
}

// NewUPIMatcher detects UPI virtual payment addresses.
func NewUPIMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-upi",
		name:        "UPI ID",
		category:    CategoryUPI,
		pattern:     regexp.MustCompile(`\b[a-zA-Z0-9.\-_]{2,40}@[a-zA-Z]{2,64}\b`),
		validator:   ValidUPI,
		description: "local@handle payment address",
	}}
}

// NewABHAMatcher detects Ayushman Bharat health account numbers.
func NewABHAMatcher() *RegexMatcher {
	return &RegexMatcher{baseMatcher{
		id:          "pii-abha",
		name:        "ABHA Health ID",
		category:    CategoryABHA,
		pattern:     regexp.MustCompile(`\b\d{2}-\d{4}-\d{4}-\d{4}\b`),
		validator:   ValidABHA,
		description: "14 digits grouped 2-4-4-4",
	}}
}

// BuiltinMatchers returns a fresh matcher for every pattern category in
// canonical order.
func BuiltinMatchers() []PatternMatcher {
	return []PatternMatcher{
		NewAadhaarMatcher(),
		NewPANMatcher(),
		NewPassportMatcher(),
		NewVoterIDMatcher(),
		NewDrivingLicenceMatcher(),
		NewSSNMatcher(),
		NewCreditCardMatcher(),
		NewIFSCMatcher(),
		NewEmailMatcher(),
		NewPhoneMatcher(),
		NewGSTINMatcher(),
		NewUPIMatcher(),
		NewABHAMatcher(),
	}
}
