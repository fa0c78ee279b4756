package scan

import (
	"regexp"
	"strconv"
	"strings"
)

// Validator is a pure structural check of a candidate value against its
// surrounding context window. A false result hard-drops the candidate.
type Validator func(value, context string) bool

// Verhoeff tables for the Aadhaar check digit.
var (
	verhoeffMult = [10][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffPerm = [8][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
	verhoeffInv = [10]int{0, 4, 3, 2, 1, 5, 6, 7, 8, 9}
)

var (
	// aadhaarExclusionPattern rejects coincidental 12-digit runs in payment
	// and measurement contexts.
	aadhaarExclusionPattern = regexp.MustCompile(`(?i)\b(account|a/c|card|dimension|size|px|cm|mm|inches)\b`)

	// validatorDummyPattern is the validator-level dummy vocabulary. It is
	// broader than the deep-mode marker set: a bare "test" suppresses.
	validatorDummyPattern = regexp.MustCompile(`(?i)\b(dummy|fake|tests?|testing|sample|demo|placeholder|for\s+illustration|not\s+real|fictitious|mock|documentation\s+example)\b`)

	panPattern      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstinPattern    = regexp.MustCompile(`^[0-3][0-9][A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	passportPattern = regexp.MustCompile(`^[A-PR-WY][1-9][0-9]{6}$`)
	dlPattern       = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[0-9]{4}[0-9]{7}$|^[A-Z]{2}-[0-9]{2}-[0-9]{4}-[0-9]{7}$`)
	voterIDPattern  = regexp.MustCompile(`^[A-Z]{3}[0-9]{7}$`)
	ifscPattern     = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	upiPattern      = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)
	abhaPattern     = regexp.MustCompile(`^\d{2}-\d{4}-\d{4}-\d{4}$`)
)

// panEntityChars are the valid holder-type letters at PAN position 4.
const panEntityChars = "CPHABGJLFTE"

// KnownUPIHandles lists payment service provider handles seen in the wild.
// Validation stays lenient; the list is exposed for reporting.
var KnownUPIHandles = map[string]bool{
	"okaxis": true, "oksbi": true, "okicici": true, "okhdfcbank": true,
	"ybl": true, "ibl": true, "paytm": true, "apl": true,
	"jupiteraxis": true, "fam": true, "naviaxis": true, "axl": true,
	"barodampay": true, "cnrb": true, "federal": true, "kotak": true,
	"rbl": true, "upi": true, "icici": true, "sbi": true, "hdfc": true,
}

// digitsOnly strips every non-digit byte.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// VerhoeffValid reports whether a 12-digit Aadhaar number passes the
// Verhoeff checksum. Numbers starting with 0 or 1 are never valid.
func VerhoeffValid(number string) bool {
	digits := digitsOnly(number)
	if len(digits) != 12 {
		return false
	}
	if digits[0] == '0' || digits[0] == '1' {
		return false
	}

	checksum := 0
	for i := 11; i >= 0; i-- {
		d := int(digits[i] - '0')
		pos := (11 - i) % 8
		checksum = verhoeffMult[checksum][verhoeffPerm[pos][d]]
	}
	return verhoeffInv[checksum] == 0
}

// LuhnValid validates a card number with the Luhn algorithm. Spaces and
// hyphens are accepted as separators; 13 to 19 digits are required.
func LuhnValid(number string) bool {
	var digits []byte
	for i := 0; i < len(number); i++ {
		c := number[i]
		switch {
		case c == ' ' || c == '-':
			continue
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		default:
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	total := 0
	for i := 0; i < len(digits); i++ {
		n := int(digits[len(digits)-1-i] - '0')
		if i%2 == 1 {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		total += n
	}
	return total%10 == 0
}

// ValidAadhaar checks the Verhoeff checksum and rejects measurement or
// payment contexts.
func ValidAadhaar(value, context string) bool {
	if !VerhoeffValid(value) {
		return false
	}
	return !aadhaarExclusionPattern.MatchString(context)
}

// ValidSSN applies area/group/serial rules and rejects technical or dummy
// contexts. Areas 900-999 are kept because ITINs are still sensitive.
func ValidSSN(value, context string) bool {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 || len(parts[0]) != 3 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return false
	}
	area, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	group, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	serial, err := strconv.Atoi(parts[2])
	if err != nil {
		return false
	}
	if area == 0 || area == 666 || group == 0 || serial == 0 {
		return false
	}
	return !suppressedByContext(context)
}

// ValidPhone normalises a +91 prefix away and requires a 10-digit mobile
// number starting with 6-9.
func ValidPhone(value, context string) bool {
	digits := digitsOnly(value)
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return false
	}
	if digits[0] < '6' {
		return false
	}
	return !suppressedByContext(context)
}

// ValidCreditCard applies the Luhn checksum and rejects technical or dummy
// contexts.
func ValidCreditCard(value, context string) bool {
	if !LuhnValid(value) {
		return false
	}
	return !suppressedByContext(context)
}

// ValidPAN checks the PAN shape and the holder-type letter.
func ValidPAN(value, _ string) bool {
	pan := strings.ToUpper(strings.TrimSpace(value))
	if !panPattern.MatchString(pan) {
		return false
	}
	return strings.IndexByte(panEntityChars, pan[3]) >= 0
}

// ValidGSTIN checks the state code range and the embedded PAN.
func ValidGSTIN(value, _ string) bool {
	gstin := strings.ToUpper(strings.TrimSpace(value))
	if !gstinPattern.MatchString(gstin) {
		return false
	}
	state, err := strconv.Atoi(gstin[:2])
	if err != nil || state < 1 || state > 37 {
		return false
	}
	return ValidPAN(gstin[2:12], "")
}

// ValidPassport checks the passport shape: a letter other than Q, X or Z,
// a non-zero digit, then six digits.
func ValidPassport(value, _ string) bool {
	return passportPattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

// ValidDrivingLicence accepts compact and hyphenated licence numbers. A
// single whitespace byte after the RTO code is tolerated.
func ValidDrivingLicence(value, _ string) bool {
	dl := strings.ToUpper(strings.TrimSpace(value))
	if len(dl) > 4 && strings.IndexByte(" \t\r\n\f", dl[4]) >= 0 {
		dl = dl[:4] + dl[5:]
	}
	return dlPattern.MatchString(dl)
}

// ValidVoterID checks the EPIC shape.
func ValidVoterID(value, _ string) bool {
	return voterIDPattern.MatchString(strings.TrimSpace(value))
}

// ValidIFSC checks the bank routing code shape.
func ValidIFSC(value, _ string) bool {
	return ifscPattern.MatchString(strings.TrimSpace(value))
}

// ValidEmail checks the local@domain.tld shape.
func ValidEmail(value, _ string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// ValidUPI checks the local@handle shape. Unknown handles are accepted.
func ValidUPI(value, _ string) bool {
	vpa := strings.ToLower(strings.TrimSpace(value))
	if !upiPattern.MatchString(vpa) {
		return false
	}
	at := strings.LastIndexByte(vpa, '@')
	return len(vpa)-at-1 >= 2
}

// ValidABHA checks the XX-XXXX-XXXX-XXXX grouping.
func ValidABHA(value, _ string) bool {
	return abhaPattern.MatchString(strings.TrimSpace(value))
}

// suppressedByContext reports technical or dummy vocabulary in a validator
// context window.
func suppressedByContext(context string) bool {
	return technicalPattern.MatchString(context) || validatorDummyPattern.MatchString(context)
}

var (
	codeKeywords = map[string]bool{
		"def": true, "class": true, "import": true, "return": true, "lambda": true, "async": true,
		"await": true, "yield": true, "pass": true, "raise": true, "except": true, "finally": true,
		"None": true, "True": true, "False": true, "self": true, "cls": true,
		"func": true, "var": true, "const": true, "nil": true, "null": true, "function": true,
	}
	lowerUnderscorePattern = regexp.MustCompile(`^[a-z].*_`)
)

// codeIndicators are punctuation bytes that rarely occur in real names.
const codeIndicators = "([.<=>{}/\\"

// IsCodeArtifact reports whether a person-name candidate looks like a code
// token rather than a real name.
func IsCodeArtifact(value string) bool {
	if strings.ContainsAny(value, codeIndicators) {
		return true
	}
	words := strings.Fields(value)
	if len(words) > 5 {
		return true
	}
	for _, w := range words {
		if codeKeywords[w] {
			return true
		}
	}
	return lowerUnderscorePattern.MatchString(value)
}

// ValidatorFor returns the built-in validator of a category, or nil when
// the category has none.
func ValidatorFor(c Category) Validator {
	switch c {
	case CategoryAadhaar:
		return ValidAadhaar
	case CategoryPAN:
		return ValidPAN
	case CategoryPassport:
		return ValidPassport
	case CategoryVoterID:
		return ValidVoterID
	case CategoryDrivingLicence:
		return ValidDrivingLicence
	case CategorySSN:
		return ValidSSN
	case CategoryCreditCard:
		return ValidCreditCard
	case CategoryIFSC:
		return ValidIFSC
	case CategoryEmail:
		return ValidEmail
	case CategoryPhone:
		return ValidPhone
	case CategoryGSTIN:
		return ValidGSTIN
	case CategoryUPI:
		return ValidUPI
	case CategoryABHA:
		return ValidABHA
	default:
		return nil
	}
}
