package scan

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerhoeffValid(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"valid compact", "234123412346", true},
		{"valid second", "499012345678", true},
		{"valid third", "567812345678", true},
		{"valid fourth", "987654321096", true},
		{"valid with spaces", "2341 2341 2346", true},
		{"valid with hyphens", "2341-2341-2346", true},
		{"wrong check digit", "234123412345", false},
		{"another wrong check digit", "234123412347", false},
		{"checksum passes but leads with zero", "000112345675", false},
		{"too short", "23412341234", false},
		{"too long", "2341234123461", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerhoeffValid(tt.number))
		})
	}
}

func TestVerhoeffRejectsLeadingZeroOrOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		lead := byte('0' + rng.Intn(2))
		var b strings.Builder
		b.WriteByte(lead)
		for j := 0; j < 11; j++ {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
		number := b.String()
		if VerhoeffValid(number) {
			t.Fatalf("VerhoeffValid(%q) = true, want false for leading %c", number, lead)
		}
		if ValidAadhaar(number, "") {
			t.Fatalf("ValidAadhaar(%q) = true, want false for leading %c", number, lead)
		}
	}
}

func TestValidAadhaarExclusionContext(t *testing.T) {
	assert.True(t, ValidAadhaar("234123412346", "my aadhaar is 234123412346"))
	assert.False(t, ValidAadhaar("234123412346", "bank account 234123412346"))
	assert.False(t, ValidAadhaar("234123412346", "image size 234123412346 px"))
	assert.False(t, ValidAadhaar("234123412346", "paid by card 234123412346"))
}

// luhnComplete appends the Luhn check digit to a payload.
func luhnComplete(payload string) string {
	sum := 0
	for i := 0; i < len(payload); i++ {
		n := int(payload[len(payload)-1-i] - '0')
		if i%2 == 0 {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
	}
	return payload + strconv.Itoa((10-sum%10)%10)
}

func TestLuhnValid(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"visa", "4111111111111111", true},
		{"mastercard", "5500000000000004", true},
		{"amex", "378282246310005", true},
		{"discover", "6011111111111117", true},
		{"with spaces", "4111 1111 1111 1111", true},
		{"with hyphens", "4111-1111-1111-1111", true},
		{"bad checksum", "4111111111111112", false},
		{"too short", "411111111111", false},
		{"twenty digits", "41111111111111111111", false},
		{"letters", "4111a11111111111", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LuhnValid(tt.number))
		})
	}
}

func TestLuhnGeneratedNumbersValidate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		length := 12 + rng.Intn(7)
		var b strings.Builder
		for j := 0; j < length; j++ {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
		number := luhnComplete(b.String())
		assert.True(t, LuhnValid(number), "generated %s", number)
	}
}

func TestLuhnDetectsEverySingleDigitChange(t *testing.T) {
	valid := []string{"4111111111111111", "5500000000000004", "6011111111111117", luhnComplete("453201511283036")}
	for _, number := range valid {
		assert.True(t, LuhnValid(number))
		for pos := 0; pos < len(number); pos++ {
			for d := byte('0'); d <= '9'; d++ {
				if number[pos] == d {
					continue
				}
				mutated := number[:pos] + string(d) + number[pos+1:]
				if LuhnValid(mutated) {
					t.Fatalf("single-digit change %s -> %s not detected", number, mutated)
				}
			}
		}
	}
}

func TestValidSSN(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		context string
		want    bool
	}{
		{"valid", "123-45-6789", "my ssn is 123-45-6789", true},
		{"itin range kept", "912-45-6789", "", true},
		{"zero area", "000-12-3456", "", false},
		{"reserved area", "666-12-3456", "", false},
		{"zero group", "123-00-6789", "", false},
		{"zero serial", "123-45-0000", "", false},
		{"technical context", "123-45-6789", "version 123-45-6789", false},
		{"test context", "123-45-6789", "test ssn 123-45-6789", false},
		{"malformed", "12-345-6789", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidSSN(tt.value, tt.context))
		})
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		context string
		want    bool
	}{
		{"plain", "9876543210", "call me", true},
		{"country code", "+91 9876543210", "", true},
		{"country code hyphen", "+91-7876543210", "", true},
		{"low lead digit", "5876543210", "", false},
		{"nine digits", "987654321", "", false},
		{"sample context", "9876543210", "sample number", false},
		{"measurement context", "9876543210", "resolution 9876543210", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPhone(tt.value, tt.context))
		})
	}
}

func TestValidCreditCardContext(t *testing.T) {
	assert.True(t, ValidCreditCard("4111111111111111", "charged to 4111111111111111"))
	assert.False(t, ValidCreditCard("4111111111111111", "card 4111111111111111 used for testing"))
	assert.False(t, ValidCreditCard("4111111111111112", ""))
}

func TestStructuralValidators(t *testing.T) {
	tests := []struct {
		name      string
		validator Validator
		value     string
		want      bool
	}{
		{"pan valid", ValidPAN, "ABCPE1234F", true},
		{"pan company", ValidPAN, "AAACR5055K", true},
		{"pan bad entity letter", ValidPAN, "ABCXE1234F", false},
		{"pan bad shape", ValidPAN, "ABCP1234F", false},
		{"gstin valid", ValidGSTIN, "27ABCPE1234F1Z5", true},
		{"gstin state 37", ValidGSTIN, "37ABCPE1234F1Z5", true},
		{"gstin state 00", ValidGSTIN, "00ABCPE1234F1Z5", false},
		{"gstin state 38", ValidGSTIN, "38ABCPE1234F1Z5", false},
		{"gstin bad embedded pan", ValidGSTIN, "27ABCXE1234F1Z5", false},
		{"passport valid", ValidPassport, "J8369854", true},
		{"passport forbidden letter", ValidPassport, "Q8369854", false},
		{"passport zero digit", ValidPassport, "J0369854", false},
		{"licence compact", ValidDrivingLicence, "MH1220110012345", true},
		{"licence spaced", ValidDrivingLicence, "MH12 20110012345", true},
		{"licence hyphenated", ValidDrivingLicence, "MH-12-2011-0012345", true},
		{"licence short", ValidDrivingLicence, "MH122011001234", false},
		{"voter id", ValidVoterID, "ABC1234567", true},
		{"voter id short", ValidVoterID, "AB1234567", false},
		{"ifsc", ValidIFSC, "SBIN0001234", true},
		{"ifsc missing zero", ValidIFSC, "SBIN1001234", false},
		{"email", ValidEmail, "rahul.sharma@example.co.in", true},
		{"email no tld", ValidEmail, "rahul@localhost", false},
		{"upi known handle", ValidUPI, "rahul@okaxis", true},
		{"upi unknown handle", ValidUPI, "rahul.s@newbank", true},
		{"upi short handle", ValidUPI, "rahul@x", false},
		{"abha", ValidABHA, "12-3456-7890-1234", true},
		{"abha bad grouping", ValidABHA, "123-456-7890-1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.validator(tt.value, ""))
		})
	}
}

func TestIsCodeArtifact(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"Rahul Sharma", false},
		{"Priya", false},
		{"self.name", true},
		{"getUser()", true},
		{"user_name", true},
		{"None", true},
		{"Map<String>", true},
		{"One Two Three Four Five Six", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCodeArtifact(tt.value))
		})
	}
}
