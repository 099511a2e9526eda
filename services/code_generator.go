package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
)

const (
	codePrefix       = "BECE"
	fallbackAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	fallbackLength   = 6
)

var canonicalCodePattern = regexp.MustCompile(`^BECE(\d{2})(\d{2})(\d{2})(\d{3})(\d{4})$`)

// RegistrationCode is a generated code plus whether it follows the
// year/state/LGA/school/sequence layout.
type RegistrationCode struct {
	Value     string
	Canonical bool
}

// CodeFields is a canonical code split back into its parts.
type CodeFields struct {
	Year     int
	StateID  int
	LGAID    int
	SchoolID int
	Sequence int64
}

// CodeGenerator builds registration codes. The same inputs in the same year
// always produce the same canonical code.
type CodeGenerator struct {
	now func() time.Time
}

func NewCodeGenerator(now func() time.Time) *CodeGenerator {
	if now == nil {
		now = time.Now
	}
	return &CodeGenerator{now: now}
}

// Generate returns BECE<YY><SS><LL><HHH><NNNN>. Any field that is not
// positive or does not fit its width yields the random fallback form.
func (g *CodeGenerator) Generate(stateID, lgaID, schoolID int, sequence int64) RegistrationCode {
	yy := g.now().Year() % 100
	if fits(int64(stateID), 99) && fits(int64(lgaID), 99) && fits(int64(schoolID), 999) && fits(sequence, 9999) {
		return RegistrationCode{
			Value:     fmt.Sprintf("%s%02d%02d%02d%03d%04d", codePrefix, yy, stateID, lgaID, schoolID, sequence),
			Canonical: true,
		}
	}
	return g.Fallback()
}

// Fallback returns BECE<YY> followed by random uppercase alphanumerics.
func (g *CodeGenerator) Fallback() RegistrationCode {
	yy := g.now().Year() % 100
	return RegistrationCode{
		Value:     fmt.Sprintf("%s%02d%s", codePrefix, yy, randomAlphanumeric(fallbackLength)),
		Canonical: false,
	}
}

func fits(v, max int64) bool {
	return v > 0 && v <= max
}

func randomAlphanumeric(n int) string {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(fallbackAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("crypto/rand: %v", err))
		}
		out[i] = fallbackAlphabet[idx.Int64()]
	}
	return string(out)
}

// ParseRegistrationCode decomposes a canonical code. Fallback codes are
// rejected with ErrInvalidInput since they carry no fields.
func ParseRegistrationCode(code string) (CodeFields, error) {
	m := canonicalCodePattern.FindStringSubmatch(code)
	if m == nil {
		return CodeFields{}, fmt.Errorf("%q is not a canonical registration code: %w", code, apperrors.ErrInvalidInput)
	}
	yy, _ := strconv.Atoi(m[1])
	state, _ := strconv.Atoi(m[2])
	lga, _ := strconv.Atoi(m[3])
	school, _ := strconv.Atoi(m[4])
	seq, _ := strconv.ParseInt(m[5], 10, 64)
	return CodeFields{Year: yy, StateID: state, LGAID: lga, SchoolID: school, Sequence: seq}, nil
}
