package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/services"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	color.NoColor = true
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func TestRunCode_Derive(t *testing.T) {
	var out bytes.Buffer
	err := runCode(context.Background(), &out, codeOptions{state: 7, lga: 3, school: 45, seq: 12, year: 25}, fixedNow, nil)
	require.NoError(t, err)
	assert.Equal(t, "BECE2507030450012\n", out.String())
}

func TestRunCode_DefaultsToCurrentYear(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCode(context.Background(), &out, codeOptions{state: 7, lga: 3, school: 45, seq: 12}, fixedNow, nil))
	assert.Equal(t, "BECE2607030450012\n", out.String())
}

func TestRunCode_FourDigitYear(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCode(context.Background(), &out, codeOptions{state: 1, lga: 1, school: 1, seq: 1, year: 2024}, fixedNow, nil))
	assert.Equal(t, "BECE2401010010001\n", out.String())
}

func TestRunCode_OutOfRangeWarns(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCode(context.Background(), &out, codeOptions{state: 7, lga: 3, school: 1000, seq: 1}, fixedNow, nil))
	assert.Contains(t, out.String(), "fallback")
}

func TestRunCode_Parse(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCode(context.Background(), &out, codeOptions{parse: "BECE2507030450012"}, fixedNow, nil))
	assert.Contains(t, out.String(), "45")
	assert.Contains(t, out.String(), "12")

	err := runCode(context.Background(), &out, codeOptions{parse: "BECE25ABC123"}, fixedNow, nil)
	assert.Error(t, err)
}

type fakeOwners map[string]models.Candidate

func (f fakeOwners) FindByRegistrationNumber(_ context.Context, code string) (*models.Candidate, error) {
	c, ok := f[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func TestRunCode_ParseShowsOwner(t *testing.T) {
	ref := "R1"
	owners := fakeOwners{
		"BECE2507030450012": {ID: uuid.New(), Name: "Ada Obi", Email: "a@x.com", SchoolID: 45, PaymentReference: &ref},
		"BECE25AB12CD":      {ID: uuid.New(), Name: "No School", Email: "n@x.com"},
	}

	var out bytes.Buffer
	require.NoError(t, runCode(context.Background(), &out, codeOptions{parse: "BECE2507030450012", owner: true}, fixedNow, owners))
	assert.Contains(t, out.String(), "Ada Obi")
	assert.Contains(t, out.String(), "R1")

	out.Reset()
	require.NoError(t, runCode(context.Background(), &out, codeOptions{parse: "BECE25AB12CD", owner: true}, fixedNow, owners))
	assert.Contains(t, out.String(), "Fallback")
	assert.Contains(t, out.String(), "No School")

	out.Reset()
	require.NoError(t, runCode(context.Background(), &out, codeOptions{parse: "BECE2507030450099", owner: true}, fixedNow, owners))
	assert.Contains(t, out.String(), "No candidate holds BECE2507030450099")
}

func TestRunCode_RequiresInput(t *testing.T) {
	assert.Error(t, runCode(context.Background(), &bytes.Buffer{}, codeOptions{}, fixedNow, nil))
}

func TestRenderReconcile(t *testing.T) {
	var out bytes.Buffer
	renderReconcile(&out, []services.ReconcileResult{
		{Reference: "R1", Status: models.PaymentStatusSuccess, Code: "BECE2507030450001"},
		{Reference: "R2", Status: models.PaymentStatusFailed},
		{Reference: "R3", Status: models.PaymentStatusPending},
		{Reference: "R4", Status: models.PaymentStatusPending, Err: errors.New("gateway unreachable")},
	})

	s := out.String()
	assert.Contains(t, s, "BECE2507030450001")
	assert.Contains(t, s, "gateway unreachable")
	assert.Contains(t, s, "4 checked: 1 success, 1 failed, 1 pending, 1 error")
}

func TestRenderReconcile_Empty(t *testing.T) {
	var out bytes.Buffer
	renderReconcile(&out, nil)
	assert.Contains(t, out.String(), "No pending payments")
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["reconcile"])
	assert.True(t, names["code"])
}
