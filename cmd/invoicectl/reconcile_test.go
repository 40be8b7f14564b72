package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryView_FlattensErrors(t *testing.T) {
	ok, failed := uuid.New(), uuid.New()
	start := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	summary := &scheduler.RunSummary{
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Tenants:    2,
		Failed:     1,
		Checked:    7,
		Outcomes: []scheduler.TenantOutcome{
			{TenantID: ok, Checked: 7},
			{TenantID: failed, Err: errors.New("connection reset")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, summaryView(summary)))

	var got runView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Tenants)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, ok, got.Outcomes[0].TenantID)
	assert.Empty(t, got.Outcomes[0].Error)
	assert.Equal(t, "connection reset", got.Outcomes[1].Error)
}

func TestParseTenant(t *testing.T) {
	id := uuid.New()
	got, err := parseTenant(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseTenant("acme")
	assert.Error(t, err)
}

func TestTokenCmd_RequiresTenant(t *testing.T) {
	cmd := tokenCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
