package services

import (
	"testing"

	"claims-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolveDocumentState_HighConfidenceAccepted(t *testing.T) {
	for _, confidence := range []float64{90, 95.5, 100} {
		status, attempts, manualFlag := resolveDocumentState(confidence, 0)
		assert.Equal(t, models.DocumentAccepted, status, "confidence %.1f", confidence)
		assert.Equal(t, 0, attempts)
		assert.False(t, manualFlag)
	}
}

func TestResolveDocumentState_LowConfidenceRejected(t *testing.T) {
	for _, confidence := range []float64{0, 25, 49.9} {
		status, _, manualFlag := resolveDocumentState(confidence, 0)
		assert.Equal(t, models.DocumentRejected, status, "confidence %.1f", confidence)
		assert.False(t, manualFlag)
	}
}

func TestResolveDocumentState_MediumConfidenceRequestsReupload(t *testing.T) {
	for _, confidence := range []float64{50, 75, 89.9} {
		status, attempts, manualFlag := resolveDocumentState(confidence, 0)
		assert.Equal(t, models.DocumentReuploadNeeded, status, "confidence %.1f", confidence)
		assert.Equal(t, 1, attempts)
		assert.False(t, manualFlag)
	}
}

func TestResolveDocumentState_ThirdMediumAttemptForceAccepted(t *testing.T) {
	// Three consecutive medium-confidence attempts: the third is accepted
	// with the manual verification flag so retries never loop forever.
	confidences := []float64{60, 65, 70}
	attempts := 0

	status, attempts, manualFlag := resolveDocumentState(confidences[0], attempts)
	assert.Equal(t, models.DocumentReuploadNeeded, status)
	assert.Equal(t, 1, attempts)
	assert.False(t, manualFlag)

	status, attempts, manualFlag = resolveDocumentState(confidences[1], attempts)
	assert.Equal(t, models.DocumentReuploadNeeded, status)
	assert.Equal(t, 2, attempts)
	assert.False(t, manualFlag)

	status, attempts, manualFlag = resolveDocumentState(confidences[2], attempts)
	assert.Equal(t, models.DocumentAccepted, status)
	assert.Equal(t, 3, attempts)
	assert.True(t, manualFlag)
}

func TestResolveDocumentState_HighConfidenceAfterRetriesNotFlagged(t *testing.T) {
	// A clean reupload on the second attempt is a plain acceptance.
	status, attempts, manualFlag := resolveDocumentState(94, 1)
	assert.Equal(t, models.DocumentAccepted, status)
	assert.Equal(t, 1, attempts)
	assert.False(t, manualFlag)
}

func TestResolveDocumentState_LowConfidenceRejectsEvenOnFinalAttempt(t *testing.T) {
	// Force-acceptance only covers the medium band; an unreadable document
	// is still rejected outright.
	status, _, manualFlag := resolveDocumentState(30, 2)
	assert.Equal(t, models.DocumentRejected, status)
	assert.False(t, manualFlag)
}

func TestIntakeSummary_AllResolved(t *testing.T) {
	resolved := &IntakeSummary{Total: 3, Accepted: 2, Rejected: 1, Pending: 0}
	assert.True(t, resolved.AllResolved())

	pending := &IntakeSummary{Total: 3, Accepted: 2, Pending: 1}
	assert.False(t, pending.AllResolved())
}
