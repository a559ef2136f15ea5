package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// An empty description must still be written, otherwise approving a
// previously rejected entity keeps the old rejection note.
func TestDecisionUpdatesAlwaysCarryDescription(t *testing.T) {
	updates := decisionUpdates(true, "status-ciphertext", "")

	desc, present := updates["description_encrypted"]
	assert.True(t, present)
	assert.Equal(t, "", desc)
	assert.Equal(t, true, updates["verified"])
	assert.Equal(t, "status-ciphertext", updates["status_encrypted"])
}
