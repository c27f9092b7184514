package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadStatusTransitions(t *testing.T) {
	assert.True(t, UploadStatusPending.CanTransition(UploadStatusProcessing))
	assert.True(t, UploadStatusPending.CanTransition(UploadStatusFailed))
	assert.True(t, UploadStatusProcessing.CanTransition(UploadStatusCompleted))
	assert.True(t, UploadStatusProcessing.CanTransition(UploadStatusFailed))

	// 不允许跳级或回退
	assert.False(t, UploadStatusPending.CanTransition(UploadStatusCompleted))
	assert.False(t, UploadStatusProcessing.CanTransition(UploadStatusPending))
}

func TestUploadStatusTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []UploadStatus{UploadStatusCompleted, UploadStatusFailed} {
		assert.True(t, terminal.Terminal())
		for _, to := range []UploadStatus{UploadStatusPending, UploadStatusProcessing, UploadStatusCompleted, UploadStatusFailed} {
			assert.False(t, terminal.CanTransition(to), "%s -> %s 不应被允许", terminal, to)
		}
	}
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, JobStatusQueued.CanTransition(JobStatusStarted))
	assert.True(t, JobStatusQueued.CanTransition(JobStatusFailed))
	assert.True(t, JobStatusStarted.CanTransition(JobStatusFinished))
	assert.True(t, JobStatusStarted.CanTransition(JobStatusFailed))

	assert.False(t, JobStatusQueued.CanTransition(JobStatusFinished))
	assert.False(t, JobStatusStarted.CanTransition(JobStatusQueued))
}

func TestJobStatusTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []JobStatus{JobStatusFinished, JobStatusFailed} {
		assert.True(t, terminal.Terminal())
		for _, to := range []JobStatus{JobStatusQueued, JobStatusStarted, JobStatusFinished, JobStatusFailed} {
			assert.False(t, terminal.CanTransition(to), "%s -> %s 不应被允许", terminal, to)
		}
	}
}
