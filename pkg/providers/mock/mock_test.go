package mock

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/stretchr/testify/require"
)

func TestRecorderProducesWAV(t *testing.T) {
	r := NewRecorder(RecorderConfig{})
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))
	require.True(t, r.Active())
	require.Len(t, r.Snapshot(), 1024)
	require.ErrorIs(t, r.Start(ctx), recorder.ErrAlreadyRecording)

	clip, err := r.Stop(ctx)
	require.NoError(t, err)
	require.Equal(t, "audio/wav", clip.MIMEType)
	require.Equal(t, "recording.wav", clip.Filename)
	require.False(t, clip.Empty())

	dec := wav.NewDecoder(bytes.NewReader(clip.Data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, 16000, buf.Format.SampleRate)
	require.NotEmpty(t, buf.Data)

	require.Nil(t, r.Snapshot())
	_, err = r.Stop(ctx)
	require.ErrorIs(t, err, recorder.ErrNotRecording)
}

func TestRecorderStartErrors(t *testing.T) {
	r := NewRecorder(RecorderConfig{StartError: "permission_denied"})
	err := r.Start(context.Background())
	require.ErrorIs(t, err, recorder.ErrPermissionDenied)
	require.True(t, recorder.IsStartFailure(err))
	require.False(t, r.Active())

	r = NewRecorder(RecorderConfig{StartError: "device_unavailable"})
	require.ErrorIs(t, r.Start(context.Background()), recorder.ErrDeviceUnavailable)
}

func TestRecorderStartHonoursContext(t *testing.T) {
	r := NewRecorder(RecorderConfig{StartDelayMs: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Start(ctx), context.DeadlineExceeded)
	require.False(t, r.Active())
}

func TestTranscriberDefaults(t *testing.T) {
	tr := NewTranscriber(TranscriberConfig{})
	res, err := tr.Submit(context.Background(), recorder.EmptyRecording(), "Q1")
	require.NoError(t, err)
	require.Contains(t, res.Transcript, "0 bytes")
	require.Contains(t, res.Feedback, "Q1")

	subs := tr.Submissions()
	require.Len(t, subs, 1)
	require.Equal(t, "Q1", subs[0].Question)
}

func TestTranscriberFailure(t *testing.T) {
	tr := NewTranscriber(TranscriberConfig{Error: "server down"})
	_, err := tr.Submit(context.Background(), recorder.EmptyRecording(), "Q1")
	require.Error(t, err)
	require.True(t, errorsx.HasReason(err, errorsx.ReasonSubmissionStatus))
}

func TestTranscriberCancelled(t *testing.T) {
	tr := NewTranscriber(TranscriberConfig{DelayMs: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Submit(ctx, recorder.EmptyRecording(), "Q1")
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, errorsx.HasReason(err, errorsx.ReasonSubmissionSend))
}
