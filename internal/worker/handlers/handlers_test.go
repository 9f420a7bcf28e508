package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInferencer records the input it was called with and returns canned
// output.
type fakeInferencer struct {
	output map[string]string
	err    error

	calls     int
	lastType  string
	lastInput map[string]string
}

func (f *fakeInferencer) Infer(ctx context.Context, jobType string, input map[string]string) (map[string]string, error) {
	f.calls++
	f.lastType = jobType
	f.lastInput = input
	return f.output, f.err
}

func TestForType(t *testing.T) {
	infer := &fakeInferencer{}

	for _, name := range []string{"resize", "sentiment", "generate", "translate"} {
		h, err := ForType(name, infer, "uploads")
		require.NoError(t, err, name)
		require.NotNil(t, h, name)
	}

	_, err := ForType("bogus", infer, "uploads")
	require.Error(t, err)
}

func TestGenerateContinuesDraftText(t *testing.T) {
	infer := &fakeInferencer{output: map[string]string{"generated_text": "and it only got better."}}
	h := NewGenerate(infer)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeGenerate,
		Payload: map[string]string{"prompt_text": "Today was amazing"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Today was amazing and it only got better.", result["generated_text"])
	assert.Contains(t, infer.lastInput["prompt"], "Continue and improve this social media post")
	assert.Contains(t, infer.lastInput["prompt"], "Today was amazing")
	assert.Equal(t, "60", infer.lastInput["max_new_tokens"])
	assert.Equal(t, "0.75", infer.lastInput["temperature"])
}

func TestGenerateFromTagsOnly(t *testing.T) {
	infer := &fakeInferencer{output: map[string]string{"generated_text": "Hiking is the best."}}
	h := NewGenerate(infer)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeGenerate,
		Payload: map[string]string{"tags": "#hiking #nature"},
	})
	require.NoError(t, err)

	assert.Contains(t, infer.lastInput["prompt"], "Write an interesting social media post about #hiking #nature")
	assert.Equal(t, "Hiking is the best. #hiking #nature", result["generated_text"])
}

func TestGenerateEmptyRequestIsTerminal(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewGenerate(infer)

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeGenerate,
		Payload: map[string]string{},
	})

	require.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, 0, infer.calls)
}

func TestGenerateHonorsTuningOverrides(t *testing.T) {
	infer := &fakeInferencer{output: map[string]string{"generated_text": "x"}}
	h := NewGenerate(infer)

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeGenerate,
		Payload: map[string]string{
			"prompt_text":    "draft",
			"max_new_tokens": "120",
			"temperature":    "0.9",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "120", infer.lastInput["max_new_tokens"])
	assert.Equal(t, "0.9", infer.lastInput["temperature"])
}

func TestSentimentMapsModelLabels(t *testing.T) {
	tests := []struct {
		modelLabel string
		want       string
	}{
		{"LABEL_0", SentimentNegative},
		{"LABEL_1", SentimentNeutral},
		{"LABEL_2", SentimentPositive},
		{"LABEL_99", SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.modelLabel, func(t *testing.T) {
			infer := &fakeInferencer{output: map[string]string{
				"label": tt.modelLabel,
				"score": "0.8",
			}}
			h := NewSentiment(infer)

			result, err := h.Handle(context.Background(), &queue.JobMessage{
				JobType: queue.JobTypeSentiment,
				Payload: map[string]string{"text": "some text"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result["sentiment_label"])
			assert.Equal(t, "0.8", result["sentiment_score"])
		})
	}
}

func TestSentimentEmptyTextFallsBackToNeutral(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewSentiment(infer)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeSentiment,
		Payload: map[string]string{"text": "   "},
	})
	require.NoError(t, err)

	assert.Equal(t, SentimentNeutral, result["sentiment_label"])
	assert.Equal(t, "0.5", result["sentiment_score"])
	assert.Equal(t, 0, infer.calls)
}

func TestSentimentTerminalErrorFallsBackToNeutral(t *testing.T) {
	infer := &fakeInferencer{err: domain.ErrInvalidPayload}
	h := NewSentiment(infer)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeSentiment,
		Payload: map[string]string{"text": "some text"},
	})
	require.NoError(t, err)
	assert.Equal(t, SentimentNeutral, result["sentiment_label"])
}

func TestSentimentTransientErrorPropagates(t *testing.T) {
	infer := &fakeInferencer{err: domain.NewTransientError(errors.New("backend down"))}
	h := NewSentiment(infer)

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeSentiment,
		Payload: map[string]string{"text": "some text"},
	})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Привет, как дела?", "ru"},
		{"Schöne Grüße aus München", "de"},
		{"¿Cómo estás hoy?", "es"},
		{"Ça va très bien", "fr"},
		{"Just a plain sentence", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestTranslateSameLanguagePassesThrough(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewTranslate(infer)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeTranslate,
		Payload: map[string]string{
			"text":        "hello there",
			"source_lang": "en",
			"target_lang": "en",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", result["translated_text"])
	assert.Equal(t, 0, infer.calls)
}

func TestTranslateDetectsSourceLanguage(t *testing.T) {
	infer := &fakeInferencer{output: map[string]string{"translated_text": "hello"}}
	h := NewTranslate(infer)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeTranslate,
		Payload: map[string]string{
			"text":        "Привет",
			"target_lang": "en",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "ru", result["detected_lang"])
	assert.Equal(t, "ru", infer.lastInput["source_lang"])
	assert.Equal(t, "hello", result["translated_text"])
}

func TestTranslateUnsupportedPairIsTerminal(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewTranslate(infer)

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeTranslate,
		Payload: map[string]string{
			"text":        "Schöne Grüße",
			"source_lang": "de",
			"target_lang": "fr",
		},
	})

	require.ErrorIs(t, err, domain.ErrUnsupportedLanguagePair)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, 0, infer.calls)
}

func TestTranslateMissingTextIsTerminal(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewTranslate(infer)

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeTranslate,
		Payload: map[string]string{"target_lang": "de"},
	})

	require.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestResizeProducesThumbnailField(t *testing.T) {
	uploadDir := t.TempDir()
	fullDir := filepath.Join(uploadDir, "full")
	require.NoError(t, os.MkdirAll(fullDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fullDir, "photo.jpg"), []byte("img"), 0o644))

	infer := &fakeInferencer{output: map[string]string{}}
	h := NewResize(infer, uploadDir)

	result, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType:   queue.JobTypeResize,
		TargetRef: "post-1",
		Payload:   map[string]string{"image_path": "/uploads/full/photo.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/uploads/thumbnails/thumb_photo.jpg", result["image_thumbnail"])
	assert.Equal(t, filepath.Join(uploadDir, "full", "photo.jpg"), infer.lastInput["input_path"])
	assert.Equal(t, filepath.Join(uploadDir, "thumbnails", "thumb_photo.jpg"), infer.lastInput["output_path"])
}

func TestResizeMissingFileIsTerminal(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewResize(infer, t.TempDir())

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeResize,
		Payload: map[string]string{"image_path": "/uploads/full/missing.jpg"},
	})

	require.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, 0, infer.calls)
}

func TestResizeMissingPayloadFieldIsTerminal(t *testing.T) {
	infer := &fakeInferencer{}
	h := NewResize(infer, t.TempDir())

	_, err := h.Handle(context.Background(), &queue.JobMessage{
		JobType: queue.JobTypeResize,
		Payload: map[string]string{},
	})

	require.ErrorIs(t, err, domain.ErrInvalidPayload)
}
