// Package classify bridges headline batches to an external sentiment
// classifier. The classifier is a black box behind the Classifier interface;
// the bridge owns chunking, order preservation, and chunk-scoped failure
// handling.
package classify

import (
	"context"
	"log"

	"ticker-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// Prediction is one classifier output. Score is confidence in [0,1].
type Prediction struct {
	Label domain.SentimentLabel
	Score float64
}

// Classifier scores a batch of headline texts. Implementations must return
// exactly one prediction per input, in input order, or an error for the whole
// batch.
type Classifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error)
	Model() string
}

// Bridge chunks oversized batches to the classifier's batch limit and
// reassembles results in original order. A chunk that fails is dropped and
// counted; the surviving chunks keep their relative order. Dropped headlines
// are not retried here: they were never persisted, so the next fetch cycle
// sees them as new.
type Bridge struct {
	tracer     trace.Tracer
	classifier Classifier
	chunkSize  int
}

func NewBridge(tracer trace.Tracer, classifier Classifier, chunkSize int) *Bridge {
	if chunkSize <= 0 {
		chunkSize = 16
	}
	return &Bridge{tracer: tracer, classifier: classifier, chunkSize: chunkSize}
}

// Classify returns the classified headlines plus the count dropped due to
// chunk failures. When no chunk fails, output length equals input length and
// output[i] corresponds to input[i].
func (b *Bridge) Classify(ctx context.Context, batch []domain.Headline) ([]domain.ClassifiedHeadline, int) {
	if len(batch) == 0 {
		return nil, 0
	}
	_, span := b.tracer.Start(ctx, "classify-bridge.classify")
	defer span.End()

	out := make([]domain.ClassifiedHeadline, 0, len(batch))
	dropped := 0

	for start := 0; start < len(batch); start += b.chunkSize {
		end := min(start+b.chunkSize, len(batch))
		chunk := batch[start:end]

		texts := make([]string, len(chunk))
		for i, h := range chunk {
			texts[i] = h.Headline
		}

		predictions, err := b.classifier.ClassifyBatch(ctx, texts)
		if err != nil || len(predictions) != len(chunk) {
			if err != nil {
				log.Printf("classification failure: chunk of %d dropped: %v", len(chunk), err)
			} else {
				log.Printf("classification failure: chunk of %d dropped: got %d predictions", len(chunk), len(predictions))
			}
			dropped += len(chunk)
			continue
		}

		for i, h := range chunk {
			label := predictions[i].Label
			if !label.IsValid() {
				label = domain.LabelNeutral
			}
			out = append(out, domain.ClassifiedHeadline{
				Headline:       h,
				SentimentScore: clamp(predictions[i].Score, 0, 1),
				SentimentLabel: label,
			})
		}
	}

	return out, dropped
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
