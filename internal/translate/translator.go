// Package translate translates complaint text for the triage team.
//
// Passengers file complaints in many Indian languages. Alerts carry an
// English (or TRANSLATE_TARGET) rendering next to the original so the
// on-duty admin can act without guessing.
//
// Graceful degradation: if the API key is not set, translation is disabled
// and a nil *Translator passes text through unchanged. On 429 rate limit
// errors the caller gets the original text back and sends it alone.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/translate"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrRateLimited is returned when the API answers 429.
var ErrRateLimited = errors.New("translation rate limited")

// engine is the subset of *translate.Client the translator uses.
type engine interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// Translator wraps the Cloud Translation client.
type Translator struct {
	engine engine
	target language.Tag
}

// NewTranslator creates a Cloud Translation backed Translator.
//
// Returns nil if apiKey is empty (graceful degradation).
func NewTranslator(ctx context.Context, apiKey, target string, opts ...option.ClientOption) (*Translator, error) {
	if apiKey == "" {
		zap.S().Warn("⚠️  GOOGLE_TRANSLATE_API_KEY not set. Translation disabled.")
		return nil, nil
	}

	tag, err := language.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATE_TARGET %q: %w", target, err)
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}

	zap.S().Infof("✓ Translation configured successfully (target: %s)", tag)
	return newWithEngine(client, tag), nil
}

func newWithEngine(e engine, target language.Tag) *Translator {
	return &Translator{engine: e, target: target}
}

// Target returns the target language.
func (t *Translator) Target() language.Tag {
	if t == nil {
		return language.Und
	}
	return t.target
}

// Translate translates a single text. Text already in the target language
// comes back unchanged.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	out, err := t.BatchTranslate(ctx, []string{text})
	if err != nil {
		return text, err
	}
	return out[0], nil
}

// BatchTranslate translates texts in one API call.
//
// The result always has len(texts) entries; on error every entry is the
// original text so callers can fall back to it.
func (t *Translator) BatchTranslate(ctx context.Context, texts []string) ([]string, error) {
	result := make([]string, len(texts))
	copy(result, texts)
	if t == nil || len(texts) == 0 {
		return result, nil
	}

	// Blank inputs are not sent.
	var inputs []string
	var index []int
	for i, s := range texts {
		if strings.TrimSpace(s) != "" {
			inputs = append(inputs, s)
			index = append(index, i)
		}
	}
	if len(inputs) == 0 {
		return result, nil
	}

	translations, err := t.engine.Translate(ctx, inputs, t.target, &translate.Options{Format: translate.Text})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			zap.S().Warn("  ⚠️  Translate 429 rate limit - skipping translation")
			return result, ErrRateLimited
		}
		return result, fmt.Errorf("translate request failed: %w", err)
	}
	if len(translations) != len(inputs) {
		return result, fmt.Errorf("translate returned %d results for %d inputs", len(translations), len(inputs))
	}

	for i, tr := range translations {
		if tr.Source == t.target {
			continue
		}
		if text := strings.TrimSpace(tr.Text); text != "" {
			result[index[i]] = text
		}
	}
	return result, nil
}

// Close releases the client.
func (t *Translator) Close() error {
	if t == nil {
		return nil
	}
	return t.engine.Close()
}
