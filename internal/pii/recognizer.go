package pii

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"
)

// LabelPerson is the entity label for person names.
const LabelPerson = "PERSON"

// Entity is a named entity found in a piece of text.
type Entity struct {
	Text  string
	Label string
}

// EntityRecognizer finds named entities in short text values. Implementations
// must be safe for concurrent use.
type EntityRecognizer interface {
	Entities(text string) ([]Entity, error)
}

// The tagger needs sentence context to tag a bare value, so each value is
// placed inside this carrier before extraction.
const (
	carrierPrefix = "I met "
	carrierSuffix = " yesterday."
)

// ProseRecognizer runs the prose tagger and entity extractor with one model
// loaded on first use and shared read only afterwards.
type ProseRecognizer struct {
	once  sync.Once
	model *prose.Model
	err   error
}

func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

func (r *ProseRecognizer) load() (*prose.Model, error) {
	r.once.Do(func() {
		doc, err := prose.NewDocument("Model warmup.", prose.WithSegmentation(false))
		if err != nil {
			r.err = fmt.Errorf("loading entity model: %w", err)
			return
		}
		r.model = doc.Model
	})
	return r.model, r.err
}

// Entities returns the entities whose text is exactly the value.
func (r *ProseRecognizer) Entities(text string) ([]Entity, error) {
	model, err := r.load()
	if err != nil {
		return nil, err
	}

	value := strings.TrimSpace(text)
	doc, err := prose.NewDocument(carrierPrefix+value+carrierSuffix,
		prose.WithSegmentation(false),
		prose.UsingModel(model))
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	var out []Entity
	for _, e := range doc.Entities() {
		if e.Text == value {
			out = append(out, Entity{Text: e.Text, Label: e.Label})
		}
	}
	return out, nil
}
