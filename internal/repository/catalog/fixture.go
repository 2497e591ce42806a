package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed fixture.yaml
var fixtureYAML []byte

// Fixture is the catalog document format, used for the embedded demo data
// and by the seed command.
type Fixture struct {
	Shops    []ShopRecord    `yaml:"shops"`
	Products []ProductRecord `yaml:"products"`
	Cities   []string        `yaml:"cities"`
}

type fixtureRepo struct {
	doc Fixture
}

// NewFixture serves the embedded catalog without a database.
func NewFixture() (Repository, error) {
	doc, err := ParseFixture(fixtureYAML)
	if err != nil {
		return nil, err
	}
	return &fixtureRepo{doc: doc}, nil
}

// ParseFixture decodes a catalog document.
func ParseFixture(data []byte) (Fixture, error) {
	var doc Fixture
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Fixture{}, fmt.Errorf("parse catalog fixture: %w", err)
	}
	return doc, nil
}

// EmbeddedFixture returns the built-in catalog document.
func EmbeddedFixture() (Fixture, error) {
	return ParseFixture(fixtureYAML)
}

func (r *fixtureRepo) Load(_ context.Context) (*Snapshot, error) {
	return BuildSnapshot(r.doc.Shops, r.doc.Products, r.doc.Cities)
}
