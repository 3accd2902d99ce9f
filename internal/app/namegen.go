package app

import "github.com/brianvoe/gofakeit/v7"

// NameGenerator produces realistic replacement author names. A non-zero seed
// makes the sequence deterministic; seed zero draws fresh random names.
type NameGenerator struct {
	faker *gofakeit.Faker
}

func NewNameGenerator(seed uint64) *NameGenerator {
	return &NameGenerator{faker: gofakeit.New(seed)}
}

func (g *NameGenerator) Name() string { return g.faker.Name() }
