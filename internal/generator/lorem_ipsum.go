package generator

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/extractor"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/serializer"
)

const (
	// vocabularyDraws is how many words are drawn from faker to build the
	// vocabulary
	vocabularyDraws = 2000
	vocabularySeed  = 1
)

// LoremIpsumInstaller installs the SQL function masked columns are filled with
type LoremIpsumInstaller struct {
	DB         connector.Executor
	Schema     string
	Vocabulary []string
	Logger     *logrus.Logger
}

// NewLoremIpsumInstaller creates an installer for <schema>.lorem_ipsum
func NewLoremIpsumInstaller(db connector.Executor, schema string, logger *logrus.Logger) *LoremIpsumInstaller {
	return &LoremIpsumInstaller{
		DB:         db,
		Schema:     schema,
		Vocabulary: Vocabulary(faker.NewWithSeed(rand.NewSource(vocabularySeed))),
		Logger:     logger,
	}
}

// Vocabulary draws lorem words from f and returns them deduplicated and sorted
func Vocabulary(f faker.Faker) []string {
	words := make([]string, 0, vocabularyDraws)
	lorem := f.Lorem()
	for i := 0; i < vocabularyDraws; i++ {
		words = append(words, strings.ToLower(lorem.Word()))
	}
	words = lo.Uniq(lo.Compact(words))
	sort.Strings(words)
	return words
}

// FunctionSQL renders CREATE OR REPLACE FUNCTION for the generator. The
// function returns the given number of random vocabulary words separated by
// spaces.
func (li *LoremIpsumInstaller) FunctionSQL() string {
	literals := lo.Map(li.Vocabulary, func(word string, _ int) string {
		return serializer.QuoteLiteral(word)
	})

	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s.%s(words integer) RETURNS text AS $$
  SELECT array_to_string(ARRAY(
    SELECT (ARRAY[%s])[1 + floor(random() * %d)::int]
    FROM generate_series(1, words)
  ), ' ')
$$ LANGUAGE sql VOLATILE`,
		li.Schema,
		extractor.GeneratorFunction,
		strings.Join(literals, ", "),
		len(literals),
	)
}

// Install creates or replaces the generator function
func (li *LoremIpsumInstaller) Install() error {
	if len(li.Vocabulary) == 0 {
		return fmt.Errorf("empty vocabulary for %s.%s", li.Schema, extractor.GeneratorFunction)
	}

	if _, err := li.DB.ExecuteStatement(li.FunctionSQL()); err != nil {
		li.Logger.Errorf("Error installing %s.%s: %v", li.Schema, extractor.GeneratorFunction, err)
		return err
	}
	li.Logger.Infof("Installed %s.%s with %d words", li.Schema, extractor.GeneratorFunction, len(li.Vocabulary))
	return nil
}
