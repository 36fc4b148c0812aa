package relevance

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/peekknuf/datatrust/internal/dataset"
)

// Label is the topical domain a dataset is assigned to.
type Label string

const (
	Health         Label = "Health"
	Finance        Label = "Finance"
	FraudDetection Label = "Fraud Detection"
	Education      Label = "Education"
	Sales          Label = "Sales"
	Other          Label = "Other"
)

// Domain is one entry of the taxonomy.
type Domain struct {
	Label    Label
	Keywords []string
}

// Taxonomy is ordered; ties resolve to the earlier domain.
var Taxonomy = []Domain{
	{Health, []string{"depression", "stress", "mental", "sleep", "diet", "health"}},
	{Finance, []string{"amount", "transaction", "credit", "balance"}},
	{FraudDetection, []string{"class", "fraud", "anomaly"}},
	{Education, []string{"cgpa", "academic", "study", "degree"}},
	{Sales, []string{"customer", "price", "sale", "purchase"}},
	{Other, nil},
}

type nameBoost struct {
	label   Label
	markers []string
}

var nameBoosts = []nameBoost{
	{FraudDetection, []string{"fraud", "creditcard"}},
	{Health, []string{"depression", "health"}},
	{Sales, []string{"sales", "customer"}},
}

const (
	nameBoostScore     = 5
	binaryClassColumn  = "class"
	binaryClassFraud   = 3
	binaryClassFinance = 1
)

// Classifier scores column names and the dataset name against Taxonomy. The
// taxonomy is read only, so a Classifier is safe for concurrent use.
type Classifier struct {
	logger *slog.Logger
}

func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger.WithGroup("relevance")}
}

// Scores returns the score of every domain, in taxonomy order.
func (c *Classifier) Scores(d *dataset.Dataset, name string) []int {
	lower := cases.Lower(language.English)
	scores := make([]int, len(Taxonomy))

	for _, col := range d.Columns() {
		colName := lower.String(col.Name())
		binaryClass := colName == binaryClassColumn && col.Distinct() == 2

		for i, dom := range Taxonomy {
			for _, kw := range dom.Keywords {
				if strings.Contains(colName, kw) {
					scores[i]++
				}
			}
			if !binaryClass {
				continue
			}
			switch dom.Label {
			case FraudDetection:
				scores[i] += binaryClassFraud
			case Finance:
				scores[i] += binaryClassFinance
			}
		}
	}

	datasetName := lower.String(name)
	for _, b := range nameBoosts {
		for _, m := range b.markers {
			if strings.Contains(datasetName, m) {
				scores[indexOf(b.label)] += nameBoostScore
				break
			}
		}
	}
	return scores
}

// Classify returns the highest scoring domain, or Other when nothing matched.
func (c *Classifier) Classify(d *dataset.Dataset, name string) Label {
	scores := c.Scores(d, name)

	best := -1
	for i, s := range scores {
		if s > 0 && (best < 0 || s > scores[best]) {
			best = i
		}
	}

	label := Other
	if best >= 0 {
		label = Taxonomy[best].Label
	}
	c.logger.Debug("relevance checked", "dataset", name, "label", label, "scores", scores)
	return label
}

func indexOf(l Label) int {
	for i, d := range Taxonomy {
		if d.Label == l {
			return i
		}
	}
	return len(Taxonomy) - 1
}
