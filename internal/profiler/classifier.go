package profiler

import (
	"github.com/peekknuf/datatrust/internal/config"
	"github.com/peekknuf/datatrust/internal/dataset"
)

// Role is the analytical role a column plays in one verification pass.
type Role int

const (
	RoleUnclassified Role = iota
	RoleNumeric
	RoleCategorical
	RoleString
)

func (r Role) String() string {
	switch r {
	case RoleNumeric:
		return "numeric"
	case RoleCategorical:
		return "categorical"
	case RoleString:
		return "string"
	default:
		return "unclassified"
	}
}

// Roles partitions a dataset's column names into disjoint buckets, each in
// dataset order.
type Roles struct {
	Numeric      []string
	Categorical  []string
	String       []string
	Unclassified []string

	// IncorrectTypes counts unclassified columns whose storage type is
	// neither numeric nor categorical.
	IncorrectTypes int

	byName map[string]Role
}

// Of returns the role assigned to the named column.
func (r Roles) Of(name string) Role {
	return r.byName[name]
}

func (r Roles) IsNumeric(name string) bool     { return r.Of(name) == RoleNumeric }
func (r Roles) IsCategorical(name string) bool { return r.Of(name) == RoleCategorical }

// Classify assigns a role to every column:
//   - numeric when more than NumericCoercionRatio of the non-null cells
//     coerce to a number;
//   - categorical when declared as a category, or stored as text with a
//     cardinality ratio below CategoricalCardinality;
//   - string for the remaining text columns;
//   - unclassified otherwise.
func Classify(d *dataset.Dataset, t config.Thresholds) Roles {
	roles := Roles{byName: make(map[string]Role, d.Width())}

	for _, c := range d.Columns() {
		role := classifyColumn(c, t)
		if _, seen := roles.byName[c.Name()]; !seen {
			roles.byName[c.Name()] = role
		}

		switch role {
		case RoleNumeric:
			roles.Numeric = append(roles.Numeric, c.Name())
		case RoleCategorical:
			roles.Categorical = append(roles.Categorical, c.Name())
		case RoleString:
			roles.String = append(roles.String, c.Name())
		default:
			roles.Unclassified = append(roles.Unclassified, c.Name())
			if !c.DType().IsNumeric() && c.DType() != dataset.DTypeCategory {
				roles.IncorrectTypes++
			}
		}
	}

	return roles
}

func classifyColumn(c dataset.Column, t config.Thresholds) Role {
	nonNull := c.NonNullCount()
	if nonNull > 0 {
		coerced := len(c.Floats())
		if float64(coerced)/float64(nonNull) > t.NumericCoercionRatio {
			return RoleNumeric
		}
	}

	switch c.DType() {
	case dataset.DTypeCategory:
		return RoleCategorical
	case dataset.DTypeObject:
		if c.CardinalityRatio() < t.CategoricalCardinality {
			return RoleCategorical
		}
		return RoleString
	}
	return RoleUnclassified
}
